package main

import (
	"testing"
	"time"

	"github.com/aluiziolira/jbscrape/models"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := opts.cfg
	if len(cfg.TargetMajors) != 2 || cfg.TargetMajors[0] != 16 || cfg.TargetMajors[1] != 17 {
		t.Fatalf("majors = %v, want [16 17]", cfg.TargetMajors)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != models.SourceEbay {
		t.Fatalf("sources = %v, want [ebay]", cfg.Sources)
	}
	if !opts.browser.Headless {
		t.Fatalf("browser should default to headless")
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	t.Setenv("JBSCRAPE_PAGES", "4")
	t.Setenv("JBSCRAPE_SITES", "swappa")

	opts, err := parseFlags([]string{
		"-majors", "16",
		"-delay", "250",
		"-format", "DUAL",
		"-no-headless",
		"-parallel", "3",
	})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := opts.cfg
	if cfg.EbayPages != 4 {
		t.Fatalf("pages = %d, want 4 from env", cfg.EbayPages)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != models.SourceSwappa {
		t.Fatalf("sources = %v, want [swappa]", cfg.Sources)
	}
	if len(cfg.TargetMajors) != 1 || cfg.TargetMajors[0] != 16 {
		t.Fatalf("majors = %v", cfg.TargetMajors)
	}
	if cfg.Delay != 250*time.Millisecond || cfg.Parallelism != 3 || cfg.OutputFormat != "dual" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if opts.browser.Headless {
		t.Fatalf("-no-headless should disable headless mode")
	}
}

func TestParseFlagsRejectsBadInput(t *testing.T) {
	for name, args := range map[string][]string{
		"majors": {"-majors", "sixteen"},
		"sites":  {"-sites", "craigslist"},
		"format": {"-format", "xml"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := parseFlags(args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}

	t.Run("env", func(t *testing.T) {
		t.Setenv("JBSCRAPE_PARALLEL", "many")
		if _, err := parseFlags(nil); err == nil {
			t.Fatalf("expected error for bad JBSCRAPE_PARALLEL")
		}
	})
}
