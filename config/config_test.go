package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/jbscrape/models"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "no majors",
			mutate: func(cfg *Config) {
				cfg.TargetMajors = nil
			},
			wantErr: "major",
		},
		{
			name: "negative major",
			mutate: func(cfg *Config) {
				cfg.TargetMajors = []int{-16}
			},
			wantErr: "major",
		},
		{
			name: "unknown source",
			mutate: func(cfg *Config) {
				cfg.Sources = []models.Source{"craigslist"}
			},
			wantErr: "source",
		},
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "zero ebay pages",
			mutate: func(cfg *Config) {
				cfg.EbayPages = 0
			},
			wantErr: "ebay pages",
		},
		{
			name: "zero swappa listings",
			mutate: func(cfg *Config) {
				cfg.SwappaListingsPerModel = 0
			},
			wantErr: "swappa listings",
		},
		{
			name: "invalid ebay url",
			mutate: func(cfg *Config) {
				cfg.EbayBaseURL = "http://"
			},
			wantErr: "ebay base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
			},
			wantErr: "retry backoff",
		},
		{
			name: "zero dedupe size",
			mutate: func(cfg *Config) {
				cfg.DedupeMaxSize = 0
			},
			wantErr: "dedupe",
		},
		{
			name: "bad format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestParseMajors(t *testing.T) {
	got, err := ParseMajors(" 16, 17,16 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, []int{16, 17}) {
		t.Fatalf("majors = %v", got)
	}

	for _, bad := range []string{"sixteen", "16,x", "", "0", "-1"} {
		if _, err := ParseMajors(bad); err == nil {
			t.Errorf("ParseMajors(%q) should fail", bad)
		}
	}
}

func TestParseSources(t *testing.T) {
	got, err := ParseSources("ebay, Swappa ebay")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []models.Source{models.SourceEbay, models.SourceSwappa}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sources = %v, want %v", got, want)
	}
	if _, err := ParseSources("ebay,amazon"); err == nil {
		t.Fatalf("expected unknown site error")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv(EnvPrefix+"PAGES", "4")
	t.Setenv(EnvPrefix+"BAD", "four")
	t.Setenv(EnvPrefix+"RENDER", "true")

	if n, ok, err := EnvInt("PAGES"); err != nil || !ok || n != 4 {
		t.Fatalf("EnvInt = %d, %v, %v", n, ok, err)
	}
	if _, _, err := EnvInt("BAD"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, ok, err := EnvInt("MISSING"); ok || err != nil {
		t.Fatalf("missing variable should be absent")
	}
	if b, ok, err := EnvBool("RENDER"); err != nil || !ok || !b {
		t.Fatalf("EnvBool = %v, %v, %v", b, ok, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("JBSCRAPE_DOTENV_TEST=swappa\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("JBSCRAPE_DOTENV_TEST") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := EnvString("DOTENV_TEST"); !ok || got != "swappa" {
		t.Fatalf("EnvString = %q, %v", got, ok)
	}
}
