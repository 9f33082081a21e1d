package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aluiziolira/jbscrape/models"
)

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "JBSCRAPE_"

// Config holds scraper configuration.
type Config struct {
	TargetMajors           []int
	Sources                []models.Source
	EbayBaseURL            string
	SwappaBaseURL          string
	EbayPages              int
	SwappaListingsPerModel int
	Parallelism            int
	Delay                  time.Duration
	RandomDelay            time.Duration
	Timeout                time.Duration
	MaxRetries             int
	RetryBackoff           time.Duration
	RetryBackoffMax        time.Duration
	PipelineBufferSize     int
	BatchSize              int
	DedupeMaxSize          int
	OutputFile             string
	OutputFormat           string // csv, json, or dual
	NoteFile               string
	DisplayLimit           int
	UserAgent              string
	Verbose                bool
	RespectRobotsTxt       bool
	Render                 bool
	MetricsAddr            string
	DatabaseURL            string
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() *Config {
	return &Config{
		TargetMajors:           []int{16, 17},
		Sources:                []models.Source{models.SourceEbay},
		EbayBaseURL:            "https://www.ebay.com",
		SwappaBaseURL:          "https://swappa.com",
		EbayPages:              2,
		SwappaListingsPerModel: 20,
		Parallelism:            2,
		Delay:                  1500 * time.Millisecond,
		RandomDelay:            500 * time.Millisecond,
		Timeout:                20 * time.Second,
		MaxRetries:             2,
		RetryBackoff:           500 * time.Millisecond,
		RetryBackoffMax:        5 * time.Second,
		PipelineBufferSize:     256,
		BatchSize:              32,
		DedupeMaxSize:          1 << 20,
		OutputFile:             "jbscrape_results.json",
		OutputFormat:           "json",
		DisplayLimit:           30,
		UserAgent:              "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Verbose:                false,
		RespectRobotsTxt:       false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.TargetMajors) == 0 {
		return fmt.Errorf("at least one target iOS major version is required")
	}
	for _, major := range c.TargetMajors {
		if major <= 0 {
			return fmt.Errorf("target iOS major %d must be positive", major)
		}
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for _, src := range c.Sources {
		if _, ok := models.ParseSource(string(src)); !ok {
			return fmt.Errorf("unknown source %q", src)
		}
	}
	if err := validateBaseURL("ebay base URL", c.EbayBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("swappa base URL", c.SwappaBaseURL); err != nil {
		return err
	}

	if c.EbayPages <= 0 {
		return fmt.Errorf("ebay pages must be positive")
	}
	if c.SwappaListingsPerModel <= 0 {
		return fmt.Errorf("swappa listings per model must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.PipelineBufferSize < 0 {
		return fmt.Errorf("pipeline buffer size cannot be negative")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.DisplayLimit < 0 {
		return fmt.Errorf("display limit cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

// ParseMajors parses a comma separated list such as "16,17".
func ParseMajors(raw string) ([]int, error) {
	var majors []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		major, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid iOS major version %q: %w", part, err)
		}
		if major <= 0 {
			return nil, fmt.Errorf("invalid iOS major version %q: must be positive", part)
		}
		if !seen[major] {
			seen[major] = true
			majors = append(majors, major)
		}
	}
	if len(majors) == 0 {
		return nil, fmt.Errorf("no iOS major versions in %q", raw)
	}
	return majors, nil
}

// ParseSources parses a comma or space separated list of site names.
func ParseSources(raw string) ([]models.Source, error) {
	var sources []models.Source
	seen := make(map[models.Source]bool)
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	for _, name := range fields {
		src, ok := models.ParseSource(strings.ToLower(name))
		if !ok {
			return nil, fmt.Errorf("unknown site %q (want ebay or swappa)", name)
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sites in %q", raw)
	}
	return sources, nil
}

// LoadDotEnv loads variables from the given files (".env" when none) into
// the process environment without overriding values already set. Missing
// files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// EnvString returns the value of EnvPrefix+name when it is set and non-empty.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// EnvInt parses EnvPrefix+name as an integer when it is set.
func EnvInt(name string) (int, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	return n, true, nil
}

// EnvBool parses EnvPrefix+name as a boolean when it is set.
func EnvBool(name string) (bool, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	return b, true, nil
}
