package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to run one crawl.
type Config struct {
	Crawl   CrawlConfig   `yaml:"crawl"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
}

// CrawlConfig controls the crawl frontier and its limits.
type CrawlConfig struct {
	StartURL       string   `yaml:"start_url"`
	MaxDepth       int      `yaml:"max_depth"`
	AllowedDomains []string `yaml:"allowed_domains"`
	// BlacklistExtensions nil means "use the default set"; an explicitly
	// empty list disables extension filtering.
	BlacklistExtensions []string `yaml:"blacklist_extensions"`
	Concurrency         int      `yaml:"concurrency"`
	ShutdownTimeout     Duration `yaml:"shutdown_timeout"`
}

// FetchConfig controls HTTP transport behaviour.
type FetchConfig struct {
	Timeout      Duration          `yaml:"timeout"`
	UserAgent    string            `yaml:"user_agent"`
	Headers      map[string]string `yaml:"headers"`
	VerifySSL    bool              `yaml:"verify_ssl"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// OutputConfig controls where the final report is written.
type OutputConfig struct {
	JSONPath string `yaml:"json_path"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			MaxDepth:        1,
			Concurrency:     10,
			ShutdownTimeout: DurationFrom(5 * time.Second),
		},
		Fetch: FetchConfig{
			Timeout:      DurationFrom(10 * time.Second),
			UserAgent:    DefaultUserAgent,
			Headers:      map[string]string{},
			VerifySSL:    true,
			MaxBodyBytes: 6 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Structured: false,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants for the crawler configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.StartURL) == "" {
		return errors.New("crawl.start_url must be set")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0 (got %d)", c.Crawl.MaxDepth)
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0 (got %d)", c.Crawl.Concurrency)
	}
	if c.Crawl.ShutdownTimeout.Duration <= 0 {
		return fmt.Errorf("crawl.shutdown_timeout must be > 0 (got %s)", c.Crawl.ShutdownTimeout)
	}
	if c.Fetch.Timeout.Duration <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0 (got %s)", c.Fetch.Timeout)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Logging.Level)
	}
	return nil
}

// Normalise cleans string fields in place: trims whitespace, lowercases and
// de-duplicates the restriction sets, and floors concurrency at one.
func (c *Config) Normalise() {
	c.Crawl.StartURL = strings.TrimSpace(c.Crawl.StartURL)
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Output.JSONPath = strings.TrimSpace(c.Output.JSONPath)

	if c.Crawl.Concurrency < 1 {
		c.Crawl.Concurrency = 1
	}
	if len(c.Crawl.AllowedDomains) > 0 {
		c.Crawl.AllowedDomains = dedupeLower(c.Crawl.AllowedDomains)
	}
	if c.Crawl.BlacklistExtensions != nil {
		c.Crawl.BlacklistExtensions = NormaliseExtensions(c.Crawl.BlacklistExtensions)
	}
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}
}

// EffectiveBlacklist resolves the configured blacklist, substituting the
// default extension set when none was provided.
func (c Config) EffectiveBlacklist() []string {
	if c.Crawl.BlacklistExtensions == nil {
		return DefaultBlacklistExtensions()
	}
	return c.Crawl.BlacklistExtensions
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}
