package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crimson-sun/whistle/internal/rules"
)

// MinMaxLength is the smallest non-zero llm.max_length accepted; anything
// shorter leaves no room for the entry next to the truncation marker.
const MinMaxLength = 32

// Config holds all whistle configuration. It is a single document that is
// read at startup and written back when rules or settings change.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	Alert    AlertConfig    `yaml:"alert" json:"alert"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Ignore   []rules.Record `yaml:"ignore" json:"ignore"`
}

// LLMConfig holds classification endpoint settings.
type LLMConfig struct {
	BaseURL   string  `yaml:"base_url" json:"base_url"`
	APIKey    string  `yaml:"api_key" json:"api_key"`
	Model     string  `yaml:"model" json:"model"`
	MaxLength int     `yaml:"max_length" json:"max_length"`
	Hints     string  `yaml:"hints,omitempty" json:"hints,omitempty"`     // free-text policy appended to the prompt
	Timeout   string  `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Go duration, e.g. "30s"
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// Configured reports whether enough is set to call the classifier.
func (c LLMConfig) Configured() bool {
	return c.APIKey != "" && c.Model != ""
}

// TimeoutDuration parses Timeout, falling back to 30s.
func (c LLMConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// AlertConfig holds escalation settings.
type AlertConfig struct {
	Slack   string            `yaml:"slack" json:"slack"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Async   bool              `yaml:"async,omitempty" json:"async,omitempty"`
}

// LogConfig selects the log source.
type LogConfig struct {
	Source       string   `yaml:"source,omitempty" json:"source,omitempty"` // "journalctl", "journal" or "file"
	KernelOnly   bool     `yaml:"kernel_only" json:"kernel_only"`
	ServiceUnits []string `yaml:"service_units" json:"service_units"`
	Files        []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// PipelineConfig makes the use of the pre-classification rule check explicit
// per mode. Entries suppressed by the pre-check never reach the classifier.
type PipelineConfig struct {
	PrecheckBatch bool `yaml:"precheck_batch" json:"precheck_batch"`
	PrecheckLive  bool `yaml:"precheck_live" json:"precheck_live"`
}

// OutputConfig controls how outcomes are displayed.
type OutputConfig struct {
	Format    string `yaml:"format,omitempty" json:"format,omitempty"`       // "console" or "json"
	Verbosity string `yaml:"verbosity,omitempty" json:"verbosity,omitempty"` // "minimal", "standard", "full"
	File      string `yaml:"file,omitempty" json:"file,omitempty"`           // optional NDJSON audit log
	FileMax   int64  `yaml:"file_max_bytes,omitempty" json:"file_max_bytes,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxLength: 2000,
		},
		Log: LogConfig{
			Source:       "journalctl",
			KernelOnly:   true,
			ServiceUnits: []string{},
		},
		Pipeline: PipelineConfig{
			PrecheckBatch: true,
			PrecheckLive:  false,
		},
		Output: OutputConfig{
			Format:    "console",
			Verbosity: "standard",
		},
		Ignore: []rules.Record{},
	}
}

// Validate checks the settings that would otherwise fail deep inside a run.
// Ignore rules are validated by Rules.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Source {
	case "journalctl", "journal", "file":
	default:
		errs = append(errs, fmt.Errorf("log.source: unknown source %q", c.Log.Source))
	}
	if c.Log.Source == "file" && len(c.Log.Files) == 0 {
		errs = append(errs, errors.New("log.files: required when log.source is \"file\""))
	}
	if c.LLM.MaxLength < 0 || (c.LLM.MaxLength > 0 && c.LLM.MaxLength < MinMaxLength) {
		errs = append(errs, fmt.Errorf("llm.max_length: must be 0 or at least %d, got %d", MinMaxLength, c.LLM.MaxLength))
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("llm.rate_limit: must not be negative, got %v", c.LLM.RateLimit))
	}
	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("llm.timeout: %w", err))
		}
	}
	switch c.Output.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	switch c.Output.Verbosity {
	case "", "minimal", "standard", "full":
	default:
		errs = append(errs, fmt.Errorf("output.verbosity: unknown verbosity %q", c.Output.Verbosity))
	}
	return errors.Join(errs...)
}

// Rules compiles the ignore list. A bad rule is a configuration error.
func (c *Config) Rules() (*rules.RuleSet, error) {
	rs, err := rules.FromRecords(c.Ignore)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return rs, nil
}

// Redacted returns a copy safe to print: the API key is masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if k := cp.LLM.APIKey; k != "" {
		if len(k) > 8 {
			cp.LLM.APIKey = k[:4] + strings.Repeat("*", len(k)-8) + k[len(k)-4:]
		} else {
			cp.LLM.APIKey = strings.Repeat("*", len(k))
		}
	}
	return &cp
}
