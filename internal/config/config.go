// Package config loads the .testsmell.yaml configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = ".testsmell.yaml"

// ErrInvalidConfig is returned when a configuration value is out of
// range or names an unknown rule.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete testsmell configuration.
type Config struct {
	// Rules holds per-rule settings keyed by rule ID.
	Rules map[taxonomy.RuleID]RuleConfig `yaml:"rules"`

	// Frameworks selects the test frameworks to recognise, by name.
	Frameworks []string `yaml:"frameworks"`

	// AssertionTypes are extra fully qualified types whose methods count
	// as assertions.
	AssertionTypes []string `yaml:"assertion_types"`

	// Methods restricts which test methods are analyzed.
	Methods MethodFilter `yaml:"methods"`
}

// RuleConfig configures one rule.
type RuleConfig struct {
	// Enabled turns the rule on or off. Nil keeps the default (on).
	Enabled *bool `yaml:"enabled"`

	// Severity overrides the rule's default severity.
	Severity taxonomy.Severity `yaml:"severity"`

	// Max is the number of assertions a path may make before
	// multiple_asserts fires. Other rules ignore it.
	Max int `yaml:"max"`
}

// MethodFilter holds include and exclude glob patterns matched against
// "Namespace.Type::Method".
type MethodFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Rules: map[taxonomy.RuleID]RuleConfig{
			taxonomy.MultipleAsserts: {Max: 1},
		},
		Frameworks: []string{"nunit", "xunit", "mstest"},
	}
}

// Load reads the configuration at path on top of DefaultConfig. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks rule names, severities and thresholds.
func (c *Config) Validate() error {
	var problems []string
	for id, rc := range c.Rules {
		if !id.Valid() {
			problems = append(problems, fmt.Sprintf("unknown rule %q", id))
			continue
		}
		switch rc.Severity {
		case "", taxonomy.SeverityError, taxonomy.SeverityWarning, taxonomy.SeverityInfo:
		default:
			problems = append(problems, fmt.Sprintf("rule %s: unknown severity %q", id, rc.Severity))
		}
		if id == taxonomy.MultipleAsserts && rc.Max < 0 {
			problems = append(problems, fmt.Sprintf("rule %s: max must not be negative", id))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%s: %w", strings.Join(problems, "; "), ErrInvalidConfig)
}

// RuleEnabled reports whether rule id runs.
func (c *Config) RuleEnabled(id taxonomy.RuleID) bool {
	rc, ok := c.Rules[id]
	if !ok || rc.Enabled == nil {
		return true
	}
	return *rc.Enabled
}

// Severity returns the configured severity for rule id.
func (c *Config) Severity(id taxonomy.RuleID) taxonomy.Severity {
	if rc, ok := c.Rules[id]; ok && rc.Severity != "" {
		return rc.Severity
	}
	return taxonomy.SeverityOf(id)
}

// MaxAsserts returns the per-path assertion limit for multiple_asserts.
// Zero in the file means the default of one.
func (c *Config) MaxAsserts() int {
	if rc, ok := c.Rules[taxonomy.MultipleAsserts]; ok && rc.Max > 0 {
		return rc.Max
	}
	return 1
}
