package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/experts"
	"github.com/steveyegge/clewcrew/internal/scoring"
)

// FileName is the config file looked up at the project root.
const FileName = ".clewcrew.yaml"

// FileConfig is the configuration as written in YAML.
// It is converted to Config for internal use.
type FileConfig struct {
	// Concurrency bounds how many experts run at once
	Concurrency int `yaml:"concurrency"`

	// ExpertTimeout caps a single expert run, e.g. "30s", "2m", "1d"
	ExpertTimeout string `yaml:"expert_timeout,omitempty"`

	// MaxReadsPerSecond throttles artifact reads; 0 disables throttling
	MaxReadsPerSecond float64 `yaml:"max_reads_per_second,omitempty"`

	// MaxReadBytes truncates large artifacts
	MaxReadBytes int64 `yaml:"max_read_bytes,omitempty"`

	// Exclude lists doublestar patterns that are never read
	Exclude []string `yaml:"exclude,omitempty"`

	// Experts maps expert names to per-expert settings
	Experts map[string]ExpertConfig `yaml:"experts,omitempty"`
}

// ExpertConfig configures a single expert. Unset fields keep the
// expert's built-in behavior.
type ExpertConfig struct {
	Enabled *bool        `yaml:"enabled,omitempty"`
	Weight  float64      `yaml:"weight,omitempty"`
	Curve   *CurveConfig `yaml:"curve,omitempty"`
}

// CurveConfig overrides individual points of an expert's score curve.
type CurveConfig struct {
	Ceiling     float64 `yaml:"ceiling,omitempty"`
	Minor       float64 `yaml:"minor,omitempty"`
	Moderate    float64 `yaml:"moderate,omitempty"`
	Major       float64 `yaml:"major,omitempty"`
	MinorMax    int     `yaml:"minor_max,omitempty"`
	ModerateMax int     `yaml:"moderate_max,omitempty"`
}

// apply overlays the non-zero fields on base.
func (c CurveConfig) apply(base scoring.Curve) scoring.Curve {
	if c.Ceiling != 0 {
		base.Ceiling = c.Ceiling
	}
	if c.Minor != 0 {
		base.Minor = c.Minor
	}
	if c.Moderate != 0 {
		base.Moderate = c.Moderate
	}
	if c.Major != 0 {
		base.Major = c.Major
	}
	if c.MinorMax != 0 {
		base.MinorMax = c.MinorMax
	}
	if c.ModerateMax != 0 {
		base.ModerateMax = c.ModerateMax
	}
	return base
}

// Config is the resolved runtime configuration.
type Config struct {
	Concurrency       int                       `yaml:"concurrency"`
	ExpertTimeout     time.Duration             `yaml:"expert_timeout"`
	MaxReadsPerSecond float64                   `yaml:"max_reads_per_second"`
	MaxReadBytes      int64                     `yaml:"max_read_bytes"`
	Exclude           []string                  `yaml:"exclude"`
	Experts           map[string]ExpertSettings `yaml:"experts"`
}

// ExpertSettings is the resolved form of ExpertConfig.
type ExpertSettings struct {
	Enabled bool           `yaml:"enabled"`
	Weight  float64        `yaml:"weight,omitempty"`
	Curve   *scoring.Curve `yaml:"curve,omitempty"`
}

// DefaultFileConfig returns the configuration written by "config init".
func DefaultFileConfig() *FileConfig {
	enabled := true
	cfg := &FileConfig{
		Concurrency:   4,
		ExpertTimeout: "2m",
		MaxReadBytes:  artifact.DefaultMaxBytes,
		Exclude:       []string{"dist/**", "build/lib/**"},
		Experts:       make(map[string]ExpertConfig),
	}
	for _, name := range experts.Names() {
		cfg.Experts[name] = ExpertConfig{Enabled: &enabled}
	}
	return cfg
}

// DefaultConfig returns the resolved defaults.
func DefaultConfig() *Config {
	cfg, err := DefaultFileConfig().Resolve()
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	return &config, nil
}

// Load resolves the configuration for a project. An explicit path must
// exist; otherwise FileName under root is used when present and defaults
// apply when it is not. Environment overrides are applied last.
func Load(path, root string) (*Config, error) {
	file := DefaultFileConfig()

	if path == "" {
		candidate := filepath.Join(root, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}

	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		file.merge(loaded)
	}

	if err := file.applyEnv(); err != nil {
		return nil, err
	}

	cfg, err := file.Resolve()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays the fields set in other.
func (c *FileConfig) merge(other *FileConfig) {
	if other.Concurrency != 0 {
		c.Concurrency = other.Concurrency
	}
	if other.ExpertTimeout != "" {
		c.ExpertTimeout = other.ExpertTimeout
	}
	if other.MaxReadsPerSecond != 0 {
		c.MaxReadsPerSecond = other.MaxReadsPerSecond
	}
	if other.MaxReadBytes != 0 {
		c.MaxReadBytes = other.MaxReadBytes
	}
	if other.Exclude != nil {
		c.Exclude = other.Exclude
	}
	for name, ec := range other.Experts {
		current := c.Experts[name]
		if ec.Enabled != nil {
			current.Enabled = ec.Enabled
		}
		if ec.Weight != 0 {
			current.Weight = ec.Weight
		}
		if ec.Curve != nil {
			current.Curve = ec.Curve
		}
		c.Experts[name] = current
	}
}

// Resolve validates the file configuration and converts it to Config.
func (c *FileConfig) Resolve() (*Config, error) {
	cfg := &Config{
		Concurrency:       c.Concurrency,
		MaxReadsPerSecond: c.MaxReadsPerSecond,
		MaxReadBytes:      c.MaxReadBytes,
		Exclude:           append([]string(nil), c.Exclude...),
		Experts:           make(map[string]ExpertSettings, len(c.Experts)),
	}

	if cfg.Concurrency < 1 || cfg.Concurrency > 64 {
		return nil, fmt.Errorf("concurrency must be between 1 and 64 (got %d)", cfg.Concurrency)
	}
	if cfg.MaxReadsPerSecond < 0 {
		return nil, fmt.Errorf("max_reads_per_second cannot be negative (got %g)", cfg.MaxReadsPerSecond)
	}
	if cfg.MaxReadBytes < 0 {
		return nil, fmt.Errorf("max_read_bytes cannot be negative (got %d)", cfg.MaxReadBytes)
	}

	if c.ExpertTimeout != "" {
		timeout, err := parseDuration(c.ExpertTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid expert_timeout %q: %w", c.ExpertTimeout, err)
		}
		if timeout < 0 {
			return nil, fmt.Errorf("expert_timeout cannot be negative (got %s)", c.ExpertTimeout)
		}
		cfg.ExpertTimeout = timeout
	}

	for _, name := range experts.Names() {
		cfg.Experts[name] = ExpertSettings{Enabled: true}
	}
	for name, ec := range c.Experts {
		base, ok := experts.DefaultCurve(name)
		if !ok {
			return nil, fmt.Errorf("unknown expert %q in experts section", name)
		}
		settings := ExpertSettings{Enabled: ec.Enabled == nil || *ec.Enabled}
		if ec.Weight < 0 {
			return nil, fmt.Errorf("experts.%s.weight cannot be negative (got %g)", name, ec.Weight)
		}
		settings.Weight = ec.Weight
		if ec.Curve != nil {
			curve := ec.Curve.apply(base)
			if err := curve.Validate(); err != nil {
				return nil, fmt.Errorf("experts.%s.curve: %w", name, err)
			}
			settings.Curve = &curve
		}
		cfg.Experts[name] = settings
	}

	return cfg, nil
}

// EnabledExperts returns the names of enabled experts in roster order.
func (c *Config) EnabledExperts() []string {
	var names []string
	for _, name := range experts.Names() {
		if s, ok := c.Experts[name]; !ok || s.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// FSOptions returns the artifact reader options implied by the config.
func (c *Config) FSOptions() []artifact.Option {
	var opts []artifact.Option
	if c.MaxReadBytes > 0 {
		opts = append(opts, artifact.WithMaxBytes(c.MaxReadBytes))
	}
	if len(c.Exclude) > 0 {
		opts = append(opts, artifact.WithExclude(c.Exclude...))
	}
	if c.MaxReadsPerSecond > 0 {
		opts = append(opts, artifact.WithReadRate(c.MaxReadsPerSecond))
	}
	return opts
}

// ExpertOptions returns the options for one expert, appended to base.
func (c *Config) ExpertOptions(name string, base ...experts.Option) []experts.Option {
	opts := append([]experts.Option(nil), base...)

	fsOpts := c.FSOptions()
	opts = append(opts, experts.WithFS(func(root string) (artifact.FS, error) {
		return artifact.NewOSFS(root, fsOpts...)
	}))

	s, ok := c.Experts[name]
	if !ok {
		return opts
	}
	if s.Weight > 0 {
		opts = append(opts, experts.WithWeight(s.Weight))
	}
	if s.Curve != nil {
		opts = append(opts, experts.WithCurve(*s.Curve))
	}
	return opts
}

// parseDuration extends time.ParseDuration with whole days ("7d") and
// weeks ("2w"). Mixed forms such as "1d12h" are rejected.
func parseDuration(s string) (time.Duration, error) {
	units := map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour}
	for suffix, unit := range units {
		if !strings.HasSuffix(s, suffix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSuffix(s, suffix)); err == nil {
			return time.Duration(n) * unit, nil
		}
	}
	return time.ParseDuration(s)
}

// SaveDefaultConfig writes the default configuration to a file. Existing
// files are left alone unless force is set.
func SaveDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(DefaultFileConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
