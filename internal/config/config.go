package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/testkube/simqueue/internal/scheduler"
)

// Execution context kinds.
const (
	ContextFrame = "frame"
	ContextProbe = "probe"
)

// DatabaseConfig selects the optional report sink.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Config holds all runtime configuration for a run.
// Values are populated from .simqueue.yaml, SIMQUEUE_* env vars, and CLI flags.
type Config struct {
	Concurrency   int            `mapstructure:"concurrency"`
	Timeout       time.Duration  `mapstructure:"timeout"`
	Dev           bool           `mapstructure:"dev"`
	Build         bool           `mapstructure:"build"`
	Built         bool           `mapstructure:"built"`
	WaitForTests  bool           `mapstructure:"wait_for_tests"`
	Targets       []string       `mapstructure:"targets"`
	TargetList    string         `mapstructure:"target_list"`
	Exclude       []string       `mapstructure:"exclude"`
	ShardGroups   int            `mapstructure:"shard_groups"`
	ShardIndex    int            `mapstructure:"shard_index"`
	BaseURL       string         `mapstructure:"base_url"`
	Query         string         `mapstructure:"query"`
	BuildURL      string         `mapstructure:"build_url"`
	BuildTimeout  time.Duration  `mapstructure:"build_timeout"`
	MockBuilds    bool           `mapstructure:"mock_builds"`
	Context       string         `mapstructure:"context"`
	Listen        string         `mapstructure:"listen"`
	Database      DatabaseConfig `mapstructure:"database"`
	FlushInterval time.Duration  `mapstructure:"flush_interval"`
	ExitOnDrain   bool           `mapstructure:"exit_on_drain"`
	Verbose       bool           `mapstructure:"verbose"`
}

// SetDefaults registers the built-in defaults with viper.
func SetDefaults() {
	viper.SetDefault("concurrency", scheduler.DefaultConcurrency)
	viper.SetDefault("timeout", scheduler.DefaultTimeout)
	viper.SetDefault("dev", true)
	viper.SetDefault("build", true)
	viper.SetDefault("built", true)
	viper.SetDefault("wait_for_tests", true)
	viper.SetDefault("targets", []string{})
	viper.SetDefault("target_list", "http://localhost/chipper/data/active-runnables")
	viper.SetDefault("exclude", []string{})
	viper.SetDefault("shard_groups", 1)
	viper.SetDefault("shard_index", 0)
	viper.SetDefault("base_url", "http://localhost/")
	viper.SetDefault("query", "")
	viper.SetDefault("build_url", "http://localhost:45361/")
	viper.SetDefault("build_timeout", 10*time.Minute)
	viper.SetDefault("mock_builds", false)
	viper.SetDefault("context", ContextFrame)
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("database.driver", "none")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("flush_interval", 5*time.Second)
	viper.SetDefault("exit_on_drain", false)
	viper.SetDefault("verbose", false)
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	SetDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the scheduler cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.ShardGroups < 1 {
		errs = append(errs, fmt.Errorf("shard_groups must be at least 1, got %d", c.ShardGroups))
	} else if c.ShardIndex < 0 || c.ShardIndex >= c.ShardGroups {
		errs = append(errs, fmt.Errorf("shard_index %d outside [0, %d)", c.ShardIndex, c.ShardGroups))
	}
	if !c.Dev && !c.Build {
		errs = append(errs, errors.New("nothing to run: both dev and build are disabled"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL))
	}
	switch c.Context {
	case ContextFrame, ContextProbe:
	default:
		errs = append(errs, fmt.Errorf("unknown context %q (want %s or %s)", c.Context, ContextFrame, ContextProbe))
	}
	switch c.Database.Driver {
	case "", "none":
	case "sqlite", "postgres", "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// DatabaseEnabled reports whether a report sink is configured.
func (c Config) DatabaseEnabled() bool {
	return c.Database.Driver != "" && c.Database.Driver != "none"
}

// Scheduler derives the scheduler settings.
func (c Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		Concurrency:  c.Concurrency,
		Timeout:      c.Timeout,
		Built:        c.Built,
		WaitForTests: c.WaitForTests,
		BaseURL:      c.BaseURL,
		Query:        c.Query,
	}
}
