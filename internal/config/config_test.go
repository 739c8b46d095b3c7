package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.Dev)
	assert.True(t, cfg.Build)
	assert.True(t, cfg.Built)
	assert.True(t, cfg.WaitForTests)
	assert.Empty(t, cfg.Targets)
	assert.Equal(t, "http://localhost/chipper/data/active-runnables", cfg.TargetList)
	assert.Equal(t, 1, cfg.ShardGroups)
	assert.Equal(t, 0, cfg.ShardIndex)
	assert.Equal(t, "http://localhost/", cfg.BaseURL)
	assert.Equal(t, "http://localhost:45361/", cfg.BuildURL)
	assert.Equal(t, 10*time.Minute, cfg.BuildTimeout)
	assert.Equal(t, ContextFrame, cfg.Context)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "none", cfg.Database.Driver)
	assert.False(t, cfg.DatabaseEnabled())
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetEnvPrefix("SIMQUEUE")
	viper.AutomaticEnv()

	t.Setenv("SIMQUEUE_CONCURRENCY", "4")
	t.Setenv("SIMQUEUE_TIMEOUT", "45s")
	t.Setenv("SIMQUEUE_CONTEXT", "probe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, ContextProbe, cfg.Context)
}

func TestSchedulerConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("query", "brand=phet")
	viper.Set("wait_for_tests", false)

	cfg, err := Load()
	require.NoError(t, err)

	sc := cfg.Scheduler()
	assert.Equal(t, "brand=phet", sc.Query)
	assert.False(t, sc.WaitForTests)
	assert.True(t, sc.Built)
	assert.Equal(t, 30*time.Second, sc.Timeout)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Concurrency: 1,
			Timeout:     time.Second,
			Dev:         true,
			ShardGroups: 1,
			BaseURL:     "http://localhost/",
			Context:     ContextFrame,
			Database:    DatabaseConfig{Driver: "none"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"shard index", func(c *Config) { c.ShardGroups = 2; c.ShardIndex = 2 }, "shard_index"},
		{"shard groups", func(c *Config) { c.ShardGroups = 0 }, "shard_groups"},
		{"nothing to run", func(c *Config) { c.Dev = false; c.Build = false }, "nothing to run"},
		{"base url", func(c *Config) { c.BaseURL = "localhost" }, "base_url"},
		{"context", func(c *Config) { c.Context = "browser" }, "unknown context"},
		{"driver", func(c *Config) { c.Database.Driver = "oracle" }, "unknown database driver"},
		{"dsn", func(c *Config) { c.Database.Driver = "sqlite" }, "database.dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
