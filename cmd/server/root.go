package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/testkube/simqueue/internal/config"
	"github.com/testkube/simqueue/internal/logging"
	"github.com/testkube/simqueue/internal/scheduler"
)

var rootCmd = &cobra.Command{
	Use:   "simqueue",
	Short: "Runs test targets one at a time while building them concurrently",
	Long: "simqueue loads every target into an execution context in turn, collects its load and error " +
		"signals, builds targets through the build service and reruns the built artifacts. Results are " +
		"served on a status page.",
	SilenceUsage: true,
	RunE:         runRoot,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flag name -> viper key, for flags whose names differ from their keys
var flagKeys = map[string]string{
	"wait-for-tests": "wait_for_tests",
	"target-list":    "target_list",
	"shard-groups":   "shard_groups",
	"shard-index":    "shard_index",
	"base-url":       "base_url",
	"build-url":      "build_url",
	"build-timeout":  "build_timeout",
	"mock-builds":    "mock_builds",
	"db-driver":      "database.driver",
	"db-dsn":         "database.dsn",
	"flush-interval": "flush_interval",
	"exit-on-drain":  "exit_on_drain",
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (default .simqueue.yaml)")
	f.IntP("concurrency", "c", scheduler.DefaultConcurrency, "number of builds run at once")
	f.DurationP("timeout", "t", scheduler.DefaultTimeout, "time each target stays loaded")
	f.Bool("dev", true, "run targets in dev mode")
	f.Bool("build", true, "build targets through the build service")
	f.Bool("built", true, "run built artifacts after a successful build")
	f.Bool("wait-for-tests", true, "keep a loaded target until its timeout instead of advancing on load")
	f.StringSlice("targets", nil, "explicit targets, overriding the target list")
	f.String("target-list", "http://localhost/chipper/data/active-runnables", "URL or file listing targets")
	f.StringSlice("exclude", nil, "targets to skip")
	f.Int("shard-groups", 1, "split targets into this many groups")
	f.Int("shard-index", 0, "group of targets to run")
	f.String("base-url", "http://localhost/", "root the target pages are served under")
	f.String("query", "", "extra query string passed to every target")
	f.String("build-url", "http://localhost:45361/", "build service root")
	f.Duration("build-timeout", 10*time.Minute, "HTTP timeout for a single build")
	f.Bool("mock-builds", false, "answer builds in-process instead of calling the build service")
	f.String("context", config.ContextFrame, "execution context: frame or probe")
	f.String("listen", ":8080", "status server address")
	f.String("db-driver", "none", "report database: none, sqlite, postgres or mysql")
	f.String("db-dsn", "", "report database DSN")
	f.Duration("flush-interval", 5*time.Second, "report database flush period")
	f.Bool("exit-on-drain", false, "exit once every queue drained instead of serving the results")
	f.BoolP("verbose", "v", false, "verbose output")

	f.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		key, ok := flagKeys[fl.Name]
		if !ok {
			key = fl.Name
		}
		_ = viper.BindPFlag(key, fl)
	})
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".simqueue")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("SIMQUEUE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, log)
}
