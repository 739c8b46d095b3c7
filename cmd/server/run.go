package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/app"
	"github.com/testkube/simqueue/internal/buildservice"
	"github.com/testkube/simqueue/internal/charts"
	"github.com/testkube/simqueue/internal/config"
	"github.com/testkube/simqueue/internal/database"
	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/sandbox"
	"github.com/testkube/simqueue/internal/scheduler"
	"github.com/testkube/simqueue/internal/server"
	"github.com/testkube/simqueue/internal/signals"
	"github.com/testkube/simqueue/internal/status"
	"github.com/testkube/simqueue/internal/targets"
	"github.com/testkube/simqueue/internal/worker"
)

// errRunFailed is returned with --exit-on-drain when any stage failed, so
// the exit code reflects the run.
var errRunFailed = errors.New("run finished with failures")

const shutdownTimeout = 15 * time.Second

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	names, err := resolveTargets(ctx, cfg)
	if err != nil {
		return err
	}
	tgts := app.BuildTargets(names, cfg.Dev, cfg.Build)
	log.Info("targets selected", zap.Int("count", len(tgts)), zap.Strings("targets", names))

	sigs := signals.NewChannel(0)
	tracker := status.NewTracker()
	errs := errlog.New()

	var (
		exec  app.ExecutionContext
		frame server.FrameSource
	)
	switch cfg.Context {
	case config.ContextProbe:
		probe := sandbox.NewProbe(sigs, cfg.Timeout, log.Named("probe"))
		defer probe.Close()
		exec = probe
	default:
		f := sandbox.NewFrame()
		exec, frame = f, f
		log.Info("open the host page in a browser to run targets", zap.String("url", hostURL(cfg.Listen)))
	}

	builds, err := newBuildClient(cfg, log)
	if err != nil {
		return err
	}

	var db database.Database
	if cfg.DatabaseEnabled() {
		sdb, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open report database: %w", err)
		}
		defer sdb.Close()
		db = sdb
		log.Info("report database ready", zap.String("driver", cfg.Database.Driver))
	}

	sched := scheduler.New(cfg.Scheduler(), exec, builds, sigs, tracker, errs, log.Named("scheduler"))

	srv := server.NewServer(server.Deps{
		Tracker: tracker,
		Errors:  errs,
		Queue:   sched,
		Signals: sigs,
		Frame:   frame,
		DB:      db,
		Charts:  charts.NewGenerator(),
		Log:     log.Named("server"),
	})
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting status server", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// the worker outlives the scheduler so the final state gets flushed
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if db != nil {
		w := worker.NewWorker(db, tracker, errs, log.Named("worker"), cfg.FlushInterval)
		go func() {
			defer close(workerDone)
			if err := w.Start(workerCtx); err != nil {
				log.Error("report worker failed", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(runCtx, tgts)
	}()

	var (
		runErr        error
		schedFinished bool
	)
	select {
	case err := <-schedDone:
		schedFinished = true
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				runErr = err
			}
			break
		}
		summary := status.Summarize(tracker.Snapshot())
		logSummary(log, summary, errs)
		if cfg.ExitOnDrain {
			if summary.Failed() {
				runErr = errRunFailed
			}
			break
		}
		log.Info("serving results until interrupted")
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			runErr = fmt.Errorf("status server: %w", err)
		}
	case err := <-serverErr:
		runErr = fmt.Errorf("status server: %w", err)
	}

	cancelRun()
	if !schedFinished {
		<-schedDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	stopWorker()
	<-workerDone
	log.Info("stopped")
	return runErr
}

func resolveTargets(ctx context.Context, cfg config.Config) ([]string, error) {
	var fetched []string
	if len(cfg.Targets) == 0 {
		list, err := targets.Fetch(ctx, cfg.TargetList)
		if err != nil {
			return nil, fmt.Errorf("load target list: %w", err)
		}
		fetched = list
	}
	names := app.SelectTargets(fetched, app.SelectOptions{
		Override:    cfg.Targets,
		Exclude:     cfg.Exclude,
		ShardGroups: cfg.ShardGroups,
		ShardIndex:  cfg.ShardIndex,
	})
	if len(names) == 0 {
		return nil, errors.New("no targets selected")
	}
	return names, nil
}

func newBuildClient(cfg config.Config, log *zap.Logger) (buildservice.Client, error) {
	if !cfg.Build {
		return buildservice.NewMockClient(0, nil), nil
	}
	if cfg.MockBuilds {
		log.Info("using mock build client")
		return buildservice.NewMockClient(0, nil), nil
	}
	client, err := buildservice.NewRealClient(cfg.BuildURL, cfg.BuildTimeout)
	if err != nil {
		return nil, fmt.Errorf("build service: %w", err)
	}
	log.Info("using build service", zap.String("url", cfg.BuildURL))
	return client, nil
}

func logSummary(log *zap.Logger, s status.Summary, errs *errlog.Log) {
	log.Info("run summary",
		zap.Int("targets", s.Targets),
		zap.Int("dev_passed", s.DevPassed),
		zap.Int("dev_failed", s.DevFailed),
		zap.Int("builds_passed", s.BuildsPassed),
		zap.Int("builds_failed", s.BuildsFailed),
		zap.Int("built_passed", s.BuiltPassed),
		zap.Int("built_failed", s.BuiltFailed))
	for _, b := range errlog.Buckets {
		for _, e := range errs.Entries(b) {
			log.Warn(b.Title(), zap.String("target", e.Target), zap.String("message", e.Message), zap.String("output", e.Output))
		}
	}
}

func hostURL(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "http://localhost" + listen + "/host"
	}
	return "http://" + listen + "/host"
}
