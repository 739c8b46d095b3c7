// Package scheduler drives targets through an execution context. It owns a
// test queue served one task at a time and a build queue served by up to N
// concurrent build requests. All state is mutated from a single event loop
// fed by signals, timer firings and build completions.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/testkube/simqueue/internal/app"
	"github.com/testkube/simqueue/internal/buildservice"
	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/signals"
	"github.com/testkube/simqueue/internal/status"
)

const (
	DefaultConcurrency = 1
	DefaultTimeout     = 30 * time.Second
)

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("scheduler: already started")

// Config controls pacing and what a successful build leads to.
type Config struct {
	Concurrency  int           // build slot pool size
	Timeout      time.Duration // per-target allotted time
	Built        bool          // run built artifacts after a successful build
	WaitForTests bool          // stay on a loaded target until its timeout
	BaseURL      string
	Query        string
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

type activeTest struct {
	task       app.TestTask
	generation uint64
	url        string
	loaded     bool
	startedAt  time.Time
}

type Scheduler struct {
	cfg     Config
	exec    app.ExecutionContext
	builds  buildservice.Client
	signals *signals.Channel
	tracker *status.Tracker
	errs    *errlog.Log
	log     *zap.Logger

	events  chan event
	done    chan struct{}
	started atomic.Bool
	wg      sync.WaitGroup

	// owned by the event loop
	testQueue   []app.TestTask
	buildQueue  []app.BuildRequest
	active      *activeTest
	timer       *time.Timer
	generation  uint64
	slots       *semaphore.Weighted
	outstanding int
	idle        bool

	mu       sync.RWMutex
	snapshot Snapshot
}

func New(cfg Config, exec app.ExecutionContext, builds buildservice.Client, sigs *signals.Channel,
	tracker *status.Tracker, errs *errlog.Log, log *zap.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:     cfg,
		exec:    exec,
		builds:  builds,
		signals: sigs,
		tracker: tracker,
		errs:    errs,
		log:     log,
		events:  make(chan event, cfg.Concurrency+4),
		done:    make(chan struct{}),
		slots:   semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// Run seeds both queues from targets and processes events until every
// queue is empty, no test is active and no build is outstanding. It returns
// ctx.Err() if ctx ends first.
func (s *Scheduler) Run(ctx context.Context, targets []app.Target) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		s.clearActive()
		cancel()
		close(s.done)
		s.wg.Wait()
	}()

	s.seed(targets)

	s.tryStartTest(runCtx)
	s.log.Info("starting builds", zap.Int("concurrency", s.cfg.Concurrency), zap.Int("queued", len(s.buildQueue)))
	s.dispatchBuilds(runCtx)

	for {
		s.publish(false)
		if s.drained() {
			s.publish(true)
			s.log.Info("all queues drained")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-s.signals.C():
			s.handleSignal(runCtx, sig)
		case ev := <-s.events:
			switch ev := ev.(type) {
			case timeoutEvent:
				s.handleTimeout(runCtx, ev)
			case buildEvent:
				s.handleBuild(runCtx, ev)
			}
		}
	}
}

func (s *Scheduler) seed(targets []app.Target) {
	for _, t := range targets {
		s.tracker.Register(t.Name)
		if t.Dev {
			s.testQueue = append(s.testQueue, app.TestTask{TargetName: t.Name})
		}
		if t.Build {
			s.buildQueue = append(s.buildQueue, app.BuildRequest{TargetName: t.Name})
		}
	}
}

func (s *Scheduler) drained() bool {
	return s.active == nil && len(s.testQueue) == 0 && len(s.buildQueue) == 0 && s.outstanding == 0
}

// post hands an event to the loop, or drops it once the loop has exited.
func (s *Scheduler) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
