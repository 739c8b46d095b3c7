package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/app"
	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/signals"
)

// tryStartTest fills the test slot from the head of the queue. With an
// empty queue the execution context is blanked once and the slot stays
// empty until a build enqueues more work.
func (s *Scheduler) tryStartTest(ctx context.Context) {
	for s.active == nil {
		if len(s.testQueue) == 0 {
			if !s.idle {
				if err := s.exec.Reset(ctx); err != nil {
					s.log.Warn("failed to reset execution context", zap.Error(err))
				}
				s.idle = true
			}
			return
		}

		task := s.testQueue[0]
		s.testQueue = s.testQueue[1:]
		s.generation++
		s.idle = false
		s.active = &activeTest{
			task:       task,
			generation: s.generation,
			url:        app.WithGeneration(app.TargetURL(s.cfg.BaseURL, task, s.cfg.Query), s.generation),
			startedAt:  time.Now(),
		}
		s.tracker.MarkLoading(task.TargetName, task.Mode())
		s.log.Info("loading target",
			zap.String("target", task.TargetName),
			zap.Stringer("mode", task.Mode()),
			zap.Uint64("generation", s.generation))

		req := app.LoadRequest{Task: task, URL: s.active.url, Generation: s.generation}
		if err := s.exec.Load(ctx, req); err != nil {
			s.log.Warn("failed to load target", zap.String("target", task.TargetName), zap.Error(err))
			s.recordExecutionError(task, err.Error(), "")
			s.clearActive()
			continue
		}
		s.armTimer(s.generation)
	}
}

// armTimer replaces the single pending timeout.
func (s *Scheduler) armTimer(generation uint64) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Timeout, func() {
		s.post(timeoutEvent{generation: generation})
	})
}

// clearActive empties the test slot and cancels its timeout. Calling it
// on an empty slot does nothing.
func (s *Scheduler) clearActive() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.active = nil
}

func (s *Scheduler) advance(ctx context.Context) {
	s.clearActive()
	s.tryStartTest(ctx)
}

func (s *Scheduler) handleTimeout(ctx context.Context, ev timeoutEvent) {
	// Stop can lose the race against a timer that already fired.
	if s.active == nil || s.active.generation != ev.generation {
		return
	}
	task := s.active.task
	s.log.Info("target finished its allotted time",
		zap.String("target", task.TargetName),
		zap.Stringer("mode", task.Mode()),
		zap.Bool("loaded", s.active.loaded))
	s.tracker.MarkComplete(task.TargetName, task.Mode())
	s.advance(ctx)
}

func (s *Scheduler) handleSignal(ctx context.Context, sig signals.Signal) {
	sig.Normalize()
	if err := sig.Validate(); err != nil {
		s.log.Debug("ignoring malformed signal", zap.Error(err))
		return
	}
	if !s.matchesActive(sig) {
		s.log.Debug("ignoring stale signal",
			zap.String("type", sig.Type),
			zap.String("url", sig.URL),
			zap.Uint64("generation", sig.Generation))
		return
	}

	task := s.active.task
	switch sig.Type {
	case signals.TypeLoad:
		s.log.Info("loaded target", zap.String("target", task.TargetName), zap.Stringer("mode", task.Mode()))
		s.active.loaded = true
		s.tracker.MarkComplete(task.TargetName, task.Mode())
		if !s.cfg.WaitForTests {
			s.advance(ctx)
		}
	case signals.TypeError:
		s.log.Warn("error on target",
			zap.String("target", task.TargetName),
			zap.Stringer("mode", task.Mode()),
			zap.String("message", sig.Message))
		s.recordExecutionError(task, sig.Message, sig.Stack)
		// failures skip the rest of the allotted time
		s.advance(ctx)
	}
}

// matchesActive decides whether a signal belongs to the task in the slot.
// The generation in the signal URL names the page that sent it; a tag added
// by the sender must agree with it. The mode revealed by the URL must match
// the active task whether or not a generation is present.
func (s *Scheduler) matchesActive(sig signals.Signal) bool {
	if s.active == nil {
		return false
	}
	if sig.TargetName() != s.active.task.TargetName {
		return false
	}
	if gen, ok := app.GenerationFromURL(sig.URL); ok && gen != s.active.generation {
		return false
	}
	if sig.Generation != 0 && sig.Generation != s.active.generation {
		return false
	}
	if mode, ok := app.ModeFromURL(sig.URL); ok && mode != s.active.task.Mode() {
		return false
	}
	return true
}

func (s *Scheduler) recordExecutionError(task app.TestTask, message, stack string) {
	bucket := errlog.BucketDev
	if task.IsBuiltArtifact {
		bucket = errlog.BucketBuilt
	}
	s.tracker.MarkError(task.TargetName, task.Mode())
	s.errs.AppendExecution(bucket, task.TargetName, message, stack)
}
