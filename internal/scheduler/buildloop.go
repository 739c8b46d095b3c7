package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/app"
)

// dispatchBuilds hands queued requests to free build slots until either
// runs out.
func (s *Scheduler) dispatchBuilds(ctx context.Context) {
	for len(s.buildQueue) > 0 && s.slots.TryAcquire(1) {
		req := s.buildQueue[0]
		s.buildQueue = s.buildQueue[1:]
		s.outstanding++
		s.log.Info("building target", zap.String("target", req.TargetName))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			result, err := s.builds.Build(ctx, req)
			s.post(buildEvent{req: req, result: result, err: err})
		}()
	}
}

func (s *Scheduler) handleBuild(ctx context.Context, ev buildEvent) {
	s.slots.Release(1)
	s.outstanding--
	name := ev.req.TargetName

	result := ev.result
	if ev.err != nil {
		result = app.BuildResult{TargetName: name, Success: false, Output: ev.err.Error()}
	}

	if result.Success {
		s.log.Info("target built successfully", zap.String("target", name))
		s.tracker.MarkBuild(name, true)
		if s.cfg.Built {
			s.testQueue = append(s.testQueue, app.TestTask{TargetName: name, IsBuiltArtifact: true})
			if s.active == nil {
				s.tryStartTest(ctx)
			}
		}
	} else {
		s.log.Warn("error building target", zap.String("target", name), zap.Error(ev.err))
		s.tracker.MarkBuild(name, false)
		s.errs.AppendBuild(name, result.Output)
	}

	s.dispatchBuilds(ctx)
}
