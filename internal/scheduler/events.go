package scheduler

import (
	"time"

	"github.com/testkube/simqueue/internal/app"
)

// event is anything the loop consumes besides signals.
type event interface{}

type timeoutEvent struct {
	generation uint64
}

type buildEvent struct {
	req    app.BuildRequest
	result app.BuildResult
	err    error
}

// Snapshot is a read-only view of the scheduler for presentation code.
type Snapshot struct {
	Active            *app.TestTask  `json:"active,omitempty"`
	ActiveURL         string         `json:"activeUrl,omitempty"`
	ActiveSince       *time.Time     `json:"activeSince,omitempty"`
	Generation        uint64         `json:"generation"`
	TestQueue         []app.TestTask `json:"testQueue"`
	BuildQueue        []string       `json:"buildQueue"`
	BuildsOutstanding int            `json:"buildsOutstanding"`
	Drained           bool           `json:"drained"`
}

// Snapshot returns the state as of the last processed event.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Scheduler) publish(drained bool) {
	snap := Snapshot{
		Generation:        s.generation,
		TestQueue:         append([]app.TestTask{}, s.testQueue...),
		BuildQueue:        make([]string, 0, len(s.buildQueue)),
		BuildsOutstanding: s.outstanding,
		Drained:           drained,
	}
	for _, req := range s.buildQueue {
		snap.BuildQueue = append(snap.BuildQueue, req.TargetName)
	}
	if s.active != nil {
		task := s.active.task
		snap.Active = &task
		snap.ActiveURL = s.active.url
		since := s.active.startedAt
		snap.ActiveSince = &since
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}
