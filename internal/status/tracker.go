// Package status keeps the per-target indicator record. It is a projection
// of scheduler transitions and holds no decision logic.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/testkube/simqueue/internal/app"
)

// Flags is the indicator state of a single target. The JSON names match the
// CSS classes the status page renders.
type Flags struct {
	LoadingDev    bool `json:"loadingDev"`
	LoadingBuilt  bool `json:"loadingBuild"`
	CompleteDev   bool `json:"completeDev"`
	CompleteBuilt bool `json:"completeBuild"`
	ErrorDev      bool `json:"errorDev"`
	ErrorBuilt    bool `json:"errorBuild"`
	CompleteGrunt bool `json:"completeGrunt"`
	ErrorGrunt    bool `json:"errorGrunt"`
}

// Classes returns the indicator classes that are currently set.
func (f Flags) Classes() []string {
	var classes []string
	add := func(set bool, class string) {
		if set {
			classes = append(classes, class)
		}
	}
	add(f.LoadingDev, "loading-dev")
	add(f.LoadingBuilt, "loading-build")
	add(f.CompleteDev, "complete-dev")
	add(f.CompleteBuilt, "complete-build")
	add(f.ErrorDev, "error-dev")
	add(f.ErrorBuilt, "error-build")
	add(f.CompleteGrunt, "complete-grunt")
	add(f.ErrorGrunt, "error-grunt")
	return classes
}

// TargetStatus pairs a target with its flags.
type TargetStatus struct {
	Target    string    `json:"target"`
	Flags     Flags     `json:"flags"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Change is published to subscribers after every mutation.
type Change struct {
	Status TargetStatus
}

// Tracker stores target statuses. The scheduler is the only writer;
// presentation code reads freely.
type Tracker struct {
	mu          sync.RWMutex
	order       []string
	statuses    map[string]*TargetStatus
	subscribers []chan Change
	clock       func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		statuses: make(map[string]*TargetStatus),
		clock:    time.Now,
	}
}

// Register creates a blank record for a target. Registering twice is a no-op.
func (t *Tracker) Register(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.statuses[name]; ok {
		return
	}
	t.order = append(t.order, name)
	t.statuses[name] = &TargetStatus{Target: name, UpdatedAt: t.clock()}
}

// Subscribe returns a buffered channel receiving every change. Changes are
// dropped for a subscriber whose buffer is full.
func (t *Tracker) Subscribe(buffer int) <-chan Change {
	ch := make(chan Change, buffer)
	t.mu.Lock()
	t.subscribers = append(t.subscribers, ch)
	t.mu.Unlock()
	return ch
}

// MarkLoading sets loading-<mode>.
func (t *Tracker) MarkLoading(name string, mode app.Mode) {
	t.update(name, func(f *Flags) {
		if mode == app.ModeBuilt {
			f.LoadingBuilt = true
		} else {
			f.LoadingDev = true
		}
	})
}

// MarkComplete clears loading-<mode> and sets complete-<mode>, unless the
// mode already ended in error.
func (t *Tracker) MarkComplete(name string, mode app.Mode) {
	t.update(name, func(f *Flags) {
		if mode == app.ModeBuilt {
			f.LoadingBuilt = false
			f.CompleteBuilt = !f.ErrorBuilt
		} else {
			f.LoadingDev = false
			f.CompleteDev = !f.ErrorDev
		}
	})
}

// MarkError sets error-<mode>; it replaces any complete marker for that mode.
func (t *Tracker) MarkError(name string, mode app.Mode) {
	t.update(name, func(f *Flags) {
		if mode == app.ModeBuilt {
			f.LoadingBuilt = false
			f.CompleteBuilt = false
			f.ErrorBuilt = true
		} else {
			f.LoadingDev = false
			f.CompleteDev = false
			f.ErrorDev = true
		}
	})
}

// MarkBuild records the build-stage outcome.
func (t *Tracker) MarkBuild(name string, success bool) {
	t.update(name, func(f *Flags) {
		f.CompleteGrunt = success
		f.ErrorGrunt = !success
	})
}

// Get returns the status of one target.
func (t *Tracker) Get(name string) (TargetStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[name]
	if !ok {
		return TargetStatus{}, false
	}
	return *st, true
}

// Snapshot returns all statuses in registration order.
func (t *Tracker) Snapshot() []TargetStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TargetStatus, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.statuses[name])
	}
	return out
}

// Names returns the registered targets sorted alphabetically.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := append([]string(nil), t.order...)
	sort.Strings(names)
	return names
}

func (t *Tracker) update(name string, fn func(*Flags)) {
	t.mu.Lock()
	st, ok := t.statuses[name]
	if !ok {
		t.order = append(t.order, name)
		st = &TargetStatus{Target: name}
		t.statuses[name] = st
	}
	fn(&st.Flags)
	st.UpdatedAt = t.clock()
	change := Change{Status: *st}
	subscribers := t.subscribers
	t.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- change:
		default:
		}
	}
}
