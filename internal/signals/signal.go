// Package signals carries load/error notifications from an execution context
// back to the scheduler. Delivery is best effort: a signal may never arrive,
// arrive twice, or arrive after its context was replaced.
package signals

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/testkube/simqueue/internal/app"
)

// Signal types understood by the scheduler.
const (
	TypeLoad  = "load"
	TypeError = "error"
)

// Signal is one message posted by a target page.
type Signal struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
	// Generation is zero when the sender did not tag the signal.
	Generation uint64 `json:"generation,omitempty"`
}

// Decode parses a signal from its JSON form. Pages post the JSON as a
// string, so a quoted payload is unwrapped once.
func Decode(data []byte) (Signal, error) {
	var sig Signal
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return sig, fmt.Errorf("decode signal string: %w", err)
		}
		trimmed = inner
	}
	if err := json.Unmarshal([]byte(trimmed), &sig); err != nil {
		return sig, fmt.Errorf("decode signal: %w", err)
	}
	sig.Normalize()
	return sig, nil
}

// Normalize applies canonical formatting before validation.
func (s *Signal) Normalize() {
	if s == nil {
		return
	}
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.URL = strings.TrimSpace(s.URL)
}

// Validate enforces baseline requirements for incoming signals.
func (s Signal) Validate() error {
	if s.Type != TypeLoad && s.Type != TypeError {
		return fmt.Errorf("unsupported signal type %q", s.Type)
	}
	if s.URL == "" {
		return errors.New("url is required")
	}
	if _, ok := app.NameFromURL(s.URL); !ok {
		return fmt.Errorf("url %q does not name a target", s.URL)
	}
	return nil
}

// TargetName recovers the originating target from the signal URL.
func (s Signal) TargetName() string {
	name, _ := app.NameFromURL(s.URL)
	return name
}
