// Package errlog aggregates build and runtime failures. Entries are only
// ever appended.
package errlog

import (
	"fmt"
	"sync"
	"time"
)

// Bucket partitions entries by where the failure originated.
type Bucket string

const (
	BucketDev   Bucket = "dev"   // sim errors while running unbuilt
	BucketBuilt Bucket = "built" // sim errors while running the built artifact
	BucketGrunt Bucket = "grunt" // build service failures
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketDev, BucketBuilt, BucketGrunt}

// ParseBucket maps a query value onto a bucket.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown error bucket %q", s)
}

// Title is the heading used when the bucket is displayed.
func (b Bucket) Title() string {
	switch b {
	case BucketDev:
		return "Sim errors (dev)"
	case BucketBuilt:
		return "Sim errors (build)"
	default:
		return "Grunt errors"
	}
}

// Entry is one recorded failure.
type Entry struct {
	Bucket  Bucket    `json:"bucket"`
	Target  string    `json:"target"`
	Message string    `json:"message,omitempty"`
	Stack   string    `json:"stack,omitempty"`
	Output  string    `json:"output,omitempty"`
	Time    time.Time `json:"time"`
}

// Log holds the three buckets.
type Log struct {
	mu      sync.RWMutex
	buckets map[Bucket][]Entry
	clock   func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{
		buckets: make(map[Bucket][]Entry, len(Buckets)),
		clock:   time.Now,
	}
}

// AppendExecution records a fatal signal raised by a target.
func (l *Log) AppendExecution(bucket Bucket, target, message, stack string) {
	l.append(Entry{Bucket: bucket, Target: target, Message: message, Stack: stack})
}

// AppendBuild records a build failure with the service output.
func (l *Log) AppendBuild(target, output string) {
	l.append(Entry{Bucket: BucketGrunt, Target: target, Output: output})
}

func (l *Log) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Time = l.clock()
	l.buckets[e.Bucket] = append(l.buckets[e.Bucket], e)
}

// Entries returns a copy of one bucket.
func (l *Log) Entries(bucket Bucket) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.buckets[bucket]...)
}

// Since returns entries of a bucket starting at offset, for incremental readers.
func (l *Log) Since(bucket Bucket, offset int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.buckets[bucket]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	return append([]Entry(nil), entries[offset:]...)
}

// Len returns the number of entries in a bucket.
func (l *Log) Len(bucket Bucket) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets[bucket])
}

// Empty reports whether nothing has been recorded.
func (l *Log) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, entries := range l.buckets {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}
