package signals

import (
	"errors"
	"sync/atomic"
)

const defaultCapacity = 64

// ErrDropped is returned when the channel buffer is full.
var ErrDropped = errors.New("signals: channel full, signal dropped")

// Channel is a bounded one-way path from execution contexts to the
// scheduler. Send never blocks; a full buffer drops the signal.
type Channel struct {
	ch      chan Signal
	dropped atomic.Int64
}

// NewChannel creates a channel; capacity <= 0 selects the default.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Channel{ch: make(chan Signal, capacity)}
}

// Send enqueues a signal without blocking.
func (c *Channel) Send(sig Signal) error {
	select {
	case c.ch <- sig:
		return nil
	default:
		c.dropped.Add(1)
		return ErrDropped
	}
}

// C exposes the receive side.
func (c *Channel) C() <-chan Signal {
	return c.ch
}

// Dropped reports how many signals were discarded so far.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}
