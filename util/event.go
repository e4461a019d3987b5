package util

import (
	"sync"
)

// Event is a one-shot notification. It supports both blocking waits and
// select-based cancellation via Done. Once notified it stays notified.
type Event struct {
	once sync.Once
	c    chan struct{}
}

func NewEvent() *Event {
	return &Event{
		c: make(chan struct{}),
	}
}

// Notify fires the event. Calling Notify more than once is a no-op.
func (e *Event) Notify() {
	e.once.Do(func() {
		close(e.c)
	})
}

// Wait blocks until the event has been notified.
func (e *Event) Wait() {
	<-e.c
}

// Done returns a channel that is closed once the event has been notified.
func (e *Event) Done() <-chan struct{} {
	return e.c
}

func (e *Event) HasBeenNotified() bool {
	select {
	case <-e.c:
		return true
	default:
		return false
	}
}
