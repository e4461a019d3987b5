package util

import (
	"testing"
	"time"
)

func TestEventNotify(t *testing.T) {
	e := NewEvent()
	if e.HasBeenNotified() {
		t.Fatal("Event notified before Notify")
	}

	e.Notify()
	e.Notify() // Must be idempotent.

	if !e.HasBeenNotified() {
		t.Fatal("Event not notified after Notify")
	}

	done := make(chan bool)
	go func() {
		e.Wait()
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for notified event")
	}
}

func TestEventDoneSelectable(t *testing.T) {
	e := NewEvent()
	select {
	case <-e.Done():
		t.Fatal("Done closed before Notify")
	default:
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Notify()
	}()

	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for Done")
	}
}
