package announce

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestQueue() *Queue {
	q := NewQueue(zerolog.Nop())
	q.minLead = 10 * time.Millisecond
	return q
}

func TestOnceAtFiresOnce(t *testing.T) {
	at := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	s := onceAt{at: at}
	if got := s.Next(at.Add(-time.Minute)); !got.Equal(at) {
		t.Fatalf("Next before = %v, want %v", got, at)
	}
	if got := s.Next(at); !got.IsZero() {
		t.Fatalf("Next at = %v, want zero", got)
	}
}

func TestQueueRunsDueJob(t *testing.T) {
	q := newTestQueue()
	q.Start()
	defer q.Stop()

	done := make(chan struct{})
	q.Put("a", time.Now().Add(-time.Hour), func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not run")
	}
	if pending := q.Pending(); len(pending) != 0 {
		t.Fatalf("pending after run = %v", pending)
	}
}

func TestQueueRemove(t *testing.T) {
	q := newTestQueue()
	q.Start()
	defer q.Stop()

	ran := make(chan struct{}, 1)
	q.Put("a", time.Now().Add(200*time.Millisecond), func() { ran <- struct{}{} })
	if !q.Remove("a") {
		t.Fatalf("Remove reported job missing")
	}
	if q.Remove("a") {
		t.Fatalf("second Remove reported job present")
	}

	select {
	case <-ran:
		t.Fatalf("removed job ran")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestQueueReplaceAndOrder(t *testing.T) {
	q := newTestQueue()
	base := time.Now().Add(time.Hour)

	q.Put("b", base.Add(2*time.Minute), func() {})
	q.Put("a", base.Add(time.Minute), func() {})
	q.Put("b", base, func() {})

	pending := q.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %v", pending)
	}
	if pending[0].ID != "b" || !pending[0].At.Equal(base) {
		t.Fatalf("first pending = %+v, want replaced b", pending[0])
	}
	if pending[1].ID != "a" {
		t.Fatalf("second pending = %+v", pending[1])
	}
}

func TestQueueReplacedJobDoesNotRun(t *testing.T) {
	q := newTestQueue()
	q.Start()
	defer q.Stop()

	results := make(chan string, 2)
	q.Put("a", time.Now().Add(100*time.Millisecond), func() { results <- "old" })
	q.Put("a", time.Now().Add(150*time.Millisecond), func() { results <- "new" })

	select {
	case got := <-results:
		if got != "new" {
			t.Fatalf("ran %q, want new", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not run")
	}
	select {
	case got := <-results:
		t.Fatalf("unexpected second run %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}
