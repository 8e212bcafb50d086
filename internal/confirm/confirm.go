/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package confirm implements two-click confirmation for destructive actions.
package confirm

import (
	"sync"
	"time"
)

// DefaultWindow is how long an armed confirmation stays valid.
const DefaultWindow = 5 * time.Second

// Result is the outcome of a click.
type Result int

const (
	// Armed means the first click was recorded and a second is required.
	Armed Result = iota
	// Confirmed means the action may proceed.
	Confirmed
)

func (r Result) String() string {
	switch r {
	case Armed:
		return "armed"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

type pending struct {
	target string
	expiry time.Time
}

// Tracker holds one pending confirmation per key. A key with no entry is idle.
type Tracker struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]pending
}

// NewTracker creates a tracker. A non-positive window uses DefaultWindow.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window:  window,
		pending: make(map[string]pending),
	}
}

// Request records a click on target for key. The second click on the same
// target inside the window confirms and returns the key to idle. Any other
// click re-arms for the new target.
func (t *Tracker) Request(key, target string, now time.Time) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[key]; ok && p.target == target && now.Before(p.expiry) {
		delete(t.pending, key)
		return Confirmed
	}

	t.pending[key] = pending{target: target, expiry: now.Add(t.window)}
	t.sweep(now)
	return Armed
}

// Cancel returns key to idle.
func (t *Tracker) Cancel(key string) {
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()
}

// Pending reports the armed target for key, if any.
func (t *Tracker) Pending(key string, now time.Time) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[key]
	if !ok || !now.Before(p.expiry) {
		return "", false
	}
	return p.target, true
}

// Window returns the confirmation window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// sweep drops expired entries. Caller holds mu.
func (t *Tracker) sweep(now time.Time) {
	for key, p := range t.pending {
		if !now.Before(p.expiry) {
			delete(t.pending, key)
		}
	}
}
