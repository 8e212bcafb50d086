/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package announce

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mustard/internal/logging"
	"github.com/friendsincode/mustard/internal/telemetry"
)

// DefaultMinLead keeps due-now jobs strictly in the future so cron picks
// them up.
const DefaultMinLead = time.Second

// onceAt is a cron schedule that fires a single time.
type onceAt struct {
	at time.Time
}

func (s onceAt) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

// Pending describes a queued job.
type Pending struct {
	ID string
	At time.Time
}

type queued struct {
	entry cron.EntryID
	at    time.Time
}

// Queue runs one-shot jobs at given instants on top of a cron scheduler.
// Each job has a string id; putting an existing id replaces it.
type Queue struct {
	cron    *cron.Cron
	minLead time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]queued
}

// NewQueue creates a stopped queue.
func NewQueue(logger zerolog.Logger) *Queue {
	cronLogger := logging.NewCronLogger(logger)
	return &Queue{
		cron:    cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		minLead: DefaultMinLead,
		now:     time.Now,
		logger:  logger.With().Str("component", "announce_queue").Logger(),
		jobs:    make(map[string]queued),
	}
}

// Start runs the scheduler in its own goroutine.
func (q *Queue) Start() {
	q.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (q *Queue) Stop() context.Context {
	return q.cron.Stop()
}

// Every registers a recurring job using a cron spec such as "@every 1m".
func (q *Queue) Every(spec string, job func()) (cron.EntryID, error) {
	return q.cron.AddFunc(spec, job)
}

// Put schedules job to run at at. Instants in the past run as soon as
// possible.
func (q *Queue) Put(id string, at time.Time, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.jobs[id]; ok {
		q.cron.Remove(existing.entry)
	}

	runAt := at
	if earliest := q.now().Add(q.minLead); runAt.Before(earliest) {
		runAt = earliest
	}

	var entry cron.EntryID
	entry = q.cron.Schedule(onceAt{at: runAt}, cron.FuncJob(func() {
		q.mu.Lock()
		current, ok := q.jobs[id]
		if !ok || current.entry != entry {
			q.mu.Unlock()
			return
		}
		delete(q.jobs, id)
		q.updateDepth()
		q.mu.Unlock()

		q.cron.Remove(entry)
		job()
	}))
	q.jobs[id] = queued{entry: entry, at: at}
	q.updateDepth()

	q.logger.Debug().Str("id", id).Time("at", runAt).Msg("job queued")
}

// Remove drops a queued job. It reports whether the job was still queued.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, ok := q.jobs[id]
	if !ok {
		return false
	}
	q.cron.Remove(existing.entry)
	delete(q.jobs, id)
	q.updateDepth()
	return true
}

// Pending lists queued jobs in due order.
func (q *Queue) Pending() []Pending {
	q.mu.Lock()
	out := make([]Pending, 0, len(q.jobs))
	for id, job := range q.jobs {
		out = append(out, Pending{ID: id, At: job.at})
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Caller holds mu.
func (q *Queue) updateDepth() {
	telemetry.AnnounceQueueDepth.Set(float64(len(q.jobs)))
}
