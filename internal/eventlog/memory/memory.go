// Package memory is the in-process event log, used in single-process
// deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/fiscalia/docindex/internal/models"
)

const defaultCapacity = 512

// Log keeps a bounded ring of events per job. When a ring is full the
// oldest event is dropped; absolute sequence positions are preserved so
// replay-from-zero cursors stay valid.
type Log struct {
	mu       sync.RWMutex
	capacity int
	jobs     map[string]*ring
}

type ring struct {
	base   int // absolute position of events[0]
	events []models.Event
}

func NewLog() *Log {
	return NewLogWithCapacity(defaultCapacity)
}

func NewLogWithCapacity(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{
		capacity: capacity,
		jobs:     make(map[string]*ring),
	}
}

func (l *Log) Append(_ context.Context, jobID string, ev models.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.jobs[jobID]
	if !ok {
		r = &ring{}
		l.jobs[jobID] = r
	}
	if len(r.events) == l.capacity {
		r.events = r.events[1:]
		r.base++
	}
	r.events = append(r.events, ev)
	return nil
}

func (l *Log) Events(_ context.Context, jobID string, from int) ([]models.Event, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.jobs[jobID]
	if !ok {
		return nil, from, nil
	}

	idx := from - r.base
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.events) {
		return nil, from, nil
	}

	events := make([]models.Event, len(r.events)-idx)
	copy(events, r.events[idx:])
	return events, r.base + len(r.events), nil
}

// Drop forgets a job's events, releasing its memory.
func (l *Log) Drop(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, jobID)
}
