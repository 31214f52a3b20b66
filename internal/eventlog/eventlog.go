// Package eventlog is the per-job append-only event sequence behind the
// live log stream. Every emission is written here for low-latency tailing
// and mirrored onto the persisted job record for later inspection.
package eventlog

import (
	"context"
	"time"

	"github.com/fiscalia/docindex/internal/models"
)

// Log stores ordered events per job. Events reads from an absolute
// sequence position and returns the position after the last event
// returned, so a tail can poll incrementally.
type Log interface {
	Append(ctx context.Context, jobID string, ev models.Event) error
	Events(ctx context.Context, jobID string, from int) ([]models.Event, int, error)
}

// TailOptions bound a live-tail subscription.
type TailOptions struct {
	PollInterval time.Duration // how often to poll for new events
	MaxWait      time.Duration // ceiling on total subscription time
}

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxWait      = 300 * time.Second
)

// Tail subscribes to a job's events from position 0. The returned channel
// yields events in append order and closes after a terminal event
// (completed, failed, rolled_back), after MaxWait, or when ctx is done.
// Every subscriber is independent; all observe the same total order.
func Tail(ctx context.Context, log Log, jobID string, opts TailOptions) <-chan models.Event {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}

	out := make(chan models.Event)
	go func() {
		defer close(out)

		deadline := time.Now().Add(opts.MaxWait)
		cursor := 0
		for {
			events, next, err := log.Events(ctx, jobID, cursor)
			if err != nil {
				return
			}
			cursor = next

			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Status.Terminal() {
					return
				}
			}

			if time.Now().After(deadline) {
				return
			}
			select {
			case <-time.After(opts.PollInterval):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
