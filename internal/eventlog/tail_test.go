package eventlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalia/docindex/internal/eventlog"
	"github.com/fiscalia/docindex/internal/eventlog/memory"
	"github.com/fiscalia/docindex/internal/models"
)

func collect(t *testing.T, ch <-chan models.Event, within time.Duration) []models.Event {
	t.Helper()
	var got []models.Event
	deadline := time.After(within)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("tail did not close within %v (got %d events)", within, len(got))
		}
	}
}

func TestTailYieldsInOrderAndClosesOnTerminal(t *testing.T) {
	log := memory.NewLog()
	ctx := context.Background()

	events := []models.Event{
		{Message: "Starting pipeline...", Progress: 0, Stage: models.StageBronze, Status: models.EventRunning},
		{Message: "Created 12 chunks", Progress: 50, Stage: models.StageSilver, Status: models.EventRunning},
		{Message: "Pipeline complete", Progress: 100, Stage: models.StageCompleted, Status: models.EventCompleted},
	}
	for _, ev := range events {
		require.NoError(t, log.Append(ctx, "job-1", ev))
	}

	ch := eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{PollInterval: 10 * time.Millisecond})
	got := collect(t, ch, time.Second)

	require.Len(t, got, 3)
	for i := range events {
		assert.Equal(t, events[i].Message, got[i].Message)
	}
}

func TestTailPicksUpLateEvents(t *testing.T) {
	log := memory.NewLog()
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "job-1",
		models.Event{Message: "Starting pipeline...", Status: models.EventRunning}))

	ch := eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{PollInterval: 10 * time.Millisecond})

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = log.Append(ctx, "job-1",
			models.Event{Message: "Pipeline complete", Progress: 100, Status: models.EventCompleted})
	}()

	got := collect(t, ch, time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, "Pipeline complete", got[1].Message)
}

func TestTailOfFinishedJobYieldsHistoryImmediately(t *testing.T) {
	log := memory.NewLog()
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "job-1",
		models.Event{Message: "Starting pipeline...", Status: models.EventRunning}))
	require.NoError(t, log.Append(ctx, "job-1",
		models.Event{Message: "extraction failed", Status: models.EventFailed}))

	// A subscriber arriving after the job finished replays the history and
	// closes without waiting a poll cycle.
	ch := eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{PollInterval: time.Hour})
	got := collect(t, ch, time.Second)

	require.Len(t, got, 2)
	assert.Equal(t, models.EventFailed, got[1].Status)
}

func TestTailStopsAtMaxWait(t *testing.T) {
	log := memory.NewLog()
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "job-1",
		models.Event{Message: "Starting pipeline...", Status: models.EventRunning}))

	ch := eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{
		PollInterval: 10 * time.Millisecond,
		MaxWait:      50 * time.Millisecond,
	})
	got := collect(t, ch, time.Second)
	require.Len(t, got, 1)
}

func TestTailStopsOnContextCancel(t *testing.T) {
	log := memory.NewLog()
	ctx, cancel := context.WithCancel(context.Background())

	ch := eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{PollInterval: 10 * time.Millisecond})
	cancel()

	got := collect(t, ch, time.Second)
	assert.Empty(t, got)
}

func TestIndependentSubscribersSeeSameOrder(t *testing.T) {
	log := memory.NewLog()
	ctx := context.Background()

	for _, ev := range []models.Event{
		{Message: "a", Status: models.EventRunning},
		{Message: "b", Status: models.EventRunning},
		{Message: "c", Status: models.EventCompleted},
	} {
		require.NoError(t, log.Append(ctx, "job-1", ev))
	}

	first := collect(t, eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{PollInterval: 10 * time.Millisecond}), time.Second)
	second := collect(t, eventlog.Tail(ctx, log, "job-1", eventlog.TailOptions{PollInterval: 10 * time.Millisecond}), time.Second)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Message, second[i].Message)
	}
}
