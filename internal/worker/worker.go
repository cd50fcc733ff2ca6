// Package worker runs profile synthesis off the request path. Update
// triggers land in a bounded queue, duplicate triggers for a user collapse
// while one is pending, and a periodic sweep re-synthesizes profiles that
// fell behind their interaction log.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/kalambet/persona/internal/storage"
)

const defaultQueueSize = 64

// Synthesizer rebuilds and stores a single user's profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, username string) (storage.Profile, error)
}

// Worker drains the update queue and owns the refresh sweep.
type Worker struct {
	syn    Synthesizer
	store  storage.Store
	logger *slog.Logger

	queue chan string

	mu      sync.Mutex
	pending map[string]bool
}

// New creates a Worker. queueSize <= 0 uses the default.
func New(syn Synthesizer, store storage.Store, logger *slog.Logger, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Worker{
		syn:     syn,
		store:   store,
		logger:  logger,
		queue:   make(chan string, queueSize),
		pending: make(map[string]bool),
	}
}

// Enqueue requests a profile rebuild for username. Returns false when the
// request was dropped: either a rebuild is already pending for the user or
// the queue is full. Dropped duplicates are fine since the pending rebuild
// reads the full log anyway.
func (w *Worker) Enqueue(username string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[username] {
		return false
	}
	select {
	case w.queue <- username:
		w.pending[username] = true
		return true
	default:
		w.logger.Warn("update queue full, dropping trigger", "username", username)
		return false
	}
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case username := <-w.queue:
			w.process(ctx, username)
		}
	}
}

// RunOnce processes a single queued trigger if one is waiting. Returns true
// when a trigger was processed.
func (w *Worker) RunOnce(ctx context.Context) bool {
	select {
	case username := <-w.queue:
		w.process(ctx, username)
		return true
	default:
		return false
	}
}

func (w *Worker) process(ctx context.Context, username string) {
	// Clear pending before the rebuild so a trigger arriving mid-pass
	// queues another run that will see the newer interactions.
	w.mu.Lock()
	delete(w.pending, username)
	w.mu.Unlock()

	if _, err := w.syn.Synthesize(ctx, username); err != nil {
		w.logger.Error("queued synthesis failed", "username", username, "error", err)
	}
}

// Sweep enqueues every user whose stored profile no longer matches the
// interaction log, plus users with no profile at all.
func (w *Worker) Sweep(ctx context.Context) error {
	usernames, err := w.store.Usernames(ctx)
	if err != nil {
		return fmt.Errorf("listing users for sweep: %w", err)
	}
	for _, username := range usernames {
		stale, err := w.isStale(ctx, username)
		if err != nil {
			w.logger.Warn("skipping user in sweep", "username", username, "error", err)
			continue
		}
		if stale {
			w.Enqueue(username)
		}
	}
	return nil
}

func (w *Worker) isStale(ctx context.Context, username string) (bool, error) {
	stats, err := w.store.Stats(ctx, username)
	if err != nil {
		return false, err
	}
	prof, err := w.store.GetProfile(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return stats.TotalInteractions > 0, nil
	}
	if err != nil {
		return false, err
	}
	return prof.TotalInteractions != stats.TotalInteractions, nil
}

// Schedule starts a scheduler that runs Sweep every interval. The returned
// scheduler must be shut down by the caller.
func (w *Worker) Schedule(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("refresh sweep failed", "error", err)
			}
		}),
		gocron.WithName("profile-refresh"),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling refresh sweep: %w", err)
	}
	s.Start()
	return s, nil
}
