package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"receipts-bot/internal/bot"
	"receipts-bot/internal/common/logger"
)

var ErrRouterClosed = errors.New("router closed")

// Handler consumes events for one user at a time.
type Handler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// Router shards events by user id onto single-goroutine workers: events of one
// user are handled in arrival order and never overlap, different users run in parallel.
type Router struct {
	handler Handler
	locker  Locker
	queues  []chan bot.Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRouter creates a router with n workers. locker may be nil for a single process.
func NewRouter(h Handler, n, queueSize int, locker Locker) *Router {
	if n <= 0 {
		n = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	r := &Router{handler: h, locker: locker, queues: make([]chan bot.Event, n)}
	for i := range r.queues {
		r.queues[i] = make(chan bot.Event, queueSize)
	}
	return r
}

// Start launches the workers. Handling uses ctx values but ignores its
// cancellation so queued events drain on Close.
func (r *Router) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i, q := range r.queues {
		r.wg.Add(1)
		go r.work(base, i, q)
	}
	logger.Info().Int("workers", len(r.queues)).Msg("update router started")
}

// Dispatch queues ev on its user's worker, blocking while the queue is full.
func (r *Router) Dispatch(ctx context.Context, ev bot.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRouterClosed
	}
	select {
	case r.queues[r.shard(ev.UserID)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (r *Router) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		for _, q := range r.queues {
			close(q)
		}
	}
	r.mu.Unlock()
	r.wg.Wait()
	logger.Info().Msg("update router stopped")
}

func (r *Router) shard(userID int64) int {
	return int(uint64(userID) % uint64(len(r.queues)))
}

func (r *Router) work(ctx context.Context, idx int, q <-chan bot.Event) {
	defer r.wg.Done()
	for ev := range q {
		if err := r.handle(ctx, ev); err != nil {
			logger.Error().
				Err(err).
				Int("worker", idx).
				Int64("user_id", ev.UserID).
				Str("event", ev.Kind.String()).
				Msg("failed to handle update")
		}
	}
}

func (r *Router) handle(ctx context.Context, ev bot.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if r.locker == nil {
		return r.handler.Handle(ctx, ev)
	}
	return r.locker.WithLock(ctx, UserLockKey(ev.UserID), func() error {
		return r.handler.Handle(ctx, ev)
	})
}
