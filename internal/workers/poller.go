package workers

import (
	"context"
	"time"

	"receipts-bot/internal/bot"
	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/platform/telegram"
)

// UpdateSource is the long-polling side of the transport.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
}

// Poller pulls updates and feeds them to the router.
type Poller struct {
	src     UpdateSource
	router  *Router
	timeout int
	offset  int64
	backoff time.Duration
}

func NewPoller(src UpdateSource, router *Router, timeout int) *Poller {
	return &Poller{src: src, router: router, timeout: timeout, backoff: time.Second}
}

// Offset is the next update id to request.
func (p *Poller) Offset() int64 { return p.offset }

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info().Int("timeout", p.timeout).Msg("Starting update poller...")
	for {
		if ctx.Err() != nil {
			logger.Info().Msg("Stopping update poller...")
			return nil
		}
		updates, err := p.src.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := p.backoff
			if retry, limited := telegram.RateLimit(err); limited && retry > 0 {
				wait = retry
			}
			logger.Warn().Err(err).Dur("retry_in", wait).Msg("getUpdates failed")
			sleep(ctx, wait)
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			ev, ok := bot.EventFromUpdate(u)
			if !ok {
				continue
			}
			if err := p.router.Dispatch(ctx, ev); err != nil {
				logger.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("update dropped")
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
