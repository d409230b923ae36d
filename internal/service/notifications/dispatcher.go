package notifications

import (
	"context"
	"strconv"

	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/i18n"
	"receipts-bot/internal/platform/telegram"
)

// Sender is a transport session owned by a single dispatch.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup telegram.Markup) (int64, error)
	Close() error
}

// SessionFactory opens a fresh transport session.
type SessionFactory func() (Sender, error)

// Outcome is the result of one dispatch.
type Outcome string

const (
	OutcomeDelivered   Outcome = "delivered"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeForbidden   Outcome = "forbidden"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFailed      Outcome = "failed"
)

// Request describes a status change to report to the receipt owner.
type Request struct {
	UserID int64
	// ReceiptID is optional; when set the message starts with the receipt header.
	ReceiptID int64
	Status    receipt.Status
	Locale    user.Locale
	Reason    string
}

// Dispatcher sends one-shot review outcome messages outside the conversation flow.
// It keeps no state between calls.
type Dispatcher struct {
	open    SessionFactory
	catalog *i18n.Catalog
}

func NewDispatcher(open SessionFactory, catalog *i18n.Catalog) *Dispatcher {
	return &Dispatcher{open: open, catalog: catalog}
}

// TelegramSessions opens a new Bot API client per dispatch.
func TelegramSessions(token string, opts ...telegram.Option) SessionFactory {
	return func() (Sender, error) {
		return telegram.NewClient(token, opts...), nil
	}
}

// Compose renders the message for req. ok is false for statuses that are not reported.
func (d *Dispatcher) Compose(req Request) (string, bool) {
	var text string
	switch req.Status {
	case receipt.StatusApproved:
		text = d.catalog.T(req.Locale, i18n.KeyReceiptApproved)
	case receipt.StatusRejected:
		reason := req.Reason
		if reason == "" {
			reason = d.catalog.T(req.Locale, i18n.KeyRejectionReasonMissing)
		}
		text = d.catalog.Resolve(i18n.KeyReceiptRejected, req.Locale, i18n.Vars{"reason": reason})
	default:
		return "", false
	}
	if req.ReceiptID > 0 {
		header := d.catalog.Resolve(i18n.KeyReceiptHeader, req.Locale, i18n.Vars{"id": strconv.FormatInt(req.ReceiptID, 10)})
		text = header + "\n" + text
	}
	return text, true
}

// Deliver sends the message for req and classifies the result. Failures are logged, never returned.
func (d *Dispatcher) Deliver(ctx context.Context, req Request) Outcome {
	log := logger.ForUser(req.UserID)

	text, ok := d.Compose(req)
	if !ok {
		log.Warn().Str("status", string(req.Status)).Int64("receipt_id", req.ReceiptID).Msg("notification skipped: unsupported status")
		return OutcomeSkipped
	}

	sender, err := d.open()
	if err != nil {
		log.Error().Err(err).Str("reason", "session").Msg("notification failed")
		return OutcomeFailed
	}
	defer func() {
		if cerr := sender.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close notification session")
		}
	}()

	if _, err := sender.SendMessage(ctx, req.UserID, text, nil); err != nil {
		switch {
		case telegram.IsForbidden(err):
			log.Warn().Err(err).Str("reason", "forbidden").Msg("notification not delivered")
			return OutcomeForbidden
		case telegram.IsRateLimited(err):
			retry, _ := telegram.RateLimit(err)
			log.Warn().Err(err).Str("reason", "rate_limited").Dur("retry_after", retry).Msg("notification not delivered")
			return OutcomeRateLimited
		default:
			log.Error().Err(err).Str("reason", "transport").Msg("notification not delivered")
			return OutcomeFailed
		}
	}

	log.Info().Str("status", string(req.Status)).Int64("receipt_id", req.ReceiptID).Msg("notification delivered")
	return OutcomeDelivered
}

// Notify reports whether the message was delivered.
func (d *Dispatcher) Notify(ctx context.Context, req Request) bool {
	return d.Deliver(ctx, req) == OutcomeDelivered
}

// NotifySync runs the dispatch on its own goroutine and blocks until it completes.
// Cancelling ctx does not interrupt a dispatch in flight.
func (d *Dispatcher) NotifySync(ctx context.Context, req Request) bool {
	done := make(chan bool, 1)
	dctx := context.WithoutCancel(ctx)
	go func() {
		done <- d.Notify(dctx, req)
	}()
	return <-done
}
