package review

import (
	"context"
	"time"

	apperrors "receipts-bot/internal/common/errors"
	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/common/validation"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/service/notifications"
)

// BulkRejectReason is stored on receipts rejected in bulk.
const BulkRejectReason = "Bulk rejection - contact admin for details"

// Records is the part of the record store the review flow needs.
type Records interface {
	GetReceipt(ctx context.Context, id int64) (*receipt.Receipt, error)
	GetUser(ctx context.Context, id int64) (*user.User, bool, error)
	MarkReceiptProcessed(ctx context.Context, id int64, status receipt.Status, reason string) (time.Time, bool, error)
}

// Notifier delivers the outcome to the receipt owner and blocks until done.
type Notifier interface {
	NotifySync(ctx context.Context, req notifications.Request) bool
}

// Result of a single review decision.
type Result struct {
	ReceiptID   int64          `json:"receipt_id"`
	Status      receipt.Status `json:"status"`
	ProcessedAt time.Time      `json:"processed_at"`
	Notified    bool           `json:"notified"`
}

// BulkResult summarises a bulk decision.
type BulkResult struct {
	Processed            int     `json:"processed"`
	NotificationFailures int     `json:"notification_failures"`
	Failed               []int64 `json:"failed"`
}

// Service applies operator decisions to pending receipts and notifies their owners.
type Service struct {
	records  Records
	notifier Notifier
}

func NewService(records Records, notifier Notifier) *Service {
	return &Service{records: records, notifier: notifier}
}

func (s *Service) Approve(ctx context.Context, id int64) (*Result, error) {
	return s.decide(ctx, id, receipt.StatusApproved, "")
}

// Reject requires a non-blank reason of at most validation.MaxRejectionReasonLength characters.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (*Result, error) {
	if err := validation.RejectionReason(reason); err != nil {
		return nil, err
	}
	return s.decide(ctx, id, receipt.StatusRejected, reason)
}

func (s *Service) BulkApprove(ctx context.Context, ids []int64) (*BulkResult, error) {
	return s.bulk(ctx, ids, receipt.StatusApproved, "")
}

func (s *Service) BulkReject(ctx context.Context, ids []int64) (*BulkResult, error) {
	return s.bulk(ctx, ids, receipt.StatusRejected, BulkRejectReason)
}

func (s *Service) bulk(ctx context.Context, ids []int64, status receipt.Status, reason string) (*BulkResult, error) {
	if err := validation.BulkIDs(ids); err != nil {
		return nil, err
	}
	res := &BulkResult{Failed: []int64{}}
	for _, id := range ids {
		r, err := s.decide(ctx, id, status, reason)
		if err != nil {
			ev := logger.Error()
			if apperrors.HasCode(err, apperrors.ErrCodeReceiptNotFound) || apperrors.HasCode(err, apperrors.ErrCodeReceiptProcessed) {
				ev = logger.Warn()
			}
			ev.Err(err).Int64("receipt_id", id).Str("status", string(status)).Msg("bulk review item skipped")
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Processed++
		if !r.Notified {
			res.NotificationFailures++
		}
	}
	logger.Info().
		Str("status", string(status)).
		Int("processed", res.Processed).
		Int("failed", len(res.Failed)).
		Int("notification_failures", res.NotificationFailures).
		Msg("bulk review finished")
	return res, nil
}

func (s *Service) decide(ctx context.Context, id int64, status receipt.Status, reason string) (*Result, error) {
	r, err := s.records.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status.IsFinal() {
		return nil, apperrors.NewReceiptProcessedError(id, string(r.Status))
	}

	at, ok, err := s.records.MarkReceiptProcessed(ctx, id, status, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another operator got there between the read and the update.
		return nil, apperrors.NewReceiptProcessedError(id, "processed")
	}

	locale := user.DefaultLocale
	u, found, err := s.records.GetUser(ctx, r.UserID)
	switch {
	case err != nil:
		logger.ForUser(r.UserID).Warn().Err(err).Int64("receipt_id", id).Msg("owner lookup failed, using default locale")
	case found:
		locale = u.LocaleOrDefault()
	}

	notified := s.notifier.NotifySync(ctx, notifications.Request{
		UserID:    r.UserID,
		ReceiptID: id,
		Status:    status,
		Locale:    locale,
		Reason:    reason,
	})

	logger.ForUser(r.UserID).Info().
		Int64("receipt_id", id).
		Str("status", string(status)).
		Bool("notified", notified).
		Msg("receipt reviewed")

	return &Result{ReceiptID: id, Status: status, ProcessedAt: at, Notified: notified}, nil
}
