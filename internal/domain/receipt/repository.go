package receipt

import (
	"context"
	"time"
)

// Filter narrows List results. An empty Status lists every receipt.
type Filter struct {
	Status Status
	Limit  int
	Offset int
}

// Repository defines persistence operations for receipts.
type Repository interface {
	// Create inserts a pending receipt and fills ID and SubmittedAt.
	Create(ctx context.Context, r *Receipt) error
	// AttachFile records the storage key and original file name of the attachment.
	AttachFile(ctx context.Context, id int64, key, name string) error
	// GetByID returns (nil, false, nil) when the receipt does not exist.
	GetByID(ctx context.Context, id int64) (*Receipt, bool, error)
	List(ctx context.Context, f Filter) ([]Receipt, error)
	// MarkProcessed moves a pending receipt to status and reports whether a row changed.
	// Receipts that already left pending are never touched.
	MarkProcessed(ctx context.Context, id int64, status Status, reason string, at time.Time) (bool, error)
	// Delete removes a receipt that is still pending. Missing rows are not an error.
	Delete(ctx context.Context, id int64) error
}
