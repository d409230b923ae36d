package branch

import "context"

// Repository is read-only; branches are managed by operators.
type Repository interface {
	ListActive(ctx context.Context) ([]Branch, error)
	// GetByID returns (nil, false, nil) when the branch does not exist.
	GetByID(ctx context.Context, id int64) (*Branch, bool, error)
}
