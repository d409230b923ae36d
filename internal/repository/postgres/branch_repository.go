package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "receipts-bot/internal/domain/branch"
)

type BranchRepository struct {
	db *sql.DB
}

func NewBranchRepository(db *sql.DB) *BranchRepository { return &BranchRepository{db: db} }

const branchColumns = `id, name_uz, name_qq, address_uz, address_qq, is_active, created_at`

func scanBranch(s interface{ Scan(...any) error }, b *domain.Branch) error {
	return s.Scan(&b.ID, &b.NameUz, &b.NameQq, &b.AddressUz, &b.AddressQq, &b.IsActive, &b.CreatedAt)
}

// ListActive returns active branches ordered by id.
func (r *BranchRepository) ListActive(ctx context.Context) ([]domain.Branch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+branchColumns+` FROM branches WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Branch
	for rows.Next() {
		var b domain.Branch
		if err := scanBranch(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetByID returns the branch whether or not it is active.
func (r *BranchRepository) GetByID(ctx context.Context, id int64) (*domain.Branch, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+branchColumns+` FROM branches WHERE id=$1`, id)
	var b domain.Branch
	if err := scanBranch(row, &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &b, true, nil
}
