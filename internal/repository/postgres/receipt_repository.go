package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "receipts-bot/internal/domain/receipt"
)

type ReceiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(db *sql.DB) *ReceiptRepository { return &ReceiptRepository{db: db} }

const receiptColumns = `id, user_id, branch_id, COALESCE(file_key, ''), COALESCE(file_name, ''), file_size, status, COALESCE(rejection_reason, ''), submitted_at, processed_at`

func scanReceipt(s interface{ Scan(...any) error }, rc *domain.Receipt) error {
	var status string
	var processed sql.NullTime
	if err := s.Scan(&rc.ID, &rc.UserID, &rc.BranchID, &rc.FileKey, &rc.FileName, &rc.FileSize, &status, &rc.RejectionReason, &rc.SubmittedAt, &processed); err != nil {
		return err
	}
	rc.Status = domain.Status(status)
	if processed.Valid {
		t := processed.Time
		rc.ProcessedAt = &t
	}
	return nil
}

// Create inserts a pending receipt.
func (r *ReceiptRepository) Create(ctx context.Context, rc *domain.Receipt) error {
	const q = `
INSERT INTO receipts (user_id, branch_id, file_size, status)
VALUES ($1, $2, $3, 'pending')
RETURNING id, submitted_at`
	if err := r.db.QueryRowContext(ctx, q, rc.UserID, rc.BranchID, rc.FileSize).Scan(&rc.ID, &rc.SubmittedAt); err != nil {
		return err
	}
	rc.Status = domain.StatusPending
	return nil
}

func (r *ReceiptRepository) AttachFile(ctx context.Context, id int64, key, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE receipts SET file_key=$2, file_name=$3 WHERE id=$1`, id, key, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*domain.Receipt, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id=$1`, id)
	var rc domain.Receipt
	if err := scanReceipt(row, &rc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rc, true, nil
}

// List returns receipts newest first.
func (r *ReceiptRepository) List(ctx context.Context, f domain.Filter) ([]domain.Receipt, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + receiptColumns + ` FROM receipts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY submitted_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Receipt
	for rows.Next() {
		var rc domain.Receipt
		if err := scanReceipt(rows, &rc); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// MarkProcessed transitions a pending receipt. It reports false when the receipt is
// missing or was already processed.
func (r *ReceiptRepository) MarkProcessed(ctx context.Context, id int64, status domain.Status, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE receipts
SET status = $2, rejection_reason = NULLIF($3, ''), processed_at = $4
WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, id, string(status), reason, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete drops a pending receipt, used when its file could not be stored.
func (r *ReceiptRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = $1 AND status = 'pending'`, id)
	return err
}
