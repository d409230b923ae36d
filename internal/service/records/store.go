// Package records is the persistence facade used by the bot and the review API.
package records

import (
	"context"
	"time"

	apperrors "receipts-bot/internal/common/errors"
	"receipts-bot/internal/domain/branch"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/domain/settings"
	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/platform/storage"
)

// FileStore keeps attachment bytes.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type Store struct {
	users    user.Repository
	branches branch.Repository
	receipts receipt.Repository
	settings settings.Repository
	files    FileStore
	now      func() time.Time
}

func NewStore(users user.Repository, branches branch.Repository, receipts receipt.Repository, st settings.Repository, files FileStore) *Store {
	return &Store{users: users, branches: branches, receipts: receipts, settings: st, files: files, now: time.Now}
}

func (s *Store) GetOrCreateUser(ctx context.Context, id int64, p user.Profile) (*user.User, bool, error) {
	u, created, err := s.users.GetOrCreate(ctx, id, p)
	if err != nil {
		return nil, false, apperrors.NewDatabaseError("get or create user", err).WithUserID(id)
	}
	return u, created, nil
}

// GetUser returns (nil, false, nil) for an unknown id.
func (s *Store) GetUser(ctx context.Context, id int64) (*user.User, bool, error) {
	u, found, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, false, apperrors.NewDatabaseError("get user", err).WithUserID(id)
	}
	return u, found, nil
}

func (s *Store) SaveUser(ctx context.Context, u *user.User) error {
	if err := s.users.Update(ctx, u); err != nil {
		return apperrors.NewDatabaseError("save user", err).WithUserID(u.ID)
	}
	return nil
}

func (s *Store) ListActiveBranches(ctx context.Context) ([]branch.Branch, error) {
	list, err := s.branches.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list branches", err)
	}
	return list, nil
}

func (s *Store) GetBranch(ctx context.Context, id int64) (*branch.Branch, bool, error) {
	b, found, err := s.branches.GetByID(ctx, id)
	if err != nil {
		return nil, false, apperrors.NewDatabaseError("get branch", err).WithDetail("branch_id", id)
	}
	return b, found, nil
}

// CreateReceipt records a pending submission before the file is stored.
func (s *Store) CreateReceipt(ctx context.Context, u *user.User, b *branch.Branch, size int64) (*receipt.Receipt, error) {
	r := &receipt.Receipt{UserID: u.ID, BranchID: b.ID, FileSize: size, Status: receipt.StatusPending}
	if err := s.receipts.Create(ctx, r); err != nil {
		return nil, apperrors.NewDatabaseError("create receipt", err).WithUserID(u.ID)
	}
	return r, nil
}

// AttachReceiptFile uploads the attachment and links it to the receipt.
func (s *Store) AttachReceiptFile(ctx context.Context, r *receipt.Receipt, fileName string, data []byte) error {
	key := storage.ReceiptKey(s.now().UTC(), fileName)
	if err := s.files.Put(ctx, key, data); err != nil {
		return apperrors.NewStorageError("upload receipt file", err).WithDetail("receipt_id", r.ID)
	}
	if err := s.receipts.AttachFile(ctx, r.ID, key, fileName); err != nil {
		return apperrors.NewDatabaseError("attach receipt file", err).WithDetail("receipt_id", r.ID)
	}
	r.FileKey = key
	r.FileName = fileName
	return nil
}

// DeleteReceipt removes a pending receipt whose file never got stored.
func (s *Store) DeleteReceipt(ctx context.Context, r *receipt.Receipt) error {
	if err := s.receipts.Delete(ctx, r.ID); err != nil {
		return apperrors.NewDatabaseError("delete receipt", err).WithDetail("receipt_id", r.ID)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (*settings.Settings, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get settings", err)
	}
	return st, nil
}

func (s *Store) GetReceipt(ctx context.Context, id int64) (*receipt.Receipt, error) {
	r, found, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get receipt", err).WithDetail("receipt_id", id)
	}
	if !found {
		return nil, apperrors.NewReceiptNotFoundError(id)
	}
	return r, nil
}

func (s *Store) ListReceipts(ctx context.Context, f receipt.Filter) ([]receipt.Receipt, error) {
	list, err := s.receipts.List(ctx, f)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list receipts", err)
	}
	return list, nil
}

// MarkReceiptProcessed moves a pending receipt to a final status. It reports false
// when the receipt had already been processed.
func (s *Store) MarkReceiptProcessed(ctx context.Context, id int64, status receipt.Status, reason string) (time.Time, bool, error) {
	at := s.now().UTC()
	ok, err := s.receipts.MarkProcessed(ctx, id, status, reason, at)
	if err != nil {
		return time.Time{}, false, apperrors.NewDatabaseError("mark receipt processed", err).WithDetail("receipt_id", id)
	}
	return at, ok, nil
}

// FileURL returns a short-lived download link, or "" when no file is attached.
func (s *Store) FileURL(ctx context.Context, r *receipt.Receipt) (string, error) {
	if r.FileKey == "" {
		return "", nil
	}
	link, err := s.files.PresignGet(ctx, r.FileKey)
	if err != nil {
		return "", apperrors.NewStorageError("presign receipt file", err).WithDetail("receipt_id", r.ID)
	}
	return link, nil
}
