package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "receipts-bot/internal/common/errors"
	"receipts-bot/internal/domain/branch"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/domain/settings"
	"receipts-bot/internal/domain/user"
)

type fakeUsers struct {
	users map[int64]*user.User
	err   error
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id int64, p user.Profile) (*user.User, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, false, nil
	}
	u := &user.User{ID: id, Username: p.Username, FirstName: p.FirstName}
	f.users[id] = u
	return u, true, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*user.User, bool, error) {
	u, ok := f.users[id]
	return u, ok, f.err
}

func (f *fakeUsers) Update(_ context.Context, u *user.User) error {
	f.users[u.ID] = u
	return f.err
}

type fakeBranches struct{ list []branch.Branch }

func (f *fakeBranches) ListActive(context.Context) ([]branch.Branch, error) { return f.list, nil }
func (f *fakeBranches) GetByID(_ context.Context, id int64) (*branch.Branch, bool, error) {
	for i := range f.list {
		if f.list[i].ID == id {
			return &f.list[i], true, nil
		}
	}
	return nil, false, nil
}

type fakeReceipts struct {
	rows      map[int64]*receipt.Receipt
	nextID    int64
	attachErr error
	deleteErr error
}

func (f *fakeReceipts) Create(_ context.Context, r *receipt.Receipt) error {
	f.nextID++
	r.ID = f.nextID
	r.SubmittedAt = time.Now()
	cp := *r
	f.rows[r.ID] = &cp
	return nil
}

func (f *fakeReceipts) AttachFile(_ context.Context, id int64, key, name string) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.rows[id].FileKey, f.rows[id].FileName = key, name
	return nil
}

func (f *fakeReceipts) GetByID(_ context.Context, id int64) (*receipt.Receipt, bool, error) {
	r, ok := f.rows[id]
	return r, ok, nil
}

func (f *fakeReceipts) List(context.Context, receipt.Filter) ([]receipt.Receipt, error) {
	var out []receipt.Receipt
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeReceipts) MarkProcessed(_ context.Context, id int64, st receipt.Status, reason string, at time.Time) (bool, error) {
	r, ok := f.rows[id]
	if !ok || r.Status != receipt.StatusPending {
		return false, nil
	}
	r.Status, r.RejectionReason, r.ProcessedAt = st, reason, &at
	return true, nil
}

func (f *fakeReceipts) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if r, ok := f.rows[id]; ok && r.Status == receipt.StatusPending {
		delete(f.rows, id)
	}
	return nil
}

type fakeSettings struct{ s *settings.Settings }

func (f *fakeSettings) Get(context.Context) (*settings.Settings, error) { return f.s, nil }

type fakeFiles struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeFiles) Put(_ context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeFiles) PresignGet(_ context.Context, key string) (string, error) {
	return "https://files.example/" + key, nil
}

type fixture struct {
	store    *Store
	users    *fakeUsers
	receipts *fakeReceipts
	files    *fakeFiles
}

func newFixture() *fixture {
	f := &fixture{
		users:    &fakeUsers{users: map[int64]*user.User{}},
		receipts: &fakeReceipts{rows: map[int64]*receipt.Receipt{}},
		files:    &fakeFiles{objects: map[string][]byte{}},
	}
	f.store = NewStore(f.users, &fakeBranches{list: []branch.Branch{{ID: 7, NameUz: "Chilonzor", IsActive: true}}},
		f.receipts, &fakeSettings{}, f.files)
	f.store.now = func() time.Time { return time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestStore_SubmissionFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, created, err := f.store.GetOrCreateUser(ctx, 42, user.Profile{FirstName: "Ali"})
	require.NoError(t, err)
	assert.True(t, created)

	b, found, err := f.store.GetBranch(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)

	r, err := f.store.CreateReceipt(ctx, u, b, 512000)
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusPending, r.Status)
	assert.Equal(t, int64(512000), r.FileSize)

	require.NoError(t, f.store.AttachReceiptFile(ctx, r, "check.PDF", []byte("%PDF")))
	assert.Regexp(t, `^receipts/2024/05/06/.+\.pdf$`, r.FileKey)
	assert.Equal(t, "check.PDF", r.FileName)
	assert.Equal(t, []byte("%PDF"), f.files.objects[r.FileKey])
	assert.Equal(t, r.FileKey, f.receipts.rows[r.ID].FileKey)

	link, err := f.store.FileURL(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/"+r.FileKey, link)
}

func TestStore_AttachErrorsAreTyped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := &receipt.Receipt{ID: 1}
	f.receipts.rows[1] = r

	f.files.putErr = errors.New("s3 down")
	err := f.store.AttachReceiptFile(ctx, r, "a.png", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorageError))

	f.files.putErr = nil
	f.receipts.attachErr = errors.New("db down")
	err = f.store.AttachReceiptFile(ctx, r, "a.png", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))
	assert.Empty(t, r.FileKey)
}

func TestStore_DeleteReceipt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _, err := f.store.GetOrCreateUser(ctx, 42, user.Profile{})
	require.NoError(t, err)
	b, _, err := f.store.GetBranch(ctx, 7)
	require.NoError(t, err)
	r, err := f.store.CreateReceipt(ctx, u, b, 10)
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteReceipt(ctx, r))
	assert.NotContains(t, f.receipts.rows, r.ID)

	f.receipts.deleteErr = errors.New("db down")
	err = f.store.DeleteReceipt(ctx, r)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))
}

func TestStore_GetReceiptNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.store.GetReceipt(context.Background(), 99)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeReceiptNotFound))
}

func TestStore_MarkReceiptProcessedOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.receipts.rows[3] = &receipt.Receipt{ID: 3, Status: receipt.StatusPending}

	at, ok, err := f.store.MarkReceiptProcessed(ctx, 3, receipt.StatusApproved, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2024, at.Year())

	_, ok, err = f.store.MarkReceiptProcessed(ctx, 3, receipt.StatusRejected, "late")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, receipt.StatusApproved, f.receipts.rows[3].Status)
}

func TestStore_UserErrorsAreTyped(t *testing.T) {
	f := newFixture()
	f.users.err = errors.New("db down")
	_, _, err := f.store.GetUser(context.Background(), 1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))
}

func TestStore_SettingsMayBeAbsent(t *testing.T) {
	f := newFixture()
	st, err := f.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultSubscriptionURL, st.SubscriptionURLOrDefault())
}
