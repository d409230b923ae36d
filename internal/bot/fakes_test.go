package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"receipts-bot/internal/domain/branch"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/domain/settings"
	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/platform/telegram"
)

type fakeRecords struct {
	mu       sync.Mutex
	users    map[int64]*user.User
	branches []branch.Branch
	receipts []*receipt.Receipt
	nextID   int64
	files    map[int64]string
	settings *settings.Settings
	userErr  error
	// attachFailures makes the next n AttachReceiptFile calls fail.
	attachFailures int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{users: map[int64]*user.User{}, files: map[int64]string{}}
}

func (f *fakeRecords) GetOrCreateUser(_ context.Context, id int64, p user.Profile) (*user.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, false, f.userErr
	}
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, false, nil
	}
	u := &user.User{ID: id, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName}
	f.users[id] = u
	cp := *u
	return &cp, true, nil
}

func (f *fakeRecords) GetUser(_ context.Context, id int64) (*user.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, false, f.userErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

func (f *fakeRecords) SaveUser(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeRecords) ListActiveBranches(context.Context) ([]branch.Branch, error) {
	var out []branch.Branch
	for _, b := range f.branches {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRecords) GetBranch(_ context.Context, id int64) (*branch.Branch, bool, error) {
	for i := range f.branches {
		if f.branches[i].ID == id {
			b := f.branches[i]
			return &b, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeRecords) CreateReceipt(_ context.Context, u *user.User, b *branch.Branch, size int64) (*receipt.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := &receipt.Receipt{
		ID:          f.nextID,
		UserID:      u.ID,
		BranchID:    b.ID,
		FileSize:    size,
		Status:      receipt.StatusPending,
		SubmittedAt: time.Now(),
	}
	f.receipts = append(f.receipts, r)
	return r, nil
}

func (f *fakeRecords) AttachReceiptFile(_ context.Context, r *receipt.Receipt, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachFailures > 0 {
		f.attachFailures--
		return errors.New("storage down")
	}
	f.files[r.ID] = name
	r.FileName = name
	return nil
}

func (f *fakeRecords) DeleteReceipt(_ context.Context, r *receipt.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rc := range f.receipts {
		if rc.ID == r.ID {
			f.receipts = append(f.receipts[:i], f.receipts[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeRecords) GetSettings(context.Context) (*settings.Settings, error) {
	return f.settings, nil
}

type sent struct {
	ChatID int64
	Text   string
	Markup telegram.Markup
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sent
	edits     []string
	answered  []string
	downloads map[string][]byte
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{downloads: map[string][]byte{}}
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, markup telegram.Markup) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{ChatID: chatID, Text: text, Markup: markup})
	return int64(len(m.sent)), nil
}

func (m *fakeMessenger) EditMessageText(_ context.Context, _, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return nil
}

func (m *fakeMessenger) AnswerCallbackQuery(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, id)
	return nil
}

func (m *fakeMessenger) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.downloads[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// take returns and clears the messages sent so far.
func (m *fakeMessenger) take() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent
	m.sent = nil
	return out
}
