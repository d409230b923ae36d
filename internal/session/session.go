package session

import (
	"context"
	"strconv"
)

// State is the conversation cursor of one user.
type State string

const (
	StateNone                        State = ""
	StateAwaitingContact             State = "awaiting_contact"
	StateAwaitingHandle              State = "awaiting_handle"
	StateAwaitingSubscriptionConfirm State = "awaiting_subscription_confirm"
	StateAwaitingBranch              State = "awaiting_branch"
	StateAwaitingAttachment          State = "awaiting_attachment"
)

func (s State) String() string {
	if s == StateNone {
		return "none"
	}
	return string(s)
}

const keyBranchID = "branch_id"

// Session is the per-user state plus a small scratch area.
type Session struct {
	State State             `json:"state"`
	Data  map[string]string `json:"data,omitempty"`
}

// New returns an empty session in StateNone.
func New() *Session {
	return &Session{State: StateNone}
}

// Reset drops the state and scratch data.
func (s *Session) Reset() {
	s.State = StateNone
	s.Data = nil
}

// IsEmpty reports whether there is nothing worth persisting.
func (s *Session) IsEmpty() bool {
	return s.State == StateNone && len(s.Data) == 0
}

// SetBranchID remembers the branch chosen for the next submission.
func (s *Session) SetBranchID(id int64) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[keyBranchID] = strconv.FormatInt(id, 10)
}

// BranchID returns the chosen branch, if any.
func (s *Session) BranchID() (int64, bool) {
	raw, ok := s.Data[keyBranchID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Store keeps sessions keyed by user id. A missing session reads as New().
// Callers must serialise access per user; stores do not merge concurrent writes.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, userID int64, s *Session) error
	Clear(ctx context.Context, userID int64) error
}
