package receipt

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status is the review state of a receipt. Non-pending states are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsFinal reports whether the receipt has left the pending state.
func (s Status) IsFinal() bool {
	return s == StatusApproved || s == StatusRejected
}

// MaxFileSize is the largest attachment accepted, in bytes.
const MaxFileSize int64 = 2 << 20

// AllowedExtensions are the document extensions accepted without the leading dot.
var AllowedExtensions = []string{"pdf", "jpg", "jpeg", "png"}

var (
	ErrFileTooLarge     = errors.New("attachment exceeds size limit")
	ErrInvalidExtension = errors.New("attachment extension is not allowed")
)

// Receipt is a single submitted proof of payment.
type Receipt struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	BranchID        int64      `json:"branch_id"`
	FileKey         string     `json:"file_key,omitempty"`
	FileName        string     `json:"file_name,omitempty"`
	FileSize        int64      `json:"file_size"`
	Status          Status     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

// CheckSize rejects attachments above MaxFileSize. Zero means the size is unknown and passes.
func CheckSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, size, MaxFileSize)
	}
	return nil
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// ValidateDocumentName checks the file name against AllowedExtensions, ignoring case.
func ValidateDocumentName(name string) error {
	ext := Extension(name)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidExtension, name)
}
