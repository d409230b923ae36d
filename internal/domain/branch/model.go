package branch

import (
	"time"

	"receipts-bot/internal/domain/user"
)

// Branch is a shop location a receipt can be submitted for.
// Name and address are kept per locale.
type Branch struct {
	ID        int64     `json:"id"`
	NameUz    string    `json:"name_uz"`
	NameQq    string    `json:"name_qq"`
	AddressUz string    `json:"address_uz"`
	AddressQq string    `json:"address_qq"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Name returns the branch name in the given locale, Uzbek otherwise.
func (b *Branch) Name(l user.Locale) string {
	if l == user.LocaleKarakalpak && b.NameQq != "" {
		return b.NameQq
	}
	return b.NameUz
}

// Address returns the branch address in the given locale, Uzbek otherwise.
func (b *Branch) Address(l user.Locale) string {
	if l == user.LocaleKarakalpak && b.AddressQq != "" {
		return b.AddressQq
	}
	return b.AddressUz
}
