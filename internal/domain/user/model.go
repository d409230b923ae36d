package user

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Locale is one of the supported interface languages.
type Locale string

const (
	LocaleUzbek      Locale = "uz"
	LocaleKarakalpak Locale = "qq"

	DefaultLocale = LocaleUzbek
)

const (
	handlePrefix    = "@"
	minHandleLength = 2
)

// Locales lists the supported locales in the order they are offered.
var Locales = []Locale{LocaleUzbek, LocaleKarakalpak}

// ParseLocale returns the locale for a code such as "uz".
func ParseLocale(code string) (Locale, bool) {
	for _, l := range Locales {
		if string(l) == code {
			return l, true
		}
	}
	return "", false
}

// User is a chat account mirrored from Telegram plus the registration profile.
// ID is the Telegram user id.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Locale       Locale    `json:"locale"`
	PhoneNumber  string    `json:"phone_number"`
	Handle       string    `json:"handle"`
	IsSubscribed bool      `json:"is_subscribed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile carries the display fields used when a user is first created.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// RegistrationStep is the next piece of the onboarding profile still missing.
type RegistrationStep int

const (
	StepLocale RegistrationStep = iota
	StepContact
	StepHandle
	StepSubscription
	StepComplete
)

func (s RegistrationStep) String() string {
	switch s {
	case StepLocale:
		return "locale"
	case StepContact:
		return "contact"
	case StepHandle:
		return "handle"
	case StepSubscription:
		return "subscription"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// NextStep derives registration progress from the profile fields.
// Precedence is fixed: locale, phone, handle, subscription.
func (u *User) NextStep() RegistrationStep {
	switch {
	case u.Locale == "":
		return StepLocale
	case u.PhoneNumber == "":
		return StepContact
	case u.Handle == "":
		return StepHandle
	case !u.IsSubscribed:
		return StepSubscription
	default:
		return StepComplete
	}
}

// IsFullyRegistered reports whether every onboarding field is set.
func (u *User) IsFullyRegistered() bool {
	return u.NextStep() == StepComplete
}

// LocaleOrDefault is the locale to render messages in.
func (u *User) LocaleOrDefault() Locale {
	if u == nil || u.Locale == "" {
		return DefaultLocale
	}
	return u.Locale
}

var ErrInvalidHandle = errors.New("handle must start with @ and contain at least one more character")

// NormalizeHandle trims the input and validates the social handle format.
func NormalizeHandle(raw string) (string, error) {
	handle := strings.TrimSpace(raw)
	if !strings.HasPrefix(handle, handlePrefix) || utf8.RuneCountInString(handle) < minHandleLength {
		return "", ErrInvalidHandle
	}
	return handle, nil
}
