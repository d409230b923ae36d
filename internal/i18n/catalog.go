package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"receipts-bot/internal/domain/user"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Message keys used across the bot and the notification dispatcher.
const (
	KeyLanguageName           = "language_name"
	KeyLanguagePrompt         = "language_prompt"
	KeyStartMessage           = "start_message"
	KeyChooseLanguage         = "choose_language"
	KeyLanguageSelected       = "language_selected"
	KeyShareContact           = "share_contact"
	KeyContactButton          = "contact_button"
	KeyRegistrationComplete   = "registration_complete"
	KeyHandlePrompt           = "handle_prompt"
	KeySubscriptionPrompt     = "subscription_prompt"
	KeySubscribeButton        = "subscribe_button"
	KeySubscriptionConfirmed  = "subscription_confirmed"
	KeyChooseBranch           = "choose_branch"
	KeySendReceipt            = "send_receipt"
	KeyReceiptReceived        = "receipt_received"
	KeyReceiptApproved        = "receipt_approved"
	KeyReceiptRejected        = "receipt_rejected"
	KeyReceiptHeader          = "receipt_header"
	KeyRejectionReasonMissing = "rejection_reason_missing"
	KeyChangeLanguage         = "change_language"
	KeySendReceiptButton      = "send_receipt_btn"
	KeyBackToMenu             = "back_to_menu"
	KeyFileTooLarge           = "file_too_large"
	KeyInvalidFileFormat      = "invalid_file_format"
	KeyInvalidHandle          = "invalid_handle"
	KeySelectBranchFirst      = "select_branch_first"
	KeyNoBranches             = "no_branches"
	KeySubmissionFailed       = "submission_failed"
	KeyUnrecognized           = "unrecognized_message"
	KeyRegistrationIncomplete = "registration_incomplete"
	KeyServiceUnavailable     = "service_unavailable"
)

// Vars are {placeholder} substitutions for Resolve.
type Vars map[string]string

// Catalog resolves message keys per locale. It is read-only after construction.
type Catalog struct {
	messages map[user.Locale]map[string]string
	fallback user.Locale
}

// Load parses the embedded locale files.
func Load() (*Catalog, error) {
	return LoadFS(localeFS, "locales")
}

// LoadFS parses every <locale>.yaml file in dir.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	c := &Catalog{messages: make(map[user.Locale]map[string]string), fallback: user.DefaultLocale}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var msgs map[string]string
		if err := yaml.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		c.messages[user.Locale(strings.TrimSuffix(e.Name(), ".yaml"))] = msgs
	}
	if _, ok := c.messages[c.fallback]; !ok {
		return nil, fmt.Errorf("default locale %q has no messages", c.fallback)
	}
	return c, nil
}

// MustLoad is Load for program start-up.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve returns the text for key in locale. A locale without the key falls back
// to the default locale, and a key missing there resolves to the key itself.
func (c *Catalog) Resolve(key string, locale user.Locale, vars Vars) string {
	text, ok := c.messages[locale][key]
	if !ok {
		text, ok = c.messages[c.fallback][key]
	}
	if !ok {
		text = key
	}
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// T is Resolve without placeholders.
func (c *Catalog) T(locale user.Locale, key string) string {
	return c.Resolve(key, locale, nil)
}
