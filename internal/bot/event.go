package bot

import (
	"strings"

	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/platform/telegram"
)

// EventKind classifies an inbound update for the state machine.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCommand
	EventText
	EventContact
	EventDocument
	EventPhoto
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventContact:
		return "contact"
	case EventDocument:
		return "document"
	case EventPhoto:
		return "photo"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Attachment describes a document or the largest photo variant of a message.
type Attachment struct {
	FileID   string
	FileName string
	// Size is the transport-reported size; 0 when unknown.
	Size int64
}

// Event is a transport update reduced to what the engine needs.
type Event struct {
	Kind    EventKind
	UserID  int64
	ChatID  int64
	Profile user.Profile

	Command string
	Text    string

	ContactUserID int64
	PhoneNumber   string

	Attachment *Attachment

	CallbackID   string
	CallbackData string
	// MessageID is the message carrying the pressed inline button.
	MessageID int64
}

// EventFromUpdate converts an update. ok is false for updates without a sender.
func EventFromUpdate(u telegram.Update) (Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		ev := Event{
			Kind:         EventCallback,
			UserID:       cq.From.ID,
			ChatID:       cq.From.ID,
			Profile:      profileOf(&cq.From),
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, ev.UserID != 0
	case u.Message != nil && u.Message.From != nil:
		return eventFromMessage(u.Message), true
	}
	return Event{}, false
}

func eventFromMessage(m *telegram.Message) Event {
	ev := Event{
		Kind:    EventUnknown,
		UserID:  m.From.ID,
		ChatID:  m.Chat.ID,
		Profile: profileOf(m.From),
	}
	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}
	switch {
	case m.Contact != nil:
		ev.Kind = EventContact
		ev.ContactUserID = m.Contact.UserID
		ev.PhoneNumber = m.Contact.PhoneNumber
	case m.Document != nil:
		ev.Kind = EventDocument
		name := m.Document.FileName
		if name == "" {
			name = "document_" + m.Document.FileID + ".pdf"
		}
		ev.Attachment = &Attachment{FileID: m.Document.FileID, FileName: name, Size: m.Document.FileSize}
	case len(m.Photo) > 0:
		ev.Kind = EventPhoto
		p := m.LargestPhoto()
		ev.Attachment = &Attachment{FileID: p.FileID, FileName: "photo_" + p.FileID + ".jpg", Size: p.FileSize}
	case strings.HasPrefix(m.Text, "/"):
		ev.Kind = EventCommand
		ev.Command = parseCommand(m.Text)
		ev.Text = m.Text
	case m.Text != "":
		ev.Kind = EventText
		ev.Text = m.Text
	}
	return ev
}

// parseCommand turns "/start@receipts_bot payload" into "start".
func parseCommand(text string) string {
	cmd, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func profileOf(u *telegram.User) user.Profile {
	return user.Profile{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}
