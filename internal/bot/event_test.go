package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipts-bot/internal/platform/telegram"
)

func msgUpdate(m telegram.Message) telegram.Update {
	if m.From == nil {
		m.From = &telegram.User{ID: 42, FirstName: "Ali", Username: "ali"}
	}
	m.Chat = telegram.Chat{ID: 42, Type: "private"}
	return telegram.Update{UpdateID: 1, Message: &m}
}

func TestEventFromUpdate_Messages(t *testing.T) {
	ev, ok := EventFromUpdate(msgUpdate(telegram.Message{Text: "/start@receipts_bot ref"}))
	require.True(t, ok)
	assert.Equal(t, EventCommand, ev.Kind)
	assert.Equal(t, "start", ev.Command)
	assert.Equal(t, "ali", ev.Profile.Username)

	ev, _ = EventFromUpdate(msgUpdate(telegram.Message{Text: "@shop"}))
	assert.Equal(t, EventText, ev.Kind)
	assert.Equal(t, "@shop", ev.Text)

	ev, _ = EventFromUpdate(msgUpdate(telegram.Message{Contact: &telegram.Contact{UserID: 42, PhoneNumber: "+998"}}))
	assert.Equal(t, EventContact, ev.Kind)
	assert.Equal(t, int64(42), ev.ContactUserID)
	assert.Equal(t, "+998", ev.PhoneNumber)

	ev, _ = EventFromUpdate(msgUpdate(telegram.Message{}))
	assert.Equal(t, EventUnknown, ev.Kind)
}

func TestEventFromUpdate_Attachments(t *testing.T) {
	ev, _ := EventFromUpdate(msgUpdate(telegram.Message{Document: &telegram.Document{FileID: "d1", FileName: "Check.PDF", FileSize: 10}}))
	assert.Equal(t, EventDocument, ev.Kind)
	assert.Equal(t, &Attachment{FileID: "d1", FileName: "Check.PDF", Size: 10}, ev.Attachment)

	ev, _ = EventFromUpdate(msgUpdate(telegram.Message{Document: &telegram.Document{FileID: "d2"}}))
	assert.Equal(t, "document_d2.pdf", ev.Attachment.FileName)

	ev, _ = EventFromUpdate(msgUpdate(telegram.Message{Photo: []telegram.PhotoSize{
		{FileID: "small", Width: 90, FileSize: 100},
		{FileID: "large", Width: 1280, FileSize: 90000},
	}}))
	assert.Equal(t, EventPhoto, ev.Kind)
	assert.Equal(t, &Attachment{FileID: "large", FileName: "photo_large.jpg", Size: 90000}, ev.Attachment)
}

func TestEventFromUpdate_Callback(t *testing.T) {
	ev, ok := EventFromUpdate(telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb",
		From:    telegram.User{ID: 7},
		Data:    "branch_3",
		Message: &telegram.Message{MessageID: 55, Chat: telegram.Chat{ID: 7}},
	}})
	require.True(t, ok)
	assert.Equal(t, EventCallback, ev.Kind)
	assert.Equal(t, int64(55), ev.MessageID)
	assert.Equal(t, "branch_3", ev.CallbackData)

	id, ok := parseBranchCallback(ev.CallbackData)
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	_, ok = parseBranchCallback("branch_-1")
	assert.False(t, ok)
}

func TestEventFromUpdate_NoSender(t *testing.T) {
	_, ok := EventFromUpdate(telegram.Update{UpdateID: 1})
	assert.False(t, ok)
	_, ok = EventFromUpdate(telegram.Update{Message: &telegram.Message{Text: "channel post"}})
	assert.False(t, ok)
}
