// Package bot implements the registration and receipt submission conversation.
package bot

import (
	"context"
	"fmt"
	"strings"

	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/domain/branch"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/domain/settings"
	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/i18n"
	"receipts-bot/internal/platform/telegram"
	"receipts-bot/internal/session"
)

// Records is the persistence the conversation needs.
type Records interface {
	GetOrCreateUser(ctx context.Context, id int64, p user.Profile) (*user.User, bool, error)
	GetUser(ctx context.Context, id int64) (*user.User, bool, error)
	SaveUser(ctx context.Context, u *user.User) error
	ListActiveBranches(ctx context.Context) ([]branch.Branch, error)
	GetBranch(ctx context.Context, id int64) (*branch.Branch, bool, error)
	CreateReceipt(ctx context.Context, u *user.User, b *branch.Branch, size int64) (*receipt.Receipt, error)
	AttachReceiptFile(ctx context.Context, r *receipt.Receipt, fileName string, data []byte) error
	DeleteReceipt(ctx context.Context, r *receipt.Receipt) error
	GetSettings(ctx context.Context) (*settings.Settings, error)
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup telegram.Markup) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Engine drives onboarding and receipt submission. Handle must not run
// concurrently for the same user; see workers.Router.
type Engine struct {
	records  Records
	sessions session.Store
	msg      Messenger
	catalog  *i18n.Catalog
}

func NewEngine(records Records, sessions session.Store, msg Messenger, catalog *i18n.Catalog) *Engine {
	return &Engine{records: records, sessions: sessions, msg: msg, catalog: catalog}
}

// turn is the working set for one event.
type turn struct {
	ev   Event
	sess *session.Session
}

// Handle processes one event and persists the resulting session.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	log := logger.ForUser(ev.UserID)

	sess, err := e.sessions.Get(ctx, ev.UserID)
	if err != nil {
		e.failTurn(ctx, &turn{ev: ev})
		return fmt.Errorf("load session: %w", err)
	}
	t := &turn{ev: ev, sess: sess}
	before := sess.State

	if ev.Kind == EventCallback {
		if err := e.msg.AnswerCallbackQuery(ctx, ev.CallbackID, ""); err != nil {
			log.Warn().Err(err).Msg("answer callback failed")
		}
	}

	if err := e.dispatch(ctx, t); err != nil {
		log.Error().Err(err).
			Str("event", ev.Kind.String()).
			Str("state", before.String()).
			Msg("event handling failed")
		e.failTurn(ctx, t)
		return err
	}

	if err := e.sessions.Save(ctx, ev.UserID, t.sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	log.Debug().
		Str("event", ev.Kind.String()).
		Str("from", before.String()).
		Str("to", t.sess.State.String()).
		Msg("event handled")
	return nil
}

// failTurn answers an event whose handling failed. Start and cancel still drop
// the session so the user can always leave a step.
func (e *Engine) failTurn(ctx context.Context, t *turn) {
	log := logger.ForUser(t.ev.UserID)
	if t.ev.Kind == EventCommand && (t.ev.Command == "start" || t.ev.Command == "cancel") {
		if err := e.sessions.Clear(ctx, t.ev.UserID); err != nil {
			log.Error().Err(err).Msg("clear session failed")
		}
	}
	if err := e.send(ctx, t, e.catalog.T(user.DefaultLocale, i18n.KeyServiceUnavailable), nil); err != nil {
		log.Warn().Err(err).Msg("failure notice not sent")
	}
}

func (e *Engine) dispatch(ctx context.Context, t *turn) error {
	state := t.sess.State
	switch t.ev.Kind {
	case EventCommand:
		switch t.ev.Command {
		case "start":
			return e.handleStart(ctx, t)
		case "cancel":
			return e.handleCancel(ctx, t)
		}
		// Inside the handle step any text, commands included, is a handle attempt.
		if state == session.StateAwaitingHandle {
			return e.handleHandle(ctx, t)
		}
	case EventCallback:
		data := t.ev.CallbackData
		switch {
		case strings.HasPrefix(data, callbackLocalePrefix):
			return e.handleLocale(ctx, t, strings.TrimPrefix(data, callbackLocalePrefix))
		case data == callbackSubscribed && state == session.StateAwaitingSubscriptionConfirm:
			return e.handleSubscriptionConfirmed(ctx, t)
		case strings.HasPrefix(data, callbackBranchPrefix) && state == session.StateAwaitingBranch:
			return e.handleBranch(ctx, t)
		}
	case EventContact:
		if state == session.StateAwaitingContact {
			return e.handleContact(ctx, t)
		}
	case EventText:
		if state == session.StateAwaitingHandle {
			return e.handleHandle(ctx, t)
		}
		if handled, err := e.handleMenu(ctx, t); handled || err != nil {
			return err
		}
	case EventDocument, EventPhoto:
		if state == session.StateAwaitingAttachment {
			return e.handleAttachment(ctx, t)
		}
	}
	return e.handleUnrecognized(ctx, t)
}

func (e *Engine) handleStart(ctx context.Context, t *turn) error {
	t.sess.Reset()
	u, created, err := e.records.GetOrCreateUser(ctx, t.ev.UserID, t.ev.Profile)
	if err != nil {
		return err
	}
	if created || u.Locale == "" {
		return e.promptLanguage(ctx, t)
	}
	return e.resume(ctx, t, u)
}

func (e *Engine) handleCancel(ctx context.Context, t *turn) error {
	t.sess.Reset()
	u, found, err := e.records.GetUser(ctx, t.ev.UserID)
	if err != nil {
		return err
	}
	if found && u.IsFullyRegistered() {
		return e.showMainMenu(ctx, t, u.Locale)
	}
	return e.promptLanguage(ctx, t)
}

// resume prompts for the first missing registration field, or shows the main menu.
func (e *Engine) resume(ctx context.Context, t *turn, u *user.User) error {
	l := u.LocaleOrDefault()
	switch u.NextStep() {
	case user.StepLocale:
		t.sess.Reset()
		return e.promptLanguage(ctx, t)
	case user.StepContact:
		t.sess.State = session.StateAwaitingContact
		return e.send(ctx, t, e.catalog.T(l, i18n.KeyShareContact), e.contactKeyboard(l))
	case user.StepHandle:
		t.sess.State = session.StateAwaitingHandle
		return e.send(ctx, t, e.catalog.T(l, i18n.KeyHandlePrompt), nil)
	case user.StepSubscription:
		st, err := e.records.GetSettings(ctx)
		if err != nil {
			return err
		}
		t.sess.State = session.StateAwaitingSubscriptionConfirm
		text := e.catalog.T(l, i18n.KeySubscriptionPrompt) + "\n" + st.SubscriptionURLOrDefault()
		return e.send(ctx, t, text, e.subscriptionKeyboard(l))
	default:
		t.sess.Reset()
		return e.showMainMenu(ctx, t, l)
	}
}

func (e *Engine) handleLocale(ctx context.Context, t *turn, code string) error {
	l, ok := user.ParseLocale(code)
	if !ok {
		return e.handleUnrecognized(ctx, t)
	}
	u, _, err := e.records.GetOrCreateUser(ctx, t.ev.UserID, t.ev.Profile)
	if err != nil {
		return err
	}
	u.Locale = l
	if err := e.records.SaveUser(ctx, u); err != nil {
		return err
	}
	e.editCallbackMessage(ctx, t, e.catalog.T(l, i18n.KeyLanguageSelected))
	t.sess.Reset()
	return e.resume(ctx, t, u)
}

func (e *Engine) handleContact(ctx context.Context, t *turn) error {
	if t.ev.ContactUserID != t.ev.UserID {
		// Someone else's contact card; ignore it.
		return nil
	}
	u, ok, err := e.requireUser(ctx, t)
	if !ok || err != nil {
		return err
	}
	u.PhoneNumber = t.ev.PhoneNumber
	if err := e.records.SaveUser(ctx, u); err != nil {
		return err
	}
	if err := e.send(ctx, t, e.catalog.T(u.Locale, i18n.KeyRegistrationComplete), telegram.RemoveKeyboard()); err != nil {
		return err
	}
	return e.resume(ctx, t, u)
}

func (e *Engine) handleHandle(ctx context.Context, t *turn) error {
	u, ok, err := e.requireUser(ctx, t)
	if !ok || err != nil {
		return err
	}
	handle, err := user.NormalizeHandle(t.ev.Text)
	if err != nil {
		return e.send(ctx, t, e.catalog.T(u.Locale, i18n.KeyInvalidHandle), nil)
	}
	u.Handle = handle
	if err := e.records.SaveUser(ctx, u); err != nil {
		return err
	}
	return e.resume(ctx, t, u)
}

func (e *Engine) handleSubscriptionConfirmed(ctx context.Context, t *turn) error {
	u, ok, err := e.requireUser(ctx, t)
	if !ok || err != nil {
		return err
	}
	u.IsSubscribed = true
	if err := e.records.SaveUser(ctx, u); err != nil {
		return err
	}
	e.editCallbackMessage(ctx, t, e.catalog.T(u.Locale, i18n.KeySubscriptionConfirmed))
	return e.resume(ctx, t, u)
}

// handleMenu reacts to reply-keyboard buttons. handled is false when the text is
// not a menu label in the user's locale.
func (e *Engine) handleMenu(ctx context.Context, t *turn) (handled bool, err error) {
	u, found, err := e.records.GetUser(ctx, t.ev.UserID)
	if err != nil {
		return true, err
	}
	if !found || u.Locale == "" {
		return false, nil
	}
	text := strings.TrimSpace(t.ev.Text)
	switch text {
	case e.catalog.T(u.Locale, i18n.KeySendReceiptButton):
		return true, e.startSubmission(ctx, t, u)
	case e.catalog.T(u.Locale, i18n.KeyChangeLanguage):
		t.sess.Reset()
		return true, e.send(ctx, t, e.catalog.T(u.Locale, i18n.KeyChooseLanguage), e.languageKeyboard())
	case e.catalog.T(u.Locale, i18n.KeyBackToMenu):
		t.sess.Reset()
		return true, e.showMainMenu(ctx, t, u.Locale)
	}
	return false, nil
}

func (e *Engine) startSubmission(ctx context.Context, t *turn, u *user.User) error {
	if !u.IsFullyRegistered() {
		return e.send(ctx, t, e.catalog.T(u.Locale, i18n.KeyRegistrationIncomplete), nil)
	}
	t.sess.Reset()
	return e.promptBranch(ctx, t, u.Locale)
}

// promptBranch renders the active branches and waits for a choice. With no
// active branches the flow ends.
func (e *Engine) promptBranch(ctx context.Context, t *turn, l user.Locale) error {
	branches, err := e.records.ListActiveBranches(ctx)
	if err != nil {
		return err
	}
	if len(branches) == 0 {
		t.sess.Reset()
		return e.send(ctx, t, e.catalog.T(l, i18n.KeyNoBranches), nil)
	}
	t.sess.State = session.StateAwaitingBranch
	return e.send(ctx, t, e.catalog.T(l, i18n.KeyChooseBranch), e.branchesKeyboard(branches, l))
}

func (e *Engine) handleBranch(ctx context.Context, t *turn) error {
	id, ok := parseBranchCallback(t.ev.CallbackData)
	if !ok {
		return e.handleUnrecognized(ctx, t)
	}
	b, found, err := e.records.GetBranch(ctx, id)
	if err != nil {
		return err
	}
	if !found || !b.IsActive {
		logger.ForUser(t.ev.UserID).Warn().Int64("branch_id", id).Msg("inactive or unknown branch selected")
		return e.handleUnrecognized(ctx, t)
	}
	u, ok, err := e.requireUser(ctx, t)
	if !ok || err != nil {
		return err
	}
	l := u.Locale
	t.sess.SetBranchID(b.ID)
	t.sess.State = session.StateAwaitingAttachment
	e.editCallbackMessage(ctx, t, e.catalog.T(l, i18n.KeyChooseBranch)+"\n✅ "+b.Name(l))
	return e.send(ctx, t, e.catalog.T(l, i18n.KeySendReceipt), e.backKeyboard(l))
}

func (e *Engine) handleAttachment(ctx context.Context, t *turn) error {
	log := logger.ForUser(t.ev.UserID)
	u, ok, err := e.requireUser(ctx, t)
	if !ok || err != nil {
		return err
	}
	l := u.Locale
	att := t.ev.Attachment

	branchID, ok := t.sess.BranchID()
	if !ok {
		return e.reselectBranch(ctx, t, l)
	}
	if err := receipt.CheckSize(att.Size); err != nil {
		return e.send(ctx, t, e.catalog.T(l, i18n.KeyFileTooLarge), nil)
	}
	// Photos carry a synthetic name and are always images.
	if t.ev.Kind == EventDocument {
		if err := receipt.ValidateDocumentName(att.FileName); err != nil {
			return e.send(ctx, t, e.catalog.T(l, i18n.KeyInvalidFileFormat), nil)
		}
	}

	b, found, err := e.records.GetBranch(ctx, branchID)
	if err != nil {
		return err
	}
	if !found || !b.IsActive {
		return e.reselectBranch(ctx, t, l)
	}

	data, err := e.msg.DownloadFile(ctx, att.FileID)
	if err != nil {
		log.Error().Err(err).Str("file_id", att.FileID).Msg("attachment download failed")
		return e.send(ctx, t, e.catalog.T(l, i18n.KeySubmissionFailed), nil)
	}
	size := att.Size
	if size == 0 {
		size = int64(len(data))
		if err := receipt.CheckSize(size); err != nil {
			return e.send(ctx, t, e.catalog.T(l, i18n.KeyFileTooLarge), nil)
		}
	}

	r, err := e.records.CreateReceipt(ctx, u, b, size)
	if err != nil {
		log.Error().Err(err).Msg("create receipt failed")
		return e.send(ctx, t, e.catalog.T(l, i18n.KeySubmissionFailed), nil)
	}
	if err := e.records.AttachReceiptFile(ctx, r, att.FileName, data); err != nil {
		log.Error().Err(err).Int64("receipt_id", r.ID).Msg("store receipt file failed")
		// A retry creates a fresh receipt, so the fileless one must not reach review.
		if derr := e.records.DeleteReceipt(ctx, r); derr != nil {
			log.Error().Err(derr).Int64("receipt_id", r.ID).Msg("delete orphan receipt failed")
		}
		return e.send(ctx, t, e.catalog.T(l, i18n.KeySubmissionFailed), nil)
	}
	log.Info().
		Int64("receipt_id", r.ID).
		Int64("branch_id", b.ID).
		Int64("size", size).
		Msg("receipt submitted")

	t.sess.Reset()
	if err := e.send(ctx, t, e.catalog.T(l, i18n.KeyReceiptReceived), nil); err != nil {
		return err
	}
	return e.showMainMenu(ctx, t, l)
}

func (e *Engine) reselectBranch(ctx context.Context, t *turn, l user.Locale) error {
	if err := e.send(ctx, t, e.catalog.T(l, i18n.KeySelectBranchFirst), nil); err != nil {
		return err
	}
	return e.promptBranch(ctx, t, l)
}

// handleUnrecognized answers input that fits no transition. The state is kept.
func (e *Engine) handleUnrecognized(ctx context.Context, t *turn) error {
	u, found, err := e.records.GetUser(ctx, t.ev.UserID)
	if err != nil {
		return err
	}
	if found && u.Locale != "" {
		return e.send(ctx, t, e.catalog.T(u.Locale, i18n.KeyUnrecognized), e.mainMenuKeyboard(u.Locale))
	}
	return e.promptLanguage(ctx, t)
}

// requireUser loads the sender. A missing user is answered through
// handleUnrecognized and reported as ok=false.
func (e *Engine) requireUser(ctx context.Context, t *turn) (*user.User, bool, error) {
	u, found, err := e.records.GetUser(ctx, t.ev.UserID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		logger.ForUser(t.ev.UserID).Warn().Str("event", t.ev.Kind.String()).Msg("user not found")
		return nil, false, e.handleUnrecognized(ctx, t)
	}
	return u, true, nil
}

func (e *Engine) promptLanguage(ctx context.Context, t *turn) error {
	return e.send(ctx, t, e.catalog.T(user.DefaultLocale, i18n.KeyLanguagePrompt), e.languageKeyboard())
}

func (e *Engine) showMainMenu(ctx context.Context, t *turn, l user.Locale) error {
	return e.send(ctx, t, e.catalog.T(l, i18n.KeyStartMessage), e.mainMenuKeyboard(l))
}

func (e *Engine) send(ctx context.Context, t *turn, text string, markup telegram.Markup) error {
	if _, err := e.msg.SendMessage(ctx, t.ev.ChatID, text, markup); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// editCallbackMessage echoes a choice into the message that offered it. Failures
// are logged only; the flow has already advanced.
func (e *Engine) editCallbackMessage(ctx context.Context, t *turn, text string) {
	if t.ev.MessageID == 0 {
		return
	}
	if err := e.msg.EditMessageText(ctx, t.ev.ChatID, t.ev.MessageID, text); err != nil {
		logger.ForUser(t.ev.UserID).Warn().Err(err).Msg("edit callback message failed")
	}
}
