package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	requestTimeout = 10 * time.Second
	// Bot API refuses downloads above 20 MB.
	maxDownloadSize = 20 << 20
)

// Client is a minimal Bot API client covering what the receipts bot uses.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

type Option func(*Client)

// WithBaseURL points the client at a different Bot API server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		token:      token,
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type tgResponse[T any] struct {
	Ok          bool                `json:"ok"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
	Result      T                   `json:"result"`
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(timeout)},
		"allowed_updates": {`["message","callback_query"]`},
	}
	var result tgResponse[[]Update]
	wait := time.Duration(timeout)*time.Second + requestTimeout
	if err := c.makeRequest(ctx, "getUpdates", params, wait, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// SendMessage delivers text with an optional markup and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup Markup) (int64, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}
	if err := setMarkup(params, markup); err != nil {
		return 0, err
	}
	var result tgResponse[Message]
	if err := c.makeRequest(ctx, "sendMessage", params, requestTimeout, &result); err != nil {
		return 0, err
	}
	return result.Result.MessageID, nil
}

// EditMessageText replaces the text of a message the bot sent earlier.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
		"text":       {text},
	}
	var result tgResponse[json.RawMessage]
	return c.makeRequest(ctx, "editMessageText", params, requestTimeout, &result)
}

// AnswerCallbackQuery stops the client-side spinner on an inline button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := url.Values{"callback_query_id": {callbackID}}
	if text != "" {
		params.Set("text", text)
	}
	var result tgResponse[bool]
	return c.makeRequest(ctx, "answerCallbackQuery", params, requestTimeout, &result)
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var result tgResponse[File]
	if err := c.makeRequest(ctx, "getFile", url.Values{"file_id": {fileID}}, requestTimeout, &result); err != nil {
		return nil, err
	}
	return &result.Result, nil
}

// DownloadFile resolves fileID and returns the file contents.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("getFile %s: empty file_path", fileID)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, redact(err, c.token))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Method: "downloadFile", Code: resp.StatusCode, Description: resp.Status}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("download %s: file exceeds %d bytes", fileID, maxDownloadSize)
	}
	return data, nil
}

// Close releases idle connections. The client must not be used afterwards.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func setMarkup(params url.Values, markup Markup) error {
	if markup == nil {
		return nil
	}
	b, err := json.Marshal(markup)
	if err != nil {
		return fmt.Errorf("encode reply_markup: %w", err)
	}
	params.Set("reply_markup", string(b))
	return nil
}

// envelope is implemented by tgResponse for every result type.
type envelope interface {
	apiError(method string, status int) error
}

func (c *Client) makeRequest(ctx context.Context, method string, data url.Values, timeout time.Duration, out envelope) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, redact(err, c.token))
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	return out.apiError(method, resp.StatusCode)
}

func (r *tgResponse[T]) apiError(method string, status int) error {
	if r.Ok {
		return nil
	}
	e := &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
	if e.Code == 0 {
		e.Code = status
	}
	if r.Parameters != nil && r.Parameters.RetryAfter > 0 {
		e.RetryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
	}
	return e
}

// redact keeps the bot token out of transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}
