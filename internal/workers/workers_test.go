package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipts-bot/internal/bot"
	rplatform "receipts-bot/internal/platform/redis"
	"receipts-bot/internal/platform/telegram"
)

type recordingHandler struct {
	mu      sync.Mutex
	seen    map[int64][]string
	active  map[int64]int
	overlap bool
	delay   time.Duration
	panicOn string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: map[int64][]string{}, active: map[int64]int{}}
}

func (h *recordingHandler) Handle(_ context.Context, ev bot.Event) error {
	if ev.Text == h.panicOn && h.panicOn != "" {
		panic("boom")
	}
	h.mu.Lock()
	h.active[ev.UserID]++
	if h.active[ev.UserID] > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.active[ev.UserID]--
	h.seen[ev.UserID] = append(h.seen[ev.UserID], ev.Text)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) texts(userID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen[userID]...)
}

func textEvent(userID int64, text string) bot.Event {
	return bot.Event{Kind: bot.EventText, UserID: userID, ChatID: userID, Text: text}
}

func TestRouter_PerUserOrderAndDrain(t *testing.T) {
	h := newRecordingHandler()
	h.delay = time.Millisecond
	r := NewRouter(h, 4, 16, nil)
	r.Start(context.Background())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		for _, uid := range []int64{1, 2, 3, 5} {
			require.NoError(t, r.Dispatch(ctx, textEvent(uid, string(rune('a'+i)))))
		}
	}
	r.Close()

	want := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, uid := range []int64{1, 2, 3, 5} {
		assert.Equal(t, want, h.texts(uid), "user %d", uid)
	}
	assert.False(t, h.overlap)
}

func TestRouter_DispatchAfterClose(t *testing.T) {
	r := NewRouter(newRecordingHandler(), 1, 1, nil)
	r.Start(context.Background())
	r.Close()
	r.Close()

	err := r.Dispatch(context.Background(), textEvent(1, "x"))
	assert.ErrorIs(t, err, ErrRouterClosed)
}

func TestRouter_DispatchHonoursContext(t *testing.T) {
	block := make(chan struct{})
	h := handlerFunc(func(context.Context, bot.Event) error {
		<-block
		return nil
	})
	r := NewRouter(h, 1, 0, nil)
	r.Start(context.Background())
	defer func() {
		close(block)
		r.Close()
	}()

	require.NoError(t, r.Dispatch(context.Background(), textEvent(1, "first")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Dispatch(ctx, textEvent(1, "second"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	h := newRecordingHandler()
	h.panicOn = "bad"
	r := NewRouter(h, 1, 4, nil)
	r.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, r.Dispatch(ctx, textEvent(7, "bad")))
	require.NoError(t, r.Dispatch(ctx, textEvent(7, "good")))
	r.Close()

	assert.Equal(t, []string{"good"}, h.texts(7))
}

type handlerFunc func(ctx context.Context, ev bot.Event) error

func (f handlerFunc) Handle(ctx context.Context, ev bot.Event) error { return f(ctx, ev) }

type keyLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *keyLocker) WithLock(_ context.Context, key string, fn func() error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return fn()
}

func TestRouter_UsesLocker(t *testing.T) {
	locker := &keyLocker{}
	r := NewRouter(newRecordingHandler(), 2, 2, locker)
	r.Start(context.Background())
	require.NoError(t, r.Dispatch(context.Background(), textEvent(42, "hi")))
	r.Close()

	assert.Equal(t, []string{"lock:user:42"}, locker.keys)
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := rplatform.Open(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	locker := NewRedisLocker(client.Redsync())

	var inside atomic.Bool
	err = locker.WithLock(ctx, UserLockKey(9), func() error {
		inside.Store(true)
		assert.True(t, mr.Exists("lock:user:9"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, inside.Load())
	assert.False(t, mr.Exists("lock:user:9"))

	sentinel := errors.New("handler failed")
	err = locker.WithLock(ctx, UserLockKey(9), func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, mr.Exists("lock:user:9"))
}

func TestRedisLocker_Contention(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := rplatform.Open(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	locker := NewRedisLocker(client.Redsync())

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, UserLockKey(1), func() error {
				n := active.Add(1)
				if n > maxActive.Load() {
					maxActive.Store(n)
				}
				time.Sleep(20 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}

type fakeSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	errs    []error
	offsets []int64
}

func (s *fakeSource) GetUpdates(ctx context.Context, offset int64, _ int) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func textUpdate(id, userID int64, text string) telegram.Update {
	from := &telegram.User{ID: userID, FirstName: "U"}
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
			From:      from,
			Chat:      telegram.Chat{ID: userID, Type: "private"},
			Text:      text,
		},
	}
}

func TestPoller_DispatchesAndAdvancesOffset(t *testing.T) {
	src := &fakeSource{
		errs: []error{&telegram.APIError{Method: "getUpdates", Code: 429, RetryAfter: 0}},
		batches: [][]telegram.Update{
			{textUpdate(10, 1, "a"), textUpdate(11, 2, "b")},
			{{UpdateID: 12}, textUpdate(13, 1, "c")},
		},
	}
	h := newRecordingHandler()
	r := NewRouter(h, 2, 8, nil)
	r.Start(context.Background())

	p := NewPoller(src, r, 30)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.offsets) >= 4
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	r.Close()

	assert.Equal(t, int64(14), p.Offset())
	assert.Equal(t, []int64{0, 0, 12, 14}, src.offsets[:4])
	assert.Equal(t, []string{"a", "c"}, h.texts(1))
	assert.Equal(t, []string{"b"}, h.texts(2))
}
