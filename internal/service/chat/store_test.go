package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/heartwise/backend/internal/model/chat"
	chat "github.com/zhouzirui/heartwise/backend/internal/service/chat"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreCreateSessionSeedsGreeting(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})

	transcript, err := store.CreateSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, transcript.SessionID)
	assert.False(t, transcript.CreatedAt.IsZero())
	require.Len(t, transcript.Messages, 1)
	assert.Equal(t, int64(1), transcript.Messages[0].ID)
	assert.Equal(t, model.SenderAssistant, transcript.Messages[0].Sender)
	assert.Equal(t, reply.Greeting, transcript.Messages[0].Content)
	assert.Equal(t, 1, store.Len())
}

func TestStoreGetSession(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})
	ctx := context.Background()

	created, err := store.CreateSession(ctx)
	require.NoError(t, err)

	first, err := store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	second, err := store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)

	assert.Equal(t, created, first)
	assert.Equal(t, first, second)
}

func TestStoreGetSessionNotFound(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})

	_, err := store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})
	ctx := context.Background()

	created, err := store.CreateSession(ctx)
	require.NoError(t, err)
	created.Messages[0].Content = "tampered"

	got, err := store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, reply.Greeting, got.Messages[0].Content)
}

func TestStoreRetriesIDCollisions(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	var mu sync.Mutex
	store := chat.NewStore(chat.StoreConfig{NewID: func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}})
	ctx := context.Background()

	a, err := store.CreateSession(ctx)
	require.NoError(t, err)
	b, err := store.CreateSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, "dup", a.SessionID)
	assert.Equal(t, "fresh", b.SessionID)
}

func TestStoreConcurrentCreateYieldsDistinctIDs(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})
	ctx := context.Background()

	const workers = 64
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			transcript, err := store.CreateSession(ctx)
			if err == nil {
				ids <- transcript.SessionID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, workers, store.Len())
}

func TestStoreStats(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})
	engine := chat.NewEngine(store, chat.EngineConfig{Generator: reply.NewGenerator(reply.FixedPicker{})})
	ctx := context.Background()

	created, err := engine.CreateSession(ctx)
	require.NoError(t, err)
	_, err = engine.PostMessage(ctx, created.SessionID, "hello there")
	require.NoError(t, err)
	_, err = engine.PostMessage(ctx, created.SessionID, "I want to kill myself")
	require.NoError(t, err)

	stats, err := store.Stats(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, stats.SessionID)
	assert.Equal(t, 5, stats.TotalMessages)
	assert.Equal(t, 2, stats.UserMessages)
	assert.Equal(t, 2, stats.AssistantMessages)
	assert.Equal(t, 1, stats.SystemMessages)
	assert.Equal(t, 1, stats.FlaggedTurns)

	_, err = store.Stats(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestStoreTTLExpiresIdleSessions(t *testing.T) {
	clock := newFakeClock()
	store := chat.NewStore(chat.StoreConfig{TTL: time.Minute, Now: clock.Now})
	ctx := context.Background()
	assert.Equal(t, time.Minute, store.TTL())

	idle, err := store.CreateSession(ctx)
	require.NoError(t, err)
	clock.Advance(45 * time.Second)
	active, err := store.CreateSession(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	_, err = store.GetSession(ctx, idle.SessionID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = store.GetSession(ctx, active.SessionID)
	assert.NoError(t, err)

	assert.Equal(t, 1, store.Sweep(clock.Now()))
	assert.Equal(t, 1, store.Len())
}

func TestStoreActivityExtendsTTL(t *testing.T) {
	clock := newFakeClock()
	store := chat.NewStore(chat.StoreConfig{TTL: time.Minute, Now: clock.Now})
	engine := chat.NewEngine(store, chat.EngineConfig{})
	ctx := context.Background()

	created, err := engine.CreateSession(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.Advance(50 * time.Second)
		_, err := engine.PostMessage(ctx, created.SessionID, fmt.Sprintf("update %d", i))
		require.NoError(t, err)
	}

	assert.Zero(t, store.Sweep(clock.Now()))
	_, err = store.GetSession(ctx, created.SessionID)
	assert.NoError(t, err)
}

func TestStoreSweepDisabledWithoutTTL(t *testing.T) {
	clock := newFakeClock()
	store := chat.NewStore(chat.StoreConfig{Now: clock.Now})
	ctx := context.Background()
	assert.Zero(t, store.TTL())

	created, err := store.CreateSession(ctx)
	require.NoError(t, err)
	clock.Advance(365 * 24 * time.Hour)

	assert.Zero(t, store.Sweep(clock.Now()))
	_, err = store.GetSession(ctx, created.SessionID)
	assert.NoError(t, err)
}

func TestStoreRunJanitorStopsOnCancel(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{TTL: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	_, err := store.CreateSession(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestStoreRunJanitorReturnsWhenDisabled(t *testing.T) {
	store := chat.NewStore(chat.StoreConfig{})
	done := make(chan struct{})
	go func() {
		store.RunJanitor(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor should return immediately without a TTL")
	}
}
