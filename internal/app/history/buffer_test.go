package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type memStore struct {
	mu      sync.Mutex
	saved   []Message
	saves   int
	failing bool
}

func (s *memStore) Load(context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.saved...), nil
}

func (s *memStore) Save(_ context.Context, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.saved = append([]Message(nil), messages...)
	s.saves++
	return nil
}

func (s *memStore) snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.saved...)
}

func textMessage(i int) Message {
	text := fmt.Sprintf("msg-%d", i)
	return Message{Text: &text, Author: "alice", Timestamp: int64(i)}
}

func TestOpenLoadsAndTrims(t *testing.T) {
	store := &memStore{}
	for i := range 5 {
		store.saved = append(store.saved, textMessage(i))
	}

	b, err := Open(context.Background(), store, 3)
	require.NoError(t, err)

	got := b.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "msg-2", *got[0].Text)
	assert.Equal(t, "msg-4", *got[2].Text)
}

func TestAppendEvictsOldestAt200(t *testing.T) {
	store := &memStore{}
	b, err := Open(context.Background(), store, DefaultCapacity)
	require.NoError(t, err)

	for i := range DefaultCapacity + 1 {
		require.NoError(t, b.Append(context.Background(), textMessage(i), nil))
	}

	got := b.Snapshot()
	require.Len(t, got, DefaultCapacity)
	assert.Equal(t, "msg-1", *got[0].Text, "oldest message must be evicted")
	assert.Equal(t, fmt.Sprintf("msg-%d", DefaultCapacity), *got[len(got)-1].Text)
	assert.Equal(t, got, store.snapshot(), "store holds the full rewritten buffer")
}

func TestAppendPersistsBeforePublish(t *testing.T) {
	store := &memStore{}
	b, err := Open(context.Background(), store, DefaultCapacity)
	require.NoError(t, err)

	var persistedAtPublish []Message
	err = b.Append(context.Background(), textMessage(1), func(Message) {
		persistedAtPublish = store.snapshot()
	})
	require.NoError(t, err)

	require.Len(t, persistedAtPublish, 1)
	assert.Equal(t, "msg-1", *persistedAtPublish[0].Text)
}

func TestAppendStoreFailureLeavesBufferUnchanged(t *testing.T) {
	store := &memStore{}
	b, err := Open(context.Background(), store, DefaultCapacity)
	require.NoError(t, err)
	require.NoError(t, b.Append(context.Background(), textMessage(1), nil))

	store.failing = true
	published := false
	err = b.Append(context.Background(), textMessage(2), func(Message) { published = true })

	require.Error(t, err)
	assert.False(t, published)
	assert.Equal(t, 1, b.Len())
}

func TestClear(t *testing.T) {
	store := &memStore{}
	b, err := Open(context.Background(), store, DefaultCapacity)
	require.NoError(t, err)
	require.NoError(t, b.Append(context.Background(), textMessage(1), nil))

	cleared := false
	require.NoError(t, b.Clear(context.Background(), func() { cleared = true }))

	assert.True(t, cleared)
	assert.Zero(t, b.Len())
	assert.Empty(t, store.snapshot())
}

func TestReplayIsOrdered(t *testing.T) {
	b, err := Open(context.Background(), &memStore{}, 10)
	require.NoError(t, err)
	for i := range 4 {
		require.NoError(t, b.Append(context.Background(), textMessage(i), nil))
	}

	var texts []string
	b.Replay(func(msgs []Message) {
		for _, m := range msgs {
			texts = append(texts, *m.Text)
		}
	})

	assert.Equal(t, []string{"msg-0", "msg-1", "msg-2", "msg-3"}, texts)
}

func TestConcurrentAppendsPublishInAppendOrder(t *testing.T) {
	b, err := Open(context.Background(), &memStore{}, DefaultCapacity)
	require.NoError(t, err)

	var mu sync.Mutex
	var published []int64

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Append(context.Background(), textMessage(i), func(m Message) {
				mu.Lock()
				published = append(published, m.Timestamp)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	var stored []int64
	for _, m := range b.Snapshot() {
		stored = append(stored, m.Timestamp)
	}
	assert.Equal(t, stored, published)
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 50).Draw(t, "capacity")
		count := rapid.IntRange(0, 150).Draw(t, "count")

		b, err := Open(context.Background(), &memStore{}, capacity)
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		for i := range count {
			if err := b.Append(context.Background(), textMessage(i), nil); err != nil {
				t.Fatalf("append: %v", err)
			}
			if b.Len() > capacity {
				t.Fatalf("buffer length %d exceeds capacity %d", b.Len(), capacity)
			}
		}

		got := b.Snapshot()
		want := min(count, capacity)
		if len(got) != want {
			t.Fatalf("got %d messages, want %d", len(got), want)
		}
		for i, m := range got {
			if expected := int64(count - want + i); m.Timestamp != expected {
				t.Fatalf("position %d holds message %d, want %d", i, m.Timestamp, expected)
			}
		}
	})
}
