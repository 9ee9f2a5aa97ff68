package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"relaychat/internal/pkg/logx"
)

// DefaultCapacity is the number of messages kept for replay.
const DefaultCapacity = 200

// Buffer is a FIFO-evicting message log of fixed capacity, oldest first.
//
// Append, Clear and Replay are serialized by one mutex. The publish callbacks run while the
// mutex is held, so every observer sees messages in append order and a replay can never
// interleave with a concurrent append.
type Buffer struct {
	mu       sync.Mutex
	store    Store
	capacity int
	messages []Message
	logger   zerolog.Logger
}

// Open loads the persisted log from store. If the store holds more than capacity
// messages only the most recent ones are kept.
func Open(ctx context.Context, store Store, capacity int) (*Buffer, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	messages, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load message history: %w", err)
	}

	if len(messages) > capacity {
		messages = messages[len(messages)-capacity:]
	}

	b := &Buffer{
		store:    store,
		capacity: capacity,
		messages: append(make([]Message, 0, capacity), messages...),
		logger:   logx.Component("history"),
	}

	b.logger.Info().Int("messages", len(b.messages)).Int("capacity", capacity).Msg("Message history loaded")
	return b, nil
}

// Append adds msg, evicting the oldest message when full, and persists the result.
// publish is called only after the store accepted the new log. On a store error the
// buffer is left unchanged and publish is not called.
func (b *Buffer) Append(ctx context.Context, msg Message, publish func(Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]Message, 0, b.capacity)
	if len(b.messages) >= b.capacity {
		next = append(next, b.messages[len(b.messages)-b.capacity+1:]...)
	} else {
		next = append(next, b.messages...)
	}
	next = append(next, msg)

	if err := b.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist message history: %w", err)
	}

	b.messages = next

	if publish != nil {
		publish(msg)
	}
	return nil
}

// Clear empties the log, persists the empty log, then calls publish.
func (b *Buffer) Clear(ctx context.Context, publish func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.Save(ctx, []Message{}); err != nil {
		return fmt.Errorf("persist cleared history: %w", err)
	}

	b.messages = make([]Message, 0, b.capacity)
	b.logger.Info().Msg("Message history cleared")

	if publish != nil {
		publish()
	}
	return nil
}

// Replay calls fn with the current log, oldest first, while no append can run.
// fn must not retain the slice.
func (b *Buffer) Replay(fn func([]Message)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(b.messages)
}

// Snapshot returns a copy of the current log.
func (b *Buffer) Snapshot() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Message(nil), b.messages...)
}

// Len returns the number of messages held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.messages)
}

// Capacity returns the maximum number of messages held.
func (b *Buffer) Capacity() int {
	return b.capacity
}
