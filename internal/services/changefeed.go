package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	// EventError reports a failure that left no row behind.
	EventError = "ERROR"

	subscriberBuffer = 64
)

// ChangeEvent describes one row change delivered to realtime subscribers.
type ChangeEvent struct {
	Event  string          `json:"event"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// NewChangeEvent marshals record into a ChangeEvent.
func NewChangeEvent(event, table string, record any) (ChangeEvent, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return ChangeEvent{Event: event, Table: table, Record: b}, nil
}

// MessagesChannel carries message inserts for one conversation.
func MessagesChannel(conversationID uuid.UUID) string {
	return "messages:" + conversationID.String()
}

// ConversationsChannel carries conversation changes for one user.
func ConversationsChannel(userID uuid.UUID) string {
	return "conversations:" + userID.String()
}

// Changefeed fans row changes out to subscribers. Delivery is best effort: a
// subscriber that falls behind loses events instead of blocking the publisher.
type Changefeed interface {
	Publish(ctx context.Context, channel string, ev ChangeEvent) error
	Subscribe(ctx context.Context, channel string) (<-chan ChangeEvent, func(), error)
}

// Emit builds and publishes an event, logging failures. Realtime delivery never
// fails the write that triggered it.
func Emit(ctx context.Context, feed Changefeed, channel, event, table string, record any) {
	if feed == nil {
		return
	}
	ev, err := NewChangeEvent(event, table, record)
	if err != nil {
		slog.Error("Failed to build change event", "channel", channel, "error", err)
		return
	}
	if err := feed.Publish(ctx, channel, ev); err != nil {
		slog.Warn("Failed to publish change event", "channel", channel, "error", err)
	}
}

// ─── In-process ─────────────────────────────────────────────────────────────

type LocalChangefeed struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan ChangeEvent
	nextID int
}

func NewLocalChangefeed() *LocalChangefeed {
	return &LocalChangefeed{subs: make(map[string]map[int]chan ChangeEvent)}
}

func (f *LocalChangefeed) Publish(_ context.Context, channel string, ev ChangeEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs[channel] {
		select {
		case ch <- ev:
		default:
			slog.Warn("Dropping change event for slow subscriber", "channel", channel)
		}
	}
	return nil
}

func (f *LocalChangefeed) Subscribe(ctx context.Context, channel string) (<-chan ChangeEvent, func(), error) {
	ch := make(chan ChangeEvent, subscriberBuffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[channel] == nil {
		f.subs[channel] = make(map[int]chan ChangeEvent)
	}
	f.subs[channel][id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[channel], id)
			if len(f.subs[channel]) == 0 {
				delete(f.subs, channel)
			}
			f.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// ─── Redis Pub/Sub ──────────────────────────────────────────────────────────

type RedisChangefeed struct {
	client *redis.Client
	prefix string
}

func NewRedisChangefeed(client *redis.Client) *RedisChangefeed {
	return &RedisChangefeed{client: client, prefix: "changefeed:"}
}

func (f *RedisChangefeed) Publish(ctx context.Context, channel string, ev ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return f.client.Publish(ctx, f.prefix+channel, b).Err()
}

func (f *RedisChangefeed) Subscribe(ctx context.Context, channel string) (<-chan ChangeEvent, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.prefix+channel)
	// Wait for the subscription to be confirmed so no publish is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan ChangeEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("Malformed change event", "channel", channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
					slog.Warn("Dropping change event for slow subscriber", "channel", channel)
				}
			}
		}
	}()

	return out, cancel, nil
}
