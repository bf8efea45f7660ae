package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned by MessageCache.Load when nothing is cached.
	ErrCacheMiss = errors.New("message cache miss")
	// ErrStaleSnapshot is returned by Fill when the conversation changed after
	// the snapshot's version was read. Nothing is cached.
	ErrStaleSnapshot = errors.New("message snapshot is stale")
)

// MessageCache keeps each conversation's ordered messages in a Redis list.
// Every write to a conversation bumps its version and drops the list; Fill only
// stores a snapshot whose version is still current, so the list always mirrors
// a complete history. A nil client disables the cache: loads miss and writes
// are no-ops.
type MessageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMessageCache(client *redis.Client, ttl time.Duration) *MessageCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MessageCache{client: client, ttl: ttl}
}

func (c *MessageCache) key(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (c *MessageCache) versionKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:version", conversationID)
}

// Load returns the cached messages for a conversation, or ErrCacheMiss.
func (c *MessageCache) Load(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheMiss
	}

	raw, err := c.client.LRange(ctx, c.key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read message cache: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrCacheMiss
	}

	messages := make([]models.Message, 0, len(raw))
	for _, s := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("failed to decode cached message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Version returns the conversation's write version. Read it before loading the
// snapshot that is later passed to Fill.
func (c *MessageCache) Version(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	v, err := c.client.Get(ctx, c.versionKey(conversationID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read message cache version: %w", err)
	}
	return v, nil
}

// Fill replaces the cached list with messages read at version. Empty histories
// are not cached. A write since version yields ErrStaleSnapshot.
func (c *MessageCache) Fill(ctx context.Context, conversationID uuid.UUID, version int64, messages []models.Message) error {
	if c == nil || c.client == nil || len(messages) == 0 {
		return nil
	}

	key := c.key(conversationID)
	verKey := c.versionKey(conversationID)
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		values = append(values, b)
	}

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStaleSnapshot
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.RPush(ctx, key, values...)
			pipe.Expire(ctx, key, c.ttl)
			pipe.Expire(ctx, verKey, c.ttl)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleSnapshot), errors.Is(err, redis.TxFailedErr):
		return ErrStaleSnapshot
	default:
		return fmt.Errorf("failed to fill message cache: %w", err)
	}
}

// Invalidate records a write to the conversation and drops its cached history.
// Call it after the write is committed.
func (c *MessageCache) Invalidate(ctx context.Context, conversationID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	verKey := c.versionKey(conversationID)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, verKey)
	pipe.Expire(ctx, verKey, c.ttl)
	pipe.Del(ctx, c.key(conversationID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate message cache: %w", err)
	}
	return nil
}
