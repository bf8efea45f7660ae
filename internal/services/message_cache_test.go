package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessages(convID uuid.UUID, contents ...string) []models.Message {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := make([]models.Message, len(contents))
	for i, c := range contents {
		out[i] = models.Message{
			ID:             uuid.New(),
			ConversationID: convID,
			SenderType:     models.SenderUser,
			Content:        c,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestMessageCache_FillLoadInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMessageCache(newTestRedis(t), time.Hour)
	convID := uuid.New()

	_, err := cache.Load(ctx, convID)
	assert.ErrorIs(t, err, ErrCacheMiss)

	version, err := cache.Version(ctx, convID)
	require.NoError(t, err)
	assert.Zero(t, version)

	msgs := testMessages(convID, "one", "two")
	require.NoError(t, cache.Fill(ctx, convID, version, msgs))

	got, err := cache.Load(ctx, convID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, msgs[1].ID, got[1].ID)
	assert.True(t, msgs[1].CreatedAt.Equal(got[1].CreatedAt))

	require.NoError(t, cache.Invalidate(ctx, convID))
	_, err = cache.Load(ctx, convID)
	assert.ErrorIs(t, err, ErrCacheMiss)

	version, err = cache.Version(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

// A reader that loaded its snapshot before a write must not cache it, even when
// later writes happen after the fill attempt.
func TestMessageCache_WriteDuringReadLeavesNoGap(t *testing.T) {
	ctx := context.Background()
	cache := NewMessageCache(newTestRedis(t), time.Hour)
	convID := uuid.New()
	history := testMessages(convID, "opening", "hello", "h", "r")

	// Reader misses and snapshots the history as it was before the user wrote.
	_, err := cache.Load(ctx, convID)
	require.ErrorIs(t, err, ErrCacheMiss)
	version, err := cache.Version(ctx, convID)
	require.NoError(t, err)
	snapshot := history[:1]

	// The user message is committed.
	require.NoError(t, cache.Invalidate(ctx, convID))

	// The reader's fill is rejected.
	assert.ErrorIs(t, cache.Fill(ctx, convID, version, snapshot), ErrStaleSnapshot)

	// Hint and reply are committed.
	require.NoError(t, cache.Invalidate(ctx, convID))

	_, err = cache.Load(ctx, convID)
	assert.ErrorIs(t, err, ErrCacheMiss, "no partial history may be cached")

	// The next reader caches the complete history.
	version, err = cache.Version(ctx, convID)
	require.NoError(t, err)
	require.NoError(t, cache.Fill(ctx, convID, version, history))

	got, err := cache.Load(ctx, convID)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, m := range got {
		assert.Equal(t, history[i].ID, m.ID)
	}
}

func TestMessageCache_VersionsArePerConversation(t *testing.T) {
	ctx := context.Background()
	cache := NewMessageCache(newTestRedis(t), time.Hour)
	a, b := uuid.New(), uuid.New()

	version, err := cache.Version(ctx, a)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, b))

	require.NoError(t, cache.Fill(ctx, a, version, testMessages(a, "one")))
	_, err = cache.Load(ctx, a)
	assert.NoError(t, err)
}

func TestMessageCache_EmptyHistoryIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := NewMessageCache(newTestRedis(t), time.Hour)
	convID := uuid.New()

	require.NoError(t, cache.Fill(ctx, convID, 0, nil))
	_, err := cache.Load(ctx, convID)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMessageCache_Disabled(t *testing.T) {
	ctx := context.Background()
	convID := uuid.New()

	for _, cache := range []*MessageCache{nil, NewMessageCache(nil, 0)} {
		v, err := cache.Version(ctx, convID)
		assert.NoError(t, err)
		assert.Zero(t, v)
		assert.NoError(t, cache.Fill(ctx, convID, v, testMessages(convID, "a")))
		assert.NoError(t, cache.Invalidate(ctx, convID))
		_, err = cache.Load(ctx, convID)
		assert.ErrorIs(t, err, ErrCacheMiss)
	}
}
