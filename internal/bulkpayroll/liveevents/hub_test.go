package liveevents

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	hub := NewHub()
	hub.OnProgress(context.Background(), domain.Progress{BatchID: snowflake.ID(7), Processed: 1})

	sub, replay, err := hub.Subscribe("7")
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, replay)
}

func TestSubscriberReceivesProgressAndReplay(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("7")
	require.NoError(t, err)
	defer sub.Close()

	hub.OnProgress(context.Background(), domain.Progress{BatchID: snowflake.ID(7), Processed: 1})
	hub.OnProgress(context.Background(), domain.Progress{BatchID: snowflake.ID(8), Processed: 9})

	got := <-sub.Events()
	assert.Equal(t, 1, got.Processed)
	assert.Len(t, sub.Events(), 0)

	late, replay, err := hub.Subscribe("7")
	require.NoError(t, err)
	defer late.Close()
	require.Len(t, replay, 1)
	assert.Equal(t, 1, replay[0].Processed)
}

func TestReplayBufferIsBounded(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("1")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultBufferSize+10; i++ {
		hub.Publish("1", domain.Progress{Processed: i})
	}
	_, replay, err := hub.Subscribe("1")
	require.NoError(t, err)
	require.Len(t, replay, DefaultBufferSize)
	assert.Equal(t, DefaultBufferSize+9, replay[len(replay)-1].Processed)
}

func TestCloseRemovesEmptyStream(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe("3")
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	hub.mu.RLock()
	_, ok := hub.streams["3"]
	hub.mu.RUnlock()
	assert.False(t, ok)
}

func TestSubscribeValidation(t *testing.T) {
	var nilHub *Hub
	_, _, err := nilHub.Subscribe("1")
	assert.ErrorIs(t, err, ErrHubUnavailable)

	_, _, err = NewHub().Subscribe("  ")
	assert.ErrorIs(t, err, ErrInvalidBatchID)
}
