// Package storetest holds the behavioral contract every domain.Store backend
// must satisfy. Backend packages run it against their own implementation.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for a single subtest.
type Factory func(t *testing.T) domain.Store

// Run exercises the full domain.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("rooms", func(t *testing.T) { testRooms(t, newStore(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("reactions", func(t *testing.T) { testReactions(t, newStore(t)) })
	t.Run("answered", func(t *testing.T) { testAnswered(t, newStore(t)) })
	t.Run("not_found", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("concurrent_reactions", func(t *testing.T) { testConcurrentReactions(t, newStore(t)) })
	t.Run("ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func testRooms(t *testing.T, s domain.Store) {
	ctx := context.Background()

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	first, err := s.CreateRoom(ctx, "Go")
	require.NoError(t, err)
	second, err := s.CreateRoom(ctx, "Rust")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	room, err := s.GetRoom(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, domain.Room{ID: first, Theme: "Go"}, *room)

	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Room{{ID: first, Theme: "Go"}, {ID: second, Theme: "Rust"}}, rooms)
}

func testMessages(t *testing.T, s domain.Store) {
	ctx := context.Background()
	roomID, err := s.CreateRoom(ctx, "Go")
	require.NoError(t, err)
	otherRoom, err := s.CreateRoom(ctx, "Other")
	require.NoError(t, err)

	messages, err := s.ListMessages(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	var ids []string
	for _, text := range []string{"first?", "second?", "third?"} {
		id, err := s.CreateMessage(ctx, roomID, text)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err = s.CreateMessage(ctx, otherRoom, "elsewhere")
	require.NoError(t, err)

	msg, err := s.GetMessage(ctx, roomID, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.Message{ID: ids[1], RoomID: roomID, Message: "second?"}, *msg)

	messages, err = s.ListMessages(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, m := range messages {
		assert.Equal(t, ids[i], m.ID, "messages are listed in creation order")
		assert.Equal(t, roomID, m.RoomID)
	}

	_, err = s.GetMessage(ctx, otherRoom, ids[0])
	assert.ErrorIs(t, err, domain.ErrMessageNotFound, "a message is only visible through its own room")
}

func testReactions(t *testing.T, s domain.Store) {
	ctx := context.Background()
	roomID, err := s.CreateRoom(ctx, "Go")
	require.NoError(t, err)
	msgID, err := s.CreateMessage(ctx, roomID, "why?")
	require.NoError(t, err)

	count, err := s.React(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.React(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.Unreact(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.Unreact(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = s.Unreact(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "count never drops below zero")

	msg, err := s.GetMessage(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), msg.ReactionCount)
}

func testAnswered(t *testing.T, s domain.Store) {
	ctx := context.Background()
	roomID, err := s.CreateRoom(ctx, "Go")
	require.NoError(t, err)
	msgID, err := s.CreateMessage(ctx, roomID, "done yet?")
	require.NoError(t, err)

	require.NoError(t, s.MarkAnswered(ctx, roomID, msgID))
	require.NoError(t, s.MarkAnswered(ctx, roomID, msgID), "marking twice is a no-op")

	msg, err := s.GetMessage(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.True(t, msg.Answered)
}

func testNotFound(t *testing.T, s domain.Store) {
	ctx := context.Background()
	const missingRoom = "00000000-0000-0000-0000-000000000000"

	_, err := s.GetRoom(ctx, missingRoom)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.GetRoom(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = s.CreateMessage(ctx, missingRoom, "hello?")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.ListMessages(ctx, missingRoom)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.React(ctx, missingRoom, missingRoom)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	roomID, err := s.CreateRoom(ctx, "Go")
	require.NoError(t, err)

	_, err = s.GetMessage(ctx, roomID, missingRoom)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	_, err = s.GetMessage(ctx, roomID, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	_, err = s.React(ctx, roomID, missingRoom)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	_, err = s.Unreact(ctx, roomID, missingRoom)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	assert.ErrorIs(t, s.MarkAnswered(ctx, roomID, missingRoom), domain.ErrMessageNotFound)
	assert.ErrorIs(t, s.MarkAnswered(ctx, missingRoom, missingRoom), domain.ErrRoomNotFound)
}

func testConcurrentReactions(t *testing.T, s domain.Store) {
	ctx := context.Background()
	roomID, err := s.CreateRoom(ctx, "Go")
	require.NoError(t, err)
	msgID, err := s.CreateMessage(ctx, roomID, "popular?")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.React(ctx, roomID, msgID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msg, err := s.GetMessage(ctx, roomID, msgID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), msg.ReactionCount, "no reaction is lost under concurrency")
}
