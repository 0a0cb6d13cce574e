package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_UpsertThread(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	existed, err := s.UpsertThread(ctx, Thread{ThreadID: "t1", UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, existed, "first upsert should report a new thread")

	existed, err = s.UpsertThread(ctx, Thread{ThreadID: "t1", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, existed, "second upsert should report an existing thread")
}

func TestInMemoryStore_TitleOnce(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, err := s.UpsertThread(ctx, Thread{ThreadID: "t1", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, s.SetTitle(ctx, "t1", "Capital of France"))

	threads, err := s.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Capital of France", threads[0].Title)

	assert.Error(t, s.SetTitle(ctx, "missing", "x"))
}

func TestInMemoryStore_AppendAndFeedback(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendTurn(ctx, "t1", "u1", ChatEntry{ID: "m1", Type: "user", Text: "hi"}))
	require.NoError(t, s.AppendTurn(ctx, "t1", "u1", ChatEntry{ID: "m2", Type: "assistant", Text: "hello"}))

	entries, err := s.GetTranscript(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m1", entries[0].ID)
	assert.Equal(t, "m2", entries[1].ID)

	require.NoError(t, s.AttachFeedback(ctx, "t1", "m2", "helpful"))
	// idempotent for the same value
	require.NoError(t, s.AttachFeedback(ctx, "t1", "m2", "helpful"))

	entries, _ = s.GetTranscript(ctx, "t1")
	assert.Equal(t, "helpful", entries[1].Feedback)
	assert.Empty(t, entries[0].Feedback)

	assert.Error(t, s.AttachFeedback(ctx, "t1", "missing", "x"))
	assert.Error(t, s.AttachFeedback(ctx, "missing", "m1", "x"))
}

func TestInMemoryStore_ListThreadsRecency(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, _ = s.UpsertThread(ctx, Thread{ThreadID: "old", UserID: "u1"})
	time.Sleep(2 * time.Millisecond)
	_, _ = s.UpsertThread(ctx, Thread{ThreadID: "new", UserID: "u1"})
	_, _ = s.UpsertThread(ctx, Thread{ThreadID: "other", UserID: "u2"})

	threads, err := s.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "new", threads[0].ThreadID)
	assert.Equal(t, "old", threads[1].ThreadID)
}

func TestInMemoryStore_DeleteThread(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, _ = s.UpsertThread(ctx, Thread{ThreadID: "t1", UserID: "u1"})
	_ = s.AppendTurn(ctx, "t1", "u1", ChatEntry{ID: "m1", Type: "user", Text: "hi"})

	require.NoError(t, s.DeleteThread(ctx, "t1"))

	threads, _ := s.ListThreads(ctx, "u1")
	assert.Empty(t, threads)
	entries, _ := s.GetTranscript(ctx, "t1")
	assert.Empty(t, entries)
}
