package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateStoreIssueAndConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	state, err := store.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	assert.NoError(t, store.Consume(ctx, state))
}

func TestMemoryStateStoreConsumeIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	state, err := store.Issue(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Consume(ctx, state))
	assert.Error(t, store.Consume(ctx, state))
}

func TestMemoryStateStoreRejectsUnknownState(t *testing.T) {
	store := NewMemoryStateStore(time.Minute)

	assert.Error(t, store.Consume(context.Background(), "never-issued"))
}

func TestMemoryStateStoreRejectsExpiredState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Nanosecond)

	state, err := store.Issue(ctx)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.Error(t, store.Consume(ctx, state))
}

func TestMemoryStateStoreIssuesUniqueStates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	first, err := store.Issue(ctx)
	require.NoError(t, err)
	second, err := store.Issue(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
