package repository

import (
	"context"
	"testing"
	"time"

	"avtomaster/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRoundTrip(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	ctx := context.Background()

	state := &models.UserState{UserID: 42, Step: models.StepSelectTime, Draft: &models.BookingDraft{Time: "12:00"}}
	require.NoError(t, repo.SetState(ctx, state))

	got, err := repo.GetState(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StepSelectTime, got.Step)

	require.NoError(t, repo.ClearState(ctx, 42))
	got, err = repo.GetState(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStateExpires(t *testing.T) {
	repo := NewMemoryStateRepository(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepMainMenu}))

	time.Sleep(20 * time.Millisecond)

	got, err := repo.GetState(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCheckRateLimit(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 42, 2, 20*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, 42, 2, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, err = repo.CheckRateLimit(ctx, 42, 2, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed, "новое окно обнуляет счётчик")
}
