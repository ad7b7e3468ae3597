package repository

import (
	"context"
	"testing"
	"time"

	"avtomaster/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFailoverTest(t *testing.T) (*FailoverStateRepository, *RedisStateRepository, *MemoryStateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	primary := NewRedisStateRepository(client, time.Hour)
	fallback := NewMemoryStateRepository(time.Hour)
	logger := zerolog.Nop()
	return NewFailoverStateRepository(primary, fallback, &logger), primary, fallback, mr
}

func TestFailoverPrefersPrimary(t *testing.T) {
	repo, primary, fallback, _ := newFailoverTest(t)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepSelectDate}))

	got, err := primary.GetState(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got, "здоровый Redis принимает записи")

	got, err = fallback.GetState(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got, "запасное хранилище не трогается")
}

func TestFailoverDegradesToMemory(t *testing.T) {
	repo, _, fallback, mr := newFailoverTest(t)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepSelectTime}))
	assert.True(t, repo.down.Load(), "после ошибки основное хранилище помечено недоступным")

	got, err := repo.GetState(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StepSelectTime, got.Step)

	got, err = fallback.GetState(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got, "диалог пережил отказ Redis в памяти")
}

func TestFailoverRecoversAfterProbe(t *testing.T) {
	repo, primary, _, mr := newFailoverTest(t)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepSelectDate}))
	require.True(t, repo.down.Load())

	// Redis ожил, но до пробы основное хранилище не трогается
	mr.SetError("")
	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepSelectTime}))
	assert.True(t, repo.down.Load())

	// Интервал пробы прошёл — следующий вызов возвращается на Redis
	repo.lastProbe.Store(time.Now().Add(-2 * recoveryProbeInterval).UnixNano())
	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepConfirmDraft}))
	assert.False(t, repo.down.Load())

	got, err := primary.GetState(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StepConfirmDraft, got.Step)
}

func TestFailoverRateLimit(t *testing.T) {
	repo, _, _, mr := newFailoverTest(t)
	ctx := context.Background()

	mr.SetError("connection refused")

	// Лимит продолжает работать на памяти
	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 42, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := repo.CheckRateLimit(ctx, 42, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}
