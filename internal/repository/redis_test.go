package repository

import (
	"context"
	"testing"
	"time"

	"avtomaster/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTest(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStateRepository(client, time.Hour), mr
}

func TestRedisStateRoundTrip(t *testing.T) {
	repo, _ := newRedisTest(t)
	ctx := context.Background()

	state := &models.UserState{
		UserID: 42,
		Step:   models.StepSelectService,
		Draft:  &models.BookingDraft{VehicleID: 7, ServiceName: "Диагностика", Date: "2026-09-07"},
	}
	require.NoError(t, repo.SetState(ctx, state))

	got, err := repo.GetState(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StepSelectService, got.Step)
	require.NotNil(t, got.Draft)
	assert.Equal(t, int64(7), got.Draft.VehicleID)
	assert.Equal(t, "Диагностика", got.Draft.ServiceName)
}

func TestRedisStateMissing(t *testing.T) {
	repo, _ := newRedisTest(t)

	got, err := repo.GetState(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got, "отсутствие диалога не ошибка")
}

func TestRedisClearState(t *testing.T) {
	repo, _ := newRedisTest(t)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepSelectDate}))
	require.NoError(t, repo.ClearState(ctx, 42))

	got, err := repo.GetState(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Повторная очистка безвредна
	require.NoError(t, repo.ClearState(ctx, 42))
}

func TestRedisStateExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewRedisStateRepository(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 42, Step: models.StepSelectDate}))

	mr.FastForward(2 * time.Minute)

	got, err := repo.GetState(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got, "брошенный диалог истекает по TTL")
}

func TestRedisCheckRateLimit(t *testing.T) {
	repo, mr := newRedisTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 42, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "сообщение %d в пределах лимита", i+1)
	}

	allowed, err := repo.CheckRateLimit(ctx, 42, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "четвёртое сообщение за окно блокируется")

	// Другой пользователь считается отдельно
	allowed, err = repo.CheckRateLimit(ctx, 43, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Окно истекло, счётчик начинается заново
	mr.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, 42, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
