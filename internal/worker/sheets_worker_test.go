package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"avtomaster/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*models.SyncTask
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{tasks: make(map[int64]*models.SyncTask)}
}

func (s *fakeSyncStore) CreateSyncTask(_ context.Context, task *models.SyncTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task.ID = s.nextID
	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *fakeSyncStore) GetPendingSyncTasks(_ context.Context, limit int) ([]models.SyncTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncTask
	now := time.Now()
	for _, t := range s.tasks {
		if len(out) >= limit {
			break
		}
		if t.Status == "pending" || (t.Status == "retry" && t.NextRetryAt != nil && !t.NextRetryAt.After(now)) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeSyncStore) UpdateSyncTaskStatus(_ context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	task.Status = status
	task.NextRetryAt = nextRetryAt
	if errMsg != "" {
		task.LastError = &errMsg
		task.RetryCount++
	}
	return nil
}

func (s *fakeSyncStore) status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.Status
	}
	return ""
}

type fakeSheets struct {
	mu       sync.Mutex
	failures int
	upserts  []int64
	deletes  []int64
	statuses map[int64]string
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{statuses: make(map[int64]string)}
}

func (f *fakeSheets) UpsertBooking(_ context.Context, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("sheets unavailable")
	}
	f.upserts = append(f.upserts, booking.ID)
	return nil
}

func (f *fakeSheets) DeleteBookingRow(_ context.Context, bookingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, bookingID)
	return nil
}

func (f *fakeSheets) UpdateBookingStatus(_ context.Context, bookingID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("sheets unavailable")
	}
	f.statuses[bookingID] = status
	return nil
}

func newWorkerTest(t *testing.T, redisClient *redis.Client) (*SheetsWorker, *fakeSyncStore, *fakeSheets) {
	t.Helper()
	store := newFakeSyncStore()
	sheets := newFakeSheets()
	logger := zerolog.Nop()
	w := NewSheetsWorker(store, sheets, redisClient, RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, &logger)
	return w, store, sheets
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 10*time.Second, policy.NextDelay(5), "задержка упирается в потолок")
	assert.Equal(t, time.Second, policy.NextDelay(0), "нулевая попытка приводится к первой")

	zero := RetryPolicy{}
	assert.Equal(t, time.Second, zero.NextDelay(1), "пустая политика не даёт нулевых задержек")
}

func TestEnqueueTaskValidation(t *testing.T) {
	w, _, _ := newWorkerTest(t, nil)
	ctx := context.Background()

	assert.Error(t, w.EnqueueTask(ctx, "", 1, nil, ""))
	assert.Error(t, w.EnqueueTask(ctx, TaskDelete, 0, nil, ""))

	// ID подставляется из записи
	booking := &models.Booking{ID: 7, ServiceName: "Диагностика"}
	assert.NoError(t, w.EnqueueTask(ctx, TaskUpsert, 0, booking, ""))
}

func TestEnqueueAndProcessViaMemoryQueue(t *testing.T) {
	w, store, sheets := newWorkerTest(t, nil)
	ctx := context.Background()

	booking := &models.Booking{ID: 7, ServiceName: "Диагностика", Status: models.StatusRequested}
	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, 0, booking, ""))

	task, ok := w.tryLocalQueue()
	require.True(t, ok, "без Redis задача попадает в локальную очередь")
	w.processTask(ctx, &task)

	assert.Equal(t, []int64{7}, sheets.upserts)
	assert.Equal(t, "completed", store.status(task.ID))
}

func TestEnqueueAndProcessViaRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w, store, sheets := newWorkerTest(t, client)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpdateStatus, 7, nil, models.StatusConfirmed))

	_, ok := w.tryLocalQueue()
	assert.False(t, ok, "при живом Redis локальная очередь не используется")

	task, ok := w.tryRedis(ctx)
	require.True(t, ok)
	w.processTask(ctx, &task)

	assert.Equal(t, models.StatusConfirmed, sheets.statuses[7])
	assert.Equal(t, "completed", store.status(task.ID))
}

func TestProcessTaskRetriesThenFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w, store, sheets := newWorkerTest(t, client)
	ctx := context.Background()
	sheets.failures = 10 // падает всегда

	booking := &models.Booking{ID: 7, ServiceName: "Диагностика"}
	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, 0, booking, ""))

	task, ok := w.tryRedis(ctx)
	require.True(t, ok)

	// Первая и вторая попытки уходят в retry
	w.processTask(ctx, &task)
	assert.Equal(t, "retry", store.status(task.ID))

	task.RetryCount = 1
	w.processTask(ctx, &task)
	assert.Equal(t, "retry", store.status(task.ID))

	// Третья попытка исчерпывает лимит и кладёт задачу в deadletter
	task.RetryCount = 2
	w.processTask(ctx, &task)
	assert.Equal(t, "failed", store.status(task.ID))

	dead, err := client.LLen(ctx, w.deadLetterKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestProcessTaskTransientFailureRecovers(t *testing.T) {
	w, store, sheets := newWorkerTest(t, nil)
	ctx := context.Background()
	sheets.failures = 1

	booking := &models.Booking{ID: 7, ServiceName: "Диагностика"}
	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, 0, booking, ""))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)
	assert.Equal(t, "retry", store.status(task.ID))

	task.RetryCount = 1
	w.processTask(ctx, &task)
	assert.Equal(t, "completed", store.status(task.ID))
	assert.Equal(t, []int64{7}, sheets.upserts)
}

func TestStartDrainsSqliteBacklog(t *testing.T) {
	w, _, sheets := newWorkerTest(t, nil)
	w.pollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	booking := &models.Booking{ID: 7, ServiceName: "Диагностика"}
	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, 0, booking, ""))

	// Опустошаем локальную очередь: задача остаётся только в sqlite
	_, ok := w.tryLocalQueue()
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		sheets.mu.Lock()
		defer sheets.mu.Unlock()
		return len(sheets.upserts) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestApplyTaskUnknownType(t *testing.T) {
	w, store, _ := newWorkerTest(t, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, "rename", 7, nil, ""))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)
	assert.Equal(t, "retry", store.status(task.ID), "неизвестный тип уходит на повтор и затем в failed")
}
