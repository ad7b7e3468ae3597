package reminder

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"avtomaster/internal/database"
	"avtomaster/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(_ int64, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return true
}

func (n *recordingNotifier) NotifyWithKeyboard(_ int64, text string, _ tgbotapi.InlineKeyboardMarkup) bool {
	return n.Notify(0, text)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

func newSchedulerTest(t *testing.T) (*Scheduler, *database.DB, *recordingNotifier) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := &recordingNotifier{}
	scheduler := NewScheduler(db, notifier, &logger)
	t.Cleanup(scheduler.Stop)
	return scheduler, db, notifier
}

func seedBookingWithStatus(t *testing.T, db *database.DB, status string) *models.Booking {
	t.Helper()
	ctx := context.Background()

	user := &models.User{TelegramID: 100500, FirstName: "Иван"}
	require.NoError(t, db.CreateOrUpdateUser(ctx, user))
	saved, err := db.GetUserByTelegramID(ctx, user.TelegramID)
	require.NoError(t, err)

	vehicle := &models.Vehicle{UserID: saved.ID, Brand: "Lada Vesta", Year: 2020}
	require.NoError(t, db.CreateVehicle(ctx, vehicle))

	booking := &models.Booking{
		UserID:      saved.ID,
		VehicleID:   vehicle.ID,
		ServiceName: "Диагностика",
		Date:        time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		Time:        "12:00",
	}
	require.NoError(t, db.CreateBookingWithSlotCheck(ctx, booking, 60, func(string) int { return 60 }))

	if status != models.StatusRequested {
		require.NoError(t, db.UpdateBookingStatusIf(ctx, booking.ID, models.StatusRequested, status, ""))
	}
	return booking
}

func TestScheduleFires(t *testing.T) {
	scheduler, db, notifier := newSchedulerTest(t)
	booking := seedBookingWithStatus(t, db, models.StatusConfirmed)

	scheduler.Schedule(booking.ID, time.Now().Add(20*time.Millisecond), 1, "пора", models.StatusConfirmed)
	assert.Equal(t, 1, scheduler.PendingCount())

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, scheduler.PendingCount())
}

func TestSchedulePastMomentDropped(t *testing.T) {
	scheduler, db, notifier := newSchedulerTest(t)
	booking := seedBookingWithStatus(t, db, models.StatusConfirmed)

	scheduler.Schedule(booking.ID, time.Now().Add(-time.Minute), 1, "поздно", models.StatusConfirmed)
	assert.Equal(t, 0, scheduler.PendingCount())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, notifier.count(), "просроченное напоминание не отправляется")
}

func TestScheduleReplacesPrevious(t *testing.T) {
	scheduler, db, notifier := newSchedulerTest(t)
	booking := seedBookingWithStatus(t, db, models.StatusConfirmed)

	scheduler.Schedule(booking.ID, time.Now().Add(time.Hour), 1, "старое", models.StatusConfirmed)
	scheduler.Schedule(booking.ID, time.Now().Add(20*time.Millisecond), 1, "новое", models.StatusConfirmed)
	assert.Equal(t, 1, scheduler.PendingCount())

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, "новое", notifier.texts[0])
}

func TestStatusChangeSuppressesReminder(t *testing.T) {
	scheduler, db, notifier := newSchedulerTest(t)
	booking := seedBookingWithStatus(t, db, models.StatusConfirmed)

	scheduler.Schedule(booking.ID, time.Now().Add(20*time.Millisecond), 1, "пора", models.StatusConfirmed)

	// Запись отменили до срабатывания таймера
	require.NoError(t, db.CancelActiveBooking(context.Background(), booking.ID, "передумал"))

	require.Eventually(t, func() bool { return scheduler.PendingCount() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, notifier.count())
}

func TestCancelIsIdempotent(t *testing.T) {
	scheduler, db, notifier := newSchedulerTest(t)
	booking := seedBookingWithStatus(t, db, models.StatusConfirmed)

	scheduler.Schedule(booking.ID, time.Now().Add(time.Hour), 1, "пора", models.StatusConfirmed)
	scheduler.Cancel(booking.ID)
	scheduler.Cancel(booking.ID)
	scheduler.Cancel(99999)

	assert.Equal(t, 0, scheduler.PendingCount())
	assert.Equal(t, 0, notifier.count())
}

func TestStopDisarmsEverything(t *testing.T) {
	scheduler, db, notifier := newSchedulerTest(t)
	booking := seedBookingWithStatus(t, db, models.StatusConfirmed)

	scheduler.Schedule(booking.ID, time.Now().Add(20*time.Millisecond), 1, "пора", models.StatusConfirmed)
	scheduler.Stop()

	assert.Equal(t, 0, scheduler.PendingCount())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, notifier.count())

	// После остановки новые напоминания не принимаются
	scheduler.Schedule(booking.ID, time.Now().Add(time.Hour), 1, "пора", models.StatusConfirmed)
	assert.Equal(t, 0, scheduler.PendingCount())
}
