package bot

import (
	"testing"
	"time"

	"avtomaster/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallbackID(t *testing.T) {
	tests := []struct {
		data   string
		prefix string
		wantID int64
		wantOK bool
	}{
		{"master_confirm:42", cbMasterConfirm, 42, true},
		{"bcancel:7", cbBookingCancel, 7, true},
		{"veh:abc", cbVehicle, 0, false},
		{"veh:", cbVehicle, 0, false},
		{"master_confirm:-1", cbMasterConfirm, -1, true},
	}
	for _, tt := range tests {
		id, ok := parseCallbackID(tt.data, tt.prefix)
		assert.Equal(t, tt.wantOK, ok, tt.data)
		assert.Equal(t, tt.wantID, id, tt.data)
	}
}

func TestValidTimeOfDay(t *testing.T) {
	assert.True(t, validTimeOfDay("15:30"))
	assert.True(t, validTimeOfDay(" 09:00 "))
	assert.False(t, validTimeOfDay("25:00"))
	assert.False(t, validTimeOfDay("15.30"))
	assert.False(t, validTimeOfDay("полтретьего"))
	assert.False(t, validTimeOfDay(""))
}

func TestFormatBooking(t *testing.T) {
	price := int64(2000)
	proposed := "15:00"
	b := &models.Booking{
		ID:           7,
		ServiceName:  "Диагностика",
		Description:  "стук справа",
		Date:         mustDate(t, "2026-09-07"),
		Time:         "12:00",
		Status:       models.StatusRequested,
		ProposedTime: &proposed,
		Price:        &price,
	}

	text := formatBooking(b)
	assert.Contains(t, text, "Запись #7")
	assert.Contains(t, text, "ожидает подтверждения")
	assert.Contains(t, text, "стук справа")
	assert.Contains(t, text, "07.09.2026 в 12:00")
	assert.Contains(t, text, "Предложено другое время: 15:00")
	assert.Contains(t, text, "2000 ₽")

	t.Run("rejected booking shows reason", func(t *testing.T) {
		rejected := &models.Booking{
			ID: 8, ServiceName: "Шиномонтаж", Date: mustDate(t, "2026-09-07"),
			Time: "10:00", Status: models.StatusRejected, RejectReason: "мастер в отпуске",
		}
		text := formatBooking(rejected)
		assert.Contains(t, text, "отклонена")
		assert.Contains(t, text, "мастер в отпуске")
		assert.NotContains(t, text, "Предложено")
	})
}

func TestVehiclesKeyboard(t *testing.T) {
	vehicles := []*models.Vehicle{
		{ID: 1, Brand: "Lada Vesta", Year: 2020, Plate: "А123БВ77"},
		{ID: 2, Brand: "Kia Rio", Year: 2018},
	}
	kb := vehiclesKeyboard(vehicles)

	// по ряду на машину, ряд добавления и возврат в меню
	require.Len(t, kb.InlineKeyboard, 4)
	assert.Equal(t, "veh:1", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Contains(t, kb.InlineKeyboard[0][0].Text, "Lada Vesta")
	assert.Equal(t, cbVehicleNew, *kb.InlineKeyboard[2][0].CallbackData)
	assert.Equal(t, cbMainMenu, *kb.InlineKeyboard[3][0].CallbackData)
}

func TestServicesKeyboard(t *testing.T) {
	services := []models.Service{
		{Name: "Замена масла", Price: 1500},
		{Name: "Диагностика"},
	}
	kb := servicesKeyboard(services)

	require.Len(t, kb.InlineKeyboard, 4)
	assert.Equal(t, "Замена масла — 1500 ₽", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "svc:0", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "Диагностика", kb.InlineKeyboard[1][0].Text, "без цены имя остаётся как есть")
	assert.Equal(t, cbServiceOther, *kb.InlineKeyboard[2][0].CallbackData)
}

func TestStatusTextCoversAllStatuses(t *testing.T) {
	for _, status := range []string{
		models.StatusRequested, models.StatusConfirmed, models.StatusRejected,
		models.StatusCancelled, models.StatusCompleted,
	} {
		assert.NotEqual(t, status, statusText(status), "статус %s должен переводиться", status)
		assert.NotEqual(t, "•", statusEmoji(status))
	}
	assert.Equal(t, "unknown", statusText("unknown"))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
