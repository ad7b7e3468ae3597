package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShop(t *testing.T, open, close string, step int) *Shop {
	t.Helper()
	shop, err := NewShop(open, close, step, []time.Weekday{time.Sunday}, time.UTC)
	require.NoError(t, err)
	return shop
}

// понедельник
var testDate = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func TestAvailableSlotsEmptyDay(t *testing.T) {
	shop := newTestShop(t, "10:00", "18:00", 60)

	slots := shop.AvailableSlots(testDate, 60, nil)

	assert.Equal(t, []string{
		"10:00", "11:00", "12:00", "13:00",
		"14:00", "15:00", "16:00", "17:00",
	}, slots)
}

func TestAvailableSlotsAroundBusyInterval(t *testing.T) {
	shop := newTestShop(t, "10:00", "18:00", 15)

	// занято 12:00–13:30
	busy := []Interval{{Start: 12 * 60, End: 13*60 + 30}}
	slots := shop.AvailableSlots(testDate, 90, busy)

	assert.Contains(t, slots, "10:30")
	assert.Contains(t, slots, "13:30")
	// слот 11:45 закончился бы в 13:15 внутри занятого интервала
	assert.NotContains(t, slots, "11:45")
	assert.NotContains(t, slots, "12:00")
	// 10:30+90 = 12:00 ровно к началу занятого, полуинтервалы не пересекаются
	assert.Contains(t, slots, "10:00")
}

func TestAvailableSlotsDurationPastClose(t *testing.T) {
	shop := newTestShop(t, "10:00", "18:00", 30)

	slots := shop.AvailableSlots(testDate, 90, nil)

	// последний допустимый старт 16:30
	assert.Contains(t, slots, "16:30")
	assert.NotContains(t, slots, "17:00")
	assert.NotContains(t, slots, "17:30")
}

func TestAvailableSlotsDayOff(t *testing.T) {
	shop := newTestShop(t, "10:00", "18:00", 30)

	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, shop.AvailableSlots(sunday, 60, nil))
}

func TestAvailableSlotsFullyBooked(t *testing.T) {
	shop := newTestShop(t, "10:00", "12:00", 30)

	busy := []Interval{{Start: 10 * 60, End: 12 * 60}}
	assert.Empty(t, shop.AvailableSlots(testDate, 30, busy))
}

func TestAvailableSlotsZeroDuration(t *testing.T) {
	shop := newTestShop(t, "10:00", "18:00", 30)
	assert.Nil(t, shop.AvailableSlots(testDate, 0, nil))
}

func TestSlotFree(t *testing.T) {
	shop := newTestShop(t, "10:00", "18:00", 30)
	busy := []Interval{{Start: 12 * 60, End: 13 * 60}}

	t.Run("free slot", func(t *testing.T) {
		assert.True(t, shop.SlotFree(testDate, "10:00", 60, busy))
	})
	t.Run("overlapping slot", func(t *testing.T) {
		assert.False(t, shop.SlotFree(testDate, "11:30", 60, busy))
	})
	t.Run("adjacent slot is free", func(t *testing.T) {
		assert.True(t, shop.SlotFree(testDate, "13:00", 60, busy))
	})
	t.Run("before opening", func(t *testing.T) {
		assert.False(t, shop.SlotFree(testDate, "09:30", 60, busy))
	})
	t.Run("runs past close", func(t *testing.T) {
		assert.False(t, shop.SlotFree(testDate, "17:30", 60, busy))
	})
	t.Run("day off", func(t *testing.T) {
		sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
		assert.False(t, shop.SlotFree(sunday, "10:00", 60, nil))
	})
	t.Run("bad time string", func(t *testing.T) {
		assert.False(t, shop.SlotFree(testDate, "25:99", 60, nil))
	})
}

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{Start: 600, End: 660}

	assert.True(t, a.Overlaps(Interval{Start: 630, End: 690}))
	assert.True(t, a.Overlaps(Interval{Start: 590, End: 610}))
	assert.False(t, a.Overlaps(Interval{Start: 660, End: 720}), "half-open intervals touch without overlap")
	assert.False(t, a.Overlaps(Interval{Start: 540, End: 600}))
}

func TestNewShopValidation(t *testing.T) {
	_, err := NewShop("19:00", "10:00", 30, nil, time.UTC)
	assert.Error(t, err)

	_, err = NewShop("10:00", "19:00", 0, nil, time.UTC)
	assert.Error(t, err)

	_, err = NewShop("bad", "19:00", 30, nil, time.UTC)
	assert.Error(t, err)
}

func TestMinutesOfDayRoundTrip(t *testing.T) {
	min, err := MinutesOfDay("15:04")
	require.NoError(t, err)
	assert.Equal(t, 15*60+4, min)
	assert.Equal(t, "15:04", FormatMinutes(min))

	_, err = MinutesOfDay("nonsense")
	assert.Error(t, err)
}
