package database

import "errors"

var (
	// ErrNotFound означает, что записи с таким id нет.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessed срабатывает, когда условный UPDATE не изменил
	// ни одной строки: статус записи уже другой.
	ErrAlreadyProcessed = errors.New("booking already processed")

	// ErrSlotTaken — выбранный слот занят другой записью.
	ErrSlotTaken = errors.New("slot is already taken")

	// ErrVehicleHasBookings — у автомобиля есть активные записи, удалять нельзя.
	ErrVehicleHasBookings = errors.New("vehicle has active bookings")

	// ErrNotTerminal — удалять запись можно только из терминального статуса.
	ErrNotTerminal = errors.New("booking is not in a terminal status")

	// ErrPastDate — дата записи в прошлом.
	ErrPastDate = errors.New("date is in the past")

	// ErrDateTooFar — дата записи слишком далеко в будущем.
	ErrDateTooFar = errors.New("date is too far ahead")
)
