package models

import (
	"fmt"
	"time"
)

type Booking struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	VehicleID    int64     `json:"vehicle_id"`
	ServiceName  string    `json:"service_name"`
	Description  string    `json:"description,omitempty"`
	Date         time.Time `json:"date"`          // calendar day
	Time         string    `json:"time"`          // slot start, "15:04", shop-local
	ProposedTime *string   `json:"proposed_time,omitempty"`
	Status       string    `json:"status"` // requested, confirmed, rejected, cancelled, completed
	RejectReason string    `json:"reject_reason,omitempty"`
	Price        *int64    `json:"price,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PendingReschedule reports whether the booking carries an outstanding
// reschedule offer from the master. Only a requested booking can.
func (b *Booking) PendingReschedule() bool {
	return b.Status == StatusRequested && b.ProposedTime != nil && *b.ProposedTime != ""
}

// IsTerminal reports whether no further lifecycle transition applies.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsActive reports whether the booking still blocks its vehicle from deletion.
func (b *Booking) IsActive() bool {
	return b.Status == StatusRequested || b.Status == StatusConfirmed
}

// StartAt combines Date and Time into a concrete moment in loc.
func (b *Booking) StartAt(loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", b.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse booking time %q: %w", b.Time, err)
	}
	return time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
