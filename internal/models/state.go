package models

import "time"

// BookingDraft carries the multi-step booking dialog through its steps.
// It replaces an untyped key-value bag: every field the flow collects
// is named here and serialized as one JSON blob in the state store.
type BookingDraft struct {
	VehicleID    int64  `json:"vehicle_id,omitempty"`
	ServiceName  string `json:"service_name,omitempty"`
	Description  string `json:"description,omitempty"`
	Date         string `json:"date,omitempty"` // "2006-01-02"
	Time         string `json:"time,omitempty"` // "15:04"
	SlotPage     int    `json:"slot_page,omitempty"`
	NewBrand     string `json:"new_brand,omitempty"`
	NewYear      int    `json:"new_year,omitempty"`
	NewVIN       string `json:"new_vin,omitempty"`
	TargetID     int64  `json:"target_id,omitempty"` // booking id for reject/propose dialogs
}

// DraftDate parses the draft's date field; zero time when absent or malformed.
func (d *BookingDraft) DraftDate() time.Time {
	if d == nil || d.Date == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", d.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UserState is the persisted dialog position of one chat participant.
type UserState struct {
	UserID int64         `json:"user_id"`
	Step   string        `json:"step"`
	Draft  *BookingDraft `json:"draft,omitempty"`
}

// EnsureDraft returns the state's draft, allocating it when empty.
func (s *UserState) EnsureDraft() *BookingDraft {
	if s.Draft == nil {
		s.Draft = &BookingDraft{}
	}
	return s.Draft
}
