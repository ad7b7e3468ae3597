package models

import (
	"strings"
	"time"
	"unicode"
)

type Vehicle struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Brand     string    `json:"brand"`
	Year      int       `json:"year"`
	VIN       string    `json:"vin"`
	Plate     string    `json:"plate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeVIN uppercases and trims a VIN candidate.
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// ValidVIN reports whether vin is 17 alphanumeric characters.
func ValidVIN(vin string) bool {
	if len(vin) != 17 {
		return false
	}
	for _, r := range vin {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
