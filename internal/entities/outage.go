package entities

import (
	"time"
)

// OutageRecord represents one stored blackout window for an address and date
type OutageRecord struct {
	OutageNumber int64  // Deterministic identity, unique
	AreaID       int64
	CityID       int64
	AddressID    int64
	OutageDate   string // Gregorian YYYY-MM-DD
	StartTime    string // HH:MM:SS, empty when unknown
	EndTime      string // HH:MM:SS, empty when unknown
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasStart reports whether the start of the window is known
func (o OutageRecord) HasStart() bool {
	return o.StartTime != ""
}

// HasEnd reports whether the end of the window is known
func (o OutageRecord) HasEnd() bool {
	return o.EndTime != ""
}
