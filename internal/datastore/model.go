// Package datastore keeps a SQLite history of written recordings.
package datastore

import (
	"strings"
	"time"

	"github.com/tphakala/eventrec/internal/conf"
)

// Event is one written recording.
type Event struct {
	ID                uint      `gorm:"primaryKey"`
	EventID           string    `gorm:"uniqueIndex;size:36"`
	File              string    `gorm:"not null"`
	EventTime         time.Time `gorm:"index"`
	FlushTime         time.Time
	DurationSeconds   float64
	SampleRate        int
	Channels          int
	TriggeredChannels string // comma separated, e.g. "8,10"
	CreatedAt         time.Time
}

// Triggered returns the triggered channels as a slice. Malformed values
// yield nil.
func (e *Event) Triggered() []int {
	if strings.TrimSpace(e.TriggeredChannels) == "" {
		return nil
	}
	channels, err := conf.ParseMonitorChannels(e.TriggeredChannels)
	if err != nil {
		return nil
	}
	return channels
}
