package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityOrigin distinguishes who authored an activity entry.
type ActivityOrigin string

const (
	// OriginUser marks entries echoing a user action.
	OriginUser ActivityOrigin = "user"
	// OriginSystem marks entries produced by the workflow itself, including
	// failure notices.
	OriginSystem ActivityOrigin = "system"
)

// ActivityMessage is one immutable entry in the session activity log. Entries
// are append-only; the log is cleared only by an explicit workflow reset.
type ActivityMessage struct {
	ID        string         `json:"id"`
	Origin    ActivityOrigin `json:"origin"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewActivityMessage stamps a new log entry.
func NewActivityMessage(origin ActivityOrigin, text string) ActivityMessage {
	return ActivityMessage{
		ID:        uuid.NewString(),
		Origin:    origin,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}
