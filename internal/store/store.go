package store

import "time"

// Token slot names. The auth layer treats slot values as opaque strings;
// the expiry slot holds a decimal epoch-milliseconds timestamp.
const (
	SlotAccess  = "access"
	SlotRefresh = "refresh"
	SlotExpiry  = "expiry"
)

// TokenStore is the persistence contract for the three session slots.
// Load returns the empty string for an absent slot.
type TokenStore interface {
	Load(slot string) (string, error)
	Save(slot, value string) error
	ClearAll() error
}

// CaptureRecord is one completed upload in the local journal.
type CaptureRecord struct {
	ID         string
	SourceApp  *string
	SourceURL  *string
	UploadedAt time.Time
}

// Journal records completed captures for the status surface.
type Journal interface {
	RecordCapture(rec CaptureRecord) error
	RecentCaptures(limit int) ([]CaptureRecord, error)
}
