package models

import "time"

// WaitlistStatus represents the state of a waitlist entry.
type WaitlistStatus string

// Possible waitlist statuses.
const (
	WaitlistStatusWaiting WaitlistStatus = "WAITING"
)

// WaitlistEntry is one slot in a class's FIFO waitlist. Positions within
// a class are 1-based, unique and gapless at all times.
type WaitlistEntry struct {
	ID         string         `db:"id" json:"id"`
	TenantID   string         `db:"tenant_id" json:"tenant_id"`
	ClassID    string         `db:"class_id" json:"class_id"`
	PetID      string         `db:"pet_id" json:"pet_id"`
	CustomerID string         `db:"customer_id" json:"customer_id"`
	Position   int            `db:"position" json:"position"`
	Status     WaitlistStatus `db:"status" json:"status"`
	Notified   bool           `db:"notified" json:"notified"`
	NotifiedAt *time.Time     `db:"notified_at" json:"notified_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// WaitlistNotification is the payload handed to the notifier when a
// seat frees up and the head of the queue is promoted.
type WaitlistNotification struct {
	EntryID    string `json:"entry_id"`
	CustomerID string `json:"customer_id"`
	PetID      string `json:"pet_id"`
	PetName    string `json:"pet_name,omitempty"`
	ClassID    string `json:"class_id"`
	ClassName  string `json:"class_name"`
	Position   int    `json:"position"`
}
