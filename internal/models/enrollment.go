package models

import "time"

// EnrollmentStatus represents the lifecycle of a class enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. DROPPED is terminal.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
)

// PaymentStatus reflects whether the series price has been covered.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// Enrollment captures a pet's admission into a training class.
// AmountDue and TotalSessions are snapshots taken at enrollment time;
// later changes to the class never alter them.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	TenantID      string           `db:"tenant_id" json:"tenant_id"`
	ClassID       string           `db:"class_id" json:"class_id"`
	PetID         string           `db:"pet_id" json:"pet_id"`
	CustomerID    string           `db:"customer_id" json:"customer_id"`
	AmountPaid    float64          `db:"amount_paid" json:"amount_paid"`
	AmountDue     float64          `db:"amount_due" json:"amount_due"`
	PaymentStatus PaymentStatus    `db:"payment_status" json:"payment_status"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	TotalSessions int              `db:"total_sessions" json:"total_sessions"`
	Notes         string           `db:"notes" json:"notes,omitempty"`
	EnrolledAt    time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt     *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ClassID    string
	PetID      string
	CustomerID string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
