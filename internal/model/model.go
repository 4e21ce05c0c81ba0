// Package model defines the core domain types for the enrollment engine.
package model

import "time"

// Kind is the presentational family an offering belongs to.
type Kind string

const (
	KindOuting Kind = "outing"
	KindTandem Kind = "tandem"
	KindEvent  Kind = "event"
)

// Valid reports whether k is a known offering kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOuting, KindTandem, KindEvent:
		return true
	}
	return false
}

// Policy decides how an enrollment request is admitted.
type Policy string

const (
	// PolicyAutomatic admits up to capacity immediately, then waitlists.
	PolicyAutomatic Policy = "automatic"
	// PolicyManual routes every request through organizer approval.
	PolicyManual Policy = "manual"
)

// Valid reports whether p is a known enrollment policy.
func (p Policy) Valid() bool {
	return p == PolicyAutomatic || p == PolicyManual
}

// LifecycleState of an offering. Cancellation is irreversible.
type LifecycleState string

const (
	LifecycleOpen      LifecycleState = "open"
	LifecycleCancelled LifecycleState = "cancelled"
)

// Status of a user's enrollment on an offering.
type Status string

const (
	StatusNone            Status = "none"
	StatusPendingApproval Status = "pendingApproval"
	StatusRegistered      Status = "registered"
	StatusWaitlisted      Status = "waitlisted"
)

// Valid reports whether s is a known enrollment status.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusPendingApproval, StatusRegistered, StatusWaitlisted:
		return true
	}
	return false
}

// Offering is a capacity-bounded activity members can join.
type Offering struct {
	ID              string         `json:"id"`
	Kind            Kind           `json:"kind"`
	Title           string         `json:"title"`
	OrganizerID     string         `json:"organizer_id"`
	Capacity        int            `json:"capacity"`
	Policy          Policy         `json:"policy"`
	State           LifecycleState `json:"state"`
	RegisteredCount int            `json:"registered_count"`
	// NextSeq is the sequence number handed to the next enrollment request.
	NextSeq     int64      `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Remaining returns the number of free registered slots.
func (o *Offering) Remaining() int {
	return o.Capacity - o.RegisteredCount
}

// IsFull returns true when no registered slots remain.
func (o *Offering) IsFull() bool {
	return o.RegisteredCount >= o.Capacity
}

// IsCancelled returns true once the offering has been cancelled.
func (o *Offering) IsCancelled() bool {
	return o.State == LifecycleCancelled
}

// Cancel marks the offering cancelled. It reports false if it already was.
func (o *Offering) Cancel(now time.Time) bool {
	if o.IsCancelled() {
		return false
	}
	o.State = LifecycleCancelled
	o.CancelledAt = &now
	return true
}

// EnrollmentRecord is the state of one user on one offering.
// A record that returns to StatusNone is deleted.
type EnrollmentRecord struct {
	OfferingID  string    `json:"offering_id"`
	UserID      string    `json:"user_id"`
	Status      Status    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
	// Seq breaks ties between equal RequestedAt values.
	Seq       int64     `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Before reports whether r was requested before other in queue order.
func (r EnrollmentRecord) Before(other EnrollmentRecord) bool {
	if !r.RequestedAt.Equal(other.RequestedAt) {
		return r.RequestedAt.Before(other.RequestedAt)
	}
	return r.Seq < other.Seq
}

// OfferingSummary is an offering plus its current queue lengths.
type OfferingSummary struct {
	Offering
	Remaining      int `json:"remaining"`
	PendingCount   int `json:"pending_count"`
	WaitlistLength int `json:"waitlist_length"`
}

// CreateOfferingRequest is the payload for creating a new offering.
type CreateOfferingRequest struct {
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Capacity int    `json:"capacity"`
	Policy   Policy `json:"policy"`
}

// StatusResponse reports a user's status on an offering.
type StatusResponse struct {
	OfferingID string `json:"offering_id"`
	UserID     string `json:"user_id"`
	Status     Status `json:"status"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
