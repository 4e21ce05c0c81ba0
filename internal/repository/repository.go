// Package repository is the persistence boundary of the enrollment engine.
// Every mutation of enrollment state goes through a unit of work scoped to a
// single offering (Store.InTx); the in-memory, SQLite and Postgres stores all
// implement the same contract.
package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// ErrNotFound is returned when a requested offering or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when inserting a row whose key already exists.
var ErrDuplicate = errors.New("duplicate key")

// Store handles persistence for offerings and enrollment records.
type Store interface {
	CreateOffering(ctx context.Context, o model.Offering) error
	GetOffering(ctx context.Context, id string) (*model.Offering, error)
	// ListOfferings returns all offerings, newest first.
	ListOfferings(ctx context.Context) ([]model.Offering, error)

	GetRecord(ctx context.Context, offeringID, userID string) (*model.EnrollmentRecord, error)
	// ListRecords returns the records in one status, in queue order.
	ListRecords(ctx context.Context, offeringID string, status model.Status) ([]model.EnrollmentRecord, error)
	// ListHolders returns every record of the offering, in queue order.
	ListHolders(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error)
	CountByStatus(ctx context.Context, offeringID string) (map[model.Status]int, error)

	// InTx runs fn inside a unit of work that holds the offering exclusively.
	// Changes are committed only if fn returns nil. It returns ErrNotFound
	// when the offering does not exist.
	InTx(ctx context.Context, offeringID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is a unit of work over one locked offering.
type Tx interface {
	// Offering returns the locked offering as read at the start of the unit of work.
	Offering() *model.Offering
	SaveOffering(ctx context.Context, o model.Offering) error

	Record(ctx context.Context, userID string) (*model.EnrollmentRecord, error)
	// FirstByStatus returns the queue head for status, or ErrNotFound.
	FirstByStatus(ctx context.Context, status model.Status) (*model.EnrollmentRecord, error)
	Holders(ctx context.Context) ([]model.EnrollmentRecord, error)
	InsertRecord(ctx context.Context, rec model.EnrollmentRecord) error
	UpdateRecordStatus(ctx context.Context, userID string, status model.Status, at time.Time) error
	DeleteRecord(ctx context.Context, userID string) error
}

// sortQueue orders records by request time, then sequence.
func sortQueue(recs []model.EnrollmentRecord) {
	slices.SortFunc(recs, func(a, b model.EnrollmentRecord) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
}
