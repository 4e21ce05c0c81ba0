package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// MemoryStore keeps offerings and records in process memory.
// Each offering has its own mutex; a unit of work mutates a private copy
// that replaces the stored state on commit.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	mu       sync.Mutex
	offering model.Offering
	records  map[string]model.EnrollmentRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) entry(id string) (*memEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// CreateOffering stores a new offering.
func (s *MemoryStore) CreateOffering(_ context.Context, o model.Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[o.ID]; ok {
		return fmt.Errorf("insert offering %s: %w", o.ID, ErrDuplicate)
	}
	s.entries[o.ID] = &memEntry{offering: o, records: make(map[string]model.EnrollmentRecord)}
	return nil
}

// GetOffering returns a copy of one offering or ErrNotFound.
func (s *MemoryStore) GetOffering(_ context.Context, id string) (*model.Offering, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.offering
	return &o, nil
}

// ListOfferings returns all offerings ordered by creation time descending.
func (s *MemoryStore) ListOfferings(_ context.Context) ([]model.Offering, error) {
	s.mu.RLock()
	entries := slices.Collect(maps.Values(s.entries))
	s.mu.RUnlock()

	out := make([]model.Offering, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.offering)
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b model.Offering) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

// GetRecord returns one enrollment record or ErrNotFound.
func (s *MemoryStore) GetRecord(_ context.Context, offeringID, userID string) (*model.EnrollmentRecord, error) {
	e, err := s.entry(offeringID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// ListRecords returns the records of one status in queue order.
func (s *MemoryStore) ListRecords(_ context.Context, offeringID string, status model.Status) ([]model.EnrollmentRecord, error) {
	e, err := s.entry(offeringID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return filterQueue(e.records, status), nil
}

// ListHolders returns every record of the offering in queue order.
func (s *MemoryStore) ListHolders(_ context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	e, err := s.entry(offeringID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return filterQueue(e.records, ""), nil
}

// CountByStatus returns the number of records per status.
func (s *MemoryStore) CountByStatus(_ context.Context, offeringID string) (map[model.Status]int, error) {
	e, err := s.entry(offeringID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	counts := make(map[model.Status]int)
	for _, rec := range e.records {
		counts[rec.Status]++
	}
	return counts, nil
}

// InTx runs fn against a private copy of the offering and commits it on success.
func (s *MemoryStore) InTx(ctx context.Context, offeringID string, fn func(ctx context.Context, tx Tx) error) error {
	e, err := s.entry(offeringID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &memTx{offering: e.offering, records: maps.Clone(e.records)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	e.offering = tx.offering
	e.records = tx.records
	return nil
}

// filterQueue returns records matching status (all when empty) in queue order.
func filterQueue(records map[string]model.EnrollmentRecord, status model.Status) []model.EnrollmentRecord {
	out := make([]model.EnrollmentRecord, 0, len(records))
	for _, rec := range records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	sortQueue(out)
	return out
}

type memTx struct {
	offering model.Offering
	records  map[string]model.EnrollmentRecord
}

func (t *memTx) Offering() *model.Offering {
	o := t.offering
	return &o
}

func (t *memTx) SaveOffering(_ context.Context, o model.Offering) error {
	if o.ID != t.offering.ID {
		return fmt.Errorf("save offering %s in unit of work for %s", o.ID, t.offering.ID)
	}
	t.offering = o
	return nil
}

func (t *memTx) Record(_ context.Context, userID string) (*model.EnrollmentRecord, error) {
	rec, ok := t.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (t *memTx) FirstByStatus(_ context.Context, status model.Status) (*model.EnrollmentRecord, error) {
	queue := filterQueue(t.records, status)
	if len(queue) == 0 {
		return nil, ErrNotFound
	}
	return &queue[0], nil
}

func (t *memTx) Holders(_ context.Context) ([]model.EnrollmentRecord, error) {
	return filterQueue(t.records, ""), nil
}

func (t *memTx) InsertRecord(_ context.Context, rec model.EnrollmentRecord) error {
	if _, ok := t.records[rec.UserID]; ok {
		return fmt.Errorf("insert enrollment: %w", ErrDuplicate)
	}
	t.records[rec.UserID] = rec
	return nil
}

func (t *memTx) UpdateRecordStatus(_ context.Context, userID string, status model.Status, at time.Time) error {
	rec, ok := t.records[userID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = at
	t.records[userID] = rec
	return nil
}

func (t *memTx) DeleteRecord(_ context.Context, userID string) error {
	if _, ok := t.records[userID]; !ok {
		return ErrNotFound
	}
	delete(t.records, userID)
	return nil
}
