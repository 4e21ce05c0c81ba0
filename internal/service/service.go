// Package service implements the enrollment engine: the ledger that owns
// every enrollment state transition, waitlist promotion, the organizer-facing
// moderation gateway and the offering lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/repository"
)

const maxCapacity = 100_000

// Publisher receives domain events after the mutation producing them has
// committed and the offering lock has been released.
type Publisher interface {
	Publish(ctx context.Context, events ...model.Event)
}

// EnrollmentService orchestrates offerings and enrollments.
type EnrollmentService struct {
	store     repository.Store
	publisher Publisher
	locks     *offeringLocks
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an EnrollmentService.
type Option func(*EnrollmentService)

// WithPublisher sets the sink for domain events.
func WithPublisher(p Publisher) Option {
	return func(s *EnrollmentService) { s.publisher = p }
}

// WithClock overrides the time source used for requestedAt and event times.
func WithClock(now func() time.Time) Option {
	return func(s *EnrollmentService) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *EnrollmentService) { s.logger = l }
}

// NewEnrollmentService constructs an EnrollmentService with its dependencies.
func NewEnrollmentService(store repository.Store, opts ...Option) *EnrollmentService {
	s := &EnrollmentService{
		store:  store,
		locks:  newOfferingLocks(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time at the precision every store can persist.
func (s *EnrollmentService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// mutation is the body of a state change on one locked offering.
type mutation func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error)

// mutate runs fn under the offering's mutex inside a store unit of work.
// Events are published only after the unit of work committed and the mutex
// was released, so a slow sink never extends the critical section.
func (s *EnrollmentService) mutate(ctx context.Context, offeringID string, fn mutation) error {
	var (
		events  []model.Event
		entered bool
	)
	unlock := s.locks.lock(offeringID)
	err := s.store.InTx(ctx, offeringID, func(ctx context.Context, tx repository.Tx) error {
		entered = true
		evs, err := fn(ctx, tx, s.clock())
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	unlock()

	if err != nil {
		if !entered && errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", model.ErrOfferingNotFound, offeringID)
		}
		return err
	}
	s.publish(ctx, events)
	return nil
}

func (s *EnrollmentService) publish(ctx context.Context, events []model.Event) {
	for _, ev := range events {
		s.logger.Info("enrollment_event",
			"type", ev.Type,
			"offering_id", ev.OfferingID,
			"user_id", ev.UserID,
			"status", ev.Status,
			"previous_status", ev.PreviousStatus,
		)
	}
	if s.publisher != nil && len(events) > 0 {
		s.publisher.Publish(ctx, events...)
	}
}

// CreateOffering validates the request and stores a new open offering
// organised by organizerID.
func (s *EnrollmentService) CreateOffering(ctx context.Context, organizerID string, req model.CreateOfferingRequest) (*model.Offering, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, fmt.Errorf("%w: organizer id is required", model.ErrInvalidInput)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrInvalidInput)
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", model.ErrInvalidInput, req.Kind)
	}
	if req.Policy == "" {
		req.Policy = model.PolicyAutomatic
	}
	if !req.Policy.Valid() {
		return nil, fmt.Errorf("%w: unknown policy %q", model.ErrInvalidInput, req.Policy)
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be a positive integer", model.ErrInvalidInput)
	}
	if req.Capacity > maxCapacity {
		return nil, fmt.Errorf("%w: capacity cannot exceed 100,000", model.ErrInvalidInput)
	}

	now := s.clock()
	o := model.Offering{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Title:       req.Title,
		OrganizerID: organizerID,
		Capacity:    req.Capacity,
		Policy:      req.Policy,
		State:       model.LifecycleOpen,
		NextSeq:     1,
		CreatedAt:   now,
	}
	if err := s.store.CreateOffering(ctx, o); err != nil {
		return nil, fmt.Errorf("create offering: %w", err)
	}

	ev := model.NewEvent(model.EventOfferingCreated, o.ID, now)
	ev.ActorID = organizerID
	s.publish(ctx, []model.Event{ev})
	return &o, nil
}

// CancelOffering irreversibly cancels an offering. Existing records are left
// untouched; the emitted event lists every holder so the notification sink
// can broadcast the cancellation.
func (s *EnrollmentService) CancelOffering(ctx context.Context, organizerID, offeringID string) error {
	if err := requireIDs(organizerID, offeringID); err != nil {
		return err
	}
	return s.mutate(ctx, offeringID, func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
		o := tx.Offering()
		if o.OrganizerID != organizerID {
			return nil, fmt.Errorf("%w: cancel offering %s", model.ErrNotAuthorized, offeringID)
		}
		if !o.Cancel(now) {
			return nil, fmt.Errorf("%w: %s", model.ErrOfferingCancelled, offeringID)
		}
		holders, err := tx.Holders(ctx)
		if err != nil {
			return nil, err
		}
		if err := tx.SaveOffering(ctx, *o); err != nil {
			return nil, err
		}

		ev := model.NewEvent(model.EventOfferingCancelled, offeringID, now)
		ev.ActorID = organizerID
		for _, h := range holders {
			ev.Recipients = append(ev.Recipients, h.UserID)
		}
		return []model.Event{ev}, nil
	})
}

// GetOffering returns an offering with its current queue lengths.
func (s *EnrollmentService) GetOffering(ctx context.Context, offeringID string) (*model.OfferingSummary, error) {
	o, err := s.getOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountByStatus(ctx, offeringID)
	if err != nil {
		return nil, fmt.Errorf("get offering: %w", err)
	}
	return &model.OfferingSummary{
		Offering:       *o,
		Remaining:      o.Remaining(),
		PendingCount:   counts[model.StatusPendingApproval],
		WaitlistLength: counts[model.StatusWaitlisted],
	}, nil
}

// ListOfferings returns all offerings, newest first.
func (s *EnrollmentService) ListOfferings(ctx context.Context) ([]model.Offering, error) {
	list, err := s.store.ListOfferings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return list, nil
}

func (s *EnrollmentService) getOffering(ctx context.Context, offeringID string) (*model.Offering, error) {
	if strings.TrimSpace(offeringID) == "" {
		return nil, fmt.Errorf("%w: offering id is required", model.ErrInvalidInput)
	}
	o, err := s.store.GetOffering(ctx, offeringID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrOfferingNotFound, offeringID)
	}
	if err != nil {
		return nil, fmt.Errorf("get offering: %w", err)
	}
	return o, nil
}

func requireIDs(userID, offeringID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", model.ErrInvalidInput)
	}
	if strings.TrimSpace(offeringID) == "" {
		return fmt.Errorf("%w: offering id is required", model.ErrInvalidInput)
	}
	return nil
}
