package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/repository"
)

// moderatedRecord checks the caller is the organizer of an open offering and
// loads the target's record, which must be in want.
func moderatedRecord(ctx context.Context, tx repository.Tx, organizerID, userID string, want model.Status) (*model.EnrollmentRecord, error) {
	o := tx.Offering()
	if o.OrganizerID != organizerID {
		return nil, fmt.Errorf("%w: offering %s", model.ErrNotAuthorized, o.ID)
	}
	if o.IsCancelled() {
		return nil, fmt.Errorf("%w: %s", model.ErrOfferingCancelled, o.ID)
	}
	rec, err := tx.Record(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s on offering %s", model.ErrNotEnrolled, userID, o.ID)
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != want {
		return nil, fmt.Errorf("%w: user %s is %s, expected %s", model.ErrInvalidTransition, userID, rec.Status, want)
	}
	return rec, nil
}

func moderationEvent(typ model.EventType, offeringID, organizerID, userID string, from, to model.Status, now time.Time) model.Event {
	ev := model.NewEvent(typ, offeringID, now)
	ev.UserID = userID
	ev.ActorID = organizerID
	ev.Status = to
	ev.PreviousStatus = from
	return ev
}

// Approve registers a pending request on a manual offering. A full offering
// rejects the approval with ErrOfferingFull rather than waitlisting it.
func (s *EnrollmentService) Approve(ctx context.Context, organizerID, userID, offeringID string) error {
	if err := requireIDs(userID, offeringID); err != nil {
		return err
	}
	return s.mutate(ctx, offeringID, func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
		if _, err := moderatedRecord(ctx, tx, organizerID, userID, model.StatusPendingApproval); err != nil {
			return nil, err
		}
		o := tx.Offering()
		if o.Policy != model.PolicyManual {
			return nil, fmt.Errorf("%w: offering %s does not require approval", model.ErrInvalidTransition, offeringID)
		}
		if o.IsFull() {
			return nil, fmt.Errorf("%w: %d of %d slots taken", model.ErrOfferingFull, o.RegisteredCount, o.Capacity)
		}

		if err := tx.UpdateRecordStatus(ctx, userID, model.StatusRegistered, now); err != nil {
			return nil, err
		}
		o.RegisteredCount++
		if err := tx.SaveOffering(ctx, *o); err != nil {
			return nil, err
		}
		return []model.Event{moderationEvent(model.EventEnrollmentApproved, offeringID, organizerID, userID,
			model.StatusPendingApproval, model.StatusRegistered, now)}, nil
	})
}

// Decline drops a pending request. No slot is freed, so nothing is promoted.
func (s *EnrollmentService) Decline(ctx context.Context, organizerID, userID, offeringID string) error {
	if err := requireIDs(userID, offeringID); err != nil {
		return err
	}
	return s.mutate(ctx, offeringID, func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
		if _, err := moderatedRecord(ctx, tx, organizerID, userID, model.StatusPendingApproval); err != nil {
			return nil, err
		}
		if err := tx.DeleteRecord(ctx, userID); err != nil {
			return nil, err
		}
		return []model.Event{moderationEvent(model.EventEnrollmentDeclined, offeringID, organizerID, userID,
			model.StatusPendingApproval, model.StatusNone, now)}, nil
	})
}

// Exclude removes a registered participant and, on automatic offerings,
// promotes the waitlist head into the freed slot.
func (s *EnrollmentService) Exclude(ctx context.Context, organizerID, userID, offeringID string) error {
	if err := requireIDs(userID, offeringID); err != nil {
		return err
	}
	return s.mutate(ctx, offeringID, func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
		if _, err := moderatedRecord(ctx, tx, organizerID, userID, model.StatusRegistered); err != nil {
			return nil, err
		}
		if err := tx.DeleteRecord(ctx, userID); err != nil {
			return nil, err
		}
		events := []model.Event{moderationEvent(model.EventEnrollmentExcluded, offeringID, organizerID, userID,
			model.StatusRegistered, model.StatusNone, now)}

		promoted, err := s.releaseSlot(ctx, tx, now)
		if err != nil {
			return nil, err
		}
		return append(events, promoted...), nil
	})
}
