package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/repository"
)

// Enroll creates the caller's enrollment record.
//
// Manual offerings always answer with pendingApproval. Automatic offerings
// register while a slot is free and waitlist otherwise; the check and the
// increment of registered_count happen inside one critical section, so two
// concurrent requests for the last slot resolve to one registered and one
// waitlisted record.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, offeringID string) (*model.EnrollmentRecord, error) {
	if err := requireIDs(userID, offeringID); err != nil {
		return nil, err
	}

	var rec model.EnrollmentRecord
	err := s.mutate(ctx, offeringID, func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
		_, err := tx.Record(ctx, userID)
		if err == nil {
			return nil, fmt.Errorf("%w: user %s on offering %s", model.ErrAlreadyEnrolled, userID, offeringID)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		o := tx.Offering()
		if o.IsCancelled() {
			return nil, fmt.Errorf("%w: %s", model.ErrOfferingCancelled, offeringID)
		}

		status := admissionStatus(o)
		rec = model.EnrollmentRecord{
			OfferingID:  offeringID,
			UserID:      userID,
			Status:      status,
			RequestedAt: now,
			Seq:         o.NextSeq,
			UpdatedAt:   now,
		}
		o.NextSeq++
		if status == model.StatusRegistered {
			o.RegisteredCount++
		}

		if err := tx.InsertRecord(ctx, rec); err != nil {
			return nil, err
		}
		if err := tx.SaveOffering(ctx, *o); err != nil {
			return nil, err
		}

		ev := model.NewEvent(model.EventEnrollmentCreated, offeringID, now)
		ev.UserID = userID
		ev.ActorID = userID
		ev.Status = status
		return []model.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// admissionStatus is the status a new request on o starts in.
func admissionStatus(o *model.Offering) model.Status {
	switch {
	case o.Policy == model.PolicyManual:
		return model.StatusPendingApproval
	case o.IsFull():
		return model.StatusWaitlisted
	default:
		return model.StatusRegistered
	}
}

// Cancel withdraws the caller's enrollment. Leaving a registered slot
// promotes at most one waitlisted user; leaving the waitlist or the pending
// queue frees nothing and promotes no one.
func (s *EnrollmentService) Cancel(ctx context.Context, userID, offeringID string) error {
	if err := requireIDs(userID, offeringID); err != nil {
		return err
	}
	return s.mutate(ctx, offeringID, func(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
		rec, err := tx.Record(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s on offering %s", model.ErrNotEnrolled, userID, offeringID)
		}
		if err != nil {
			return nil, err
		}

		if err := tx.DeleteRecord(ctx, userID); err != nil {
			return nil, err
		}
		ev := model.NewEvent(model.EventEnrollmentCancelled, offeringID, now)
		ev.UserID = userID
		ev.ActorID = userID
		ev.Status = model.StatusNone
		ev.PreviousStatus = rec.Status
		events := []model.Event{ev}

		if rec.Status != model.StatusRegistered {
			return events, nil
		}
		promoted, err := s.releaseSlot(ctx, tx, now)
		if err != nil {
			return nil, err
		}
		return append(events, promoted...), nil
	})
}

// GetStatus returns the caller's status, StatusNone when no record exists.
func (s *EnrollmentService) GetStatus(ctx context.Context, userID, offeringID string) (model.Status, error) {
	if err := requireIDs(userID, offeringID); err != nil {
		return model.StatusNone, err
	}
	if _, err := s.getOffering(ctx, offeringID); err != nil {
		return model.StatusNone, err
	}
	rec, err := s.store.GetRecord(ctx, offeringID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.StatusNone, nil
	}
	if err != nil {
		return model.StatusNone, fmt.Errorf("get status: %w", err)
	}
	return rec.Status, nil
}

// ListPending returns the pending queue in request order.
func (s *EnrollmentService) ListPending(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	return s.listByStatus(ctx, offeringID, model.StatusPendingApproval)
}

// ListRegistered returns registered participants in request order.
func (s *EnrollmentService) ListRegistered(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	return s.listByStatus(ctx, offeringID, model.StatusRegistered)
}

// ListWaitlisted returns the waitlist, head first.
func (s *EnrollmentService) ListWaitlisted(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	return s.listByStatus(ctx, offeringID, model.StatusWaitlisted)
}

// ListHolders returns every registered, waitlisted and pending record, the
// audience of an offering cancellation notice.
func (s *EnrollmentService) ListHolders(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	if _, err := s.getOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	recs, err := s.store.ListHolders(ctx, offeringID)
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	return recs, nil
}

func (s *EnrollmentService) listByStatus(ctx context.Context, offeringID string, status model.Status) ([]model.EnrollmentRecord, error) {
	if _, err := s.getOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	recs, err := s.store.ListRecords(ctx, offeringID, status)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", status, err)
	}
	return recs, nil
}
