package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/repository"
)

// releaseSlot decrements occupancy after a registered record was removed,
// runs one promotion attempt and saves the offering.
func (s *EnrollmentService) releaseSlot(ctx context.Context, tx repository.Tx, now time.Time) ([]model.Event, error) {
	o := tx.Offering()
	o.RegisteredCount--

	var events []model.Event
	ev, err := promoteHead(ctx, tx, o, now)
	if err != nil {
		return nil, err
	}
	if ev != nil {
		events = append(events, *ev)
	}
	if err := tx.SaveOffering(ctx, *o); err != nil {
		return nil, err
	}
	return events, nil
}

// promoteHead moves the waitlist head into the freed slot.
//
// It promotes at most one user and never loops. Manual offerings are skipped
// (every registration there needs organizer approval) as are cancelled ones.
// o is updated in place; the caller saves it.
func promoteHead(ctx context.Context, tx repository.Tx, o *model.Offering, now time.Time) (*model.Event, error) {
	if o.Policy != model.PolicyAutomatic || o.IsCancelled() || o.IsFull() {
		return nil, nil
	}

	head, err := tx.FirstByStatus(ctx, model.StatusWaitlisted)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.UpdateRecordStatus(ctx, head.UserID, model.StatusRegistered, now); err != nil {
		return nil, err
	}
	o.RegisteredCount++

	ev := model.NewEvent(model.EventEnrollmentPromoted, o.ID, now)
	ev.UserID = head.UserID
	ev.Status = model.StatusRegistered
	ev.PreviousStatus = model.StatusWaitlisted
	return &ev, nil
}
