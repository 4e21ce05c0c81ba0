package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

var base = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func sampleOffering(createdAt time.Time) model.Offering {
	return model.Offering{
		ID:          uuid.NewString(),
		Kind:        model.KindOuting,
		Title:       "Sunset hike",
		OrganizerID: "org-1",
		Capacity:    2,
		Policy:      model.PolicyAutomatic,
		State:       model.LifecycleOpen,
		NextSeq:     1,
		CreatedAt:   createdAt,
	}
}

func record(offeringID, userID string, status model.Status, at time.Time, seq int64) model.EnrollmentRecord {
	return model.EnrollmentRecord{
		OfferingID:  offeringID,
		UserID:      userID,
		Status:      status,
		RequestedAt: at,
		Seq:         seq,
		UpdatedAt:   at,
	}
}

func insertAll(t *testing.T, s Store, offeringID string, recs ...model.EnrollmentRecord) {
	t.Helper()
	err := s.InTx(context.Background(), offeringID, func(ctx context.Context, tx Tx) error {
		for _, rec := range recs {
			if err := tx.InsertRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func userIDs(recs []model.EnrollmentRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.UserID)
	}
	return out
}

// runStoreSuite exercises the Store contract shared by every implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get offering", func(t *testing.T) {
		s := newStore(t)
		o := sampleOffering(base)
		require.NoError(t, s.CreateOffering(ctx, o))

		got, err := s.GetOffering(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Title, got.Title)
		assert.Equal(t, o.Capacity, got.Capacity)
		assert.Equal(t, model.PolicyAutomatic, got.Policy)
		assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.CancelledAt)
	})

	t.Run("duplicate offering", func(t *testing.T) {
		s := newStore(t)
		o := sampleOffering(base)
		require.NoError(t, s.CreateOffering(ctx, o))
		assert.ErrorIs(t, s.CreateOffering(ctx, o), ErrDuplicate)
	})

	t.Run("missing offering", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetOffering(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		err = s.InTx(ctx, "nope", func(context.Context, Tx) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list offerings newest first", func(t *testing.T) {
		s := newStore(t)
		older := sampleOffering(base)
		newer := sampleOffering(base.Add(time.Hour))
		require.NoError(t, s.CreateOffering(ctx, older))
		require.NoError(t, s.CreateOffering(ctx, newer))

		list, err := s.ListOfferings(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
	})

	t.Run("queue order uses seq for equal timestamps", func(t *testing.T) {
		s := newStore(t)
		o := sampleOffering(base)
		require.NoError(t, s.CreateOffering(ctx, o))
		insertAll(t, s, o.ID,
			record(o.ID, "carol", model.StatusWaitlisted, base.Add(time.Second), 3),
			record(o.ID, "bob", model.StatusWaitlisted, base, 2),
			record(o.ID, "alice", model.StatusWaitlisted, base, 1),
			record(o.ID, "dave", model.StatusRegistered, base, 4),
		)

		waitlist, err := s.ListRecords(ctx, o.ID, model.StatusWaitlisted)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, userIDs(waitlist))

		holders, err := s.ListHolders(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "dave", "carol"}, userIDs(holders))

		err = s.InTx(ctx, o.ID, func(ctx context.Context, tx Tx) error {
			head, err := tx.FirstByStatus(ctx, model.StatusWaitlisted)
			require.NoError(t, err)
			assert.Equal(t, "alice", head.UserID)

			_, err = tx.FirstByStatus(ctx, model.StatusPendingApproval)
			assert.ErrorIs(t, err, ErrNotFound)
			return nil
		})
		require.NoError(t, err)

		counts, err := s.CountByStatus(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[model.StatusWaitlisted])
		assert.Equal(t, 1, counts[model.StatusRegistered])
	})

	t.Run("unit of work commits", func(t *testing.T) {
		s := newStore(t)
		o := sampleOffering(base)
		require.NoError(t, s.CreateOffering(ctx, o))
		insertAll(t, s, o.ID, record(o.ID, "alice", model.StatusWaitlisted, base, 1))

		later := base.Add(time.Minute)
		err := s.InTx(ctx, o.ID, func(ctx context.Context, tx Tx) error {
			off := tx.Offering()
			off.RegisteredCount = 1
			off.NextSeq = 2
			off.Cancel(later)
			if err := tx.SaveOffering(ctx, *off); err != nil {
				return err
			}
			return tx.UpdateRecordStatus(ctx, "alice", model.StatusRegistered, later)
		})
		require.NoError(t, err)

		got, err := s.GetOffering(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.RegisteredCount)
		assert.Equal(t, int64(2), got.NextSeq)
		assert.Equal(t, model.LifecycleCancelled, got.State)
		require.NotNil(t, got.CancelledAt)
		assert.True(t, later.Equal(*got.CancelledAt))

		rec, err := s.GetRecord(ctx, o.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRegistered, rec.Status)
		assert.True(t, later.Equal(rec.UpdatedAt))
		assert.True(t, base.Equal(rec.RequestedAt))
	})

	t.Run("unit of work rolls back on error", func(t *testing.T) {
		s := newStore(t)
		o := sampleOffering(base)
		require.NoError(t, s.CreateOffering(ctx, o))
		insertAll(t, s, o.ID, record(o.ID, "alice", model.StatusRegistered, base, 1))

		boom := errors.New("boom")
		err := s.InTx(ctx, o.ID, func(ctx context.Context, tx Tx) error {
			off := tx.Offering()
			off.RegisteredCount = 2
			require.NoError(t, tx.SaveOffering(ctx, *off))
			require.NoError(t, tx.DeleteRecord(ctx, "alice"))
			require.NoError(t, tx.InsertRecord(ctx, record(o.ID, "bob", model.StatusRegistered, base, 2)))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.GetOffering(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.RegisteredCount)

		_, err = s.GetRecord(ctx, o.ID, "alice")
		assert.NoError(t, err)
		_, err = s.GetRecord(ctx, o.ID, "bob")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("record mutations report missing rows", func(t *testing.T) {
		s := newStore(t)
		o := sampleOffering(base)
		require.NoError(t, s.CreateOffering(ctx, o))

		err := s.InTx(ctx, o.ID, func(ctx context.Context, tx Tx) error {
			assert.ErrorIs(t, tx.UpdateRecordStatus(ctx, "ghost", model.StatusRegistered, base), ErrNotFound)
			assert.ErrorIs(t, tx.DeleteRecord(ctx, "ghost"), ErrNotFound)
			_, err := tx.Record(ctx, "ghost")
			assert.ErrorIs(t, err, ErrNotFound)

			rec := record(o.ID, "alice", model.StatusPendingApproval, base, 1)
			require.NoError(t, tx.InsertRecord(ctx, rec))
			assert.ErrorIs(t, tx.InsertRecord(ctx, rec), ErrDuplicate)

			holders, err := tx.Holders(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"alice"}, userIDs(holders))
			return nil
		})
		require.NoError(t, err)
	})
}
