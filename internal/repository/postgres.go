package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

const (
	pgOfferingColumns = `id, kind, title, organizer_id, capacity, policy, lifecycle_state,
		registered_count, next_seq, created_at, cancelled_at`
	pgRecordColumns = `offering_id, user_id, status, requested_at, seq, updated_at`
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL using pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateOffering inserts a new offering.
func (s *PostgresStore) CreateOffering(ctx context.Context, o model.Offering) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO offerings (`+pgOfferingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		o.ID, o.Kind, o.Title, o.OrganizerID, o.Capacity, o.Policy, o.State,
		o.RegisteredCount, o.NextSeq, o.CreatedAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("insert offering: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert offering %s: %w", o.ID, ErrDuplicate)
	}
	return nil
}

// GetOffering returns a single offering or ErrNotFound.
func (s *PostgresStore) GetOffering(ctx context.Context, id string) (*model.Offering, error) {
	return pgGetOffering(ctx, s.db, `SELECT `+pgOfferingColumns+` FROM offerings WHERE id = $1`, id)
}

// ListOfferings returns all offerings ordered by creation time descending.
func (s *PostgresStore) ListOfferings(ctx context.Context) ([]model.Offering, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgOfferingColumns+` FROM offerings ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	var out []model.Offering
	for rows.Next() {
		o, err := scanPgOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// GetRecord returns one enrollment record or ErrNotFound.
func (s *PostgresStore) GetRecord(ctx context.Context, offeringID, userID string) (*model.EnrollmentRecord, error) {
	return pgGetRecord(ctx, s.db, offeringID, userID)
}

// ListRecords returns the records of one status in queue order. The
// (offering_id, status, requested_at, seq) index serves this without a scan.
func (s *PostgresStore) ListRecords(ctx context.Context, offeringID string, status model.Status) ([]model.EnrollmentRecord, error) {
	return pgListRecords(ctx, s.db,
		`SELECT `+pgRecordColumns+` FROM enrollments
		 WHERE offering_id = $1 AND status = $2
		 ORDER BY requested_at ASC, seq ASC`,
		offeringID, status)
}

// ListHolders returns every record of the offering in queue order.
func (s *PostgresStore) ListHolders(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	return pgListRecords(ctx, s.db,
		`SELECT `+pgRecordColumns+` FROM enrollments
		 WHERE offering_id = $1
		 ORDER BY requested_at ASC, seq ASC`,
		offeringID)
}

// CountByStatus returns the number of records per status.
func (s *PostgresStore) CountByStatus(ctx context.Context, offeringID string) (map[model.Status]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, COUNT(*) FROM enrollments WHERE offering_id = $1 GROUP BY status`, offeringID)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status model.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// InTx performs a unit of work inside a transaction that holds the offering
// row with SELECT … FOR UPDATE.
//
// Any other transaction locking the same offering blocks until this one
// commits or rolls back, so the read-then-write on registered_count is never
// interleaved across processes. Transactions on different offerings lock
// different rows and proceed in parallel.
func (s *PostgresStore) InTx(ctx context.Context, offeringID string, fn func(ctx context.Context, tx Tx) error) (err error) {
	pgTx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = pgTx.Rollback(ctx)
		}
	}()

	o, err := pgGetOffering(ctx, pgTx,
		`SELECT `+pgOfferingColumns+` FROM offerings WHERE id = $1 FOR UPDATE`, offeringID)
	if err != nil {
		return err
	}

	if err = fn(ctx, &pgUnit{tx: pgTx, offering: *o}); err != nil {
		return err
	}
	if err = pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgUnit struct {
	tx       pgx.Tx
	offering model.Offering
}

func (u *pgUnit) Offering() *model.Offering {
	o := u.offering
	return &o
}

func (u *pgUnit) SaveOffering(ctx context.Context, o model.Offering) error {
	_, err := u.tx.Exec(ctx,
		`UPDATE offerings
		 SET lifecycle_state = $1, registered_count = $2, next_seq = $3, cancelled_at = $4
		 WHERE id = $5`,
		o.State, o.RegisteredCount, o.NextSeq, o.CancelledAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	u.offering = o
	return nil
}

func (u *pgUnit) Record(ctx context.Context, userID string) (*model.EnrollmentRecord, error) {
	return pgGetRecord(ctx, u.tx, u.offering.ID, userID)
}

func (u *pgUnit) FirstByStatus(ctx context.Context, status model.Status) (*model.EnrollmentRecord, error) {
	row := u.tx.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM enrollments
		 WHERE offering_id = $1 AND status = $2
		 ORDER BY requested_at ASC, seq ASC
		 LIMIT 1`,
		u.offering.ID, status)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue head: %w", err)
	}
	return rec, nil
}

func (u *pgUnit) Holders(ctx context.Context) ([]model.EnrollmentRecord, error) {
	return pgListRecords(ctx, u.tx,
		`SELECT `+pgRecordColumns+` FROM enrollments
		 WHERE offering_id = $1
		 ORDER BY requested_at ASC, seq ASC`,
		u.offering.ID)
}

func (u *pgUnit) InsertRecord(ctx context.Context, rec model.EnrollmentRecord) error {
	tag, err := u.tx.Exec(ctx,
		`INSERT INTO enrollments (`+pgRecordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (offering_id, user_id) DO NOTHING`,
		rec.OfferingID, rec.UserID, rec.Status, rec.RequestedAt, rec.Seq, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert enrollment: %w", ErrDuplicate)
	}
	return nil
}

func (u *pgUnit) UpdateRecordStatus(ctx context.Context, userID string, status model.Status, at time.Time) error {
	tag, err := u.tx.Exec(ctx,
		`UPDATE enrollments SET status = $1, updated_at = $2 WHERE offering_id = $3 AND user_id = $4`,
		status, at, u.offering.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (u *pgUnit) DeleteRecord(ctx context.Context, userID string) error {
	tag, err := u.tx.Exec(ctx,
		`DELETE FROM enrollments WHERE offering_id = $1 AND user_id = $2`,
		u.offering.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgGetOffering(ctx context.Context, q pgQuerier, query, id string) (*model.Offering, error) {
	o, err := scanPgOffering(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get offering: %w", err)
	}
	return o, nil
}

func pgGetRecord(ctx context.Context, q pgQuerier, offeringID, userID string) (*model.EnrollmentRecord, error) {
	rec, err := scanPgRecord(q.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM enrollments WHERE offering_id = $1 AND user_id = $2`,
		offeringID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return rec, nil
}

func pgListRecords(ctx context.Context, q pgQuerier, query string, args ...any) ([]model.EnrollmentRecord, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []model.EnrollmentRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanPgOffering(row scanner) (*model.Offering, error) {
	var o model.Offering
	if err := row.Scan(&o.ID, &o.Kind, &o.Title, &o.OrganizerID, &o.Capacity, &o.Policy, &o.State,
		&o.RegisteredCount, &o.NextSeq, &o.CreatedAt, &o.CancelledAt); err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	if o.CancelledAt != nil {
		t := o.CancelledAt.UTC()
		o.CancelledAt = &t
	}
	return &o, nil
}

func scanPgRecord(row scanner) (*model.EnrollmentRecord, error) {
	var rec model.EnrollmentRecord
	if err := row.Scan(&rec.OfferingID, &rec.UserID, &rec.Status, &rec.RequestedAt, &rec.Seq, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.RequestedAt = rec.RequestedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}
