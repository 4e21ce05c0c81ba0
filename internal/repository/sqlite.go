package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteOfferingColumns = `id, kind, title, organizer_id, capacity, policy, lifecycle_state,
		registered_count, next_seq, created_at, cancelled_at`
	sqliteRecordColumns = `offering_id, user_id, status, requested_at, seq, updated_at`
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx rows.
type scanner interface {
	Scan(dest ...any) error
}

// SQLiteStore implements Store on a SQLite database opened with a single
// connection, which serialises every unit of work.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// CreateOffering inserts a new offering.
func (s *SQLiteStore) CreateOffering(ctx context.Context, o model.Offering) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO offerings (`+sqliteOfferingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		o.ID, o.Kind, o.Title, o.OrganizerID, o.Capacity, o.Policy, o.State,
		o.RegisteredCount, o.NextSeq, formatTime(o.CreatedAt), nullableTime(o.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("insert offering: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("insert offering %s: %w", o.ID, ErrDuplicate)
	}
	return nil
}

// GetOffering returns a single offering or ErrNotFound.
func (s *SQLiteStore) GetOffering(ctx context.Context, id string) (*model.Offering, error) {
	return sqliteGetOffering(ctx, s.db, id)
}

// ListOfferings returns all offerings ordered by creation time descending.
func (s *SQLiteStore) ListOfferings(ctx context.Context) ([]model.Offering, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteOfferingColumns+` FROM offerings ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	var out []model.Offering
	for rows.Next() {
		o, err := scanSQLiteOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// GetRecord returns one enrollment record or ErrNotFound.
func (s *SQLiteStore) GetRecord(ctx context.Context, offeringID, userID string) (*model.EnrollmentRecord, error) {
	return sqliteGetRecord(ctx, s.db, offeringID, userID)
}

// ListRecords returns the records of one status in queue order.
func (s *SQLiteStore) ListRecords(ctx context.Context, offeringID string, status model.Status) ([]model.EnrollmentRecord, error) {
	return sqliteListRecords(ctx, s.db,
		`SELECT `+sqliteRecordColumns+` FROM enrollments
		 WHERE offering_id = ? AND status = ?
		 ORDER BY requested_at ASC, seq ASC`,
		offeringID, status)
}

// ListHolders returns every record of the offering in queue order.
func (s *SQLiteStore) ListHolders(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error) {
	return sqliteListRecords(ctx, s.db,
		`SELECT `+sqliteRecordColumns+` FROM enrollments
		 WHERE offering_id = ?
		 ORDER BY requested_at ASC, seq ASC`,
		offeringID)
}

// CountByStatus returns the number of records per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context, offeringID string) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM enrollments WHERE offering_id = ? GROUP BY status`, offeringID)
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

// InTx runs fn inside a database transaction. With a single connection the
// transaction excludes every other writer until it commits or rolls back.
func (s *SQLiteStore) InTx(ctx context.Context, offeringID string, fn func(ctx context.Context, tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	o, err := sqliteGetOffering(ctx, sqlTx, offeringID)
	if err != nil {
		return err
	}

	if err = fn(ctx, &sqliteTx{tx: sqlTx, offering: *o}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx       *sql.Tx
	offering model.Offering
}

func (t *sqliteTx) Offering() *model.Offering {
	o := t.offering
	return &o
}

func (t *sqliteTx) SaveOffering(ctx context.Context, o model.Offering) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE offerings
		 SET lifecycle_state = ?, registered_count = ?, next_seq = ?, cancelled_at = ?
		 WHERE id = ?`,
		o.State, o.RegisteredCount, o.NextSeq, nullableTime(o.CancelledAt), o.ID,
	)
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	t.offering = o
	return nil
}

func (t *sqliteTx) Record(ctx context.Context, userID string) (*model.EnrollmentRecord, error) {
	return sqliteGetRecord(ctx, t.tx, t.offering.ID, userID)
}

func (t *sqliteTx) FirstByStatus(ctx context.Context, status model.Status) (*model.EnrollmentRecord, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM enrollments
		 WHERE offering_id = ? AND status = ?
		 ORDER BY requested_at ASC, seq ASC
		 LIMIT 1`,
		t.offering.ID, status)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue head: %w", err)
	}
	return rec, nil
}

func (t *sqliteTx) Holders(ctx context.Context) ([]model.EnrollmentRecord, error) {
	return sqliteListRecords(ctx, t.tx,
		`SELECT `+sqliteRecordColumns+` FROM enrollments
		 WHERE offering_id = ?
		 ORDER BY requested_at ASC, seq ASC`,
		t.offering.ID)
}

func (t *sqliteTx) InsertRecord(ctx context.Context, rec model.EnrollmentRecord) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO enrollments (`+sqliteRecordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(offering_id, user_id) DO NOTHING`,
		rec.OfferingID, rec.UserID, rec.Status, formatTime(rec.RequestedAt), rec.Seq, formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("insert enrollment: %w", ErrDuplicate)
	}
	return nil
}

func (t *sqliteTx) UpdateRecordStatus(ctx context.Context, userID string, status model.Status, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE enrollments SET status = ?, updated_at = ? WHERE offering_id = ? AND user_id = ?`,
		status, formatTime(at), t.offering.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) DeleteRecord(ctx context.Context, userID string) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM enrollments WHERE offering_id = ? AND user_id = ?`,
		t.offering.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func sqliteGetOffering(ctx context.Context, q sqlQuerier, id string) (*model.Offering, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+sqliteOfferingColumns+` FROM offerings WHERE id = ?`, id)
	o, err := scanSQLiteOffering(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get offering: %w", err)
	}
	return o, nil
}

func sqliteGetRecord(ctx context.Context, q sqlQuerier, offeringID, userID string) (*model.EnrollmentRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM enrollments WHERE offering_id = ? AND user_id = ?`,
		offeringID, userID)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return rec, nil
}

func sqliteListRecords(ctx context.Context, q sqlQuerier, query string, args ...any) ([]model.EnrollmentRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []model.EnrollmentRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanSQLiteOffering(row scanner) (*model.Offering, error) {
	var (
		o           model.Offering
		createdAt   string
		cancelledAt sql.NullString
	)
	if err := row.Scan(&o.ID, &o.Kind, &o.Title, &o.OrganizerID, &o.Capacity, &o.Policy, &o.State,
		&o.RegisteredCount, &o.NextSeq, &createdAt, &cancelledAt); err != nil {
		return nil, err
	}
	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if cancelledAt.Valid {
		t, err := parseTime(cancelledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse cancelled_at: %w", err)
		}
		o.CancelledAt = &t
	}
	return &o, nil
}

func scanSQLiteRecord(row scanner) (*model.EnrollmentRecord, error) {
	var (
		rec                    model.EnrollmentRecord
		requestedAt, updatedAt string
	)
	if err := row.Scan(&rec.OfferingID, &rec.UserID, &rec.Status, &requestedAt, &rec.Seq, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, fmt.Errorf("parse requested_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
