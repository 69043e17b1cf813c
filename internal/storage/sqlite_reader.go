package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// DefaultBatchSize is the number of readings returned by one call to Next
const DefaultBatchSize = 1000

var (
	// ErrSessionNotFound is returned when the requested session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTimeRange is returned when the start time is after the end time
	ErrInvalidTimeRange = errors.New("start time is after end time")

	// ErrRecorderClosed is returned by Emit after the Recorder was closed
	ErrRecorderClosed = errors.New("recorder closed")
)

// AngleReader iterates over the recorded readings of one session in batches
type AngleReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *angle.TrackingSession

	// Next loads the next batch of readings and returns true if there is one,
	// false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the batch loaded by the last call to Next.
	Current() []angle.Reading

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a SqliteAngleReader
type ReaderOption func(*SqliteAngleReader)

// WithStartTime excludes readings taken before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteAngleReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes readings taken after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteAngleReader) {
		r.endTime = &t
	}
}

// WithTimeRange is equivalent to WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteAngleReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithBatchSize sets the maximum number of readings returned per batch.
// Non-positive values are ignored.
func WithBatchSize(n int) ReaderOption {
	return func(r *SqliteAngleReader) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// SqliteAngleReader implements AngleReader with keyset pagination so that no
// query stays open between batches.
type SqliteAngleReader struct {
	db *sql.DB

	sessionID int64
	session   *angle.TrackingSession
	batchSize int

	startTime *time.Time
	endTime   *time.Time

	stmt    *sql.Stmt
	lastTS  int64
	lastID  int64
	current []angle.Reading
	done    bool
	err     error
}

var _ AngleReader = (*SqliteAngleReader)(nil)

func newSqliteAngleReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteAngleReader, error) {
	ar := &SqliteAngleReader{
		db:        db,
		sessionID: sessionID,
		batchSize: DefaultBatchSize,
		lastTS:    math.MinInt64,
	}
	for _, opt := range opts {
		opt(ar)
	}
	if err := ar.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return ar, nil
}

func (ar *SqliteAngleReader) init(ctx context.Context) error {
	if ar.db == nil {
		return errors.New("database connection required")
	}
	if ar.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if ar.startTime != nil && ar.endTime != nil && ar.startTime.After(*ar.endTime) {
		return fmt.Errorf("%s > %s: %w", ar.startTime, ar.endTime, ErrInvalidTimeRange)
	}

	sess, err := loadSession(ctx, ar.db, ar.sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	ar.session = sess

	if ar.stmt, err = ar.db.PrepareContext(ctx, selectReadingsSQL); err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	return nil
}

func (ar *SqliteAngleReader) bounds() (from, to int64) {
	from, to = math.MinInt64, math.MaxInt64
	if ar.startTime != nil {
		from = toTimestamp(*ar.startTime)
	}
	if ar.endTime != nil {
		to = toTimestamp(*ar.endTime)
	}
	return
}

func (ar *SqliteAngleReader) Session() *angle.TrackingSession {
	return ar.session
}

func (ar *SqliteAngleReader) Next(ctx context.Context) bool {
	if ar.err != nil || ar.done || ar.stmt == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		ar.err = err
		return false
	}

	batch, err := ar.fetch(ctx)
	if err != nil {
		ar.err = err
		return false
	}
	if len(batch) < ar.batchSize {
		ar.done = true
	}
	if len(batch) == 0 {
		ar.current = nil
		return false
	}

	ar.current = batch
	return true
}

func (ar *SqliteAngleReader) fetch(ctx context.Context) (batch []angle.Reading, err error) {
	from, to := ar.bounds()

	rows, err := ar.stmt.QueryContext(ctx, ar.sessionID, from, to, ar.lastTS, ar.lastID, ar.batchSize)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer closeWithError(rows, &err)

	batch = make([]angle.Reading, 0, ar.batchSize)
	for rows.Next() {
		var id, ts, sample int64
		var theta float64
		if err = rows.Scan(&id, &ts, &sample, &theta); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		batch = append(batch, angle.Reading{
			Timestamp: fromTimestamp(ts),
			Sample:    uint64(sample),
			Theta:     theta,
		})
		ar.lastTS, ar.lastID = ts, id
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return batch, nil
}

func (ar *SqliteAngleReader) Current() []angle.Reading {
	return ar.current
}

func (ar *SqliteAngleReader) Error() error {
	return ar.err
}

func (ar *SqliteAngleReader) Close() error {
	ar.current = nil
	ar.done = true
	if ar.stmt != nil {
		err := ar.stmt.Close()
		ar.stmt = nil
		return err
	}
	return nil
}
