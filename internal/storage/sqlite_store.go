package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// Summary describes the readings recorded in a session
type Summary struct {
	Count      int64
	FirstTime  time.Time
	LastTime   time.Time
	MinDegrees float64
	MaxDegrees float64
}

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore returns a store backed by the Sqlite database at dbPath.
// Connections are opened lazily; the schema is created with the first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		for _, cmd := range []string{initSchemaSQL, initIndexesSQL} {
			if err = runSQLCommand(db, cmd); err != nil {
				_ = db.Close()
				s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
				return
			}
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, deviceType, deviceID, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *angle.TrackingSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}
	return loadSession(ctx, db, id)
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *angle.TrackingSession, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess angle.TrackingSession
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
			return
		}
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return toTrackingSession(&sess, config), nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*angle.TrackingSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess angle.TrackingSession
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, toTrackingSession(&sess, config))
	}
	err = rows.Err()
	return
}

// maxReadingsPerInsert keeps a single insert well below the SQLite limit on
// bound variables (five per reading)
const maxReadingsPerInsert = 1000

// StoreReadings inserts the readings in chunks of multi-row statements inside
// one transaction; either all of them are stored or none.
func (s *SqliteStore) StoreReadings(ctx context.Context, sessionID int64, readings []angle.Reading) (err error) {
	if len(readings) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for chunk := range slices.Chunk(readings, maxReadingsPerInsert) {
		if err = insertReadings(ctx, tx, sessionID, chunk); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func insertReadings(ctx context.Context, tx *sql.Tx, sessionID int64, readings []angle.Reading) error {
	values := make([]any, 0, len(readings)*5)

	const valuesPlaceholder = "(?, ?, ?, ?, ?)"

	var sb strings.Builder

	sb.WriteString(insertReadingSQL)

	for i, r := range readings {
		values = append(values,
			sessionID,
			toTimestamp(r.Timestamp),
			int64(r.Sample),
			r.Theta,
			r.Degrees(),
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting readings: %w", err)
	}
	return nil
}

// ReadAngles returns a reader over the readings of a session, in time order.
// The reader must be closed after use.
func (s *SqliteStore) ReadAngles(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteAngleReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteAngleReader(ctx, db, sessionID, opts...)
}

// Summary aggregates the readings of a session. An empty session yields a
// zero Count and zero times.
func (s *SqliteStore) Summary(ctx context.Context, sessionID int64) (summary *Summary, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSummarySQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var count int64
	var first, last sql.NullInt64
	var minDeg, maxDeg sql.NullFloat64
	if err = stmt.QueryRowContext(ctx, sessionID).Scan(&count, &first, &last, &minDeg, &maxDeg); err != nil {
		err = fmt.Errorf("scanning summary: %w", err)
		return
	}

	summary = &Summary{
		Count:      count,
		MinDegrees: minDeg.Float64,
		MaxDegrees: maxDeg.Float64,
	}
	if first.Valid {
		summary.FirstTime = fromTimestamp(first.Int64)
	}
	if last.Valid {
		summary.LastTime = fromTimestamp(last.Int64)
	}
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.writeDB != nil {
			errs = append(errs, s.writeDB.Close())
			s.writeDB = nil
		}

		if s.readDB != nil {
			errs = append(errs, s.readDB.Close())
			s.readDB = nil
		}

		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}
