package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

// toConfigData serializes an optional session configuration
func toConfigData(config any) (sql.NullString, error) {
	var configData sql.NullString

	switch c := config.(type) {
	case nil:
		return configData, nil

	case string:
		configData.String = c

	case []byte:
		configData.String = string(c)

	default:
		p, err := json.Marshal(c)
		if err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}
		configData.String = string(p)
	}

	configData.Valid = true
	return configData, nil
}

func toTrackingSession(sess *angle.TrackingSession, config sql.NullString) *angle.TrackingSession {
	if config.Valid {
		sess.Config = &config.String
	}
	return sess
}

// toTimestamp converts a time to the stored representation, unix nanoseconds in UTC
func toTimestamp(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromTimestamp(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
