package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time  DATETIME NOT NULL,
    device_type TEXT     NOT NULL,
    device_id   TEXT     NOT NULL,
    config      TEXT
);

CREATE TABLE IF NOT EXISTS readings (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions (id),
    timestamp  INTEGER NOT NULL, -- unix nanoseconds, UTC
    sample     INTEGER NOT NULL,
    theta      REAL    NOT NULL,
    degrees    REAL    NOT NULL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_session_timestamp ON readings (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      device_type,
                      device_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertReadingSQL = `
INSERT INTO readings (
                      session_id,
                      timestamp,
                      sample,
                      theta,
                      degrees)
VALUES `

	selectReadingsSQL = `
SELECT
    id,
    timestamp,
    sample,
    theta
FROM readings
WHERE
    session_id = ?
    AND timestamp >= ?
    AND timestamp <= ?
    AND (timestamp, id) > (?, ?)
ORDER BY timestamp, id
LIMIT ?`

	selectSummarySQL = `
SELECT
    COUNT(*),
    MIN(timestamp),
    MAX(timestamp),
    MIN(degrees),
    MAX(degrees)
FROM readings
WHERE
    session_id = ?`
)
