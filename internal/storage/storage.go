package storage

import (
	"context"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// Store provides an interface for managing synchro tracking data storage operations.
// It handles sessions and decimated angle readings in a thread-safe manner.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new tracking session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - deviceType: Type of acquisition device (e.g., "di-2108", "simulator")
	//   - deviceID: Identifier of the device (e.g., serial port path)
	//   - config: Optional device configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error)

	// Session retrieves a specific tracking session by its ID.
	Session(ctx context.Context, id int64) (session *angle.TrackingSession, err error)

	// Sessions returns all tracking sessions stored in the database,
	// ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*angle.TrackingSession, err error)

	// StoreReadings saves decimated readings for a session in a single atomic transaction.
	StoreReadings(ctx context.Context, sessionID int64, readings []angle.Reading) error

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
