package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// DefaultMaxBatchSize is the number of readings the Recorder buffers before
// writing them out
const DefaultMaxBatchSize = 150

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithMaxBatchSize sets the flush threshold. Non-positive values are ignored.
func WithMaxBatchSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.maxBatchSize = n
		}
	}
}

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// Recorder persists readings of one session. It buffers them and stores a
// batch every maxBatchSize readings and on Close.
type Recorder struct {
	store        Store
	sessionID    int64
	maxBatchSize int
	logger       *slog.Logger

	mu     sync.Mutex
	buf    []angle.Reading
	stored uint64
	closed bool
}

func NewRecorder(store Store, sessionID int64, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:        store,
		sessionID:    sessionID,
		maxBatchSize: DefaultMaxBatchSize,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.buf = make([]angle.Reading, 0, r.maxBatchSize)
	return r
}

// Emit buffers a reading and stores the batch once it is full. A failed
// batch is dropped so that a broken database does not grow the buffer.
func (r *Recorder) Emit(ctx context.Context, reading angle.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder: %w", ErrRecorderClosed)
	}

	r.buf = append(r.buf, reading)
	if len(r.buf) < r.maxBatchSize {
		return nil
	}
	return r.flush(ctx)
}

func (r *Recorder) flush(ctx context.Context) error {
	if len(r.buf) == 0 {
		return nil
	}

	n := len(r.buf)
	err := r.store.StoreReadings(ctx, r.sessionID, r.buf)
	r.buf = r.buf[:0]
	if err != nil {
		return fmt.Errorf("storing %d readings: %w", n, err)
	}

	r.stored += uint64(n)
	r.logger.Debug("readings stored", slog.Int("count", n), slog.Uint64("total", r.stored))
	return nil
}

// Stored returns the number of readings written so far
func (r *Recorder) Stored() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored
}

// Close stores what is left in the buffer. It does not close the store.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.flush(context.Background())
}
