package daq

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

// FrameSize is the size in bytes of one binary frame: one little-endian int16 per channel
const FrameSize = 2 * rdc.NumChannels

// DecodeFrame decodes one binary frame. p must hold at least FrameSize bytes.
func DecodeFrame(p []byte) (rdc.Frame, error) {
	var f rdc.Frame
	if len(p) < FrameSize {
		return f, fmt.Errorf("short frame: %d bytes, want %d", len(p), FrameSize)
	}

	for i := range f {
		f[i] = int16(binary.LittleEndian.Uint16(p[2*i:]))
	}
	return f, nil
}

// AppendFrame appends the binary encoding of f to p
func AppendFrame(p []byte, f rdc.Frame) []byte {
	for _, v := range f {
		p = binary.LittleEndian.AppendUint16(p, uint16(v))
	}
	return p
}

// FrameReader reassembles fixed size frames from a byte stream. Reads may
// return any number of bytes, including none when the port read timeout
// expires; frame alignment is kept across reads.
type FrameReader struct {
	r   io.Reader
	buf [FrameSize]byte
	n   int // bytes of the current frame already received
}

// NewFrameReader creates a FrameReader on r. r must be positioned on a frame boundary.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next blocks until a complete frame has been received or ctx is done. An
// empty read is retried after checking ctx, so a port with a read timeout
// lets cancellation through between reads.
func (fr *FrameReader) Next(ctx context.Context) (rdc.Frame, error) {
	for fr.n < FrameSize {
		if err := ctx.Err(); err != nil {
			return rdc.Frame{}, err
		}

		n, err := fr.r.Read(fr.buf[fr.n:])
		fr.n += n
		if err != nil {
			if errors.Is(err, io.EOF) && fr.n < FrameSize {
				if fr.n > 0 {
					return rdc.Frame{}, io.ErrUnexpectedEOF
				}
				return rdc.Frame{}, io.EOF
			}
			if fr.n < FrameSize {
				return rdc.Frame{}, err
			}
		}
	}

	fr.n = 0
	return DecodeFrame(fr.buf[:])
}

// Pending returns the number of bytes of an incomplete frame held by the reader
func (fr *FrameReader) Pending() int {
	return fr.n
}
