package daq

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

func TestDecodeFrame(t *testing.T) {
	p := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0xff, 0x7f}

	f, err := DecodeFrame(p)
	require.NoError(t, err)
	assert.Equal(t, rdc.Frame{1, -1, -32768, 32767}, f)

	_, err = DecodeFrame(p[:7])
	assert.Error(t, err)
}

func TestFrameCodec(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var f rdc.Frame
		for i := range f {
			f[i] = rapid.Int16().Draw(t, "sample")
		}

		p := AppendFrame(nil, f)
		require.Len(t, p, FrameSize)

		got, err := DecodeFrame(p)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	})
}

// chunkReader returns the stream in the given chunk sizes, with empty reads in between
type chunkReader struct {
	data   []byte
	chunks []int
	empty  bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}

	r.empty = !r.empty
	if r.empty {
		return 0, nil // read timeout
	}

	n := len(r.data)
	if len(r.chunks) > 0 {
		n = min(n, r.chunks[0])
		r.chunks = r.chunks[1:]
	}
	n = copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestFrameReader_KeepsAlignment(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 20).Draw(t, "frames")
		chunks := rapid.SliceOf(rapid.IntRange(1, 2*FrameSize+3)).Draw(t, "chunks")

		var frames []rdc.Frame
		var stream []byte
		for i := 0; i < count; i++ {
			f := rdc.Frame{int16(i), int16(-i), int16(1000 * i), int16(i - 500)}
			frames = append(frames, f)
			stream = AppendFrame(stream, f)
		}

		fr := NewFrameReader(&chunkReader{data: stream, chunks: chunks})
		for i, want := range frames {
			got, err := fr.Next(context.Background())
			require.NoError(t, err, "frame %d", i)
			assert.Equal(t, want, got, "frame %d", i)
		}

		_, err := fr.Next(context.Background())
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestFrameReader_PartialFrameAtEOF(t *testing.T) {
	stream := AppendFrame(nil, rdc.Frame{1, 2, 3, 4})
	fr := NewFrameReader(iotest.OneByteReader(bytes.NewReader(stream[:5])))

	_, err := fr.Next(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 5, fr.Pending())
}

func TestFrameReader_ReadErrorKeepsBytes(t *testing.T) {
	stream := AppendFrame(nil, rdc.Frame{7, 8, 9, 10})
	boom := errors.New("boom")

	r := io.MultiReader(bytes.NewReader(stream[:3]), iotest.ErrReader(boom))
	fr := NewFrameReader(r)

	_, err := fr.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, fr.Pending())
}

func TestFrameReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fr := NewFrameReader(&chunkReader{data: []byte{1}})
	_, err := fr.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
