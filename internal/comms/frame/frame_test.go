package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/aegis-platform/aegis/internal/testutil/testlog"
)

// chunkSource replays a scripted sequence of chunks, then EOF. Chunks larger
// than the decoder's read buffer are delivered across multiple reads.
type chunkSource struct {
	chunks [][]byte
	pos    int
}

func (s *chunkSource) ReadChunk(p []byte) (int, error) {
	if s.pos >= len(s.chunks) {
		return 0, io.EOF
	}
	c := s.chunks[s.pos]
	n := copy(p, c)
	if n == len(c) {
		s.pos++
	} else {
		s.chunks[s.pos] = c[n:]
	}
	return n, nil
}

type chunkSink struct {
	writes [][]byte
}

func (s *chunkSink) WriteChunk(p []byte) error {
	buf := make([]byte, len(p))
	copy(buf, p)
	s.writes = append(s.writes, buf)
	return nil
}

func encodeAll(t *testing.T, payloads ...[]byte) []byte {
	t.Helper()
	var out []byte
	for _, p := range payloads {
		buf, err := EncodeFrame(p, DefaultLimits())
		if err != nil {
			t.Fatalf("encode frame: %v", err)
		}
		out = append(out, buf...)
	}
	return out
}

func splitEvery(data []byte, n int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		end := n
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[:end])
		data = data[end:]
	}
	return chunks
}

func TestRoundTripSingleChunk(t *testing.T) {
	testlog.Start(t)
	payload := []byte("hello, agents")
	dec := NewDecoder(&chunkSource{chunks: [][]byte{encodeAll(t, payload)}}, DefaultLimits())

	got, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestChunkBoundaryIndependence(t *testing.T) {
	testlog.Start(t)
	payloads := [][]byte{[]byte("First"), []byte("Second"), []byte("Third")}
	wire := encodeAll(t, payloads...)

	// Every split size from one byte at a time up to the whole stream in
	// one chunk must decode identically.
	for split := 1; split <= len(wire); split++ {
		dec := NewDecoder(&chunkSource{chunks: splitEvery(wire, split)}, DefaultLimits())
		for i, want := range payloads {
			got, err := dec.Next()
			if err != nil {
				t.Fatalf("split=%d frame=%d: %v", split, i, err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("split=%d frame=%d: got %q want %q", split, i, got, want)
			}
		}
		if _, err := dec.Next(); !errors.Is(err, io.EOF) {
			t.Fatalf("split=%d: expected io.EOF, got %v", split, err)
		}
	}
}

func TestThreeFramesInOneChunkArriveInOrder(t *testing.T) {
	testlog.Start(t)
	wire := encodeAll(t, []byte("First"), []byte("Second"), []byte("Third"))
	dec := NewDecoder(&chunkSource{chunks: [][]byte{wire}}, DefaultLimits())

	for _, want := range []string{"First", "Second", "Third"} {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("next %q: %v", want, err)
		}
		if string(got) != want {
			t.Fatalf("order violated: got %q want %q", got, want)
		}
	}
}

func TestEmptyPayloadFrame(t *testing.T) {
	testlog.Start(t)
	wire := encodeAll(t, nil)
	if len(wire) != 4 {
		t.Fatalf("empty frame should be prefix only, got %d bytes", len(wire))
	}
	if binary.BigEndian.Uint32(wire) != 0 {
		t.Fatalf("length prefix should be zero")
	}

	dec := NewDecoder(&chunkSource{chunks: [][]byte{wire}}, DefaultLimits())
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got))
	}
}

func TestPartialFrameWaitsForBody(t *testing.T) {
	testlog.Start(t)
	payload := []byte("slow body")
	wire := encodeAll(t, payload)

	// Prefix first, then the body one byte at a time.
	chunks := [][]byte{wire[:4]}
	for _, b := range wire[4:] {
		chunks = append(chunks, []byte{b})
	}
	src := &chunkSource{chunks: chunks}
	dec := NewDecoder(src, DefaultLimits())

	got, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}
	if src.pos != len(chunks) {
		t.Fatalf("decoder returned before consuming the full body: pos=%d", src.pos)
	}
}

func TestCleanCloseOnFrameBoundary(t *testing.T) {
	testlog.Start(t)
	dec := NewDecoder(&chunkSource{}, DefaultLimits())
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	// Terminal state is sticky.
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on repeat call, got %v", err)
	}
}

func TestTornCloseInsideFrame(t *testing.T) {
	testlog.Start(t)
	wire := encodeAll(t, []byte("truncated"))
	dec := NewDecoder(&chunkSource{chunks: [][]byte{wire[:len(wire)-3]}}, DefaultLimits())

	_, err := dec.Next()
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame, got %v", err)
	}
	if dec.Buffered() == 0 {
		t.Fatalf("torn close should leave the partial frame buffered")
	}
	if _, err := dec.Next(); !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("decoder should stay failed, got %v", err)
	}
}

func TestOversizedLengthRejectedBeforeBuffering(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxFrameBytes: 16}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 17)

	// Only the prefix is available; the decoder must fail on the declared
	// length without waiting for body bytes.
	dec := NewDecoder(&chunkSource{chunks: [][]byte{prefix[:]}}, limits)
	_, err := dec.Next()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("decoder should stay failed, got %v", err)
	}
}

func TestOversizedEncodeWritesNothing(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxFrameBytes: 8}
	sink := &chunkSink{}
	enc := NewEncoder(sink, limits)

	if err := enc.Write(make([]byte, 9)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("oversized encode must not reach the stream")
	}
}

func TestEncoderWritesFrameAsSingleChunk(t *testing.T) {
	testlog.Start(t)
	sink := &chunkSink{}
	enc := NewEncoder(sink, DefaultLimits())

	payload := []byte("one write")
	if err := enc.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("frame should be one chunk write, got %d", len(sink.writes))
	}
	wire := sink.writes[0]
	if binary.BigEndian.Uint32(wire[:4]) != uint32(len(payload)) {
		t.Fatalf("bad length prefix")
	}
	if !bytes.Equal(wire[4:], payload) {
		t.Fatalf("bad body")
	}
}

func TestMaxSizedPayloadRoundTrips(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxFrameBytes: 64}
	payload := bytes.Repeat([]byte{0xA5}, 64)

	wire, err := EncodeFrame(payload, limits)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := NewDecoder(&chunkSource{chunks: splitEvery(wire, 7)}, limits)
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
}
