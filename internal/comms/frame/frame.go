package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire format: every frame is a 4-byte big-endian payload length followed by
// that many payload bytes. No magic, no checksum, no version field; the
// application payload carries its own header.
const lengthPrefixLen = 4

// DefaultMaxFrameBytes caps a single frame payload at 32 MiB.
const DefaultMaxFrameBytes uint32 = 32 * 1024 * 1024

var (
	ErrFrameTooLarge   = errors.New("frame: frame exceeds maximum size")
	ErrIncompleteFrame = errors.New("frame: stream ended inside a frame")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: DefaultMaxFrameBytes}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFrameBytes == 0 {
		l.MaxFrameBytes = DefaultMaxFrameBytes
	}
	return l
}

// ChunkReader is the read half of a stream the decoder consumes. It delivers
// opaque chunks with io.Reader semantics and never returns (0, nil).
type ChunkReader interface {
	ReadChunk(p []byte) (int, error)
}

// ChunkWriter is the write half of a stream the encoder targets.
type ChunkWriter interface {
	WriteChunk(p []byte) error
}

// Decoder reassembles complete frame payloads from arbitrarily chunked
// reads. It keeps one persistent buffer per stream: newly read chunks are
// appended at the back, consumed frames are trimmed from the front, so a
// frame split across any number of reads (or several frames packed into one
// read) decodes the same way. A Decoder is owned by a single goroutine.
type Decoder struct {
	src    ChunkReader
	limits Limits
	buf    []byte
	chunk  []byte

	err    error // terminal state, returned on every call once set
	srcErr error // pending source failure, surfaced once buffered frames drain
}

func NewDecoder(src ChunkReader, limits Limits) *Decoder {
	return &Decoder{
		src:    src,
		limits: limits.withDefaults(),
		chunk:  make([]byte, 16*1024),
	}
}

// Next returns the next complete frame payload. A clean end-of-stream on a
// frame boundary returns io.EOF; end-of-stream with a partial frame buffered
// returns ErrIncompleteFrame. An oversized declared length fails immediately,
// before any attempt to buffer the body, and poisons the decoder: the stream
// position can no longer be trusted.
func (d *Decoder) Next() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}

	for {
		if len(d.buf) >= lengthPrefixLen {
			length := binary.BigEndian.Uint32(d.buf[:lengthPrefixLen])
			if length > d.limits.MaxFrameBytes {
				d.err = fmt.Errorf("%w: declared %d bytes (max %d)",
					ErrFrameTooLarge, length, d.limits.MaxFrameBytes)
				return nil, d.err
			}
			total := lengthPrefixLen + int(length)
			if len(d.buf) >= total {
				payload := make([]byte, length)
				copy(payload, d.buf[lengthPrefixLen:total])
				d.buf = d.buf[:copy(d.buf, d.buf[total:])]
				return payload, nil
			}
		}

		if d.srcErr != nil {
			switch {
			case !errors.Is(d.srcErr, io.EOF):
				d.err = d.srcErr
			case len(d.buf) == 0:
				d.err = io.EOF
			default:
				d.err = fmt.Errorf("%w: %d bytes buffered at end of stream",
					ErrIncompleteFrame, len(d.buf))
			}
			return nil, d.err
		}

		n, err := d.src.ReadChunk(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
		}
		if err != nil {
			// Bytes delivered alongside the error may complete a frame;
			// parse them before surfacing it.
			d.srcErr = err
		}
	}
}

// Buffered reports how many bytes of an as-yet-incomplete frame are pending.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// EncodeFrame prepends the length prefix to payload. A nil or empty payload
// encodes as a valid length-zero frame.
func EncodeFrame(payload []byte, limits Limits) ([]byte, error) {
	limits = limits.withDefaults()
	if uint64(len(payload)) > uint64(limits.MaxFrameBytes) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)",
			ErrFrameTooLarge, len(payload), limits.MaxFrameBytes)
	}
	buf := make([]byte, lengthPrefixLen+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthPrefixLen], uint32(len(payload)))
	copy(buf[lengthPrefixLen:], payload)
	return buf, nil
}

// Encoder writes length-prefixed frames to a stream. Each frame goes out as
// a single chunk write so the prefix and body cannot be torn apart by an
// interleaved writer.
type Encoder struct {
	dst    ChunkWriter
	limits Limits
}

func NewEncoder(dst ChunkWriter, limits Limits) *Encoder {
	return &Encoder{dst: dst, limits: limits.withDefaults()}
}

func (e *Encoder) Write(payload []byte) error {
	buf, err := EncodeFrame(payload, e.limits)
	if err != nil {
		return err
	}
	return e.dst.WriteChunk(buf)
}
