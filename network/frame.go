package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/livemap/client/common"
	"github.com/livemap/client/logger"
)

const (
	FrameHeaderSize = 4
	MaxFrameResyncs = 3
)

var (
	ErrFrameTooLarge = errors.New("frame too large")
	ErrShortWrite    = errors.New("short write")

	errFrameResync = errors.New("frame resync")
)

// FrameReader reads length prefixed frames one at a time. The payload
// returned by ReadFrame is only valid until the next call.
type FrameReader struct {
	r       io.Reader
	buf     *common.Buffer
	maxSize uint32
	resyncs int
}

func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:       r,
		buf:     common.NewBuffer(int(maxSize)),
		maxSize: maxSize,
	}
}

func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		size, err := fr.readHeader()
		if err != nil {
			return nil, err
		}
		if size > fr.maxSize {
			return nil, fmt.Errorf("frame size %d over %d: %w", size, fr.maxSize, ErrFrameTooLarge)
		}
		payload, err := fr.readPayload(size)
		if errors.Is(err, errFrameResync) {
			fr.resyncs++
			logger.Verbosef("network.FrameReader resync %d of %d\n", fr.resyncs, MaxFrameResyncs)
			if fr.resyncs > MaxFrameResyncs {
				return nil, fmt.Errorf("frame resync limit %d reached", MaxFrameResyncs)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		fr.resyncs = 0
		return payload, nil
	}
}

func (fr *FrameReader) readHeader() (uint32, error) {
	var header [FrameHeaderSize]byte
	for {
		n, err := io.ReadFull(fr.r, header[:])
		if n == FrameHeaderSize {
			return binary.LittleEndian.Uint32(header[:]), nil
		}
		if n == 0 {
			if isTemporary(err) {
				continue
			}
			return 0, err
		}
		logger.Verbosef("network.FrameReader short header %d %v\n", n, err)
		m, err := io.ReadFull(fr.r, header[n:])
		if n+m == FrameHeaderSize {
			return binary.LittleEndian.Uint32(header[:]), nil
		}
		return 0, fmt.Errorf("frame header %d bytes: %w", n+m, err)
	}
}

func (fr *FrameReader) readPayload(size uint32) ([]byte, error) {
	data, err := fr.buf.Resize(int(size))
	if err != nil {
		return nil, err
	}
	n, err := io.ReadFull(fr.r, data)
	if n == len(data) {
		return data, nil
	}
	logger.Verbosef("network.FrameReader short payload %d of %d %v\n", n, size, err)
	m, err := io.ReadFull(fr.r, data[n:])
	if n+m == len(data) {
		return data, nil
	}
	if IsPeerClosed(err) {
		return nil, err
	}
	return nil, fmt.Errorf("frame payload %d of %d %v: %w", n+m, size, err, errFrameResync)
}

// FrameWriter writes each frame with a single Write call. It is safe for
// concurrent use.
type FrameWriter struct {
	sync.Mutex
	w io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

func (fw *FrameWriter) WriteFrame(payload []byte) error {
	frame := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[FrameHeaderSize:], payload)

	fw.Lock()
	defer fw.Unlock()

	n, err := fw.w.Write(frame)
	if err != nil {
		return err
	}
	if n < len(frame) {
		logger.Printf("network.FrameWriter short write %d of %d\n", n, len(frame))
		return fmt.Errorf("wrote %d of %d: %w", n, len(frame), ErrShortWrite)
	}
	return nil
}
