package flic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// LengthPrefixSize is the size of the frame length prefix in bytes.
	LengthPrefixSize = 2

	// MaxPayloadSize is the largest payload a 16-bit prefix can describe.
	MaxPayloadSize = 0xFFFF
)

// WriteFrame writes payload prefixed with its uint16 little-endian length
// in a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.LittleEndian.PutUint16(frame, uint16(len(payload)))
	copy(frame[LengthPrefixSize:], payload)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// errPartialFrame marks a read that failed after part of a frame was consumed.
// The stream is out of sync afterwards.
var errPartialFrame = errors.New("flic: partial frame")

// ReadFrame reads one length-prefixed frame and returns its payload.
// Short reads are retried until the frame is complete; a stream that ends
// mid-frame yields io.ErrUnexpectedEOF, a stream that ends cleanly io.EOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if n, err := io.ReadFull(r, prefix[:]); err != nil {
		if n > 0 {
			return nil, fmt.Errorf("%w: %w", errPartialFrame, err)
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint16(prefix[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %w", errPartialFrame, err)
	}
	return payload, nil
}
