package flic

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{0xaa, 0xbb, 0xcc}))
	assert.Equal(t, []byte{0x03, 0x00, 0xaa, 0xbb, 0xcc}, buf.Bytes())
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len())
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{EvtPingResponse}},
		{"button event", buttonPayload(EvtButtonUpOrDown, 1, ButtonDown, false, 0)},
		{"max size", bytes.Repeat([]byte{0x5a}, MaxPayloadSize)},
		{"length above 255", bytes.Repeat([]byte{0x01}, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteFrame(&buf, tt.payload))
			assert.Equal(t, LengthPrefixSize+len(tt.payload), buf.Len())

			got, err := ReadFrame(&buf)
			require.NoError(t, err)
			assert.Equal(t, len(tt.payload), len(got))
			assert.True(t, bytes.Equal(tt.payload, got))
		})
	}
}

func TestReadFrameShortReads(t *testing.T) {
	var buf bytes.Buffer
	payload := buttonPayload(EvtButtonUpOrDown, 2, ButtonUp, true, 30)
	require.NoError(t, WriteFrame(&buf, payload))
	require.NoError(t, WriteFrame(&buf, EncodePing(1)))

	r := iotest.OneByteReader(&buf)
	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, EncodePing(1), got)
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"half prefix", []byte{0x05}},
		{"missing payload", []byte{0x05, 0x00}},
		{"short payload", []byte{0x05, 0x00, 0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			assert.ErrorIs(t, err, errPartialFrame)
		})
	}
}

func TestReadFrameReaderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ReadFrame(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, errPartialFrame)
}
