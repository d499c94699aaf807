package flic

import "errors"

// Errors returned by the flic package. Callers match them with errors.Is.
var (
	// ErrInvalidAddressLength is returned when a button address is not exactly 6 bytes.
	ErrInvalidAddressLength = errors.New("flic: button address must be 6 bytes")

	// ErrInvalidAddress is returned when a button address string cannot be parsed.
	ErrInvalidAddress = errors.New("flic: invalid button address")

	// ErrTruncated is returned when an event payload is shorter than its opcode requires.
	ErrTruncated = errors.New("flic: truncated packet")

	// ErrFrameTooLarge is returned when a payload does not fit a 16-bit length prefix.
	ErrFrameTooLarge = errors.New("flic: frame too large")

	// ErrResolve is returned when the daemon host name cannot be resolved.
	ErrResolve = errors.New("flic: resolve daemon host")

	// ErrSocket is returned when the TCP connection to the daemon cannot be opened.
	ErrSocket = errors.New("flic: connect to daemon")

	// ErrSend is returned when a command cannot be written to the daemon.
	ErrSend = errors.New("flic: send command")

	// ErrRead is returned when the daemon connection fails mid-read.
	ErrRead = errors.New("flic: read from daemon")

	// ErrNotConnected is returned when an operation needs an open channel.
	ErrNotConnected = errors.New("flic: not connected")

	// ErrAlreadyConnected is returned by Connect on a live connection.
	ErrAlreadyConnected = errors.New("flic: already connected")

	// ErrConnectAborted is returned by Connect when Disconnect ran while it was connecting.
	ErrConnectAborted = errors.New("flic: connect aborted by disconnect")

	// ErrChannelRejected is returned when the daemon refuses to create the connection channel.
	ErrChannelRejected = errors.New("flic: connection channel rejected")

	// ErrChannelRemoved is returned when the daemon removes our connection channel.
	ErrChannelRemoved = errors.New("flic: connection channel removed")

	// ErrDaemonUnresponsive is returned when the daemon stops answering pings.
	ErrDaemonUnresponsive = errors.New("flic: daemon unresponsive")
)
