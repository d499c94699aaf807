package flic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Connection defaults.
const (
	// DefaultPort is the TCP port flicd listens on.
	DefaultPort = 5551

	// DefaultReadTimeout is how long a read may sit idle before the daemon is pinged.
	DefaultReadTimeout = 60 * time.Second

	// AutoDisconnectNever tells the daemon to keep the button connected indefinitely.
	AutoDisconnectNever int16 = 511

	// MaxPressAge is the oldest queued press, in seconds, still treated as a ring.
	// Older presses are state the daemon replays after a reconnect.
	MaxPressAge = 10

	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// ConnectionState is the lifecycle state of a Connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Options configures the connection channel created on Connect.
type Options struct {
	ConnID         uint32
	Latency        LatencyMode
	AutoDisconnect int16
	// ReadTimeout of zero disables idle pings.
	ReadTimeout time.Duration
	DialTimeout time.Duration
	Resolver    Resolver
}

// Connection is a client session with flicd holding one connection channel.
// Connect, Disconnect and IsConnected are safe for concurrent use;
// WaitForNextPress must only be called from one goroutine at a time.
type Connection struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	state  ConnectionState
	conn   net.Conn
	pingID uint32
	gen    uint64 // bumped by Disconnect; a Connect started under an older gen is void
}

// NewConnection creates a disconnected Connection.
func NewConnection(opts Options, logger *zap.Logger) *Connection {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection channel is established.
func (c *Connection) IsConnected() bool {
	return c.State() == Connected
}

// Connect opens a TCP connection to flicd at host:port and creates a
// connection channel for addr. On failure the connection is left
// Disconnected with no socket open.
func (c *Connection) Connect(ctx context.Context, host string, port int, addr ButtonAddress) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = Connecting
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.open(ctx, host, port, addr)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		if conn != nil {
			conn.Close()
		}
		return ErrConnectAborted
	}
	if err != nil {
		c.state = Disconnected
		return err
	}
	c.conn = conn
	c.state = Connected
	c.logger.Info("connection channel created",
		zap.String("daemon", conn.RemoteAddr().String()),
		zap.Stringer("button", addr),
		zap.Uint32("conn_id", c.opts.ConnID),
	)
	return nil
}

func (c *Connection) open(ctx context.Context, host string, port int, addr ButtonAddress) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	addrs, err := c.opts.Resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolve, host)
	}

	conn, err := dialFirst(ctx, addrs, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocket, err)
	}

	cmd := EncodeCreateChannel(addr, c.opts.ConnID, c.opts.Latency, c.opts.AutoDisconnect)
	if err := writeCommand(conn, cmd); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: create channel: %w", ErrSend, err)
	}
	return conn, nil
}

// dialFirst tries each resolved address in order and returns the first
// connection, or the last dial error.
func dialFirst(ctx context.Context, addrs []string, port int) (net.Conn, error) {
	var dialer net.Dialer
	var lastErr error
	for _, a := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(a, strconv.Itoa(port)))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Disconnect removes the connection channel (best effort) and closes the
// socket. Calling it on a disconnected Connection does nothing. A Connect
// in progress fails with ErrConnectAborted.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	if c.conn == nil {
		c.state = Disconnected
		return
	}
	if c.state == Connected {
		if err := writeCommand(c.conn, EncodeRemoveChannel(c.opts.ConnID)); err != nil {
			c.logger.Debug("remove channel failed", zap.Error(err))
		}
	}
	c.conn.Close()
	c.conn = nil
	c.state = Disconnected
	c.logger.Info("disconnected from flicd")
}

// WaitForNextPress blocks until a fresh button-down event arrives on our
// channel and returns true. Up events, click classifications and presses
// older than MaxPressAge seconds are skipped. Any read failure leaves the
// connection Disconnected. Cancelling ctx unblocks the wait and returns
// ctx.Err() without tearing down the channel, unless the cancel landed
// mid-frame, which drops the socket.
func (c *Connection) WaitForNextPress(ctx context.Context) (bool, error) {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != Connected || conn == nil {
		return false, ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	pinged := false
	for {
		if c.opts.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		} else {
			conn.SetReadDeadline(time.Time{})
		}
		// Checked after arming the deadline so a concurrent cancel always wins.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		payload, err := ReadFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				// A half-read frame leaves the stream out of sync.
				if errors.Is(err, errPartialFrame) {
					c.drop(conn)
				}
				return false, ctx.Err()
			}
			if isIdleTimeout(err) {
				if pinged {
					c.drop(conn)
					return false, ErrDaemonUnresponsive
				}
				if err := c.ping(conn); err != nil {
					c.drop(conn)
					return false, fmt.Errorf("%w: ping: %w", ErrSend, err)
				}
				pinged = true
				continue
			}
			c.drop(conn)
			return false, fmt.Errorf("%w: %w", ErrRead, err)
		}
		pinged = false

		ev, err := DecodeEvent(payload)
		if err != nil {
			c.logger.Debug("skipping packet", zap.Error(err))
			continue
		}

		pressed, err := c.dispatch(conn, ev)
		if err != nil {
			return false, err
		}
		if pressed {
			return true, nil
		}
	}
}

// dispatch handles one event and reports whether it is a qualifying press.
func (c *Connection) dispatch(conn net.Conn, ev Event) (bool, error) {
	switch e := ev.(type) {
	case ButtonEvent:
		if e.Op != EvtButtonUpOrDown || e.ConnID != c.opts.ConnID {
			return false, nil
		}
		if e.ClickType != ButtonDown {
			return false, nil
		}
		if e.TimeDiff >= MaxPressAge {
			c.logger.Debug("ignoring stale press", zap.Int32("age_s", e.TimeDiff), zap.Bool("queued", e.WasQueued))
			return false, nil
		}
		return true, nil

	case ChannelResponse:
		if e.ConnID != c.opts.ConnID {
			return false, nil
		}
		if e.Error != CreateChannelNoError {
			c.drop(conn)
			return false, fmt.Errorf("%w: error code %d", ErrChannelRejected, e.Error)
		}
		c.logger.Info("button channel ready", zap.Stringer("status", e.Status))

	case StatusChanged:
		if e.ConnID == c.opts.ConnID {
			c.logger.Info("button connection status changed",
				zap.Stringer("status", e.Status),
				zap.Uint8("disconnect_reason", e.DisconnectReason),
			)
		}

	case ChannelRemoved:
		if e.ConnID == c.opts.ConnID {
			c.drop(conn)
			return false, fmt.Errorf("%w: reason %d", ErrChannelRemoved, e.Reason)
		}

	case PingResponse:
		c.logger.Debug("ping response", zap.Uint32("ping_id", e.PingID))
	}
	return false, nil
}

func (c *Connection) ping(conn net.Conn) error {
	c.mu.Lock()
	c.pingID++
	id := c.pingID
	c.mu.Unlock()
	return writeCommand(conn, EncodePing(id))
}

// drop closes conn if it is still the active socket.
func (c *Connection) drop(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	conn.Close()
	c.conn = nil
	c.state = Disconnected
}

func writeCommand(conn net.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return WriteFrame(conn, payload)
}

// isIdleTimeout reports a read deadline expiring between frames.
func isIdleTimeout(err error) bool {
	if errors.Is(err, errPartialFrame) || errors.Is(err, io.EOF) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
