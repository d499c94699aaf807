package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/sweeney/doorbell-pi/internal/flic"
	"github.com/sweeney/doorbell-pi/internal/logic"
)

// Reconnect defaults.
const (
	DefaultMaxReconnectAttempts = 10
	DefaultReconnectInitial     = time.Second
	DefaultReconnectMax         = time.Minute
)

// ErrReconnectExhausted is returned when flicd stays unreachable for every
// allowed reconnect attempt.
var ErrReconnectExhausted = errors.New("engine: reconnect attempts exhausted")

// Conn is the flicd session a RemoteSource drives. *flic.Connection
// satisfies it.
type Conn interface {
	Connect(ctx context.Context, host string, port int, addr flic.ButtonAddress) error
	WaitForNextPress(ctx context.Context) (bool, error)
	Disconnect()
}

// RemoteOptions configures a RemoteSource.
type RemoteOptions struct {
	Host   string
	Port   int
	Button flic.ButtonAddress

	// MaxReconnectAttempts bounds consecutive failed connects; 0 means unlimited.
	MaxReconnectAttempts int
	InitialInterval      time.Duration
	MaxInterval          time.Duration

	// OnConnectionChange, if set, is called when the channel comes up or goes down.
	OnConnectionChange func(connected bool)
}

// RemoteSource turns button-down events from flicd into presses,
// reconnecting with exponential backoff when the daemon goes away.
type RemoteSource struct {
	conn   Conn
	opts   RemoteOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewRemoteSource creates a source on conn.
func NewRemoteSource(conn Conn, opts RemoteOptions, logger *zap.Logger) *RemoteSource {
	if opts.Port == 0 {
		opts.Port = flic.DefaultPort
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultReconnectInitial
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultReconnectMax
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteSource{conn: conn, opts: opts, logger: logger, now: time.Now}
}

// Name returns "flic".
func (s *RemoteSource) Name() string { return string(logic.SourceFlic) }

// Run connects and waits for presses until ctx is cancelled. A lost
// connection is re-established after InitialInterval; running out of
// reconnect attempts ends Run with ErrReconnectExhausted.
func (s *RemoteSource) Run(ctx context.Context, emit func(logic.Press)) error {
	defer s.conn.Disconnect()

	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err := s.listen(ctx, emit)
		s.setConnected(false)
		if ctx.Err() != nil {
			return nil
		}

		s.logger.Warn("lost flicd connection",
			zap.Error(err),
			zap.Duration("retry_in", s.opts.InitialInterval),
		)
		s.conn.Disconnect()
		if err := wait(ctx, s.opts.InitialInterval); err != nil {
			return nil
		}
	}
}

func (s *RemoteSource) connect(ctx context.Context) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.InitialInterval
	eb.MaxInterval = s.opts.MaxInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if s.opts.MaxReconnectAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(s.opts.MaxReconnectAttempts))
	}
	b = backoff.WithContext(b, ctx)

	attempts := 0
	op := func() error {
		attempts++
		return s.conn.Connect(ctx, s.opts.Host, s.opts.Port, s.opts.Button)
	}
	onRetry := func(err error, next time.Duration) {
		s.logger.Warn("flicd connect failed",
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", next),
		)
	}

	if err := backoff.RetryNotify(op, b, onRetry); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %d attempts to %s:%d: %w", ErrReconnectExhausted, attempts, s.opts.Host, s.opts.Port, err)
	}

	s.logger.Info("listening for flic button",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.Stringer("button", s.opts.Button),
		zap.Int("attempts", attempts),
	)
	s.setConnected(true)
	return nil
}

func (s *RemoteSource) listen(ctx context.Context, emit func(logic.Press)) error {
	for {
		pressed, err := s.conn.WaitForNextPress(ctx)
		if err != nil {
			return err
		}
		if pressed {
			emit(logic.NewPress(logic.SourceFlic, s.now()))
		}
	}
}

func (s *RemoteSource) setConnected(connected bool) {
	if s.opts.OnConnectionChange != nil {
		s.opts.OnConnectionChange(connected)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
