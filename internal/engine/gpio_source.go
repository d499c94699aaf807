package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/doorbell-pi/internal/gpio"
	"github.com/sweeney/doorbell-pi/internal/logic"
)

// DefaultPollInterval is how often the button input is sampled.
const DefaultPollInterval = 10 * time.Millisecond

// GPIOSource polls a button input and debounces it into presses.
type GPIOSource struct {
	in       gpio.Input
	detector *logic.Detector
	poll     time.Duration
	logger   *zap.Logger

	now  func() time.Time
	tick <-chan time.Time // replaces the ticker when set
}

// NewGPIOSource creates a source sampling in every poll interval.
func NewGPIOSource(in gpio.Input, minTrigger, poll time.Duration, logger *zap.Logger) *GPIOSource {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPIOSource{
		in:       in,
		detector: logic.NewDetector(minTrigger),
		poll:     poll,
		logger:   logger,
		now:      time.Now,
	}
}

// Name returns "gpio".
func (s *GPIOSource) Name() string { return string(logic.SourceGPIO) }

// Run samples the input until ctx is cancelled. Read errors are logged and
// sampling continues.
func (s *GPIOSource) Run(ctx context.Context, emit func(logic.Press)) error {
	tick := s.tick
	if tick == nil {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.logger.Info("sampling gpio input",
		zap.Duration("poll", s.poll),
		zap.Duration("min_trigger", s.detector.Minimum()),
	)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-tick:
			if !ok {
				return nil
			}
			now := s.now()
			pressed, err := s.in.Pressed()
			if err != nil {
				if failures == 0 {
					s.logger.Warn("gpio read error", zap.Error(err))
				}
				failures++
				continue
			}
			if failures > 0 {
				s.logger.Info("gpio read recovered", zap.Int("failed_reads", failures))
				failures = 0
			}

			if s.detector.Process(pressed, now) {
				emit(logic.NewPress(logic.SourceGPIO, now))
			}
		}
	}
}
