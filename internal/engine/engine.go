// Package engine ties a press source to the chime and the notifiers.
//
// A receiver goroutine runs the configured Source; a ring worker plays the
// pattern and notifies. At most one ring runs at a time: presses that arrive
// while the worker is busy are dropped and counted.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/doorbell-pi/internal/chime"
	"github.com/sweeney/doorbell-pi/internal/gpio"
	"github.com/sweeney/doorbell-pi/internal/logic"
	"github.com/sweeney/doorbell-pi/internal/notify"
	"github.com/sweeney/doorbell-pi/internal/status"
)

// Source produces presses until ctx is cancelled.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Run blocks, calling emit for each press. It returns nil once ctx is
	// cancelled and an error only when the source cannot continue.
	// emit never blocks and must not be called after Run returns.
	Run(ctx context.Context, emit func(logic.Press)) error
}

// Options configures an Engine.
type Options struct {
	Pattern       chime.Pattern
	NotifyTimeout time.Duration
}

// Engine is the doorbell main loop.
type Engine struct {
	source   Source
	out      gpio.Output
	notifier notify.Notifier
	tracker  *status.Tracker
	opts     Options
	logger   *zap.Logger

	ring func(ctx context.Context, p chime.Pattern, out gpio.Output) error
	busy atomic.Bool
}

// New creates an Engine. notifier and tracker may be nil.
func New(source Source, out gpio.Output, notifier notify.Notifier, tracker *status.Tracker, opts Options, logger *zap.Logger) *Engine {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = notify.DefaultTimeout
	}
	if opts.Pattern.Kind == "" {
		opts.Pattern = chime.Classic(chime.DefaultPulse)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source:   source,
		out:      out,
		notifier: notifier,
		tracker:  tracker,
		opts:     opts,
		logger:   logger,
		ring:     chime.Run,
	}
}

// Run drives the output low, then serves presses until ctx is cancelled or
// the source fails. The output is low when Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.out.Set(false); err != nil {
		return fmt.Errorf("engine: drive output low: %w", err)
	}
	defer func() {
		if err := e.out.Set(false); err != nil {
			e.logger.Error("failed to drive output low on exit", zap.Error(err))
		}
	}()

	// Capacity 1 with the busy flag guarantees emit never blocks.
	presses := make(chan logic.Press, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(presses)
		if err := e.source.Run(gctx, func(p logic.Press) { e.offer(presses, p) }); err != nil {
			return fmt.Errorf("%s source: %w", e.source.Name(), err)
		}
		return nil
	})
	g.Go(func() error {
		for p := range presses {
			e.handle(gctx, p)
			e.busy.Store(false)
		}
		return nil
	})

	e.logger.Info("doorbell ready",
		zap.String("source", e.source.Name()),
		zap.Stringer("pattern", e.opts.Pattern),
	)
	return g.Wait()
}

func (e *Engine) offer(presses chan<- logic.Press, p logic.Press) {
	if !e.busy.CompareAndSwap(false, true) {
		e.logger.Info("press ignored, already ringing",
			zap.String("id", p.ID.String()),
			zap.String("source", string(p.Source)),
		)
		if e.tracker != nil {
			e.tracker.RecordDropped()
		}
		return
	}
	presses <- p
}

func (e *Engine) handle(ctx context.Context, p logic.Press) {
	e.logger.Info("doorbell pressed",
		zap.String("id", p.ID.String()),
		zap.String("source", string(p.Source)),
	)
	if e.tracker != nil {
		e.tracker.RecordPress(p)
		e.tracker.SetRinging(true)
	}

	err := e.ring(ctx, e.opts.Pattern, e.out)

	if e.tracker != nil {
		e.tracker.SetRinging(false)
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.logger.Error("ring failed", zap.String("id", p.ID.String()), zap.Error(err))
		if e.tracker != nil {
			e.tracker.RecordFailed()
		}
	}

	e.notify(ctx, p)
}

func (e *Engine) notify(ctx context.Context, p logic.Press) {
	if e.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, e.opts.NotifyTimeout)
	defer cancel()

	if err := e.notifier.Notify(nctx, p); err != nil {
		e.logger.Warn("notification failed", zap.String("id", p.ID.String()), zap.Error(err))
		return
	}
	e.logger.Debug("notification sent", zap.String("id", p.ID.String()))
}
