// Package chime drives the doorbell relay through timed pulse patterns.
package chime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/doorbell-pi/internal/gpio"
)

// DefaultPulse is the high/low duration of one relay pulse.
const DefaultPulse = 20 * time.Millisecond

// Classic pattern shape.
const (
	classicRepeats     = 2
	classicBursts      = 2
	classicPulses      = 5
	classicBurstPause  = 500 * time.Millisecond
	classicRepeatPause = 2 * time.Second
)

// Kind names a ring pattern.
type Kind string

const (
	KindSingle  Kind = "single"
	KindClassic Kind = "classic"
)

// Pattern is an immutable ring pattern.
type Pattern struct {
	Kind  Kind
	Pulse time.Duration
}

// Single is one pulse: high, then low.
func Single(pulse time.Duration) Pattern {
	return Pattern{Kind: KindSingle, Pulse: pulse}
}

// Classic is two repeats of two bursts of five pulses, with a 500ms pause
// between bursts and a 2s pause between repeats.
func Classic(pulse time.Duration) Pattern {
	return Pattern{Kind: KindClassic, Pulse: pulse}
}

// ParsePattern maps "single" or "classic" to a Pattern.
// A non-positive pulse uses DefaultPulse.
func ParsePattern(name string, pulse time.Duration) (Pattern, error) {
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	switch Kind(name) {
	case KindSingle:
		return Single(pulse), nil
	case KindClassic, "":
		return Classic(pulse), nil
	default:
		return Pattern{}, fmt.Errorf("chime: unknown pattern %q (want single or classic)", name)
	}
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s/%s", p.Kind, p.Pulse)
}

// step holds the line at a level for a duration.
type step struct {
	on bool
	d  time.Duration
}

func (p Pattern) steps() []step {
	pulse := func(s []step) []step {
		return append(s, step{true, p.Pulse}, step{false, p.Pulse})
	}

	var s []step
	switch p.Kind {
	case KindSingle:
		s = pulse(s)
	case KindClassic:
		for r := 0; r < classicRepeats; r++ {
			for b := 0; b < classicBursts; b++ {
				for i := 0; i < classicPulses; i++ {
					s = pulse(s)
				}
				if b < classicBursts-1 {
					s = append(s, step{false, classicBurstPause})
				}
			}
			if r < classicRepeats-1 {
				s = append(s, step{false, classicRepeatPause})
			}
		}
	}
	return s
}

// Pulses returns how many times the relay is energised.
func (p Pattern) Pulses() int {
	n := 0
	for _, s := range p.steps() {
		if s.on {
			n++
		}
	}
	return n
}

// Duration returns the total time Run blocks for.
func (p Pattern) Duration() time.Duration {
	var d time.Duration
	for _, s := range p.steps() {
		d += s.d
	}
	return d
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run plays p on out and blocks until it completes.
func Run(ctx context.Context, p Pattern, out gpio.Output) error {
	return RunWithSleep(ctx, p, out, Sleep)
}

// RunWithSleep plays p on out using sleep for every wait. The line is always
// left low: on cancellation Run drives it low and returns ctx.Err(); on a
// write error it attempts to drive it low and returns the error.
func RunWithSleep(ctx context.Context, p Pattern, out gpio.Output, sleep SleepFunc) error {
	level := false
	for _, s := range p.steps() {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, release(out))
		}
		if s.on != level {
			if err := out.Set(s.on); err != nil {
				return errors.Join(fmt.Errorf("chime: set output: %w", err), release(out))
			}
			level = s.on
		}
		if err := sleep(ctx, s.d); err != nil {
			return errors.Join(err, release(out))
		}
	}
	if level {
		return release(out)
	}
	return nil
}

func release(out gpio.Output) error {
	if err := out.Set(false); err != nil {
		return fmt.Errorf("chime: release output: %w", err)
	}
	return nil
}
