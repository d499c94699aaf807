//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealInput reads the button from actual hardware using the Linux GPIO character device.
type RealInput struct {
	line *gpiocdev.Line
	pull Pull
}

// NewRealInput requests pin on chip as an input with the given bias.
func NewRealInput(chip string, pin int, pull Pull) (*RealInput, error) {
	bias := gpiocdev.WithPullUp
	if pull == PullDown {
		bias = gpiocdev.WithPullDown
	}

	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, bias, gpiocdev.WithConsumer("doorbell-pi"))
	if err != nil {
		return nil, fmt.Errorf("request input pin %d on %s: %w", pin, chip, err)
	}

	return &RealInput{line: line, pull: pull}, nil
}

// Pressed returns the logical button state.
func (r *RealInput) Pressed() (bool, error) {
	raw, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read input pin: %w", err)
	}
	return pressedLevel(raw, r.pull), nil
}

// Close reconfigures the pin to input with pull-down (matching Pi boot
// defaults) and releases it.
func (r *RealInput) Close() error {
	if r.line == nil {
		return nil
	}
	var errs []error
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure input pin: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close input pin: %w", err))
	}
	r.line = nil
	return errors.Join(errs...)
}

// RealOutput drives the chime relay through the Linux GPIO character device.
type RealOutput struct {
	line *gpiocdev.Line
}

// NewRealOutput requests pin on chip as an output, initially low.
func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("doorbell-pi"))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d on %s: %w", pin, chip, err)
	}
	return &RealOutput{line: line}, nil
}

// Set drives the line high or low.
func (r *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("write output pin: %w", err)
	}
	return nil
}

// Close drives the line low, then returns it to an input with pull-down so
// the relay stays released across reboots.
func (r *RealOutput) Close() error {
	if r.line == nil {
		return nil
	}
	var errs []error
	if err := r.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive output low: %w", err))
	}
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure output pin: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output pin: %w", err))
	}
	r.line = nil
	return errors.Join(errs...)
}
