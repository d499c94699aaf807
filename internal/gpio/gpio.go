// Package gpio provides the doorbell's GPIO input and output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "fmt"

// Input reads the doorbell button.
type Input interface {
	// Pressed returns the logical button state.
	// Polarity is already applied: with a pull-up, raw low = pressed.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives the chime relay.
type Output interface {
	// Set drives the line high (on) or low.
	Set(on bool) error

	// Close drives the line low and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultInputPin  = 17
	DefaultOutputPin = 21
)

// Pull selects the input bias, which also fixes the pressed polarity.
type Pull string

const (
	PullUp   Pull = "up"   // button shorts to ground; raw low = pressed
	PullDown Pull = "down" // button shorts to 3V3; raw high = pressed
)

// ParsePull validates a pull setting.
func ParsePull(s string) (Pull, error) {
	switch Pull(s) {
	case PullUp, PullDown:
		return Pull(s), nil
	case "":
		return PullUp, nil
	default:
		return "", fmt.Errorf("gpio: unknown pull %q (want up or down)", s)
	}
}

// pressedLevel converts a raw line value to the logical pressed state.
func pressedLevel(raw int, pull Pull) bool {
	if pull == PullDown {
		return raw != 0
	}
	return raw == 0
}
