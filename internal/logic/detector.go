package logic

import "time"

// DefaultMinimumTrigger is how long the input must stay pressed before a ring.
const DefaultMinimumTrigger = 200 * time.Millisecond

// Detector debounces a pressed/released input into single triggers.
// It fires at most once per contiguous pressed interval.
type Detector struct {
	minimum time.Duration
	armedAt time.Time
	armed   bool
	fired   bool
}

// NewDetector creates a detector requiring the input to be held for minimum.
// A non-positive minimum uses DefaultMinimumTrigger.
func NewDetector(minimum time.Duration) *Detector {
	if minimum <= 0 {
		minimum = DefaultMinimumTrigger
	}
	return &Detector{minimum: minimum}
}

// Process takes one input sample and reports whether a press should ring now.
func (d *Detector) Process(pressed bool, now time.Time) bool {
	if !pressed {
		d.armed = false
		d.fired = false
		return false
	}

	if d.fired {
		return false
	}

	if !d.armed {
		d.armedAt = now.Add(d.minimum)
		d.armed = true
		return false
	}

	if now.Before(d.armedAt) {
		return false
	}

	d.armed = false
	d.fired = true
	return true
}

// Armed reports whether a press is being timed.
func (d *Detector) Armed() bool {
	return d.armed
}

// Fired reports whether the current press already triggered and the
// detector is waiting for release.
func (d *Detector) Fired() bool {
	return d.fired
}

// Minimum returns the configured hold time.
func (d *Detector) Minimum() time.Duration {
	return d.minimum
}
