// Package logic contains the pure doorbell decision logic.
// This package does no I/O (no GPIO, MQTT, sockets, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies where a press came from.
type Source string

const (
	SourceGPIO Source = "gpio"
	SourceFlic Source = "flic"
)

// Press is one accepted doorbell press.
type Press struct {
	ID     uuid.UUID
	Time   time.Time
	Source Source
}

// NewPress creates a Press with a fresh random ID.
func NewPress(source Source, now time.Time) Press {
	return Press{ID: uuid.New(), Time: now, Source: source}
}

// Counts tracks press handling since startup.
type Counts struct {
	Presses int // accepted and rung
	Dropped int // arrived while a ring was in progress
	Failed  int // ring aborted by an output error
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
