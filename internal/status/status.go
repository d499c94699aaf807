// Package status provides a thread-safe status tracker for the doorbell-pi daemon.
// It is read by HTTP handlers and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/doorbell-pi/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Input        string // "gpio" or "flic"
	Pattern      string
	PulseMs      int64
	MinTriggerMs int64
	PollMs       int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	FlicHost     string
	Button       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Ringing         bool
	Counts          logic.Counts
	LastPress       logic.Press // zero Time until the first press
	RemoteConnected bool
	MQTTConnected   bool
	StartTime       time.Time
	Now             time.Time
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether a press can currently be detected.
func (s Snapshot) Ready() bool {
	if s.Config.Input == string(logic.SourceFlic) {
		return s.RemoteConnected
	}
	return true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordPress counts an accepted press and remembers it as the latest.
func (t *Tracker) RecordPress(p logic.Press) {
	t.mu.Lock()
	t.snap.Counts.Presses++
	t.snap.LastPress = p
	t.mu.Unlock()
}

// RecordDropped counts a press that arrived while a ring was in progress.
func (t *Tracker) RecordDropped() {
	t.mu.Lock()
	t.snap.Counts.Dropped++
	t.mu.Unlock()
}

// RecordFailed counts a ring aborted by an output error.
func (t *Tracker) RecordFailed() {
	t.mu.Lock()
	t.snap.Counts.Failed++
	t.mu.Unlock()
}

// SetRinging sets whether a ring pattern is playing.
func (t *Tracker) SetRinging(ringing bool) {
	t.mu.Lock()
	t.snap.Ringing = ringing
	t.mu.Unlock()
}

// SetRemoteConnected sets the flicd connection status.
func (t *Tracker) SetRemoteConnected(connected bool) {
	t.mu.Lock()
	t.snap.RemoteConnected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Counts returns the current press counters.
func (t *Tracker) Counts() logic.Counts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Counts
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
