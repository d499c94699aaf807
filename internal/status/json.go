package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/doorbell-pi/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Input         string      `json:"input"`
	Ready         bool        `json:"ready"`
	Ringing       bool        `json:"ringing"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	LastPress     *PressJSON  `json:"last_press,omitempty"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Flic          *FlicStatus `json:"flic,omitempty"`
	Counts        CountsJSON  `json:"press_counts"`
	Config        ConfigJSON  `json:"config"`
}

// PressJSON is the JSON representation of the latest press.
type PressJSON struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// FlicStatus reports the flicd connection in flic mode.
type FlicStatus struct {
	Connected bool   `json:"connected"`
	Host      string `json:"host"`
	Button    string `json:"button"`
}

// CountsJSON is the JSON representation of press counts.
type CountsJSON struct {
	Presses int `json:"presses"`
	Dropped int `json:"dropped"`
	Failed  int `json:"failed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Input        string `json:"input"`
	Pattern      string `json:"pattern"`
	PulseMs      int64  `json:"pulse_ms"`
	MinTriggerMs int64  `json:"min_trigger_ms,omitempty"`
	PollMs       int64  `json:"poll_ms,omitempty"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Input:         snap.Config.Input,
		Ready:         snap.Ready(),
		Ringing:       snap.Ringing,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Presses: snap.Counts.Presses,
			Dropped: snap.Counts.Dropped,
			Failed:  snap.Counts.Failed,
		},
		Config: ConfigJSON{
			Input:        snap.Config.Input,
			Pattern:      snap.Config.Pattern,
			PulseMs:      snap.Config.PulseMs,
			MinTriggerMs: snap.Config.MinTriggerMs,
			PollMs:       snap.Config.PollMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}

	if !snap.LastPress.Time.IsZero() {
		inner.LastPress = &PressJSON{
			ID:        snap.LastPress.ID.String(),
			Timestamp: snap.LastPress.Time.UTC().Format(time.RFC3339),
			Source:    string(snap.LastPress.Source),
		}
	}

	if snap.Config.Input == string(logic.SourceFlic) {
		inner.Flic = &FlicStatus{
			Connected: snap.RemoteConnected,
			Host:      snap.Config.FlicHost,
			Button:    snap.Config.Button,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
