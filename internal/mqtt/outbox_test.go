package mqtt

import (
	"testing"
)

func pressMsg(id byte) queuedMsg {
	return queuedMsg{topic: Topic, payload: []byte{id}, qos: 1}
}

func systemMsg(id byte, retained bool) queuedMsg {
	return queuedMsg{topic: TopicSystem, payload: []byte{id}, qos: 1, retained: retained}
}

func payloads(msgs []queuedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10)
	msgs, dropped := o.drain()
	if msgs != nil || dropped != 0 {
		t.Errorf("expected empty drain, got %d msgs, %d dropped", len(msgs), dropped)
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	o := newOutbox(10)
	o.push(systemMsg(1, false))
	o.push(pressMsg(2))
	o.push(pressMsg(3))

	msgs, dropped := o.drain()
	if got := payloads(msgs); string(got) != string([]byte{1, 2, 3}) {
		t.Errorf("drain order = %v, want [1 2 3]", got)
	}
	if dropped != 0 {
		t.Errorf("expected no evictions, got %d", dropped)
	}
	if o.len() != 0 {
		t.Errorf("expected empty outbox after drain, got %d", o.len())
	}
}

func TestOutboxEvictsSystemBeforePress(t *testing.T) {
	o := newOutbox(3)
	o.push(pressMsg(1))
	o.push(systemMsg(2, false))
	o.push(pressMsg(3))

	evicted, full := o.push(pressMsg(4))
	if !full {
		t.Fatal("expected push into a full outbox to evict")
	}
	if evicted.payload[0] != 2 {
		t.Errorf("evicted %d, want the heartbeat (2)", evicted.payload[0])
	}

	msgs, dropped := o.drain()
	if got := payloads(msgs); string(got) != string([]byte{1, 3, 4}) {
		t.Errorf("drain = %v, want [1 3 4]", got)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestOutboxEvictsOldestPressWhenOnlyPresses(t *testing.T) {
	o := newOutbox(2)
	o.push(pressMsg(1))
	o.push(pressMsg(2))
	evicted, full := o.push(pressMsg(3))

	if !full || evicted.payload[0] != 1 {
		t.Errorf("evicted %v (full=%v), want oldest press", evicted.payload, full)
	}
	msgs, _ := o.drain()
	if got := payloads(msgs); string(got) != string([]byte{2, 3}) {
		t.Errorf("drain = %v, want [2 3]", got)
	}
}

func TestOutboxRetainedReplacesRetained(t *testing.T) {
	o := newOutbox(10)
	o.push(systemMsg(1, true))  // STARTUP
	o.push(systemMsg(2, false)) // HEARTBEAT
	o.push(pressMsg(3))
	o.push(systemMsg(4, true)) // SHUTDOWN

	msgs, dropped := o.drain()
	if got := payloads(msgs); string(got) != string([]byte{2, 3, 4}) {
		t.Errorf("drain = %v, want [2 3 4]", got)
	}
	if dropped != 0 {
		t.Errorf("replacement is not an eviction, got %d dropped", dropped)
	}
}

func TestOutboxRetainedReplacementAvoidsEviction(t *testing.T) {
	o := newOutbox(2)
	o.push(systemMsg(1, true))
	o.push(pressMsg(2))

	if _, full := o.push(systemMsg(3, true)); full {
		t.Error("replacing a retained message should free its slot")
	}
	if o.len() != 2 {
		t.Errorf("len = %d, want 2", o.len())
	}
}

func TestOutboxDroppedResetsOnDrain(t *testing.T) {
	o := newOutbox(1)
	o.push(pressMsg(1))
	o.push(pressMsg(2))
	o.push(pressMsg(3))

	if _, dropped := o.drain(); dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	o.push(pressMsg(4))
	if _, dropped := o.drain(); dropped != 0 {
		t.Errorf("dropped after drain = %d, want 0", dropped)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(10)
	o.push(queuedMsg{
		topic:    TopicSystem,
		payload:  []byte(`{"status":{}}`),
		qos:      1,
		retained: true,
	})

	msgs, _ := o.drain()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.topic != TopicSystem || string(m.payload) != `{"status":{}}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}

func TestOutboxDiscardsSystemEventWhenOnlyPresses(t *testing.T) {
	o := newOutbox(2)
	o.push(pressMsg(1))
	o.push(pressMsg(2))

	discarded, full := o.push(systemMsg(3, false))
	if !full {
		t.Fatal("expected push into a full outbox to report full")
	}
	if discarded.topic != TopicSystem || discarded.payload[0] != 3 {
		t.Errorf("discarded %s/%v, want the incoming heartbeat", discarded.topic, discarded.payload)
	}

	msgs, dropped := o.drain()
	if got := payloads(msgs); string(got) != string([]byte{1, 2}) {
		t.Errorf("drain = %v, want both presses [1 2]", got)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}
