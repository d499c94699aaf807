package mqtt

// queuedMsg is a serialized message waiting for the broker.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m queuedMsg) isPress() bool {
	return m.topic == Topic
}

// outbox holds messages published while the broker is unreachable, oldest
// first. Presses outlive system events: when full, the oldest system event
// is evicted. If only presses are queued, an incoming system event is
// discarded and an incoming press evicts the oldest press.
// A retained message replaces any retained message queued for the same
// topic, since the broker keeps only the last one.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs     []queuedMsg
	capacity int
	dropped  int // evictions since the last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]queuedMsg, 0, capacity),
		capacity: capacity,
	}
}

// push queues m. When the outbox was full it returns the message that was
// discarded, which may be m itself, and true.
func (o *outbox) push(m queuedMsg) (queuedMsg, bool) {
	if m.retained {
		for i, q := range o.msgs {
			if q.retained && q.topic == m.topic {
				o.remove(i)
				break
			}
		}
	}

	var evicted queuedMsg
	full := len(o.msgs) >= o.capacity
	if full {
		victim := -1
		for i, q := range o.msgs {
			if !q.isPress() {
				victim = i
				break
			}
		}
		if victim < 0 {
			if !m.isPress() {
				o.dropped++
				return m, true
			}
			victim = 0
		}
		evicted = o.msgs[victim]
		o.remove(victim)
		o.dropped++
	}

	o.msgs = append(o.msgs, m)
	return evicted, full
}

func (o *outbox) remove(i int) {
	o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
}

// drain empties the outbox, returning the queued messages oldest first and
// how many were evicted since the previous drain.
func (o *outbox) drain() ([]queuedMsg, int) {
	if len(o.msgs) == 0 && o.dropped == 0 {
		return nil, 0
	}
	msgs := o.msgs
	dropped := o.dropped
	o.msgs = make([]queuedMsg, 0, o.capacity)
	o.dropped = 0
	if len(msgs) == 0 {
		msgs = nil
	}
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
