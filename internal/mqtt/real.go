package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/doorbell-pi/internal/logic"
)

// DefaultBufferSize is how many messages the outbox keeps while the broker is unreachable.
const DefaultBufferSize = 100

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int

	// OnConnectionChange, if set, is called whenever the broker connection
	// comes up or goes down.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Connection happens in
// the background; messages published while disconnected are queued and
// replayed once the broker is reachable.
type RealPublisher struct {
	client   paho.Client
	logger   *zap.Logger
	onChange func(bool)

	mu        sync.Mutex
	outbox    *outbox
	connected bool // at least one successful connect
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting. It does not wait for the connection.
func NewRealPublisher(opts Options, logger *zap.Logger) *RealPublisher {
	if opts.ClientID == "" {
		opts.ClientID = "doorbell-pi"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &RealPublisher{
		logger:   logger,
		onChange: opts.OnConnectionChange,
		outbox:   newOutbox(opts.BufferSize),
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, WillPayload(time.Now()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(co)
	p.client.Connect()
	logger.Info("mqtt connecting", zap.String("broker", opts.Broker), zap.String("client_id", opts.ClientID))
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending, dropped := p.outbox.drain()
	p.mu.Unlock()

	p.logger.Info("mqtt connected",
		zap.Bool("reconnect", reconnect),
		zap.Int("queued", len(pending)),
		zap.Int("evicted", dropped),
	)
	if p.onChange != nil {
		p.onChange(true)
	}

	for _, m := range pending {
		if err := p.send(m); err != nil {
			p.logger.Warn("mqtt replay failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			p.logger.Warn("failed to publish reconnected event", zap.Error(err))
		}
	}
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	p.logger.Warn("mqtt connection lost", zap.Error(err))
	if p.onChange != nil {
		p.onChange(false)
	}
}

// Publish sends a doorbell press to the MQTT broker.
func (p *RealPublisher) Publish(press logic.Press) error {
	payload, err := FormatPayload(press)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: a missed doorbell is worth a duplicate.
	return p.publish(queuedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(queuedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m queuedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		evicted, full := p.outbox.push(m)
		p.mu.Unlock()
		if full {
			p.logger.Warn("mqtt outbox full, discarded message",
				zap.String("topic", evicted.topic),
				zap.Int("capacity", p.outbox.capacity),
			)
		}
		p.logger.Debug("mqtt offline, queued", zap.String("topic", m.topic))
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m queuedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Queued returns how many messages are waiting for the broker.
func (p *RealPublisher) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
