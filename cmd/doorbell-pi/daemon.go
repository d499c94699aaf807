package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/doorbell-pi/internal/chime"
	"github.com/sweeney/doorbell-pi/internal/config"
	"github.com/sweeney/doorbell-pi/internal/discovery"
	"github.com/sweeney/doorbell-pi/internal/engine"
	"github.com/sweeney/doorbell-pi/internal/flic"
	"github.com/sweeney/doorbell-pi/internal/gpio"
	"github.com/sweeney/doorbell-pi/internal/logic"
	"github.com/sweeney/doorbell-pi/internal/mqtt"
	"github.com/sweeney/doorbell-pi/internal/notify"
	"github.com/sweeney/doorbell-pi/internal/status"
	"github.com/sweeney/doorbell-pi/internal/web"
)

const shutdownTimeout = 5 * time.Second

// daemon holds the running components. Optional parts are nil when disabled.
type daemon struct {
	engine     *engine.Engine
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	server     *web.Server
	hub        *web.Hub
	advertiser *discovery.Advertiser
	mdns       discovery.Info
	logger     *zap.Logger

	heartbeat time.Duration
	now       func() time.Time
	tick      <-chan time.Time // heartbeat ticks; replaces the ticker when set
}

// newDaemon builds the real components from cfg. cleanup releases them
// in reverse order and must be called after run returns.
func newDaemon(cfg *config.Config, logger *zap.Logger) (*daemon, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*daemon, func(), error) {
		cleanup()
		return nil, nil, err
	}

	pattern, err := cfg.Pattern()
	if err != nil {
		return fail(err)
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, pattern))

	out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.OutputPin)
	if err != nil {
		return fail(fmt.Errorf("init gpio output: %w", err))
	}
	closers = append(closers, func() {
		if err := out.Close(); err != nil {
			logger.Error("failed to release chime output", zap.Error(err))
		}
	})

	src, err := newSource(cfg, tracker, logger, &closers)
	if err != nil {
		return fail(err)
	}

	d := &daemon{
		tracker:   tracker,
		logger:    logger,
		heartbeat: cfg.MQTT.Heartbeat,
		now:       time.Now,
	}

	var notifiers notify.Multi
	if cfg.MQTT.Broker != "" {
		pub := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			OnConnectionChange: tracker.SetMQTTConnected,
		}, logger.Named("mqtt"))
		closers = append(closers, func() { pub.Close() })
		d.publisher = pub
		d.mqttStatus = pub
		notifiers = append(notifiers, notify.MQTT(pub))
	}
	if cfg.Notify.URL != "" {
		h, err := notify.NewHTTP(cfg.Notify.URL, cfg.Notify.Method, cfg.Notify.Timeout)
		if err != nil {
			return fail(err)
		}
		notifiers = append(notifiers, h)
	}
	if cfg.HTTP.Addr != "" {
		d.hub = web.NewHub(logger.Named("ws"))
		d.server = web.New(cfg.HTTP.Addr, tracker, d.hub)
		notifiers = append(notifiers, d.hub)

		if cfg.HTTP.MDNS {
			port, err := discovery.PortFromAddr(cfg.HTTP.Addr)
			if err != nil {
				return fail(err)
			}
			d.advertiser = discovery.NewAdvertiser(cfg.HTTP.Interface, logger.Named("mdns"))
			d.mdns = discovery.Info{
				Instance: cfg.HTTP.Instance,
				Port:     port,
				Input:    cfg.Input,
				Version:  version,
			}
		}
	}

	var n notify.Notifier
	if len(notifiers) > 0 {
		n = notifiers
	}
	d.engine = engine.New(src, out, n, tracker, engine.Options{
		Pattern:       pattern,
		NotifyTimeout: cfg.Notify.Timeout,
	}, logger.Named("engine"))

	return d, cleanup, nil
}

func newSource(cfg *config.Config, tracker *status.Tracker, logger *zap.Logger, closers *[]func()) (engine.Source, error) {
	switch cfg.Input {
	case config.InputFlic:
		addr, err := cfg.ButtonAddress()
		if err != nil {
			return nil, err
		}
		latency, err := cfg.Latency()
		if err != nil {
			return nil, err
		}
		conn := flic.NewConnection(flic.Options{
			ConnID:         cfg.Flic.ConnID,
			Latency:        latency,
			AutoDisconnect: cfg.Flic.AutoDisconnect,
			ReadTimeout:    cfg.Flic.ReadTimeout,
		}, logger.Named("flic"))
		return engine.NewRemoteSource(conn, engine.RemoteOptions{
			Host:                 cfg.Flic.Host,
			Port:                 cfg.Flic.Port,
			Button:               addr,
			MaxReconnectAttempts: cfg.Flic.MaxReconnectAttempts,
			InitialInterval:      cfg.Flic.ReconnectInitial,
			MaxInterval:          cfg.Flic.ReconnectMax,
			OnConnectionChange:   tracker.SetRemoteConnected,
		}, logger.Named("remote")), nil

	default:
		pull, err := cfg.PullMode()
		if err != nil {
			return nil, err
		}
		in, err := gpio.NewRealInput(cfg.GPIO.Chip, cfg.GPIO.InputPin, pull)
		if err != nil {
			return nil, fmt.Errorf("init gpio input: %w", err)
		}
		*closers = append(*closers, func() { in.Close() })
		return engine.NewGPIOSource(in, cfg.GPIO.MinTrigger, cfg.GPIO.Poll, logger.Named("gpio")), nil
	}
}

func statusConfig(cfg *config.Config, pattern chime.Pattern) status.Config {
	sc := status.Config{
		Input:       cfg.Input,
		Pattern:     string(pattern.Kind),
		PulseMs:     pattern.Pulse.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	}
	if cfg.Input == config.InputFlic {
		sc.FlicHost = fmt.Sprintf("%s:%d", cfg.Flic.Host, cfg.Flic.Port)
		sc.Button = cfg.Flic.Button
	} else {
		sc.MinTriggerMs = cfg.GPIO.MinTrigger.Milliseconds()
		sc.PollMs = cfg.GPIO.Poll.Milliseconds()
	}
	return sc
}

// run serves until ctx is cancelled or a component fails. STARTUP is
// published first and SHUTDOWN last, carrying the signal that stopped us.
func (d *daemon) run(ctx context.Context) error {
	d.publishStatus("STARTUP", "", true)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.engine.Run(gctx)
	})

	if d.server != nil {
		g.Go(func() error {
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return d.server.Shutdown(sctx)
		})
	}

	if d.hub != nil {
		g.Go(func() error {
			d.hub.Run(gctx)
			return nil
		})
	}

	if d.advertiser != nil {
		g.Go(func() error {
			// The doorbell still works unannounced.
			if err := d.advertiser.Advertise(gctx, d.mdns); err != nil {
				d.logger.Warn("mdns advertisement failed", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		d.runHeartbeat(gctx)
		return nil
	})

	err := g.Wait()
	if err != nil {
		d.logger.Error("doorbell stopped", zap.Error(err))
	}
	d.publishStatus("SHUTDOWN", shutdownReason(ctx, err), true)
	return err
}

func (d *daemon) runHeartbeat(ctx context.Context) {
	if d.heartbeat <= 0 || d.publisher == nil {
		return
	}

	tick := d.tick
	if tick == nil {
		ticker := time.NewTicker(d.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	hb := logic.NewHeartbeat(d.heartbeat, d.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			data := hb.Check(d.now(), d.tracker.Counts())
			if data == nil {
				continue
			}
			d.logger.Info("heartbeat",
				zap.Duration("uptime", data.Uptime.Truncate(time.Second)),
				zap.Int("presses", data.Counts.Presses),
				zap.Int("dropped", data.Counts.Dropped),
				zap.Int("failed", data.Counts.Failed),
			)
			d.publishStatus("HEARTBEAT", "", false)
		}
	}
}

// publishStatus sends a full status snapshot as a system event.
func (d *daemon) publishStatus(event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()

	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.logger.Warn("failed to publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	d.logger.Debug("published system event", zap.String("event", event))
}

// shutdownReason names what ended run: the signal, ERROR or UNKNOWN.
func shutdownReason(ctx context.Context, err error) string {
	if err != nil {
		return "ERROR"
	}
	var sc signalCause
	if errors.As(context.Cause(ctx), &sc) {
		return signalName(sc.sig)
	}
	return "UNKNOWN"
}
