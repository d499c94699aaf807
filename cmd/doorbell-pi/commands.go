package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/doorbell-pi/internal/chime"
	"github.com/sweeney/doorbell-pi/internal/config"
	"github.com/sweeney/doorbell-pi/internal/flic"
	"github.com/sweeney/doorbell-pi/internal/gpio"
	"github.com/sweeney/doorbell-pi/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the doorbell daemon",
	Long: `Run the doorbell daemon until SIGINT or SIGTERM.

SIGHUP is ignored so the daemon survives its controlling terminal closing.`,
	Example: `  # GPIO button on the default pins
  doorbell-pi run

  # Flic button through a local flicd
  DOORBELL_INPUT=flic DOORBELL_FLIC_BUTTON=80:e4:da:71:23:45 doorbell-pi run

  # With a config file and debug logging
  doorbell-pi run --config /etc/doorbell-pi.yaml --log-level debug`,
	RunE: runDaemon,
}

var ringPattern string

var ringCmd = &cobra.Command{
	Use:   "ring",
	Short: "Ring the chime once and exit",
	RunE:  runRing,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current button state and exit",
	Long: `Print the current button state and exit.

In gpio mode the input line is sampled once. In flic mode a connection
channel is opened to flicd to check that the daemon is reachable.`,
	RunE: runState,
}

func init() {
	ringCmd.Flags().StringVar(&ringPattern, "pattern", "", "Ring pattern (single, classic); overrides config")
}

// signalContext is cancelled by SIGINT or SIGTERM with the signal as cause.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGHUP)

	go func() {
		select {
		case s := <-sigCh:
			logging.Info("received signal, shutting down", zap.String("signal", signalName(s)))
			cancel(signalCause{sig: s})
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel(context.Canceled)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signalContext()
	defer stop()

	d, cleanup, err := newDaemon(cfg, logging.GetLogger())
	if err != nil {
		return err
	}
	defer cleanup()

	return d.run(ctx)
}

func runRing(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if ringPattern != "" {
		cfg.Chime.Pattern = ringPattern
	}
	pattern, err := cfg.Pattern()
	if err != nil {
		return err
	}

	out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.OutputPin)
	if err != nil {
		return fmt.Errorf("init gpio output: %w", err)
	}
	defer out.Close()

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	if err := chime.Run(ctx, pattern, out); err != nil {
		return fmt.Errorf("ring: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rang %s in %v\n", pattern, time.Since(start).Round(time.Millisecond))
	return nil
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if cfg.Input == config.InputFlic {
		return flicState(cmd, cfg)
	}

	pull, err := cfg.PullMode()
	if err != nil {
		return err
	}
	in, err := gpio.NewRealInput(cfg.GPIO.Chip, cfg.GPIO.InputPin, pull)
	if err != nil {
		return fmt.Errorf("init gpio input: %w", err)
	}
	defer in.Close()

	pressed, err := in.Pressed()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "button (%s pin %d): %s\n", cfg.GPIO.Chip, cfg.GPIO.InputPin, pressedString(pressed))
	return nil
}

func flicState(cmd *cobra.Command, cfg *config.Config) error {
	addr, err := cfg.ButtonAddress()
	if err != nil {
		return err
	}
	latency, err := cfg.Latency()
	if err != nil {
		return err
	}

	conn := flic.NewConnection(flic.Options{
		ConnID:         cfg.Flic.ConnID,
		Latency:        latency,
		AutoDisconnect: cfg.Flic.AutoDisconnect,
	}, logging.Named("flic"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Connect(ctx, cfg.Flic.Host, cfg.Flic.Port, addr); err != nil {
		return fmt.Errorf("flicd %s:%d: %w", cfg.Flic.Host, cfg.Flic.Port, err)
	}
	conn.Disconnect()

	fmt.Fprintf(cmd.OutOrStdout(), "flicd %s:%d: reachable, button %s\n", cfg.Flic.Host, cfg.Flic.Port, addr)
	return nil
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

// signalCause records which signal ended the daemon.
type signalCause struct {
	sig os.Signal
}

func (c signalCause) Error() string {
	return "received " + signalName(c.sig)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
