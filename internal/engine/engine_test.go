package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/doorbell-pi/internal/chime"
	"github.com/sweeney/doorbell-pi/internal/gpio"
	"github.com/sweeney/doorbell-pi/internal/logic"
	"github.com/sweeney/doorbell-pi/internal/notify"
	"github.com/sweeney/doorbell-pi/internal/status"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// funcSource is a Source driven by a test function.
type funcSource struct {
	run func(ctx context.Context, emit func(logic.Press)) error
}

func (s funcSource) Name() string { return "test" }

func (s funcSource) Run(ctx context.Context, emit func(logic.Press)) error {
	return s.run(ctx, emit)
}

// recordingNotifier remembers every press it is told about.
type recordingNotifier struct {
	mu      sync.Mutex
	presses []logic.Press
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, p logic.Press) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.presses = append(n.presses, p)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.presses)
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestEngine(t *testing.T, src Source, out gpio.Output, n notify.Notifier, tracker *status.Tracker) *Engine {
	t.Helper()
	e := New(src, out, n, tracker, Options{Pattern: chime.Classic(chime.DefaultPulse)}, zaptest.NewLogger(t))
	e.ring = func(ctx context.Context, p chime.Pattern, out gpio.Output) error {
		return chime.RunWithSleep(ctx, p, out, noSleep)
	}
	return e
}

func runEngine(t *testing.T, e *Engine, ctx context.Context) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not return")
		return nil
	}
}

func TestEngineRingsAndNotifies(t *testing.T) {
	out := gpio.NewFakeOutput()
	n := &recordingNotifier{}
	tracker := status.NewTracker(t0, status.Config{})
	press := logic.NewPress(logic.SourceGPIO, t0)

	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(press)
		return nil
	}}

	e := newTestEngine(t, src, out, n, tracker)
	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := out.Pulses(), chime.Classic(chime.DefaultPulse).Pulses(); got != want {
		t.Errorf("expected %d pulses, got %d", want, got)
	}
	if out.Level() {
		t.Error("output should be low after Run")
	}
	if n.count() != 1 || n.presses[0].ID != press.ID {
		t.Errorf("expected one notification for %s, got %v", press.ID, n.presses)
	}

	snap := tracker.Snapshot()
	if snap.Counts.Presses != 1 || snap.Counts.Dropped != 0 || snap.Counts.Failed != 0 {
		t.Errorf("unexpected counts %+v", snap.Counts)
	}
	if snap.LastPress.ID != press.ID {
		t.Errorf("last press %s, want %s", snap.LastPress.ID, press.ID)
	}
	if snap.Ringing {
		t.Error("should not be ringing after Run")
	}
}

func TestEngineDrivesOutputLowOnStart(t *testing.T) {
	out := gpio.NewFakeOutput()
	out.Set(true)

	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error { return nil }}
	e := newTestEngine(t, src, out, nil, nil)
	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writes := out.Writes()
	if len(writes) < 2 || writes[1] {
		t.Errorf("expected a low write on start, got %v", writes)
	}
	if out.Level() {
		t.Error("output should be low")
	}
}

func TestEngineDropsPressesWhileRinging(t *testing.T) {
	out := gpio.NewFakeOutput()
	n := &recordingNotifier{}
	tracker := status.NewTracker(t0, status.Config{})

	started := make(chan struct{})
	release := make(chan struct{})

	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(logic.NewPress(logic.SourceGPIO, t0))
		<-started
		emit(logic.NewPress(logic.SourceGPIO, t0.Add(time.Second)))
		emit(logic.NewPress(logic.SourceGPIO, t0.Add(2*time.Second)))
		close(release)
		return nil
	}}

	e := newTestEngine(t, src, out, n, tracker)
	e.ring = func(ctx context.Context, p chime.Pattern, out gpio.Output) error {
		started <- struct{}{}
		<-release
		return nil
	}

	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts := tracker.Counts()
	if counts.Presses != 1 {
		t.Errorf("expected 1 press rung, got %d", counts.Presses)
	}
	if counts.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", counts.Dropped)
	}
	if n.count() != 1 {
		t.Errorf("expected 1 notification, got %d", n.count())
	}
}

func TestEngineAcceptsPressAfterRingCompletes(t *testing.T) {
	out := gpio.NewFakeOutput()
	tracker := status.NewTracker(t0, status.Config{})

	var e *Engine
	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(logic.NewPress(logic.SourceGPIO, t0))
		deadline := time.Now().Add(2 * time.Second)
		for tracker.Counts().Presses < 1 || e.busy.Load() {
			if time.Now().After(deadline) {
				return errors.New("worker never went idle")
			}
			time.Sleep(time.Millisecond)
		}
		emit(logic.NewPress(logic.SourceGPIO, t0.Add(5*time.Second)))
		return nil
	}}

	e = newTestEngine(t, src, out, nil, tracker)
	e.opts.Pattern = chime.Single(chime.DefaultPulse)

	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tracker.Counts(); got.Presses != 2 || got.Dropped != 0 {
		t.Errorf("expected 2 presses and no drops, got %+v", got)
	}
	if out.Pulses() != 2 {
		t.Errorf("expected 2 pulses, got %d", out.Pulses())
	}
}

func TestEngineRingFailureStillNotifies(t *testing.T) {
	out := gpio.NewFakeOutput()
	out.SetError = errors.New("relay fault")
	n := &recordingNotifier{}
	tracker := status.NewTracker(t0, status.Config{})

	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(logic.NewPress(logic.SourceFlic, t0))
		return nil
	}}

	e := newTestEngine(t, src, out, n, tracker)
	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("ring failure should not stop the engine: %v", err)
	}

	if got := tracker.Counts(); got.Presses != 1 || got.Failed != 1 {
		t.Errorf("expected 1 press and 1 failure, got %+v", got)
	}
	if n.count() != 1 {
		t.Errorf("expected notification despite ring failure, got %d", n.count())
	}
	if out.Level() {
		t.Error("output should be low")
	}
}

func TestEngineNotifyErrorIsNotFatal(t *testing.T) {
	n := &recordingNotifier{err: errors.New("webhook down")}

	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(logic.NewPress(logic.SourceGPIO, t0))
		return nil
	}}

	e := newTestEngine(t, src, gpio.NewFakeOutput(), n, nil)
	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n.count() != 1 {
		t.Errorf("expected 1 notification attempt, got %d", n.count())
	}
}

func TestEngineNotifyTimeout(t *testing.T) {
	var gotErr error
	n := notify.Func(func(ctx context.Context, p logic.Press) error {
		<-ctx.Done()
		gotErr = ctx.Err()
		return gotErr
	})

	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(logic.NewPress(logic.SourceGPIO, t0))
		return nil
	}}

	e := newTestEngine(t, src, gpio.NewFakeOutput(), n, nil)
	e.opts.NotifyTimeout = 20 * time.Millisecond

	start := time.Now()
	if err := runEngine(t, e, context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(gotErr, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", gotErr)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("notification was not bounded: %v", elapsed)
	}
}

func TestEngineSourceErrorIsReturned(t *testing.T) {
	out := gpio.NewFakeOutput()
	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		return ErrReconnectExhausted
	}}

	e := newTestEngine(t, src, out, nil, nil)
	err := runEngine(t, e, context.Background())
	if !errors.Is(err, ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", err)
	}
	if out.Level() {
		t.Error("output should be low")
	}
}

func TestEngineCancelDuringRing(t *testing.T) {
	out := gpio.NewFakeOutput()
	n := &recordingNotifier{}
	tracker := status.NewTracker(t0, status.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		emit(logic.NewPress(logic.SourceGPIO, t0))
		<-ctx.Done()
		return nil
	}}

	e := newTestEngine(t, src, out, n, tracker)
	e.ring = func(ctx context.Context, p chime.Pattern, out gpio.Output) error {
		close(started)
		return chime.RunWithSleep(ctx, p, out, chime.Sleep)
	}

	go func() {
		<-started
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := runEngine(t, e, ctx); err != nil {
		t.Fatalf("cancelled Run should return nil, got %v", err)
	}
	if out.Level() {
		t.Error("output should be low after cancel")
	}
	if n.count() != 0 {
		t.Errorf("no notification expected after cancel, got %d", n.count())
	}
	if got := tracker.Counts(); got.Failed != 0 {
		t.Errorf("cancel is not a ring failure, got %+v", got)
	}
}

// stuckOutput cannot be driven at all.
type stuckOutput struct{}

func (stuckOutput) Set(bool) error { return errors.New("line busy") }
func (stuckOutput) Close() error   { return nil }

func TestEngineOutputUnavailable(t *testing.T) {
	ran := false
	src := funcSource{run: func(ctx context.Context, emit func(logic.Press)) error {
		ran = true
		return nil
	}}

	e := newTestEngine(t, src, stuckOutput{}, nil, nil)
	if err := e.Run(context.Background()); err == nil {
		t.Fatal("expected error when output cannot be driven low")
	}
	if ran {
		t.Error("source should not start")
	}
}
