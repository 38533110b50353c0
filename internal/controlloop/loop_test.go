package controlloop

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/actuator"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

// =============================================================================
// Fakes
// =============================================================================

// callLog records collaborator calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeSession struct {
	log       *callLog
	ensureErr error
	probeErr  error
}

func (f *fakeSession) EnsureConnected(context.Context) error {
	f.log.add("ensure")
	return f.ensureErr
}

func (f *fakeSession) ProbeLiveness(context.Context) error {
	f.log.add("probe")
	return f.probeErr
}

type fakeDispatcher struct {
	log      *callLog
	timeouts []time.Duration
}

func (f *fakeDispatcher) ProcessPending(timeout time.Duration) int {
	f.log.add("drain")
	f.timeouts = append(f.timeouts, timeout)
	return 0
}

type fakeActuator struct {
	log      *callLog
	applyErr error
}

func (f *fakeActuator) Apply(context.Context) (actuator.Command, bool, error) {
	f.log.add("apply")
	return actuator.Command{}, false, f.applyErr
}

func (f *fakeActuator) ToggleLocal() { f.log.add("toggle") }

type fakeButton struct {
	log     *callLog
	presses []bool
	err     error
}

func (f *fakeButton) Poll() (bool, error) {
	f.log.add("button")
	if f.err != nil {
		return false, f.err
	}
	if len(f.presses) == 0 {
		return false, nil
	}
	p := f.presses[0]
	f.presses = f.presses[1:]
	return p, nil
}

type fakeSensor struct {
	log     *callLog
	failing bool
}

func (f *fakeSensor) Sample() telemetry.Reading {
	f.log.add("sample")
	if f.failing {
		return telemetry.Reading{Temperature: math.NaN(), Humidity: math.NaN()}
	}
	return telemetry.Reading{Temperature: 23.5, Humidity: 61}
}

type fakePublisher struct {
	log       *callLog
	err       error
	onPublish func()
}

func (f *fakePublisher) PublishReading(context.Context, telemetry.Reading) error {
	f.log.add("publish")
	if f.onPublish != nil {
		f.onPublish()
	}
	return f.err
}

type fakePruner struct {
	log       *callLog
	retention []time.Duration
}

func (f *fakePruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	f.log.add("prune")
	f.retention = append(f.retention, olderThan)
	return 3, nil
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	b.WriteString(level + " " + msg)
	for _, a := range args {
		if s, ok := a.(string); ok {
			b.WriteString(" " + s)
		}
	}
	l.lines = append(l.lines, b.String())
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args...) }

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	log        *callLog
	session    *fakeSession
	dispatcher *fakeDispatcher
	actuator   *fakeActuator
	button     *fakeButton
	sensor     *fakeSensor
	publisher  *fakePublisher
	pruner     *fakePruner
	clock      *fakeClock
	logger     *recordingLogger
	loop       *Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := &callLog{}
	f := &fixture{
		log:        log,
		session:    &fakeSession{log: log},
		dispatcher: &fakeDispatcher{log: log},
		actuator:   &fakeActuator{log: log},
		button:     &fakeButton{log: log},
		sensor:     &fakeSensor{log: log},
		publisher:  &fakePublisher{log: log},
		pruner:     &fakePruner{log: log},
		clock:      &fakeClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)},
		logger:     &recordingLogger{},
	}

	loop, err := New(Config{
		Session:    f.session,
		Dispatcher: f.dispatcher,
		Actuator:   f.actuator,
		Button:     f.button,
		Sensor:     f.sensor,
		Publisher:  f.publisher,
		Pruner:     f.pruner,
		Now:        f.clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	loop.SetLogger(f.logger)
	f.loop = loop
	return f
}

func equalCalls(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_RequiresCollaborators(t *testing.T) {
	log := &callLog{}
	full := Config{
		Session:    &fakeSession{log: log},
		Dispatcher: &fakeDispatcher{log: log},
		Actuator:   &fakeActuator{log: log},
		Button:     &fakeButton{log: log},
		Sensor:     &fakeSensor{log: log},
		Publisher:  &fakePublisher{log: log},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"session", func(c *Config) { c.Session = nil }},
		{"dispatcher", func(c *Config) { c.Dispatcher = nil }},
		{"actuator", func(c *Config) { c.Actuator = nil }},
		{"button", func(c *Config) { c.Button = nil }},
		{"sensor", func(c *Config) { c.Sensor = nil }},
		{"publisher", func(c *Config) { c.Publisher = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Errorf("New() without %s expected error, got nil", tt.name)
			}
		})
	}

	loop, err := New(full)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if loop.cfg.DrainTimeout != DefaultDrainTimeout || loop.cfg.PublishInterval != DefaultPublishInterval {
		t.Errorf("defaults = %v/%v", loop.cfg.DrainTimeout, loop.cfg.PublishInterval)
	}
	if loop.cfg.Retention != DefaultRetention || loop.cfg.PruneInterval != DefaultPruneInterval {
		t.Errorf("prune defaults = %v/%v", loop.cfg.Retention, loop.cfg.PruneInterval)
	}
}

// =============================================================================
// Step ordering
// =============================================================================

func TestStep_FixedOrder(t *testing.T) {
	f := newFixture(t)

	if err := f.loop.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	want := []string{"ensure", "drain", "apply", "probe", "sample", "publish", "prune", "button"}
	if got := f.log.snapshot(); !equalCalls(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if f.dispatcher.timeouts[0] != DefaultDrainTimeout {
		t.Errorf("drain timeout = %v, want %v", f.dispatcher.timeouts[0], DefaultDrainTimeout)
	}
	if f.pruner.retention[0] != DefaultRetention {
		t.Errorf("retention = %v, want %v", f.pruner.retention[0], DefaultRetention)
	}
}

func TestStep_ButtonReleaseTogglesAndApplies(t *testing.T) {
	f := newFixture(t)
	f.button.presses = []bool{true}

	if err := f.loop.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	calls := f.log.snapshot()
	tail := calls[len(calls)-3:]
	if !equalCalls(tail, []string{"button", "toggle", "apply"}) {
		t.Errorf("calls end with %v, want button toggle apply", tail)
	}
}

func TestStep_PublishInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	countPublishes := func() int {
		n := 0
		for _, c := range f.log.snapshot() {
			if c == "publish" {
				n++
			}
		}
		return n
	}

	_ = f.loop.Step(ctx) // first iteration publishes
	f.clock.Advance(9 * time.Second)
	_ = f.loop.Step(ctx)
	if countPublishes() != 1 {
		t.Errorf("publishes after 9s = %d, want 1", countPublishes())
	}

	f.clock.Advance(time.Second) // exactly the interval
	_ = f.loop.Step(ctx)
	if countPublishes() != 2 {
		t.Errorf("publishes after 10s = %d, want 2", countPublishes())
	}
}

func TestStep_PruneHourly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.loop.Step(ctx)
	for range 5 {
		f.clock.Advance(10 * time.Minute)
		_ = f.loop.Step(ctx)
	}
	if len(f.pruner.retention) != 1 {
		t.Errorf("prunes within the hour = %d, want 1", len(f.pruner.retention))
	}

	f.clock.Advance(10 * time.Minute)
	_ = f.loop.Step(ctx)
	if len(f.pruner.retention) != 2 {
		t.Errorf("prunes after an hour = %d, want 2", len(f.pruner.retention))
	}
	if !f.logger.contains("journal pruned") {
		t.Error("prune not logged")
	}
}

func TestStep_TransientFailuresAreLogged(t *testing.T) {
	f := newFixture(t)
	f.session.probeErr = errors.New("ping timeout")
	f.publisher.err = telemetry.ErrNotConnected
	f.actuator.applyErr = errors.New("gpio busy")
	f.button.err = errors.New("line closed")

	if err := f.loop.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v, want nil for transient failures", err)
	}

	for _, msg := range []string{"liveness probe failed", "reading not published", "actuator write failed", "button read failed"} {
		if !f.logger.contains(msg) {
			t.Errorf("missing log %q", msg)
		}
	}
	if !f.loop.Healthy() {
		t.Error("Healthy() = false after transient failures")
	}
}

func TestStep_SampleLogged(t *testing.T) {
	f := newFixture(t)
	_ = f.loop.Step(context.Background())

	if !f.logger.contains("Temperature: 23.5°C") {
		t.Error("temperature line not logged")
	}
	if !f.logger.contains("Humidity: 61%") {
		t.Error("humidity line not logged")
	}
}

func TestStep_InvalidReadingWarnedAndPublished(t *testing.T) {
	tests := []struct {
		name     string
		failing  bool
		wantWarn bool
	}{
		{"valid reading", false, false},
		{"failed sensor read", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.sensor.failing = tt.failing

			_ = f.loop.Step(context.Background())

			if got := f.logger.contains("WARN sensor reading invalid"); got != tt.wantWarn {
				t.Errorf("invalid reading warning logged = %v, want %v", got, tt.wantWarn)
			}
			if !equalCalls(f.log.snapshot(), []string{"ensure", "drain", "apply", "probe", "sample", "publish", "prune", "button"}) {
				t.Errorf("calls = %v, want the reading published regardless", f.log.snapshot())
			}
			if tt.failing && !f.logger.contains("Temperature: nan°C") {
				t.Error("invalid temperature not logged in firmware form")
			}
		})
	}
}

// =============================================================================
// Fatal
// =============================================================================

func TestStep_FatalIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.session.ensureErr = session.ErrRetriesExhausted

	err := f.loop.Step(context.Background())
	if !errors.Is(err, session.ErrRetriesExhausted) {
		t.Fatalf("Step() error = %v, want ErrRetriesExhausted", err)
	}
	if got := f.log.snapshot(); !equalCalls(got, []string{"ensure"}) {
		t.Errorf("calls = %v, want only ensure", got)
	}
	if f.loop.Healthy() {
		t.Error("Healthy() = true after fatal")
	}

	// Later steps touch nothing
	f.session.ensureErr = nil
	for range 3 {
		if err := f.loop.Step(context.Background()); !errors.Is(err, session.ErrRetriesExhausted) {
			t.Errorf("Step() after fatal error = %v", err)
		}
	}
	if got := f.log.snapshot(); len(got) != 1 {
		t.Errorf("calls after fatal = %v, want none", got)
	}
	if !f.logger.contains("control loop stopped") {
		t.Error("fatal not logged")
	}
}

func TestStep_CancelledSessionWait(t *testing.T) {
	f := newFixture(t)
	f.session.ensureErr = context.Canceled

	err := f.loop.Step(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Step() error = %v, want context.Canceled", err)
	}
	if !f.loop.Healthy() {
		t.Error("cancellation must not make the loop fatal")
	}
}

// =============================================================================
// Run
// =============================================================================

func TestRun_ReturnsOnFatal(t *testing.T) {
	f := newFixture(t)
	f.session.ensureErr = session.ErrRetriesExhausted

	err := f.loop.Run(context.Background())
	if !errors.Is(err, session.ErrRetriesExhausted) {
		t.Errorf("Run() error = %v, want ErrRetriesExhausted", err)
	}
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.publisher.onPublish = cancel

	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if calls := f.log.snapshot(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}
