package serialmux_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/serialmux/internal/adapters/memory"
	"github.com/bft-labs/serialmux/pkg/serialmux"
)

// =============================================================================
// Test Utilities
// =============================================================================

// testLogger implements serialmux.Logger for capturing log output in tests.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, fields ...serialmux.LogField) { l.log("DEBUG", msg) }
func (l *testLogger) Info(msg string, fields ...serialmux.LogField)  { l.log("INFO", msg) }
func (l *testLogger) Warn(msg string, fields ...serialmux.LogField)  { l.log("WARN", msg) }
func (l *testLogger) Error(msg string, fields ...serialmux.LogField) { l.log("ERROR", msg) }

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("[%s] %s", level, msg))
}

func (l *testLogger) Contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == msg {
			return true
		}
	}
	return false
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	serialmux.BasePlugin
	mu        *sync.Mutex
	order     *[]string
	initError error
	cfg       serialmux.PluginConfig
}

func newTrackingPlugin(name string, mu *sync.Mutex, order *[]string) *trackingPlugin {
	return &trackingPlugin{
		BasePlugin: serialmux.BasePlugin{PluginName: name},
		mu:         mu,
		order:      order,
	}
}

func (p *trackingPlugin) Initialize(ctx context.Context, cfg serialmux.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initError != nil {
		return p.initError
	}
	p.cfg = cfg
	*p.order = append(*p.order, "init:"+p.Name())
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.Name())
	return nil
}

// eventTracker records service events.
type eventTracker struct {
	serialmux.BaseEventHandler
	mu        sync.Mutex
	states    []serialmux.StateChangeEvent
	refreshes []serialmux.RefreshEvent
}

func (e *eventTracker) OnStateChange(event serialmux.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, event)
}

func (e *eventTracker) OnRefresh(event serialmux.RefreshEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshes = append(e.refreshes, event)
}

func (e *eventTracker) Refreshes() []serialmux.RefreshEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]serialmux.RefreshEvent(nil), e.refreshes...)
}

func (e *eventTracker) Transitions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.states))
	for i, s := range e.states {
		out[i] = s.Previous.String() + "->" + s.Current.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newSim(names ...string) *memory.Transport {
	sim := memory.New()
	for _, n := range names {
		sim.Attach(n)
	}
	return sim
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	cfg := serialmux.DefaultConfig()
	cfg.PortPattern = "tty["
	if _, err := serialmux.New(cfg, serialmux.WithTransport(newSim())); !errors.Is(err, serialmux.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}

	cfg = serialmux.DefaultConfig()
	cfg.RescanInterval = -time.Second
	if _, err := serialmux.New(cfg, serialmux.WithTransport(newSim())); !errors.Is(err, serialmux.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestService_StartStop(t *testing.T) {
	events := &eventTracker{}
	svc, err := serialmux.New(serialmux.DefaultConfig(),
		serialmux.WithTransport(newSim("/dev/ttySIM0")),
		serialmux.WithEventHandler(events),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if svc.Status() != serialmux.StateStopped {
		t.Errorf("Status() = %v, want Stopped", svc.Status())
	}
	if err := svc.Stop(); !errors.Is(err, serialmux.ErrNotRunning) {
		t.Errorf("Stop() before Start error = %v, want ErrNotRunning", err)
	}
	if _, err := svc.Open("/dev/ttySIM0", serialmux.DefaultLineParams()); !errors.Is(err, serialmux.ErrNotRunning) {
		t.Errorf("Open() before Start error = %v, want ErrNotRunning", err)
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if svc.Status() != serialmux.StateRunning {
		t.Errorf("Status() = %v, want Running", svc.Status())
	}
	if err := svc.Start(ctx); !errors.Is(err, serialmux.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	port, err := svc.Open("/dev/ttySIM0", serialmux.DefaultLineParams())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if port.IsOpen() {
		t.Error("port still open after Stop")
	}
	if got := svc.Registry().OpenPorts(); len(got) != 0 {
		t.Errorf("OpenPorts() after Stop = %v", got)
	}

	want := []string{"Stopped->Starting", "Starting->Running", "Running->Stopping", "Stopping->Stopped"}
	if got := events.Transitions(); !equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestService_StartCrashesWhenListingFails(t *testing.T) {
	sim := newSim("/dev/ttySIM0")
	sim.FailList(errors.New("permission denied"))
	logger := &testLogger{}

	svc, err := serialmux.New(serialmux.DefaultConfig(),
		serialmux.WithTransport(sim),
		serialmux.WithLogger(logger),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = svc.Start(context.Background())
	if !errors.Is(err, serialmux.ErrTransport) {
		t.Fatalf("Start() error = %v, want ErrTransport", err)
	}
	if svc.Status() != serialmux.StateCrashed {
		t.Errorf("Status() = %v, want Crashed", svc.Status())
	}
	if !logger.Contains("[ERROR] No Available Serial Devices") {
		t.Error("diagnostics not logged on crash")
	}

	// A crashed service can be started again.
	sim.FailList(nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() after crash error = %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

// =============================================================================
// Plugin Tests
// =============================================================================

func TestPlugin_InitializationOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p1 := newTrackingPlugin("plugin1", &mu, &order)
	p2 := newTrackingPlugin("plugin2", &mu, &order)

	cfg := serialmux.DefaultConfig()
	cfg.DevDir = "/dev/sim"
	svc, err := serialmux.New(cfg,
		serialmux.WithTransport(newSim()),
		serialmux.WithPlugin(p1),
		serialmux.WithPlugin(p2),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatal(err)
	}

	want := []string{"init:plugin1", "init:plugin2", "shutdown:plugin2", "shutdown:plugin1"}
	if !equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if p1.cfg.DevDir != "/dev/sim" {
		t.Errorf("PluginConfig.DevDir = %q, want /dev/sim", p1.cfg.DevDir)
	}
	if p1.cfg.Refresher == nil || p1.cfg.Logger == nil {
		t.Error("PluginConfig missing Refresher or Logger")
	}
}

func TestPlugin_InitializationFailure_PreventsStart(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p1 := newTrackingPlugin("plugin1", &mu, &order)
	p2 := newTrackingPlugin("plugin2", &mu, &order)
	p2.initError = errors.New("intentional init failure")
	p3 := newTrackingPlugin("plugin3", &mu, &order)

	svc, err := serialmux.New(serialmux.DefaultConfig(),
		serialmux.WithTransport(newSim()),
		serialmux.WithPlugin(p1),
		serialmux.WithPlugin(p2),
		serialmux.WithPlugin(p3),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Start(context.Background()); !errors.Is(err, p2.initError) {
		t.Fatalf("Start() error = %v, want %v", err, p2.initError)
	}
	if svc.Status() != serialmux.StateCrashed {
		t.Errorf("Status() = %v, want Crashed", svc.Status())
	}
	want := []string{"init:plugin1", "shutdown:plugin1"}
	if !equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

// =============================================================================
// Refresh Tests
// =============================================================================

func TestService_RefreshReportsEvictions(t *testing.T) {
	sim := newSim("/dev/ttySIM0", "/dev/ttySIM1")
	events := &eventTracker{}
	svc, err := serialmux.New(serialmux.DefaultConfig(),
		serialmux.WithTransport(sim),
		serialmux.WithEventHandler(events),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop()

	if _, err := svc.Open("/dev/ttySIM0", serialmux.DefaultLineParams()); err != nil {
		t.Fatal(err)
	}
	sim.Detach("/dev/ttySIM0")
	if err := svc.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	refreshes := events.Refreshes()
	if len(refreshes) != 2 {
		t.Fatalf("got %d refresh events, want 2", len(refreshes))
	}
	last := refreshes[1]
	if !equal(last.Available, []string{"/dev/ttySIM1"}) {
		t.Errorf("Available = %v", last.Available)
	}
	if !equal(last.Evicted, []string{"/dev/ttySIM0"}) {
		t.Errorf("Evicted = %v", last.Evicted)
	}
	if _, err := svc.Registry().Get("/dev/ttySIM0"); !errors.Is(err, serialmux.ErrPortNotRegistered) {
		t.Errorf("Get() error = %v, want ErrPortNotRegistered", err)
	}

	sim.FailList(errors.New("gone"))
	if err := svc.Refresh(); err == nil {
		t.Fatal("Refresh() expected error")
	}
	if got := events.Refreshes(); got[len(got)-1].Err == nil {
		t.Error("failed refresh not reported")
	}
}

func TestService_RescanEvictsVanishedPorts(t *testing.T) {
	sim := newSim("/dev/ttySIM0")
	cfg := serialmux.DefaultConfig()
	cfg.RescanInterval = 10 * time.Millisecond

	svc, err := serialmux.New(cfg, serialmux.WithTransport(sim))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop()

	port, err := svc.Open("/dev/ttySIM0", serialmux.DefaultLineParams())
	if err != nil {
		t.Fatal(err)
	}
	sim.Detach("/dev/ttySIM0")

	deadline := time.Now().Add(2 * time.Second)
	for port.IsOpen() {
		if time.Now().After(deadline) {
			t.Fatal("port was not evicted by rescan")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// Listener Tests
// =============================================================================

func TestNewLengthPrefixedListener(t *testing.T) {
	var payloads []string
	f := serialmux.NewLengthPrefixedListener(func(p []byte) {
		payloads = append(payloads, fmt.Sprintf("%q", p))
	})

	for _, b := range []byte{0x00, 0x03, 'a', 'b', 'c', 0x00, 0x01, 'z'} {
		f.PushByte(b)
	}

	want := []string{`""`, `"abc"`, `""`, `"z"`}
	if !equal(payloads, want) {
		t.Errorf("payloads = %v, want %v", payloads, want)
	}
	if f.Expected() != 1 {
		t.Errorf("Expected() = %d, want 1 (waiting for header)", f.Expected())
	}
}

func TestNewListener(t *testing.T) {
	var frames int
	f := serialmux.NewListener(serialmux.HandlerFunc(func([]byte) { frames++ }), 3)
	for i := 0; i < 7; i++ {
		f.PushByte(byte(i))
	}
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
	if got := f.Peek(); len(got) != 1 || got[0] != 6 {
		t.Errorf("Peek() = %v, want [6]", got)
	}
}

func TestService_WaitOpen(t *testing.T) {
	sim := newSim()
	svc, err := serialmux.New(serialmux.DefaultConfig(), serialmux.WithTransport(sim))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		sim.Attach("/dev/ttySIM0")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	port, err := svc.WaitOpen(ctx, "/dev/ttySIM0", serialmux.DefaultLineParams())
	if err != nil {
		t.Fatalf("WaitOpen() error = %v", err)
	}
	if port.Name() != "/dev/ttySIM0" {
		t.Errorf("Name() = %q", port.Name())
	}

	// Errors other than a missing port are not retried.
	bad := serialmux.DefaultLineParams()
	bad.BaudRate = 0
	if _, err := svc.WaitOpen(ctx, "/dev/ttySIM0", bad); !errors.Is(err, serialmux.ErrConfigMismatch) {
		t.Errorf("WaitOpen() error = %v, want ErrConfigMismatch", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, err := svc.WaitOpen(short, "/dev/ttySIM7", serialmux.DefaultLineParams()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitOpen() error = %v, want DeadlineExceeded", err)
	}
}
