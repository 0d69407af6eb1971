package memory

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/bft-labs/serialmux/internal/domain"
)

// collector reads every notified byte, the way the multiplexer does.
type collector struct {
	mu    sync.Mutex
	h     *Handle
	got   []byte
	calls int
	errs  []error
}

func (c *collector) notify(available int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	var b [1]byte
	for i := 0; i < available; i++ {
		if _, err := c.h.Read(b[:]); err != nil {
			c.errs = append(c.errs, err)
			return
		}
		c.got = append(c.got, b[0])
	}
}

func (c *collector) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.got...)
}

func openCollector(t *testing.T, tr *Transport, name string) *collector {
	t.Helper()
	h, err := tr.Open(name)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", name, err)
	}
	c := &collector{h: h.(*Handle)}
	if err := h.OnByteAvailable(c.notify); err != nil {
		t.Fatalf("OnByteAvailable() error = %v", err)
	}
	return c
}

func TestTransport_ListPortNames(t *testing.T) {
	tr := New()
	tr.Attach("sim1")
	tr.Attach("sim0")
	tr.Attach("sim1")

	names, err := tr.ListPortNames()
	if err != nil {
		t.Fatalf("ListPortNames() error = %v", err)
	}
	if len(names) != 2 || names[0] != "sim0" || names[1] != "sim1" {
		t.Errorf("ListPortNames() = %v, want [sim0 sim1]", names)
	}

	tr.Detach("sim0")
	names, _ = tr.ListPortNames()
	if len(names) != 1 || names[0] != "sim1" {
		t.Errorf("after Detach, ListPortNames() = %v, want [sim1]", names)
	}

	listErr := errors.New("enumeration failed")
	tr.FailList(listErr)
	if _, err := tr.ListPortNames(); !errors.Is(err, listErr) {
		t.Errorf("ListPortNames() error = %v, want %v", err, listErr)
	}
}

func TestTransport_OpenIsExclusive(t *testing.T) {
	tr := New()
	tr.Attach("sim0")

	h, err := tr.Open("sim0")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := tr.Open("sim0"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Open() error = %v, want ErrBusy", err)
	}
	if _, err := tr.Open("missing"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(missing) error = %v, want ErrNoDevice", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := h.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, err := tr.Open("sim0"); err != nil {
		t.Errorf("Open() after Close error = %v", err)
	}
	if tr.Opens("sim0") != 2 {
		t.Errorf("Opens() = %d, want 2", tr.Opens("sim0"))
	}
}

func TestTransport_InjectAndSettle(t *testing.T) {
	tr := New()
	tr.Attach("sim0")
	c := openCollector(t, tr, "sim0")

	for i := 0; i < 10; i++ {
		if err := tr.Inject("sim0", []byte{byte(i), byte(i + 100)}); err != nil {
			t.Fatalf("Inject() error = %v", err)
		}
	}
	tr.Settle()

	got := c.bytes()
	if len(got) != 20 {
		t.Fatalf("got %d bytes, want 20", len(got))
	}
	for i := 0; i < 10; i++ {
		if got[2*i] != byte(i) || got[2*i+1] != byte(i+100) {
			t.Fatalf("bytes out of order: %v", got)
		}
	}
}

func TestTransport_InjectBeforeHook(t *testing.T) {
	tr := New()
	tr.Attach("sim0")
	h, _ := tr.Open("sim0")

	if err := tr.Inject("sim0", []byte("early")); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	c := &collector{h: h.(*Handle)}
	_ = h.OnByteAvailable(c.notify)
	tr.Settle()

	if !bytes.Equal(c.bytes(), []byte("early")) {
		t.Errorf("got %q, want %q", c.bytes(), "early")
	}
}

func TestTransport_InjectErrors(t *testing.T) {
	tr := New()
	if err := tr.Inject("nope", []byte{1}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Inject(unknown) error = %v, want ErrNoDevice", err)
	}
	tr.Attach("sim0")
	if err := tr.Inject("sim0", []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Inject(unopened) error = %v, want ErrClosed", err)
	}
}

func TestTransport_LoopbackAndWritten(t *testing.T) {
	tr := New()
	tr.Attach("sim0", Loopback())
	tr.Attach("sim1")
	c := openCollector(t, tr, "sim0")
	h1, _ := tr.Open("sim1")

	h0 := c.h
	if _, err := h0.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := h1.Write([]byte("quiet")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	tr.Settle()

	if !bytes.Equal(c.bytes(), []byte("ping")) {
		t.Errorf("loopback input = %q, want %q", c.bytes(), "ping")
	}
	if got := tr.Written("sim0"); !bytes.Equal(got, []byte("ping")) {
		t.Errorf("Written(sim0) = %q", got)
	}
	if got := tr.Written("sim1"); !bytes.Equal(got, []byte("quiet")) {
		t.Errorf("Written(sim1) = %q", got)
	}
}

func TestTransport_FailNextRead(t *testing.T) {
	tr := New()
	tr.Attach("sim0")
	c := openCollector(t, tr, "sim0")

	readErr := errors.New("framing error")
	if err := tr.FailNextRead("sim0", readErr); err != nil {
		t.Fatalf("FailNextRead() error = %v", err)
	}
	tr.Settle()
	_ = tr.Inject("sim0", []byte{7})
	tr.Settle()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) != 1 || !errors.Is(c.errs[0], readErr) {
		t.Errorf("errs = %v, want [%v]", c.errs, readErr)
	}
	if !bytes.Equal(c.got, []byte{7}) {
		t.Errorf("got %v after failed read, want [7]", c.got)
	}
}

func TestHandle_ParamsAndFailures(t *testing.T) {
	tr := New()
	tr.Attach("sim0")
	h, _ := tr.Open("sim0")

	params := domain.LineParams{BaudRate: 115200, DataBits: 8, StopBits: domain.StopBits1}
	if err := h.SetParams(params); err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}
	if got, _ := tr.Params("sim0"); got != params {
		t.Errorf("Params() = %v, want %v", got, params)
	}

	paramsErr := errors.New("unsupported")
	tr.FailParams("sim0", paramsErr)
	if err := h.SetParams(params); !errors.Is(err, paramsErr) {
		t.Errorf("SetParams() error = %v, want %v", err, paramsErr)
	}

	closeErr := errors.New("close failed")
	tr.FailClose("sim0", closeErr)
	if err := h.Close(); !errors.Is(err, closeErr) {
		t.Errorf("Close() error = %v, want %v", err, closeErr)
	}
	if h.IsOpen() {
		t.Error("handle still open after failing Close")
	}
	if _, err := h.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read() after Close error = %v, want ErrClosed", err)
	}

	openErr := errors.New("permission denied")
	tr.FailOpen("sim0", openErr)
	if _, err := tr.Open("sim0"); !errors.Is(err, openErr) {
		t.Errorf("Open() error = %v, want %v", err, openErr)
	}
}
