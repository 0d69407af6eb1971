package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf))

	z.Info("frame",
		String("port", "/dev/ttyUSB0"),
		Strings("ports", []string{"a", "b"}),
		Int("len", 3),
		Uint64("bytes", 42),
		Bool("open", true),
		Duration("took", time.Second),
		Hex("data", []byte{0x01, 0xab}),
		Err(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}

	checks := map[string]interface{}{
		"level":   "info",
		"message": "frame",
		"port":    "/dev/ttyUSB0",
		"len":     float64(3),
		"bytes":   float64(42),
		"open":    true,
		"data":    "01ab",
		"error":   "boom",
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
	if ports, ok := got["ports"].([]interface{}); !ok || len(ports) != 2 {
		t.Errorf("ports = %v, want two entries", got["ports"])
	}
}

func TestConsoleAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	z := NewConsoleAdapter(&buf, zerolog.WarnLevel)

	z.Debug("hidden")
	z.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("events below level were written: %q", buf.String())
	}

	z.Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("warn event missing from output %q", buf.String())
	}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoopLogger()
	l.Debug("x")
	l.Info("x", String("k", "v"))
	l.Warn("x")
	l.Error("x", Err(errors.New("e")))
}
