package stub

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRecordReturnsEmptyBufferImmediately(t *testing.T) {
	d := New(WithOutput(&bytes.Buffer{}))

	start := time.Now()
	captured, err := d.Record(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(captured) != 0 {
		t.Fatalf("expected empty capture, got %d bytes", len(captured))
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("expected record to return immediately, took %s", elapsed)
	}
}

func TestPlayIsObservable(t *testing.T) {
	out := &bytes.Buffer{}
	d := New(WithOutput(out))

	if err := d.Play(context.Background(), make([]byte, 4800)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if d.Played() != 1 {
		t.Fatalf("expected 1 play, got %d", d.Played())
	}
	if !strings.Contains(out.String(), "4800 bytes") {
		t.Fatalf("expected byte count in output, got %q", out.String())
	}
}

func TestPlayHonoursCancelledContext(t *testing.T) {
	d := New(WithOutput(&bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Play(ctx, []byte{1, 2}); err == nil {
		t.Fatalf("expected cancelled context error")
	}
	if d.Played() != 0 {
		t.Fatalf("expected no plays, got %d", d.Played())
	}
}
