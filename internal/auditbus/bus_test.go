package auditbus

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileSinkAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e := Event{Timestamp: time.Now(), Service: "mixer", Code: "entropy_mixed"}
		if err := sink.Publish(ctx, e); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if !strings.Contains(scanner.Text(), "entropy_mixed") {
			t.Errorf("unexpected line: %s", scanner.Text())
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("expected 3 lines, got %d", lines)
	}
}

type recordingSink struct {
	mu     chan struct{}
	events chan Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan Event, 8)}
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.events <- e
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestBusFansOutToOptionalSinks(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileSink(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	opt := newRecordingSink()
	bus := NewBus(file, opt)
	defer bus.Close()

	e := Event{Timestamp: time.Now(), Service: "generator", Code: "rekey"}
	if err := bus.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-opt.events:
		if got.Code != "rekey" {
			t.Errorf("expected code rekey, got %s", got.Code)
		}
	case <-time.After(time.Second):
		t.Error("optional sink never received the event")
	}
}
