package button

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestGPIO(t *testing.T) (*GPIO, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "gpio23")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	value := filepath.Join(dir, "value")
	if err := os.WriteFile(value, []byte("1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := NewGPIO(23)
	g.root = root
	g.poll = 2 * time.Millisecond
	g.debounce = 10 * time.Millisecond
	return g, value
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGPIOPressFiresOnce(t *testing.T) {
	g, value := newTestGPIO(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var presses atomic.Int32
	done := make(chan error, 1)
	go func() { done <- g.Watch(ctx, func() { presses.Add(1) }) }()

	os.WriteFile(value, []byte("0\n"), 0o644)
	waitFor(t, func() bool { return presses.Load() == 1 })
	// Holding the button does not repeat.
	time.Sleep(50 * time.Millisecond)
	if presses.Load() != 1 {
		t.Fatalf("expected a single press while held, got %d", presses.Load())
	}

	os.WriteFile(value, []byte("1\n"), 0o644)
	time.Sleep(50 * time.Millisecond)
	os.WriteFile(value, []byte("0\n"), 0o644)
	waitFor(t, func() bool { return presses.Load() == 2 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}

func TestGPIOExportsPin(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "export"), nil, 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "gpio5"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	g := NewGPIO(5)
	g.root = root
	value, err := g.setup()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if value != filepath.Join(root, "gpio5", "value") {
		t.Fatalf("unexpected value path %s", value)
	}
	b, _ := os.ReadFile(filepath.Join(root, "export"))
	d, _ := os.ReadFile(filepath.Join(root, "gpio5", "direction"))
	if string(b) != "5" || string(d) != "in" {
		t.Fatalf("expected export=5 direction=in, got %q %q", b, d)
	}
}

type fakeSource struct {
	name    string
	presses int
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Watch(ctx context.Context, onPress func()) error {
	for i := 0; i < f.presses; i++ {
		onPress()
	}
	return f.err
}

func TestWatchFansInSources(t *testing.T) {
	var presses atomic.Int32
	Watch(context.Background(), zerolog.Nop(), func() { presses.Add(1) },
		&fakeSource{name: "a", presses: 2},
		nil,
		&fakeSource{name: "b", presses: 1, err: errors.New("no tty")},
	)
	if presses.Load() != 3 {
		t.Fatalf("expected 3 presses, got %d", presses.Load())
	}
}
