package button

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// GPIO polls an active-low push button through the sysfs GPIO interface.
type GPIO struct {
	pin      int
	root     string
	poll     time.Duration
	debounce time.Duration
}

func NewGPIO(pin int) *GPIO {
	return &GPIO{pin: pin, root: "/sys/class/gpio", poll: 10 * time.Millisecond, debounce: 50 * time.Millisecond}
}

func (g *GPIO) Name() string { return "gpio" }

func (g *GPIO) Watch(ctx context.Context, onPress func()) error {
	value, err := g.setup()
	if err != nil {
		return err
	}
	t := time.NewTicker(g.poll)
	defer t.Stop()

	pressed := false
	candidate := false
	var since time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			b, err := os.ReadFile(value)
			if err != nil {
				return fmt.Errorf("read gpio %d: %w", g.pin, err)
			}
			down := len(bytes.TrimSpace(b)) > 0 && bytes.TrimSpace(b)[0] == '0'
			if down != candidate {
				candidate = down
				since = now
				continue
			}
			if candidate != pressed && now.Sub(since) >= g.debounce {
				pressed = candidate
				if pressed {
					onPress()
				}
			}
		}
	}
}

// setup exports the pin as an input if it is not exported yet.
func (g *GPIO) setup() (string, error) {
	dir := filepath.Join(g.root, "gpio"+strconv.Itoa(g.pin))
	value := filepath.Join(dir, "value")
	if _, err := os.Stat(value); err == nil {
		return value, nil
	}
	if err := os.WriteFile(filepath.Join(g.root, "export"), []byte(strconv.Itoa(g.pin)), 0o200); err != nil {
		return "", fmt.Errorf("export gpio %d: %w", g.pin, err)
	}
	// udev may need a moment to create the pin directory.
	var err error
	for i := 0; i < 20; i++ {
		if err = os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0o200); err == nil {
			return value, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return "", fmt.Errorf("configure gpio %d: %w", g.pin, err)
}
