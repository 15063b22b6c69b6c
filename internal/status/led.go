package status

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

const ledRoot = "/sys/class/leds"

// LED drives a Linux LED class device: a slow beacon when ready, solid on
// while listening and a quick pulse while thinking.
type LED struct {
	dir string
	max int
	log zerolog.Logger

	mu   sync.Mutex
	last State
}

func NewLED(name string, log zerolog.Logger) *LED {
	return newLEDAt(filepath.Join(ledRoot, name), log)
}

func newLEDAt(dir string, log zerolog.Logger) *LED {
	l := &LED{dir: dir, max: 255, log: log}
	if b, err := os.ReadFile(filepath.Join(dir, "max_brightness")); err == nil {
		if n, err := strconv.Atoi(string(trimNL(b))); err == nil && n > 0 {
			l.max = n
		}
	}
	return l
}

func (l *LED) SetState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s == l.last {
		return
	}
	var err error
	switch s {
	case Ready:
		err = l.blink(100, 1900)
	case Listening:
		err = l.solid(l.max)
	case Thinking:
		err = l.blink(100, 100)
	default:
		err = l.solid(0)
	}
	if err != nil {
		l.log.Warn().Err(err).Str("state", s.String()).Msg("led write failed")
		return
	}
	l.last = s
}

func (l *LED) solid(brightness int) error {
	if err := l.write("trigger", "none"); err != nil {
		return err
	}
	return l.write("brightness", strconv.Itoa(brightness))
}

func (l *LED) blink(onMs, offMs int) error {
	if err := l.write("trigger", "timer"); err != nil {
		return err
	}
	if err := l.write("delay_on", strconv.Itoa(onMs)); err != nil {
		return err
	}
	return l.write("delay_off", strconv.Itoa(offMs))
}

func (l *LED) write(attr, val string) error {
	return os.WriteFile(filepath.Join(l.dir, attr), []byte(val), 0644)
}

func trimNL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
