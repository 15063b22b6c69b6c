package button

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Signal treats a process signal (SIGUSR1 by default) as a press, so
// `pkill -USR1 voicekit` works on boards without a button.
type Signal struct {
	sig os.Signal
}

func NewSignal() *Signal { return &Signal{sig: syscall.SIGUSR1} }

func (s *Signal) Name() string { return "signal" }

func (s *Signal) Watch(ctx context.Context, onPress func()) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, s.sig)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			onPress()
		}
	}
}
