package button

import (
	"context"
	"os"
	"syscall"

	"github.com/eiannone/keyboard"
)

// Keyboard treats Enter or Space on the controlling terminal as a press. The
// terminal is in raw mode while watching, so Ctrl-C is turned back into
// SIGINT.
type Keyboard struct{}

func NewKeyboard() *Keyboard { return &Keyboard{} }

func (k *Keyboard) Name() string { return "keyboard" }

func (k *Keyboard) Watch(ctx context.Context, onPress func()) error {
	keys, err := keyboard.GetKeys(8)
	if err != nil {
		return err
	}
	defer keyboard.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-keys:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return ev.Err
			}
			switch ev.Key {
			case keyboard.KeyCtrlC:
				_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
			case keyboard.KeyEnter, keyboard.KeySpace:
				onPress()
			}
		}
	}
}
