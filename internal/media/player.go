package media

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voicekit/player/internal/proc"
)

type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

const playerKey = "player"

// Player plays one item at a time through mpv, controlled over its JSON IPC
// socket.
type Player struct {
	runner *proc.Runner
	line   string
	socket string
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	current Item
}

func NewPlayer(runner *proc.Runner, line, socket string, log zerolog.Logger) *Player {
	return &Player{runner: runner, line: line, socket: socket, log: log}
}

// Play replaces whatever is playing with item.
func (p *Player) Play(ctx context.Context, item Item) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.state = Idle
	p.current = Item{}
	p.mu.Unlock()

	if p.runner.IsRunning(playerKey) {
		_ = p.runner.Stop(playerKey)
	}

	spec, err := proc.Command(p.line,
		"--no-video", "--really-quiet", "--input-ipc-server="+p.socket, item.URL)
	if err != nil {
		return err
	}
	// Mark playing before the process starts so a quick exit lands after it.
	p.mu.Lock()
	p.state = Playing
	p.current = item
	p.mu.Unlock()

	_, err = p.runner.Start(playerKey, spec, func(err error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen == gen {
			p.state = Idle
			p.current = Item{}
		}
	})
	if err != nil {
		p.mu.Lock()
		if p.gen == gen {
			p.state = Idle
			p.current = Item{}
		}
		p.mu.Unlock()
		return fmt.Errorf("start player: %w", err)
	}
	p.log.Info().Str("title", item.Title).Msg("playing")
	return nil
}

// SetPause pauses or resumes the current item. With nothing loaded it does
// nothing.
func (p *Player) SetPause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Idle {
		return nil
	}
	if err := p.command(ctx, "set_property", "pause", paused); err != nil {
		return err
	}
	if paused {
		p.state = Paused
	} else {
		p.state = Playing
	}
	return nil
}

// Stop ends playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.state == Idle {
		p.mu.Unlock()
		return nil
	}
	p.gen++
	p.state = Idle
	p.current = Item{}
	p.mu.Unlock()

	if err := p.runner.Stop(playerKey); err != nil && !errors.Is(err, proc.ErrNotRunning) {
		return err
	}
	return nil
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Current() (Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.state != Idle
}

type ipcReply struct {
	Error string `json:"error"`
}

// command sends one IPC command and waits for mpv's reply.
func (p *Player) command(ctx context.Context, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", p.socket)
	if err != nil {
		return fmt.Errorf("player ipc: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if err := json.NewEncoder(conn).Encode(map[string]any{"command": args}); err != nil {
		return fmt.Errorf("player ipc: %w", err)
	}
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var r ipcReply
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		// Lines without an error field are async events.
		if r.Error == "" {
			continue
		}
		if r.Error != "success" {
			return fmt.Errorf("player ipc: %s", r.Error)
		}
		return nil
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("player ipc: %w", err)
	}
	return fmt.Errorf("player ipc: no reply")
}
