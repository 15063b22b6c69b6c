package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrRunning    = errors.New("process already running")
	ErrNotRunning = errors.New("process not running")
	ErrEmptyCmd   = errors.New("command not configured")
)

// Spec describes one child process.
type Spec struct {
	Name  string
	Args  []string
	Env   map[string]string
	Stdin io.Reader
	// Stdout receives the raw standard output when set; otherwise output is
	// logged line by line.
	Stdout io.Writer
}

// Command splits a configured command line and appends extra arguments.
func Command(line string, extra ...string) (Spec, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Spec{}, ErrEmptyCmd
	}
	args := append(parts[1:len(parts):len(parts)], extra...)
	return Spec{Name: parts[0], Args: args}, nil
}

// ExitFunc is invoked once a keyed process has exited, naturally or killed.
type ExitFunc func(err error)

// Runner starts and supervises child processes. Long-lived processes are
// keyed so at most one runs per key.
type Runner struct {
	log  zerolog.Logger
	mu   sync.Mutex
	proc map[string]*process

	// Grace is how long Stop waits after cancelling before killing.
	Grace time.Duration
}

type process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log, proc: make(map[string]*process), Grace: 3 * time.Second}
}

func (r *Runner) IsRunning(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.proc[key]
	return ok
}

// Start launches spec under key. onExit may be nil.
func (r *Runner) Start(key string, spec Spec, onExit ExitFunc) (int, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return 0, ErrEmptyCmd
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := r.command(ctx, spec)

	// Reserve slot to prevent duplicate starts
	r.mu.Lock()
	if _, exists := r.proc[key]; exists {
		r.mu.Unlock()
		cancel()
		return 0, fmt.Errorf("%s: %w", key, ErrRunning)
	}
	p := &process{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	r.proc[key] = p
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.proc[key] == p {
			delete(r.proc, key)
		}
		r.mu.Unlock()
		cancel()
	}

	var stdout, stderr io.ReadCloser
	var err error
	if spec.Stdout == nil {
		if stdout, err = cmd.StdoutPipe(); err != nil {
			release()
			return 0, err
		}
	}
	if stderr, err = cmd.StderrPipe(); err != nil {
		release()
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		release()
		return 0, err
	}

	if stdout != nil {
		go r.stream(key, "stdout", stdout)
	}
	go r.stream(key, "stderr", stderr)

	go func() {
		err := cmd.Wait()
		release()
		close(p.done)
		r.log.Debug().Str("key", key).Err(err).Msg("process exited")
		if onExit != nil {
			onExit(err)
		}
	}()

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	r.log.Debug().Str("key", key).Str("cmd", spec.Name).Int("pid", pid).Msg("process started")
	return pid, nil
}

// Stop cancels the keyed process and kills it if it outlives the grace period.
func (r *Runner) Stop(key string) error {
	r.mu.Lock()
	p, ok := r.proc[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotRunning)
	}
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-time.After(r.Grace):
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		return nil
	}
}

// Run executes spec to completion.
func (r *Runner) Run(ctx context.Context, spec Spec) error {
	_, err := r.exec(ctx, spec, false)
	return err
}

// Output executes spec to completion and returns its standard output.
func (r *Runner) Output(ctx context.Context, spec Spec) ([]byte, error) {
	return r.exec(ctx, spec, true)
}

func (r *Runner) exec(ctx context.Context, spec Spec, capture bool) ([]byte, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, ErrEmptyCmd
	}
	cmd := r.command(ctx, spec)
	var out, errBuf bytes.Buffer
	if capture {
		cmd.Stdout = &out
	} else if spec.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errBuf.String())
		if len(msg) > 256 {
			msg = msg[:256]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", spec.Name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}
	return out.Bytes(), nil
}

func (r *Runner) command(ctx context.Context, spec Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Env = append(os.Environ(), envToList(spec.Env)...)
	cmd.Stdin = spec.Stdin
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	return cmd
}

func envToList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func (r *Runner) stream(key, stream string, rdr io.Reader) {
	scanner := bufio.NewScanner(rdr)
	for scanner.Scan() {
		r.log.Debug().Str("key", key).Str("stream", stream).Msg(scanner.Text())
	}
}
