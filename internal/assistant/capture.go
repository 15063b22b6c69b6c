package assistant

import (
	"context"
	"io"
	"sync"

	"voicekit/player/internal/proc"
)

// Capturer opens a microphone stream of raw PCM16 16 kHz mono audio.
type Capturer interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// CommandCapture records through an external command such as arecord.
type CommandCapture struct {
	runner *proc.Runner
	line   string
}

func NewCommandCapture(runner *proc.Runner, line string) *CommandCapture {
	return &CommandCapture{runner: runner, line: line}
}

const captureKey = "capture"

func (c *CommandCapture) Open(ctx context.Context) (io.ReadCloser, error) {
	spec, err := proc.Command(c.line)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	spec.Stdout = pw
	if _, err := c.runner.Start(captureKey, spec, func(err error) { pw.CloseWithError(err) }); err != nil {
		pw.Close()
		return nil, err
	}
	return &captureStream{PipeReader: pr, runner: c.runner}, nil
}

type captureStream struct {
	*io.PipeReader
	runner *proc.Runner
	once   sync.Once
}

func (s *captureStream) Close() error {
	s.once.Do(func() {
		_ = s.PipeReader.Close()
		_ = s.runner.Stop(captureKey)
	})
	return nil
}
