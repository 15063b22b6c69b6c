package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"voicekit/player/internal/config"
)

var (
	ErrNotStarted   = errors.New("assistant not started")
	ErrBusy         = errors.New("turn already requested")
	ErrUnauthorized = errors.New("recognizer rejected credentials")
	ErrNoAPIKey     = errors.New("deepgram api key not configured")
)

// 20ms of PCM16 at 16 kHz mono.
const frameBytes = 16000 / 50 * 2

// DeepgramConfig controls the live recognition connection opened per turn.
type DeepgramConfig struct {
	APIKey          string
	Model           string
	Language        string
	EndpointingMs   int
	UtteranceEndMs  int
	BaseURL         string
	NoSpeechTimeout time.Duration
	MaxTurn         time.Duration
}

func DeepgramConfigFrom(c config.Config) DeepgramConfig {
	return DeepgramConfig{
		APIKey:          c.Deepgram.APIKey,
		Model:           c.Deepgram.Model,
		Language:        c.Deepgram.Language,
		EndpointingMs:   c.Deepgram.EndpointingMs,
		UtteranceEndMs:  c.Deepgram.UtteranceEndMs,
		BaseURL:         c.Deepgram.BaseURL,
		NoSpeechTimeout: time.Duration(nzd(c.Turn.NoSpeechTimeoutSec, 8)) * time.Second,
		MaxTurn:         time.Duration(nzd(c.Turn.MaxTurnSec, 20)) * time.Second,
	}
}

// DeepgramEngine turns button-admitted turns into recognition events. Each
// turn opens the microphone and a Deepgram live websocket, and closes both
// when the turn ends.
type DeepgramEngine struct {
	cfg     DeepgramConfig
	capture Capturer
	log     zerolog.Logger

	events   chan Event
	startReq chan struct{}
	stopReq  chan struct{}
	started  atomic.Bool
	inTurn   atomic.Bool

	// failure window, touched only by the run goroutine
	fails []time.Time
}

func NewDeepgramEngine(cfg DeepgramConfig, capture Capturer, log zerolog.Logger) *DeepgramEngine {
	if cfg.NoSpeechTimeout <= 0 {
		cfg.NoSpeechTimeout = 8 * time.Second
	}
	if cfg.MaxTurn <= 0 {
		cfg.MaxTurn = 20 * time.Second
	}
	return &DeepgramEngine{
		cfg:      cfg,
		capture:  capture,
		log:      log,
		events:   make(chan Event, 32),
		startReq: make(chan struct{}, 1),
		stopReq:  make(chan struct{}, 1),
	}
}

func (d *DeepgramEngine) Start(ctx context.Context) (<-chan Event, error) {
	if d.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if !d.started.CompareAndSwap(false, true) {
		return nil, errors.New("assistant already started")
	}
	go d.run(ctx)
	return d.events, nil
}

func (d *DeepgramEngine) StartConversation() error {
	if !d.started.Load() {
		return ErrNotStarted
	}
	select {
	case d.startReq <- struct{}{}:
		return nil
	default:
		return ErrBusy
	}
}

func (d *DeepgramEngine) StopConversation() {
	if !d.inTurn.Load() {
		return
	}
	select {
	case d.stopReq <- struct{}{}:
	default:
	}
}

func (d *DeepgramEngine) run(ctx context.Context) {
	defer close(d.events)
	if !d.emit(ctx, Event{Type: EventStartFinished}) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.startReq:
			if done := d.turn(ctx); done {
				return
			}
		}
	}
}

// turn runs one conversation turn and reports whether the stream is over.
func (d *DeepgramEngine) turn(ctx context.Context) bool {
	// A stop aimed at the previous turn must not end this one.
	select {
	case <-d.stopReq:
	default:
	}
	d.inTurn.Store(true)
	defer d.inTurn.Store(false)

	if !d.emit(ctx, Event{Type: EventTurnStarted}) {
		return true
	}
	outcome, err := d.converse(ctx)
	if err != nil {
		fatal := errors.Is(err, ErrUnauthorized) || d.addFailure()
		metricTurnOutcomes.WithLabelValues("error").Inc()
		d.log.Error().Err(err).Bool("fatal", fatal).Msg("turn failed")
		if !d.emit(ctx, Event{Type: EventAssistantError, Fatal: fatal, Err: err}) || fatal {
			return true
		}
		outcome = EventTurnFinished
	} else {
		d.resetFailures()
		metricTurnOutcomes.WithLabelValues(outcomeLabel(outcome)).Inc()
	}
	return !d.emit(ctx, Event{Type: outcome})
}

type frameKind int

const (
	frameSpeechStarted frameKind = iota + 1
	frameInterim
	frameFinal
	frameUtteranceEnd
	frameError
)

type frame struct {
	kind        frameKind
	text        string
	speechFinal bool
}

// converse streams the microphone to the recognizer until the turn resolves,
// and returns the event type that ends it.
func (d *DeepgramEngine) converse(ctx context.Context) (EventType, error) {
	tctx, cancel := context.WithTimeout(ctx, d.cfg.MaxTurn)
	defer cancel()

	conn, err := d.dial(tctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mic, err := d.capture.Open(tctx)
	if err != nil {
		return 0, fmt.Errorf("open microphone: %w", err)
	}
	defer mic.Close()
	go d.pump(tctx, conn, mic)

	frames := make(chan frame, 8)
	var readErr error
	go func() {
		defer close(frames)
		readErr = d.read(tctx, conn, frames)
	}()

	started := time.Now()
	noSpeech := time.NewTimer(d.cfg.NoSpeechTimeout)
	defer noSpeech.Stop()
	heard := false
	firstText := true
	var finals []string
	lastInterim := ""

	for {
		select {
		case <-tctx.Done():
			if ctx.Err() != nil {
				return EventTurnFinished, nil
			}
			d.log.Info().Dur("max", d.cfg.MaxTurn).Msg("turn hit max length")
			return EventTurnTimeout, nil
		case <-d.stopReq:
			d.log.Debug().Msg("turn stopped on request")
			return EventTurnFinished, nil
		case <-noSpeech.C:
			if !heard {
				return EventTurnTimeout, nil
			}
		case f, ok := <-frames:
			if !ok {
				frames = nil
				if tctx.Err() != nil {
					continue
				}
				if readErr == nil {
					readErr = io.ErrUnexpectedEOF
				}
				return 0, fmt.Errorf("recognizer connection lost: %w", readErr)
			}
			if f.text != "" && firstText {
				firstText = false
				metricFirstTranscriptMS.Observe(float64(time.Since(started).Milliseconds()))
			}
			switch f.kind {
			case frameSpeechStarted:
				heard = true
			case frameInterim:
				heard = true
				lastInterim = f.text
			case frameFinal:
				heard = true
				if f.text != "" {
					finals = append(finals, f.text)
				}
				if f.speechFinal {
					return d.finish(ctx, strings.Join(finals, " "))
				}
			case frameUtteranceEnd:
				text := strings.Join(finals, " ")
				if text == "" {
					text = lastInterim
				}
				return d.finish(ctx, text)
			case frameError:
				return 0, fmt.Errorf("recognizer error: %s", f.text)
			}
		}
	}
}

func (d *DeepgramEngine) finish(ctx context.Context, text string) (EventType, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return EventNoResponse, nil
	}
	if !d.emit(ctx, Event{Type: EventEndOfUtterance}) {
		return EventTurnFinished, nil
	}
	d.emit(ctx, Event{Type: EventRecognizedSpeech, Text: text})
	return EventTurnFinished, nil
}

func (d *DeepgramEngine) dial(ctx context.Context) (*websocket.Conn, error) {
	hdr := make(http.Header)
	hdr.Set("Authorization", "Token "+d.cfg.APIKey)
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	conn, resp, err := websocket.Dial(dctx, d.url(), &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		metricConnectFailures.Inc()
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
		}
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}
	ms := time.Since(start).Milliseconds()
	metricConnectMS.Observe(float64(ms))
	d.log.Debug().Int64("ms", ms).Msg("recognizer connected")
	return conn, nil
}

func (d *DeepgramEngine) url() string {
	q := url.Values{}
	q.Set("model", orDefault(d.cfg.Model, "nova-2"))
	q.Set("language", orDefault(d.cfg.Language, "en-US"))
	// Commands are matched literally, so keep transcripts bare.
	q.Set("smart_format", "false")
	q.Set("punctuate", "false")
	q.Set("endpointing", fmt.Sprintf("%d", nzd(d.cfg.EndpointingMs, 500)))
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", fmt.Sprintf("%d", nzd(d.cfg.UtteranceEndMs, 1200)))
	q.Set("vad_events", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	base := d.cfg.BaseURL
	if base == "" {
		base = "wss://api.deepgram.com/v1/listen"
	}
	return base + "?" + q.Encode()
}

// pump forwards microphone frames until the mic ends or ctx is done.
func (d *DeepgramEngine) pump(ctx context.Context, conn *websocket.Conn, mic io.Reader) {
	buf := make([]byte, frameBytes)
	var n uint64
	for {
		if _, err := io.ReadFull(mic, buf); err != nil {
			if ctx.Err() == nil {
				// Ask the recognizer to flush what it has.
				_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
			}
			return
		}
		if err := conn.Write(ctx, websocket.MessageBinary, buf); err != nil {
			return
		}
		n++
		metricFrames.Inc()
		metricAudioBytes.Add(float64(len(buf)))
		if n == 1 || n%100 == 0 {
			d.log.Debug().Uint64("frames", n).Float64("rms", calcRMS(buf)).Msg("mic")
		}
	}
}

type dgMessage struct {
	Type        string          `json:"type"`
	IsFinal     bool            `json:"is_final"`
	SpeechFinal bool            `json:"speech_final"`
	Channel     json.RawMessage `json:"channel"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
}

type dgChannel struct {
	Alternatives []struct {
		Transcript string `json:"transcript"`
	} `json:"alternatives"`
}

// read parses recognizer frames until the connection fails.
func (d *DeepgramEngine) read(ctx context.Context, conn *websocket.Conn, out chan<- frame) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		var m dgMessage
		if err := json.Unmarshal(data, &m); err != nil {
			d.log.Warn().Err(err).Msg("recognizer sent invalid json")
			continue
		}
		f, ok := parseFrame(m)
		if !ok {
			continue
		}
		select {
		case out <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseFrame(m dgMessage) (frame, bool) {
	switch {
	case strings.EqualFold(m.Type, "Error"):
		msg := m.Description
		if msg == "" {
			msg = m.Message
		}
		if msg == "" {
			msg = "provider_error"
		}
		return frame{kind: frameError, text: msg}, true
	case strings.EqualFold(m.Type, "SpeechStarted"):
		return frame{kind: frameSpeechStarted}, true
	case strings.EqualFold(m.Type, "UtteranceEnd"):
		return frame{kind: frameUtteranceEnd}, true
	case strings.EqualFold(m.Type, "Results"):
		var ch dgChannel
		text := ""
		if len(m.Channel) > 0 && json.Unmarshal(m.Channel, &ch) == nil && len(ch.Alternatives) > 0 {
			text = strings.TrimSpace(ch.Alternatives[0].Transcript)
		}
		if m.IsFinal || m.SpeechFinal {
			return frame{kind: frameFinal, text: text, speechFinal: m.SpeechFinal}, true
		}
		if text == "" {
			return frame{}, false
		}
		return frame{kind: frameInterim, text: text}, true
	default:
		// Metadata and unknown frames
		return frame{}, false
	}
}

func (d *DeepgramEngine) emit(ctx context.Context, e Event) bool {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case d.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// addFailure records a failed turn and reports whether failures are now
// frequent enough to give up.
func (d *DeepgramEngine) addFailure() bool {
	now := time.Now()
	d.fails = append(d.fails, now)
	cutoff := now.Add(-60 * time.Second)
	j := 0
	for _, t := range d.fails {
		if t.After(cutoff) {
			d.fails[j] = t
			j++
		}
	}
	d.fails = d.fails[:j]
	return len(d.fails) >= 3
}

func (d *DeepgramEngine) resetFailures() { d.fails = nil }

func outcomeLabel(t EventType) string {
	switch t {
	case EventTurnTimeout:
		return "timeout"
	case EventNoResponse:
		return "no_response"
	default:
		return "finished"
	}
}

// calcRMS computes RMS of PCM16 audio
func calcRMS(b []byte) float64 {
	if len(b) < 2 {
		return 0
	}
	var sum float64
	n := len(b) / 2
	for i := 0; i < n; i++ {
		sample := int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
