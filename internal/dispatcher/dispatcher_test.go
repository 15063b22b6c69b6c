package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voicekit/player/internal/assistant"
	"voicekit/player/internal/commands"
	"voicekit/player/internal/gate"
	"voicekit/player/internal/media"
	"voicekit/player/internal/status"
	"voicekit/player/internal/store"
)

type fakeEngine struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakeEngine) StartConversation() error { f.starts.Add(1); return nil }
func (f *fakeEngine) StopConversation()        { f.stops.Add(1) }

type fakePlayer struct {
	state media.State
	stops int
}

func (f *fakePlayer) Play(ctx context.Context, item media.Item) error {
	f.state = media.Playing
	return nil
}
func (f *fakePlayer) SetPause(ctx context.Context, paused bool) error { return nil }
func (f *fakePlayer) Stop() error                                     { f.stops++; f.state = media.Idle; return nil }
func (f *fakePlayer) State() media.State                              { return f.state }

type fakeResolver struct{ queries []string }

func (f *fakeResolver) Resolve(ctx context.Context, q string) (media.Item, error) {
	f.queries = append(f.queries, q)
	return media.Item{Title: "Song", URL: "https://cdn/song"}, nil
}

type fakeSpeaker struct{ said []string }

func (f *fakeSpeaker) Say(ctx context.Context, text string) error {
	f.said = append(f.said, text)
	return nil
}

type fakeSystem struct{ shutdowns int }

func (f *fakeSystem) Shutdown(ctx context.Context) error { f.shutdowns++; return nil }
func (f *fakeSystem) Reboot(ctx context.Context) error   { return nil }
func (f *fakeSystem) PrimaryIP() (string, error)         { return "10.0.0.2", nil }

type indicators struct{ got []status.State }

func (i *indicators) SetState(s status.State) { i.got = append(i.got, s) }

type harness struct {
	engine   *fakeEngine
	player   *fakePlayer
	resolver *fakeResolver
	system   *fakeSystem
	ind      *indicators
	gate     *gate.Gate
	store    *store.Store
	d        *Dispatcher
}

func newHarness() *harness {
	h := &harness{
		engine:   &fakeEngine{},
		player:   &fakePlayer{},
		resolver: &fakeResolver{},
		system:   &fakeSystem{},
		ind:      &indicators{},
		store:    store.New(),
	}
	h.gate = gate.New(h.engine, h.ind, zerolog.Nop())
	handlers := commands.NewHandlers(h.player, h.resolver, &fakeSpeaker{}, h.system, zerolog.Nop())
	h.d = New(h.gate, commands.NewRouter(handlers), h.store, zerolog.Nop())
	return h
}

func feed(evs ...assistant.Event) <-chan assistant.Event {
	ch := make(chan assistant.Event, len(evs))
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	return ch
}

func ev(t assistant.EventType) assistant.Event { return assistant.Event{Type: t} }

func speech(text string) assistant.Event {
	return assistant.Event{Type: assistant.EventRecognizedSpeech, Text: text}
}

func TestFullTurnRunsCommand(t *testing.T) {
	h := newHarness()
	err := h.d.Run(context.Background(), feed(
		ev(assistant.EventStartFinished),
		ev(assistant.EventTurnStarted),
		ev(assistant.EventEndOfUtterance),
		speech("PLAY Some Song"),
		ev(assistant.EventTurnFinished),
	))
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
	if len(h.resolver.queries) != 1 || h.resolver.queries[0] != "some song" {
		t.Fatalf("unexpected queries %v", h.resolver.queries)
	}
	if h.engine.stops.Load() != 1 {
		t.Fatalf("expected turn stopped before the command ran, stops=%d", h.engine.stops.Load())
	}
	if !h.gate.Ready() {
		t.Fatalf("expected admission reopened after turn finished")
	}
	want := []status.State{status.Ready, status.Listening, status.Thinking, status.Ready}
	if len(h.ind.got) != len(want) {
		t.Fatalf("unexpected indicator sequence %v", h.ind.got)
	}
	for i := range want {
		if h.ind.got[i] != want[i] {
			t.Fatalf("unexpected indicator sequence %v", h.ind.got)
		}
	}
	if h.store.TurnCount() != 1 {
		t.Fatalf("expected one turn recorded")
	}
	var sawCommand bool
	for _, e := range h.store.ListEvents() {
		if e.Type == "command" && e.Payload["name"] == "play" {
			sawCommand = true
		}
	}
	if !sawCommand {
		t.Fatalf("expected command in activity log")
	}
}

func TestUnmatchedSpeechDoesNothing(t *testing.T) {
	h := newHarness()
	h.d.Run(context.Background(), feed(
		ev(assistant.EventStartFinished),
		ev(assistant.EventTurnStarted),
		speech("what's the weather"),
		speech("   "),
	))
	if h.engine.stops.Load() != 0 {
		t.Fatalf("unmatched speech must not stop the turn")
	}
	if h.gate.Ready() {
		t.Fatalf("turn should remain open until the engine ends it")
	}
}

func TestTimeoutAndNoResponseReopen(t *testing.T) {
	for _, end := range []assistant.EventType{assistant.EventTurnTimeout, assistant.EventNoResponse} {
		h := newHarness()
		h.d.Run(context.Background(), feed(
			ev(assistant.EventStartFinished),
			ev(assistant.EventTurnStarted),
			ev(end),
		))
		if !h.gate.Ready() {
			t.Fatalf("%s: expected admission reopened", end)
		}
	}
}

func TestFatalErrorStopsProcessing(t *testing.T) {
	h := newHarness()
	h.player.state = media.Playing
	err := h.d.Run(context.Background(), feed(
		ev(assistant.EventStartFinished),
		assistant.Event{Type: assistant.EventAssistantError, Fatal: true, Err: errors.New("401")},
		speech("stop"),
	))
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if h.player.stops != 0 {
		t.Fatalf("events after a fatal error must not be handled")
	}
}

func TestNonFatalErrorContinues(t *testing.T) {
	h := newHarness()
	h.player.state = media.Playing
	err := h.d.Run(context.Background(), feed(
		assistant.Event{Type: assistant.EventAssistantError, Err: errors.New("dial")},
		speech("stop"),
	))
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
	if h.player.stops != 1 {
		t.Fatalf("expected stop handled after non-fatal error")
	}
}

func TestPowerOffHalts(t *testing.T) {
	h := newHarness()
	err := h.d.Run(context.Background(), feed(
		ev(assistant.EventStartFinished),
		ev(assistant.EventTurnStarted),
		speech("Power Off"),
		ev(assistant.EventTurnFinished),
	))
	if !errors.Is(err, commands.ErrHalt) {
		t.Fatalf("expected ErrHalt, got %v", err)
	}
	if h.system.shutdowns != 1 {
		t.Fatalf("expected shutdown issued")
	}
}

func TestContextCancelEndsRun(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan assistant.Event)
	done := make(chan error, 1)
	go func() { done <- h.d.Run(ctx, events) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
