package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"voicekit/player/internal/auth"
	"voicekit/player/internal/config"
	"voicekit/player/internal/gate"
	"voicekit/player/internal/media"
	"voicekit/player/internal/status"
	"voicekit/player/internal/store"
)

type nopEngine struct{}

func (nopEngine) StartConversation() error { return nil }
func (nopEngine) StopConversation()        {}

type idlePlayer struct{}

func (idlePlayer) State() media.State          { return media.Idle }
func (idlePlayer) Current() (media.Item, bool) { return media.Item{}, false }

func newServer(t *testing.T, cfg config.Config) (*httptest.Server, *gate.Gate, *store.Store) {
	t.Helper()
	hub := status.NewHub()
	g := gate.New(nopEngine{}, hub, zerolog.Nop())
	st := store.New()
	srv := httptest.NewServer(NewRouter(NewHandlers(cfg, g, idlePlayer{}, st, hub, zerolog.Nop())))
	t.Cleanup(srv.Close)
	return srv, g, st
}

func postButton(t *testing.T, url, token string) (int, bool) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url+"/button", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Accepted bool `json:"accepted"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body.Accepted
}

func TestReadyzWaitsForStart(t *testing.T) {
	srv, g, _ := newServer(t, config.Config{})
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before start, got %d", resp.StatusCode)
	}
	g.OnStartFinished()
	resp, _ = http.Get(srv.URL + "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after start, got %d", resp.StatusCode)
	}
}

func TestButtonPressAdmitsOnce(t *testing.T) {
	srv, g, st := newServer(t, config.Config{})
	if code, ok := postButton(t, srv.URL, ""); code != http.StatusOK || ok {
		t.Fatalf("expected press before start dropped, got %d %v", code, ok)
	}
	g.OnStartFinished()
	if _, ok := postButton(t, srv.URL, ""); !ok {
		t.Fatalf("expected first press accepted")
	}
	if _, ok := postButton(t, srv.URL, ""); ok {
		t.Fatalf("expected second press dropped")
	}
	if n := len(st.ListEvents()); n != 3 {
		t.Fatalf("expected 3 button events, got %d", n)
	}

	resp, _ := http.Get(srv.URL + "/button")
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestButtonRequiresToken(t *testing.T) {
	var cfg config.Config
	cfg.Auth.TokenSecret = "s3cret"
	cfg.Auth.TokenSkewSecs = 60
	srv, g, _ := newServer(t, cfg)
	g.OnStartFinished()

	if code, _ := postButton(t, srv.URL, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	bad, _ := auth.GenerateToken("other", "remote", time.Now().Add(time.Hour).Unix())
	if code, _ := postButton(t, srv.URL, bad); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", code)
	}
	tok, _ := auth.GenerateToken("s3cret", "remote", time.Now().Add(time.Hour).Unix())
	if code, ok := postButton(t, srv.URL, tok); code != http.StatusOK || !ok {
		t.Fatalf("expected accepted press, got %d %v", code, ok)
	}
}

func TestStatusAndEvents(t *testing.T) {
	srv, g, _ := newServer(t, config.Config{})
	g.OnStartFinished()
	postButton(t, srv.URL, "")

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var st struct {
		Gate   gate.Snapshot  `json:"gate"`
		Player map[string]any `json:"player"`
	}
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.Gate.CanStart || st.Gate.State != "ready" || st.Player["state"] != "idle" {
		t.Fatalf("unexpected status %+v", st)
	}

	resp, _ = http.Get(srv.URL + "/events")
	var ev struct {
		Events []map[string]any `json:"events"`
	}
	json.NewDecoder(resp.Body).Decode(&ev)
	resp.Body.Close()
	if len(ev.Events) != 1 || ev.Events[0]["type"] != "button" {
		t.Fatalf("unexpected events %+v", ev.Events)
	}
}

func TestStatusStream(t *testing.T) {
	srv, g, _ := newServer(t, config.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/status", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	g.OnStartFinished()
	for {
		var u status.Update
		if err := wsjson.Read(ctx, c, &u); err != nil {
			t.Fatalf("read: %v", err)
		}
		if u.State == "ready" {
			return
		}
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _, _ := newServer(t, config.Config{})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
