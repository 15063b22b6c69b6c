package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
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

// Gate is the admission control the virtual button presses through.
type Gate interface {
	TryStart() bool
	Ready() bool
	Snapshot() gate.Snapshot
}

// NowPlaying reports what the media player is doing.
type NowPlaying interface {
	State() media.State
	Current() (media.Item, bool)
}

type Handlers struct {
	cfg    config.Config
	gate   Gate
	player NowPlaying
	store  *store.Store
	hub    *status.Hub
	log    zerolog.Logger
}

func NewHandlers(cfg config.Config, g Gate, p NowPlaying, st *store.Store, hub *status.Hub, log zerolog.Logger) *Handlers {
	return &Handlers{cfg: cfg, gate: g, player: p, store: st, hub: hub, log: log}
}

// HandleReady reports 503 until the assistant has finished starting.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.gate.Snapshot().State == status.Unknown.String() {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"gate":      h.gate.Snapshot(),
		"indicator": h.hub.Current(),
		"turns":     h.store.TurnCount(),
		"player":    map[string]any{"state": h.player.State().String()},
	}
	if item, ok := h.player.Current(); ok {
		body["player"] = map[string]any{"state": h.player.State().String(), "title": item.Title, "url": item.WebpageURL}
	}
	if last, ok := h.store.LastTurn(); ok {
		body["last_turn"] = last
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleButton is a virtual button press. Like the physical button it is
// dropped when a turn is already in progress.
func (h *Handlers) HandleButton(w http.ResponseWriter, r *http.Request) {
	client := "anonymous"
	if h.cfg.Auth.TokenSecret != "" {
		tok, err := auth.FromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := auth.ValidateToken(h.cfg.Auth.TokenSecret, tok, time.Now(), h.cfg.Auth.TokenSkewSecs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		client = claims.Client
	}
	accepted := h.gate.TryStart()
	result := "dropped"
	if accepted {
		result = "accepted"
	}
	metricButton.WithLabelValues(result).Inc()
	h.store.AppendEvent("button", map[string]any{"source": "http", "client": client, "accepted": accepted})
	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": h.store.ListEvents()})
}

// HandleStatusStream pushes every indicator change to a websocket client.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close(websocket.StatusInternalError, "")
	ctx := c.CloseRead(r.Context())

	updates, cancel := h.hub.Subscribe()
	defer cancel()
	metricWSClients.Inc()
	defer metricWSClients.Dec()

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case u := <-updates:
			wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, c, u)
			wcancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					h.log.Debug().Err(err).Msg("status stream write")
				}
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
