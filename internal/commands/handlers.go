package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"voicekit/player/internal/media"
)

// ErrHalt is returned by handlers after a power action has been issued. The
// caller should stop processing and exit cleanly.
var ErrHalt = errors.New("device is going down")

const (
	phraseNotFound   = "Sorry, I can't find that song."
	phrasePlayFailed = "Sorry, I can't play that right now."
	phraseNowPlaying = "Now playing %s"
	phraseGoodbye    = "Good bye!"
	phraseSeeYou     = "See you in a bit!"
	phraseIP         = "My IP address is %s"
	phraseNoIP       = "Sorry, I don't have a network address."
)

type Player interface {
	Play(ctx context.Context, item media.Item) error
	SetPause(ctx context.Context, paused bool) error
	Stop() error
	State() media.State
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (media.Item, error)
}

type Speaker interface {
	Say(ctx context.Context, text string) error
}

type System interface {
	Shutdown(ctx context.Context) error
	Reboot(ctx context.Context) error
	PrimaryIP() (string, error)
}

// Handlers carries out device actions for recognized commands. Only ErrHalt
// is returned to the caller; every other failure is logged or spoken.
type Handlers struct {
	player   Player
	resolver Resolver
	speaker  Speaker
	system   System
	log      zerolog.Logger
}

func NewHandlers(player Player, resolver Resolver, speaker Speaker, system System, log zerolog.Logger) *Handlers {
	return &Handlers{player: player, resolver: resolver, speaker: speaker, system: system, log: log}
}

// Stop ends playback if something is playing.
func (h *Handlers) Stop(ctx context.Context) error {
	if h.player.State() != media.Playing {
		return nil
	}
	if err := h.player.Stop(); err != nil {
		h.log.Warn().Err(err).Msg("stop playback")
	}
	return nil
}

func (h *Handlers) Pause(ctx context.Context) error {
	if err := h.player.SetPause(ctx, true); err != nil {
		h.log.Warn().Err(err).Msg("pause playback")
	}
	return nil
}

func (h *Handlers) Resume(ctx context.Context) error {
	if err := h.player.SetPause(ctx, false); err != nil {
		h.log.Warn().Err(err).Msg("resume playback")
	}
	return nil
}

// Play searches for query and plays the first result, replacing the current
// item.
func (h *Handlers) Play(ctx context.Context, query string) error {
	item, err := h.resolver.Resolve(ctx, query)
	if err != nil {
		h.log.Info().Err(err).Str("query", query).Msg("no media for query")
		h.say(ctx, phraseNotFound)
		return nil
	}
	h.say(ctx, fmt.Sprintf(phraseNowPlaying, sanitize(item.Title)))
	if err := h.player.Play(ctx, item); err != nil {
		h.log.Error().Err(err).Str("title", item.Title).Msg("start playback")
		h.say(ctx, phrasePlayFailed)
	}
	return nil
}

func (h *Handlers) PowerOff(ctx context.Context) error {
	h.say(ctx, phraseGoodbye)
	if err := h.system.Shutdown(ctx); err != nil {
		h.log.Error().Err(err).Msg("shutdown")
	}
	return ErrHalt
}

func (h *Handlers) Reboot(ctx context.Context) error {
	h.say(ctx, phraseSeeYou)
	if err := h.system.Reboot(ctx); err != nil {
		h.log.Error().Err(err).Msg("reboot")
	}
	return ErrHalt
}

func (h *Handlers) ReportIP(ctx context.Context) error {
	ip, err := h.system.PrimaryIP()
	if err != nil {
		h.log.Warn().Err(err).Msg("lookup ip")
		h.say(ctx, phraseNoIP)
		return nil
	}
	h.say(ctx, fmt.Sprintf(phraseIP, ip))
	return nil
}

func (h *Handlers) say(ctx context.Context, text string) {
	if err := h.speaker.Say(ctx, text); err != nil {
		h.log.Warn().Err(err).Str("text", text).Msg("speak")
	}
}

var unspeakable = regexp.MustCompile(`[^\s\p{L}\p{N}_]`)

// sanitize keeps letters, digits, underscores and whitespace.
func sanitize(title string) string {
	return unspeakable.ReplaceAllString(title, "")
}

// Normalize lowercases and trims recognized text before matching.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
