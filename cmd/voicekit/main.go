package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"voicekit/player/internal/api"
	"voicekit/player/internal/assistant"
	"voicekit/player/internal/button"
	"voicekit/player/internal/commands"
	"voicekit/player/internal/config"
	"voicekit/player/internal/dispatcher"
	"voicekit/player/internal/gate"
	"voicekit/player/internal/health"
	"voicekit/player/internal/logging"
	"voicekit/player/internal/media"
	"voicekit/player/internal/proc"
	"voicekit/player/internal/speech"
	"voicekit/player/internal/status"
	"voicekit/player/internal/store"
	"voicekit/player/internal/system"
)

const healthService = "voicekit"

func main() {
	check := flag.Bool("check", false, "probe cloud APIs and local tools, then exit")
	flag.Parse()

	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.Init(cfg.Server.LogLevel, cfg.Server.LogPretty)

	if *check {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		st := health.NewChecker(cfg).CheckAll(ctx)
		cancel()
		fmt.Print(st)
		if !st.OK {
			os.Exit(1)
		}
		return
	}
	os.Exit(run(cfg, log))
}

func run(cfg config.Config, log zerolog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := proc.NewRunner(logging.Component("proc"))
	st := store.New()
	hub := status.NewHub()
	healthSrv := grpchealth.NewServer()

	indicators := status.Multi{
		status.NewLogIndicator(logging.Component("indicator")),
		hub,
		status.NewHealthIndicator(healthSrv, healthService),
	}
	if cfg.Board.LEDName != "" {
		indicators = append(indicators, status.NewLED(cfg.Board.LEDName, logging.Component("led")))
	}

	engine := assistant.NewDeepgramEngine(
		assistant.DeepgramConfigFrom(cfg),
		assistant.NewCommandCapture(runner, cfg.Audio.CaptureCmd),
		logging.Component("assistant"),
	)
	g := gate.New(engine, indicators, logging.Component("gate"))

	var speakers []speech.Speaker
	if cfg.Eleven.APIKey != "" {
		speakers = append(speakers, speech.NewElevenLabs(runner, cfg.Eleven.APIKey, cfg.Eleven.VoiceID, cfg.Eleven.ModelID, cfg.Audio.PlaybackCmd))
	}
	speakers = append(speakers, speech.NewPico(runner, cfg.Audio.PicoLang, cfg.Audio.PlaybackCmd))
	speaker := speech.NewChain(logging.Component("speech"), speakers...)

	player := media.NewPlayer(runner, cfg.Media.PlayerCmd, cfg.Media.IPCSocket, logging.Component("player"))
	resolver := media.NewResolver(runner, cfg.Media.ResolverCmd, logging.Component("resolver"))
	sys := system.New(runner, cfg.System.UseSudo, logging.Component("system"))
	handlers := commands.NewHandlers(player, resolver, speaker, sys, logging.Component("commands"))
	disp := dispatcher.New(g, commands.NewRouter(handlers), st, logging.Component("dispatcher"))

	events, err := engine.Start(ctx)
	if err != nil {
		log.Error().Err(err).Msg("start assistant")
		return 1
	}

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Error().Err(err).Msg("grpc listen")
		return 1
	}
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
		if err := gs.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           logMiddleware(logging.Component("http"), api.NewRouter(api.NewHandlers(cfg, g, player, st, hub, logging.Component("api")))),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http serve")
		}
	}()

	sources := []button.Source{button.NewSignal()}
	if cfg.Board.ButtonGPIO > 0 {
		sources = append(sources, button.NewGPIO(cfg.Board.ButtonGPIO))
	}
	if cfg.Board.Keyboard {
		sources = append(sources, button.NewKeyboard())
	}
	btnCtx, btnCancel := context.WithCancel(ctx)
	btnDone := make(chan struct{})
	go func() {
		defer close(btnDone)
		button.Watch(btnCtx, logging.Component("button"), func() {
			accepted := g.TryStart()
			st.AppendEvent("button", map[string]any{"source": "board", "accepted": accepted})
		}, sources...)
	}()

	err = disp.Run(ctx, events)

	btnCancel()
	<-btnDone
	if perr := player.Stop(); perr != nil {
		log.Warn().Err(perr).Msg("stop playback")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	healthSrv.Shutdown()
	gs.Stop()

	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, commands.ErrHalt):
		log.Info().Err(err).Msg("exiting")
		return 0
	default:
		log.Error().Err(err).Msg("assistant loop ended")
		return 1
	}
}

func logMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}
