package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port      string
		GRPCPort  string
		LogLevel  string
		LogPretty bool
	}
	Deepgram struct {
		APIKey         string
		Model          string
		Language       string
		EndpointingMs  int
		UtteranceEndMs int
		BaseURL        string
	}
	Eleven struct {
		APIKey  string
		VoiceID string
		ModelID string
	}
	Audio struct {
		CaptureCmd  string
		PlaybackCmd string
		PicoLang    string
	}
	Media struct {
		ResolverCmd string
		PlayerCmd   string
		IPCSocket   string
	}
	Board struct {
		ButtonGPIO int
		LEDName    string
		Keyboard   bool
	}
	System struct {
		UseSudo bool
	}
	Auth struct {
		TokenSecret   string
		TokenSkewSecs int
	}
	Turn struct {
		NoSpeechTimeoutSec int
		MaxTurnSec         int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_pretty", false)

	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")
	v.SetDefault("deepgram.endpointing_ms", 500)
	v.SetDefault("deepgram.utterance_end_ms", 1200)

	v.SetDefault("elevenlabs.model_id", "eleven_turbo_v2")

	v.SetDefault("audio.capture_cmd", "arecord -q -t raw -f S16_LE -r 16000 -c 1")
	v.SetDefault("audio.playback_cmd", "aplay -q -t raw -f S16_LE -r 16000 -c 1")
	v.SetDefault("audio.pico_lang", "en-US")

	v.SetDefault("media.resolver_cmd", "yt-dlp")
	v.SetDefault("media.player_cmd", "mpv")
	v.SetDefault("media.ipc_socket", "/tmp/voicekit-mpv.sock")

	// AIY Voice Kit v2 wires the arcade button to GPIO 23.
	v.SetDefault("board.button_gpio", 23)
	v.SetDefault("board.led_name", "")
	v.SetDefault("board.keyboard", false)

	v.SetDefault("system.use_sudo", true)

	v.SetDefault("auth.token_skew_secs", 60)

	v.SetDefault("turn.no_speech_timeout_sec", 8)
	v.SetDefault("turn.max_turn_sec", 20)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.grpc_port", "GRPC_PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_pretty", "LOG_PRETTY")

	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
	v.BindEnv("deepgram.endpointing_ms", "DEEPGRAM_ENDPOINTING_MS")
	v.BindEnv("deepgram.utterance_end_ms", "DEEPGRAM_UTTERANCE_END_MS")
	v.BindEnv("deepgram.base_url", "DEEPGRAM_WS_URL")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")

	v.BindEnv("audio.capture_cmd", "AUDIO_CAPTURE_CMD")
	v.BindEnv("audio.playback_cmd", "AUDIO_PLAYBACK_CMD")
	v.BindEnv("audio.pico_lang", "AUDIO_PICO_LANG")

	v.BindEnv("media.resolver_cmd", "MEDIA_RESOLVER_CMD")
	v.BindEnv("media.player_cmd", "MEDIA_PLAYER_CMD")
	v.BindEnv("media.ipc_socket", "MEDIA_IPC_SOCKET")

	v.BindEnv("board.button_gpio", "BOARD_BUTTON_GPIO")
	v.BindEnv("board.led_name", "BOARD_LED_NAME")
	v.BindEnv("board.keyboard", "BOARD_KEYBOARD")

	v.BindEnv("system.use_sudo", "SYSTEM_USE_SUDO")

	v.BindEnv("auth.token_secret", "AUTH_TOKEN_SECRET")
	v.BindEnv("auth.token_skew_secs", "AUTH_TOKEN_SKEW_SECS")

	v.BindEnv("turn.no_speech_timeout_sec", "TURN_NO_SPEECH_TIMEOUT_SEC")
	v.BindEnv("turn.max_turn_sec", "TURN_MAX_SEC")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.GRPCPort = toString(v.Get("server.grpc_port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogPretty = v.GetBool("server.log_pretty")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")
	c.Deepgram.EndpointingMs = v.GetInt("deepgram.endpointing_ms")
	c.Deepgram.UtteranceEndMs = v.GetInt("deepgram.utterance_end_ms")
	c.Deepgram.BaseURL = v.GetString("deepgram.base_url")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")

	c.Audio.CaptureCmd = v.GetString("audio.capture_cmd")
	c.Audio.PlaybackCmd = v.GetString("audio.playback_cmd")
	c.Audio.PicoLang = v.GetString("audio.pico_lang")

	c.Media.ResolverCmd = v.GetString("media.resolver_cmd")
	c.Media.PlayerCmd = v.GetString("media.player_cmd")
	c.Media.IPCSocket = v.GetString("media.ipc_socket")

	c.Board.ButtonGPIO = v.GetInt("board.button_gpio")
	c.Board.LEDName = v.GetString("board.led_name")
	c.Board.Keyboard = v.GetBool("board.keyboard")

	c.System.UseSudo = v.GetBool("system.use_sudo")

	c.Auth.TokenSecret = v.GetString("auth.token_secret")
	c.Auth.TokenSkewSecs = v.GetInt("auth.token_skew_secs")

	c.Turn.NoSpeechTimeoutSec = v.GetInt("turn.no_speech_timeout_sec")
	c.Turn.MaxTurnSec = v.GetInt("turn.max_turn_sec")

	return c
}

func toString(v any) string { return fmt.Sprint(v) }
