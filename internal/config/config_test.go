package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("BOARD_BUTTON_GPIO")
	os.Unsetenv("MEDIA_PLAYER_CMD")
	os.Unsetenv("TURN_NO_SPEECH_TIMEOUT_SEC")

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Board.ButtonGPIO != 23 {
		t.Fatalf("expected default button gpio 23, got %d", c.Board.ButtonGPIO)
	}
	if c.Media.PlayerCmd != "mpv" {
		t.Fatalf("expected default player mpv, got %q", c.Media.PlayerCmd)
	}
	if c.Turn.NoSpeechTimeoutSec != 8 {
		t.Fatalf("expected default no-speech timeout 8, got %d", c.Turn.NoSpeechTimeoutSec)
	}
	if !c.System.UseSudo {
		t.Fatalf("expected sudo enabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BOARD_BUTTON_GPIO", "-1")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")

	c := Load()

	if c.Server.Port != "9000" {
		t.Fatalf("expected port 9000, got %q", c.Server.Port)
	}
	if c.Board.ButtonGPIO != -1 {
		t.Fatalf("expected button gpio -1, got %d", c.Board.ButtonGPIO)
	}
	if c.Deepgram.APIKey != "dg-key" {
		t.Fatalf("expected deepgram key from env, got %q", c.Deepgram.APIKey)
	}
}
