package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"voicekit/player/internal/auth"
	"voicekit/player/internal/config"
)

func main() {
	client := flag.String("client", "remote", "name of the remote controller the token is for")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.Auth.TokenSecret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_TOKEN_SECRET is not set")
		os.Exit(1)
	}

	tok, err := auth.GenerateToken(cfg.Auth.TokenSecret, *client, time.Now().Add(*ttl).Unix())
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint token:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
