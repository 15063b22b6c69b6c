package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenMissing = errors.New("missing bearer token")
	ErrTokenFormat  = errors.New("invalid token format")
	ErrTokenSig     = errors.New("invalid token signature")
	ErrTokenExp     = errors.New("token expired")
)

// Claims identify the remote controller a token was minted for.
type Claims struct {
	Client string
	Exp    int64
}

// GenerateToken signs a token for client valid until expUnix.
// Layout: base64url(client "." exp "." hex(hmac_sha256(secret, client "." exp))).
func GenerateToken(secret, client string, expUnix int64) (string, error) {
	if secret == "" {
		return "", errors.New("empty token secret")
	}
	if client == "" || strings.Contains(client, ".") {
		return "", ErrTokenFormat
	}
	msg := client + "." + strconv.FormatInt(expUnix, 10)
	raw := msg + "." + hex.EncodeToString(sign(secret, msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ValidateToken checks the signature and expiry. A token is accepted up to
// skewSeconds after it expires.
func ValidateToken(secret, token string, now time.Time, skewSeconds int) (Claims, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 || parts[0] == "" {
		return Claims{}, ErrTokenFormat
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	got, err := hex.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	if !hmac.Equal(sign(secret, parts[0]+"."+parts[1]), got) {
		return Claims{}, ErrTokenSig
	}
	if now.Unix() > exp+int64(skewSeconds) {
		return Claims{}, ErrTokenExp
	}
	return Claims{Client: parts[0], Exp: exp}, nil
}

// FromRequest returns the bearer token of r.
func FromRequest(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", ErrTokenMissing
	}
	return strings.TrimSpace(h[len(prefix):]), nil
}

func sign(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
