package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"voicekit/player/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Checker probes the cloud APIs and local tools the controller depends on.
type Checker struct {
	cfg        config.Config
	httpc      *http.Client
	deepgram   string
	elevenlabs string
	lookPath   func(string) (string, error)
}

func NewChecker(cfg config.Config) *Checker {
	return &Checker{
		cfg:        cfg,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		deepgram:   "https://api.deepgram.com",
		elevenlabs: "https://api.elevenlabs.io",
		lookPath:   exec.LookPath,
	}
}

// CheckAll runs all health checks and returns combined status.
// ElevenLabs is optional: without a key speech falls back to pico2wave.
func (c *Checker) CheckAll(ctx context.Context) HealthStatus {
	checks := []CheckResult{c.checkDeepgram(ctx)}
	if c.cfg.Eleven.APIKey != "" {
		checks = append(checks, c.checkElevenLabs(ctx))
	}
	bins := []struct{ name, line string }{
		{"capture", c.cfg.Audio.CaptureCmd},
		{"playback", c.cfg.Audio.PlaybackCmd},
		{"resolver", c.cfg.Media.ResolverCmd},
		{"player", c.cfg.Media.PlayerCmd},
	}
	if c.cfg.Eleven.APIKey == "" {
		bins = append(bins, struct{ name, line string }{"pico", "pico2wave"})
	}
	for _, b := range bins {
		checks = append(checks, c.checkBinary(b.name, b.line))
	}

	allOK := true
	for _, r := range checks {
		if !r.OK {
			allOK = false
		}
	}
	return HealthStatus{OK: allOK, Checks: checks, CheckedAt: time.Now().UTC()}
}

func (c *Checker) checkDeepgram(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "deepgram"}
	if c.cfg.Deepgram.APIKey == "" {
		result.Error = "DEEPGRAM_API_KEY not set"
		return result
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.deepgram+"/v1/projects", nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("Authorization", "Token "+c.cfg.Deepgram.APIKey)
	return c.do(req, result, start)
}

func (c *Checker) checkElevenLabs(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "elevenlabs"}
	if c.cfg.Eleven.VoiceID == "" {
		result.Error = "ELEVENLABS_VOICE_ID not set"
		return result
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.elevenlabs+"/v1/voices/"+c.cfg.Eleven.VoiceID, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("xi-api-key", c.cfg.Eleven.APIKey)
	result = c.do(req, result, start)
	if strings.HasPrefix(result.Error, "unexpected status 404") {
		result.Error = fmt.Sprintf("voice ID %q not found", c.cfg.Eleven.VoiceID)
	}
	return result
}

func (c *Checker) do(req *http.Request, result CheckResult, start time.Time) CheckResult {
	resp, err := c.httpc.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		result.Error = fmt.Sprintf("invalid API key (%d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
	default:
		result.OK = true
	}
	return result
}

func (c *Checker) checkBinary(name, line string) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		result.Error = "command not configured"
		return result
	}
	path, err := c.lookPath(fields[0])
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("%s not found in PATH", fields[0])
		return result
	}
	result.OK = path != ""
	return result
}
