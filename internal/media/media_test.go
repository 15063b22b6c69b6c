package media

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voicekit/player/internal/proc"
)

func TestParseItem(t *testing.T) {
	out := []byte(`{"id":"abc","title":"Blue in Green","url":"https://cdn/a.m4a","webpage_url":"https://yt/abc","duration":337}` + "\n")
	item, err := parseItem(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if item.Title != "Blue in Green" || item.URL != "https://cdn/a.m4a" {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestParseItemPlaylist(t *testing.T) {
	out := []byte(`{"_type":"playlist","entries":[{"title":"First","url":"https://cdn/1"},{"title":"Second","url":"https://cdn/2"}]}`)
	item, err := parseItem(out)
	if err != nil || item.Title != "First" {
		t.Fatalf("expected first entry, got %+v err=%v", item, err)
	}
}

func TestParseItemEmpty(t *testing.T) {
	if _, err := parseItem(nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := parseItem([]byte(`{"title":"no stream"}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without url, got %v", err)
	}
}

func TestResolveWithFakeCommand(t *testing.T) {
	script := writeScript(t, "resolver", `echo '{"title":"Found It","url":"https://cdn/x"}'`)
	r := NewResolver(proc.NewRunner(zerolog.Nop()), script, zerolog.Nop())
	item, err := r.Resolve(context.Background(), "some song")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.Title != "Found It" {
		t.Fatalf("unexpected title %q", item.Title)
	}
	if _, err := r.Resolve(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty query, got %v", err)
	}
}

// fakeMPV answers IPC commands the way mpv does and records them.
type fakeMPV struct {
	mu   sync.Mutex
	cmds [][]any
}

func (f *fakeMPV) serve(t *testing.T, path string) {
	t.Helper()
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					var req struct {
						Command []any `json:"command"`
					}
					if json.Unmarshal(sc.Bytes(), &req) == nil {
						f.mu.Lock()
						f.cmds = append(f.cmds, req.Command)
						f.mu.Unlock()
					}
					c.Write([]byte(`{"event":"property-change"}` + "\n" + `{"data":null,"error":"success"}` + "\n"))
				}
			}(c)
		}
	}()
}

func (f *fakeMPV) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cmds)
}

func TestPlayerPauseResumeStop(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "mpv.sock")
	mpv := &fakeMPV{}
	mpv.serve(t, sock)

	script := writeScript(t, "mpv", "exec sleep 30")
	p := NewPlayer(proc.NewRunner(zerolog.Nop()), script, sock, zerolog.Nop())
	ctx := context.Background()

	if err := p.SetPause(ctx, false); err != nil {
		t.Fatalf("resume while idle should be a no-op, got %v", err)
	}
	if mpv.count() != 0 {
		t.Fatalf("expected no ipc while idle")
	}

	if err := p.Play(ctx, Item{Title: "x", URL: "https://cdn/x"}); err != nil {
		t.Fatalf("play: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop() })
	if p.State() != Playing {
		t.Fatalf("expected playing, got %s", p.State())
	}

	for i := 0; i < 2; i++ {
		if err := p.SetPause(ctx, true); err != nil {
			t.Fatalf("pause: %v", err)
		}
	}
	if p.State() != Paused {
		t.Fatalf("expected paused after pausing twice, got %s", p.State())
	}
	if mpv.count() != 2 {
		t.Fatalf("expected 2 ipc commands, got %d", mpv.count())
	}

	if err := p.SetPause(ctx, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if p.State() != Playing {
		t.Fatalf("expected playing after resume, got %s", p.State())
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.State() != Idle {
		t.Fatalf("expected idle after stop, got %s", p.State())
	}
}

func TestPlayerGoesIdleWhenTrackEnds(t *testing.T) {
	script := writeScript(t, "mpv", "exit 0")
	p := NewPlayer(proc.NewRunner(zerolog.Nop()), script, filepath.Join(t.TempDir(), "mpv.sock"), zerolog.Nop())
	if err := p.Play(context.Background(), Item{URL: "https://cdn/x"}); err != nil {
		t.Fatalf("play: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for p.State() != Idle && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.State() != Idle {
		t.Fatalf("expected idle once the process exits")
	}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
