package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"voicekit/player/internal/proc"
)

var ErrNotFound = errors.New("no media found")

// Item is a streamable media reference.
type Item struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Duration   float64 `json:"duration"`
}

// Resolver turns free text into the best matching audio stream with yt-dlp.
type Resolver struct {
	runner *proc.Runner
	line   string
	log    zerolog.Logger
}

func NewResolver(runner *proc.Runner, line string, log zerolog.Logger) *Resolver {
	return &Resolver{runner: runner, line: line, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, query string) (Item, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Item{}, ErrNotFound
	}
	spec, err := proc.Command(r.line,
		"--dump-json", "--no-playlist", "--quiet", "--no-warnings",
		"-f", "bestaudio/best", "ytsearch1:"+q)
	if err != nil {
		return Item{}, err
	}
	out, err := r.runner.Output(ctx, spec)
	if err != nil {
		return Item{}, fmt.Errorf("resolve %q: %w", q, err)
	}
	item, err := parseItem(out)
	if err != nil {
		return Item{}, fmt.Errorf("resolve %q: %w", q, err)
	}
	r.log.Debug().Str("query", q).Str("title", item.Title).Msg("resolved")
	return item, nil
}

// parseItem reads the first JSON document yt-dlp printed. Playlist shaped
// output is unwrapped to its first entry.
func parseItem(out []byte) (Item, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc struct {
			Item
			Entries []Item `json:"entries"`
		}
		if err := json.Unmarshal(line, &doc); err != nil {
			return Item{}, err
		}
		item := doc.Item
		if len(doc.Entries) > 0 {
			item = doc.Entries[0]
		}
		if item.URL == "" {
			return Item{}, ErrNotFound
		}
		return item, nil
	}
	if err := sc.Err(); err != nil {
		return Item{}, err
	}
	return Item{}, ErrNotFound
}
