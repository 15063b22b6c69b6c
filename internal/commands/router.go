package commands

import (
	"context"
	"strings"
)

const playPrefix = "play "

// Command is one matched voice command ready to run.
type Command struct {
	Name string
	Arg  string
	run  func(ctx context.Context) error
}

// Run executes the handler. The only error it returns is ErrHalt.
func (c Command) Run(ctx context.Context) error {
	err := c.run(ctx)
	result := "ok"
	if err != nil {
		result = "halt"
	}
	metricCommands.WithLabelValues(c.Name, result).Inc()
	return err
}

type route struct {
	name   string
	phrase string
	prefix bool
	run    func(h *Handlers, ctx context.Context, arg string) error
}

var routes = []route{
	{name: "stop", phrase: "stop", run: func(h *Handlers, ctx context.Context, _ string) error { return h.Stop(ctx) }},
	{name: "power_off", phrase: "power off", run: func(h *Handlers, ctx context.Context, _ string) error { return h.PowerOff(ctx) }},
	{name: "reboot", phrase: "reboot", run: func(h *Handlers, ctx context.Context, _ string) error { return h.Reboot(ctx) }},
	{name: "ip_address", phrase: "ip address", run: func(h *Handlers, ctx context.Context, _ string) error { return h.ReportIP(ctx) }},
	{name: "pause", phrase: "pause", run: func(h *Handlers, ctx context.Context, _ string) error { return h.Pause(ctx) }},
	{name: "resume", phrase: "resume", run: func(h *Handlers, ctx context.Context, _ string) error { return h.Resume(ctx) }},
	{name: "play", phrase: playPrefix, prefix: true, run: func(h *Handlers, ctx context.Context, q string) error { return h.Play(ctx, q) }},
}

// Router maps normalized text to a command. The first matching route wins.
type Router struct {
	h *Handlers
}

func NewRouter(h *Handlers) *Router {
	return &Router{h: h}
}

// Match expects text already passed through Normalize.
func (r *Router) Match(text string) (Command, bool) {
	for _, rt := range routes {
		rt := rt
		var arg string
		switch {
		case rt.prefix && strings.HasPrefix(text, rt.phrase):
			arg = text[len(rt.phrase):]
		case !rt.prefix && text == rt.phrase:
		default:
			continue
		}
		return Command{
			Name: rt.name,
			Arg:  arg,
			run:  func(ctx context.Context) error { return rt.run(r.h, ctx, arg) },
		}, true
	}
	return Command{}, false
}
