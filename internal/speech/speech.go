package speech

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Speaker renders text as audio. Say blocks until playback has finished.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Chain tries each speaker in order until one succeeds.
type Chain struct {
	speakers []Speaker
	log      zerolog.Logger
}

func NewChain(log zerolog.Logger, speakers ...Speaker) *Chain {
	var s []Speaker
	for _, sp := range speakers {
		if sp != nil {
			s = append(s, sp)
		}
	}
	return &Chain{speakers: s, log: log}
}

func (c *Chain) Say(ctx context.Context, text string) error {
	if len(c.speakers) == 0 {
		return errors.New("no speaker configured")
	}
	var err error
	for i, sp := range c.speakers {
		if err = sp.Say(ctx, text); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Int("speaker", i).Msg("speaker failed")
	}
	return err
}
