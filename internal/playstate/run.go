package playstate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrMissingState = errors.New("push or switch without a state")

// Run drives the state stack starting from root until the stack empties, a
// state asks for shutdown, or ctx is done. States that implement io.Closer
// are closed when they leave the stack.
func Run(ctx context.Context, g *Global, root PlayState) error {
	if root == nil {
		return ErrMissingState
	}
	log := g.Log
	if log == nil {
		log = zap.NewNop()
		g.Log = log
	}

	states := []PlayState{root}
	log.Info("entering state", zap.String("state", root.Name()))

	for len(states) > 0 {
		if err := ctx.Err(); err != nil {
			return multierr.Append(err, unwind(log, states))
		}

		top := states[len(states)-1]
		res := top.Play(ctx, g)

		switch res.Kind {
		case Continue:
		case Pop:
			states = states[:len(states)-1]
			err := closeState(log, top)
			log.Info("popped state", zap.String("state", top.Name()), zap.Int("depth", len(states)))
			if err != nil {
				log.Warn("close state", zap.String("state", top.Name()), zap.Error(err))
			}
		case Push:
			if res.Next == nil {
				return multierr.Append(fmt.Errorf("%s: %w", top.Name(), ErrMissingState), unwind(log, states))
			}
			states = append(states, res.Next)
			log.Info("pushed state", zap.String("state", res.Next.Name()), zap.Int("depth", len(states)))
		case Switch:
			if res.Next == nil {
				return multierr.Append(fmt.Errorf("%s: %w", top.Name(), ErrMissingState), unwind(log, states))
			}
			states[len(states)-1] = res.Next
			if err := closeState(log, top); err != nil {
				log.Warn("close state", zap.String("state", top.Name()), zap.Error(err))
			}
			log.Info("switched state", zap.String("from", top.Name()), zap.String("to", res.Next.Name()))
		case Shutdown:
			log.Info("shutdown requested", zap.String("state", top.Name()))
			return unwind(log, states)
		default:
			return multierr.Append(fmt.Errorf("%s: unknown result %d", top.Name(), res.Kind), unwind(log, states))
		}
	}
	return nil
}

// unwind closes states from the top of the stack down.
func unwind(log *zap.Logger, states []PlayState) error {
	var err error
	for i := len(states) - 1; i >= 0; i-- {
		err = multierr.Append(err, closeState(log, states[i]))
	}
	return err
}

func closeState(log *zap.Logger, s PlayState) error {
	c, ok := s.(io.Closer)
	if !ok {
		return nil
	}
	log.Debug("closing state", zap.String("state", s.Name()))
	return c.Close()
}
