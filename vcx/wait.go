package vcx

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
)

// WaitMaxElapsed limits how long WaitState polls when the context has no
// deadline of its own.
var WaitMaxElapsed = time.Minute

// PollFunc is one UpdateState call of an object, e.g.
//
//	func(ctx context.Context) (state.VcxState, error) {
//		return r.IssuerUpdateState(ctx, h)
//	}
type PollFunc func(ctx context.Context) (state.VcxState, error)

// WaitState calls poll with an exponential backoff until the object reaches
// target. NotFound and Timeout errors are retried, other errors end the
// wait. An object which ends in a terminal state other than target gives
// InvalidState with the state it ended in.
func WaitState(ctx context.Context, poll PollFunc, target state.VcxState) (s state.VcxState, err error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = WaitMaxElapsed

	err = backoff.Retry(func() error {
		var err error
		s, err = poll(ctx)
		switch {
		case errors.Is(err, vcxerr.NotFound), errors.Is(err, vcxerr.Timeout):
			glog.V(4).Infoln("wait state, retry:", err)
			return err
		case err != nil:
			return backoff.Permanent(err)
		case s == target:
			return nil
		case s.Terminal():
			return backoff.Permanent(vcxerr.New(vcxerr.InvalidState,
				"ended in %s, waited %s", s, target))
		}
		return vcxerr.New(vcxerr.Timeout, "in %s, waiting %s", s, target)
	}, backoff.WithContext(b, ctx))
	return s, err
}

// Poll helpers of each object kind for WaitState.

func (r *Runtime) ConnectionPoll(h Handle) PollFunc {
	return func(ctx context.Context) (state.VcxState, error) {
		return r.ConnectionUpdateState(ctx, h)
	}
}

func (r *Runtime) IssuerPoll(h Handle) PollFunc {
	return func(ctx context.Context) (state.VcxState, error) {
		return r.IssuerUpdateState(ctx, h)
	}
}

func (r *Runtime) CredentialPoll(h Handle) PollFunc {
	return func(ctx context.Context) (state.VcxState, error) {
		return r.CredentialUpdateState(ctx, h)
	}
}

func (r *Runtime) DisclosedProofPoll(h Handle) PollFunc {
	return func(ctx context.Context) (state.VcxState, error) {
		return r.DisclosedProofUpdateState(ctx, h)
	}
}

func (r *Runtime) ProofPoll(h Handle) PollFunc {
	return func(ctx context.Context) (state.VcxState, error) {
		return r.ProofUpdateState(ctx, h)
	}
}
