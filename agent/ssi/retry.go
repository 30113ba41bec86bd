package ssi

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
)

// RetryMaxElapsed limits how long Retry keeps trying.
var RetryMaxElapsed = 30 * time.Second

// Retry calls op until it succeeds, returns an error other than NotFound, or
// the context or RetryMaxElapsed ends. It's for the reads which follow a
// ledger write.
func Retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = RetryMaxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, vcxerr.NotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			glog.V(4).Infoln("retry:", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
