// Package broadcaster implements spec.md §4.8: retrying broadcast of
// produced ExchangeTransactions until the chain acknowledges inclusion or
// a deadline elapses. It never blocks the matching path: OrderBookActor
// hands off a transaction and moves on; Broadcast runs on its own
// goroutine per call.
package broadcaster

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/metrics"
	"github.com/nimbusdex/matcher/types"
	"go.uber.org/zap"
)

// Broadcaster retries github.com/cenkalti/backoff/v4 exponential backoff,
// capped by the per-transaction deadline via backoff.WithContext.
type Broadcaster struct {
	chain blockchain.Context
	log   *logging.Logger
}

func New(chain blockchain.Context, log *logging.Logger) *Broadcaster {
	return &Broadcaster{chain: chain, log: log.Named("broadcaster")}
}

// Broadcast tries UTX insertion; on rejection it polls WasForged between
// retries until the chain includes the transaction or deadline elapses.
// Errors here never unwind matcher state (spec.md §7): the event log
// stays authoritative for order status regardless of broadcast outcome.
func (b *Broadcaster) Broadcast(ctx context.Context, tx *types.ExchangeTransaction, deadline time.Time) error {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.IncBroadcastRetry(tx.Pair.Key())
		}
		ok, err := b.chain.BroadcastTx(ctx, tx)
		if err != nil {
			b.log.Warn("broadcast attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if ok {
			return nil
		}
		forged, err := b.chain.WasForged(ctx, tx.ID)
		if err != nil {
			return err
		}
		if forged {
			return nil
		}
		return errRejected
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err != nil {
		metrics.IncBroadcastFailure(tx.Pair.Key())
		b.log.Error("broadcast abandoned at deadline", zap.String("txID", tx.ID.String()), zap.Error(err))
	}
	return err
}

var errRejected = &rejectedError{}

type rejectedError struct{}

func (*rejectedError) Error() string { return "broadcaster: transaction not yet included" }
