package txbuilder

import (
	"context"
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

// BuildAll resolves every handle in parallel and returns the transactions in
// the same order. The first failure cancels the remaining work and is
// returned.
//
// Handles may share parents, but none of them may be mutated while BuildAll
// runs.
func BuildAll(ctx context.Context, txs ...Transaction) ([]*wire.MsgTx,
	error) {

	results := make([]*wire.MsgTx, len(txs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, tx := range txs {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			msgTx, err := tx.Resolve()
			if err != nil {
				log.Errorf("Unable to resolve transaction %d: %v",
					i, err)

				return fmt.Errorf("transaction %d: %w", i, err)
			}

			results[i] = msgTx

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
