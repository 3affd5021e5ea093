package txbuilder

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BuilderOption configures a Builder at construction time.
type BuilderOption func(*Builder)

// WithVersion fixes the transaction version. Without it the version is 1, or
// 2 when any input carries a BIP-68 relative lock time.
func WithVersion(version int32) BuilderOption {
	return func(b *Builder) {
		b.version = fn.Some(version)
	}
}

// InputOption configures a single input.
type InputOption func(*input)

// WithSequence sets the raw sequence number of the input. It takes precedence
// over the sequence implied by an absolute lock time.
func WithSequence(sequence uint32) InputOption {
	return func(in *input) {
		in.sequence = fn.Some(sequence)
	}
}

// WithRelativeLockBlocks locks the input until its parent has the given
// number of confirmations.
func WithRelativeLockBlocks(blocks uint16) InputOption {
	return WithSequence(
		blockchain.LockTimeToSequence(false, uint32(blocks)),
	)
}

// WithRelativeLockSeconds locks the input until the given number of seconds
// have passed since its parent confirmed. The lock has a granularity of 512
// seconds; the remainder is truncated.
func WithRelativeLockSeconds(seconds uint32) InputOption {
	return WithSequence(blockchain.LockTimeToSequence(true, seconds))
}
