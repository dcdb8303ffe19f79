// Package randomness provides the asynchronous randomness capability used to
// decide wager outcomes. A caller requests a value for a 32-byte commitment and
// later polls for it; the all-zero value means "not yet fulfilled".
package randomness

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"time"
)

var (
	ErrCommitmentUsed    = errors.New("commitment already requested")
	ErrUnknownCommitment = errors.New("commitment was never requested")
	ErrZeroValue         = errors.New("fulfilled value must not be zero")
	ErrAlreadyFulfilled  = errors.New("commitment already fulfilled")
)

// Oracle is the capability the settlement engine depends on.
type Oracle interface {
	// Request queues fulfillment for commitment. A commitment can be requested once.
	Request(ctx context.Context, commitment [32]byte) error
	// CurrentValue returns the fulfilled value, or the zero value while pending.
	CurrentValue(ctx context.Context, commitment [32]byte) ([32]byte, error)
}

// Source is the fulfillment side consumed by the fulfiller worker.
type Source interface {
	// NextPending pops one pending commitment, waiting up to wait. ok is false when none arrived.
	NextPending(ctx context.Context, wait time.Duration) (commitment [32]byte, ok bool, err error)
	Fulfill(ctx context.Context, commitment, value [32]byte) error
}

// Derive computes HMAC-SHA256(seed, commitment). An all-zero digest is hashed
// again so a fulfilled value is never mistaken for a pending one.
func Derive(seed []byte, commitment [32]byte) [32]byte {
	msg := commitment[:]
	for {
		mac := hmac.New(sha256.New, seed)
		mac.Write(msg)
		var out [32]byte
		copy(out[:], mac.Sum(nil))
		if out != ([32]byte{}) {
			return out
		}
		msg = out[:]
	}
}
