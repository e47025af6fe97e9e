package dispatcher

import (
	"context"

	"github.com/tendermint/nodecore/pkg/chain"
)

// Outcome is what a Consumer decides to do with the element it was just
// handed.
type Outcome int

const (
	// Continue passes the element to the next consumer in the chain.
	Continue Outcome = iota
	// Complete ends the chain early with success (e.g. a duplicate that
	// should be silently dropped without running later stages).
	Complete
	// Abort ends the chain with a failure; Result.Reason explains why.
	Abort
)

// Result is what Consumer.Process returns for a single element.
type Result struct {
	Outcome Outcome
	Reason  chain.AbortReason
}

// ResultContinue is returned by consumers that have nothing to reject.
func ResultContinue() Result { return Result{Outcome: Continue} }

// ResultComplete ends the chain successfully before the last stage.
func ResultComplete() Result { return Result{Outcome: Complete} }

// ResultAbort ends the chain with the given categorical reason.
func ResultAbort(reason chain.AbortReason) Result { return Result{Outcome: Abort, Reason: reason} }

// Consumer is one stage of a dispatcher's pipeline. Implementations must
// not retain the *chain.ConsumerInput they are given once Process returns:
// the dispatcher reuses the slot that owns it.
type Consumer interface {
	Name() string
	Process(ctx context.Context, input *chain.ConsumerInput) (Result, error)
}

// Inspector is the terminal hook the dispatcher calls exactly once per
// element, after the consumer chain has run (whether it completed or
// aborted). Typical inspectors flush per-transaction status
// notifications and reclaim any memory the element was holding.
type Inspector interface {
	Inspect(input *chain.ConsumerInput, result chain.CompletionResult)
}

// InspectorFunc adapts a function to an Inspector.
type InspectorFunc func(input *chain.ConsumerInput, result chain.CompletionResult)

func (f InspectorFunc) Inspect(input *chain.ConsumerInput, result chain.CompletionResult) {
	f(input, result)
}

// NopInspector does nothing; useful in tests that don't care about the
// terminal hook.
func NopInspector() Inspector {
	return InspectorFunc(func(*chain.ConsumerInput, chain.CompletionResult) {})
}
