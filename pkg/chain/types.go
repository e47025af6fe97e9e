// Package chain defines the data model shared by the block and
// transaction ingest pipelines: the input envelopes the dispatcher
// carries, the parsed elements consumers attach to them, and the
// outcome the dispatcher reports once an element exits the chain of
// consumers.
package chain

import (
	"time"

	"github.com/google/uuid"

	tmbytes "github.com/tendermint/nodecore/libs/bytes"
)

// Hash is a content hash computed by a HashCalculator consumer. It prints
// as upper-case hex in logs and JSON, matching the node's HexBytes
// convention.
type Hash tmbytes.HexBytes

// String renders the hash as upper-case hex.
func (h Hash) String() string { return tmbytes.HexBytes(h).String() }

// IsZero reports whether the hash has never been computed.
func (h Hash) IsZero() bool { return len(h) == 0 }

// InputSource tags the provenance of a ConsumerInput and controls
// downstream policy such as whether the result is eligible for
// rebroadcast.
type InputSource int

const (
	// SourceLocal is an input produced by this node (e.g. a locally
	// mined block, or a transaction submitted through a local API).
	SourceLocal InputSource = iota
	// SourceRemotePush is an input a peer pushed to this node
	// unsolicited.
	SourceRemotePush
	// SourceRemotePull is an input this node explicitly requested from
	// a peer (e.g. during catch-up sync).
	SourceRemotePull
)

func (s InputSource) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemotePush:
		return "remote_push"
	case SourceRemotePull:
		return "remote_pull"
	default:
		return "unknown"
	}
}

// ElementID is the monotonically assigned identifier a dispatcher gives a
// ConsumerInput at submission time.
type ElementID uint64

// PeerID is an opaque identifier for the peer that originated a remote
// input, when known. The wire representation of peer identity belongs to
// the (out of scope) P2P layer; a UUID-shaped token is enough for this
// subsystem to tag provenance and log it.
type PeerID string

// NewPeerID mints a fresh random PeerID, for a caller that has no
// pre-existing peer identity to tag a remote-sourced input with (e.g. a
// test harness simulating remote traffic, or an embedding binary whose
// transport layer hands this package a bare connection instead of a
// stable peer identifier).
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// Transaction is the minimal parsed shape a TransactionElement wraps.
// Real field layout (signature, payload, fee) is owned by the plugin
// manager's transaction registry; only what the pipeline needs to reason
// about is modeled here.
type Transaction struct {
	Raw       []byte
	Deadline  time.Time
	Addresses []Address
}

// Address is an account identifier resolved by the (optional) address
// extraction step.
type Address [20]byte

// TransactionElement is a Transaction together with the metadata the
// pipeline attaches to it as it moves through consumers. It is owned by
// whichever consumer currently holds the dispatcher slot; consumers must
// not retain a reference once they release the slot.
type TransactionElement struct {
	Transaction Transaction
	Hash        Hash
	Addresses   []Address
}

// Block is the minimal parsed shape a BlockElement wraps.
type Block struct {
	Height       int64
	Timestamp    time.Time
	PreviousHash Hash
	Transactions []Transaction
	Difficulty   uint64
	Score        uint64
}

// BlockElement is a Block together with its computed hash, the hashes and
// addresses of its transactions, and the provenance of the generating
// input.
type BlockElement struct {
	Block        Block
	Hash         Hash
	Transactions []TransactionElement
}

// ConsumerInput is a batch of block or transaction elements submitted to a
// dispatcher as a single unit of work. It is owned exclusively by the
// dispatcher slot that holds it until the inspector runs.
type ConsumerInput struct {
	ID     ElementID
	Source InputSource
	Peer   PeerID

	// Raw holds the wire bytes the input arrived as, before HashCalculator
	// parsed them into Blocks/Transactions. Populated by the network
	// collaborator for remote inputs; the audit consumer, when enabled,
	// persists it verbatim.
	Raw []byte

	Blocks       []BlockElement
	Transactions []TransactionElement
}

// NumBlocks reports how many blocks this input carries.
func (in *ConsumerInput) NumBlocks() int { return len(in.Blocks) }

// NumTransactions reports how many transactions this input carries.
func (in *ConsumerInput) NumTransactions() int { return len(in.Transactions) }

// CompletionStatus is the terminal disposition of a ConsumerInput.
type CompletionStatus int

const (
	// CompletionNormal means every consumer in the chain, and the
	// inspector, ran to completion.
	CompletionNormal CompletionStatus = iota
	// CompletionAborted means some consumer refused the input before it
	// reached the end of the chain.
	CompletionAborted
)

// AbortReason categorizes why a consumer aborted an input. These mirror
// the error kinds of the ingest pipeline's error handling design: some
// are normal traffic shaping (Neutral), some are genuine failures.
type AbortReason int

const (
	// AbortNone is the zero value, used only when CompletionStatus is
	// Normal.
	AbortNone AbortReason = iota
	// AbortNeutral rejects an input without prejudice: a lower-score
	// fork, or a hash already seen. No retry is implied either way.
	AbortNeutral
	// AbortStatelessFailure means the input is malformed or invalid
	// independent of chain state.
	AbortStatelessFailure
	// AbortStatefulFailure means the incoming suffix failed during
	// execution against live chain state.
	AbortStatefulFailure
	// AbortStructuralFailure means the input violates a structural
	// limit: range too large, non-contiguous heights, rollback too
	// deep.
	AbortStructuralFailure
	// AbortCapacityFailure means the dispatcher's ring was full and
	// configured to reject rather than block.
	AbortCapacityFailure
	// AbortConsumerRaised means a consumer panicked; the dispatcher
	// recovered and treats the element as aborted.
	AbortConsumerRaised
)

func (r AbortReason) String() string {
	switch r {
	case AbortNone:
		return "none"
	case AbortNeutral:
		return "neutral"
	case AbortStatelessFailure:
		return "stateless_failure"
	case AbortStatefulFailure:
		return "stateful_failure"
	case AbortStructuralFailure:
		return "structural_failure"
	case AbortCapacityFailure:
		return "capacity_failure"
	case AbortConsumerRaised:
		return "consumer_raised"
	default:
		return "unknown"
	}
}

// CompletionResult is reported to the dispatcher's caller and to the
// inspector exactly once per submitted ConsumerInput.
type CompletionResult struct {
	Status CompletionStatus
	Reason AbortReason
	// AbortedBy names the consumer that refused the element, empty on a
	// normal completion.
	AbortedBy string
}

// Normal builds a successful CompletionResult.
func Normal() CompletionResult {
	return CompletionResult{Status: CompletionNormal, Reason: AbortNone}
}

// Aborted builds a failed CompletionResult, naming the consumer that
// refused the element and why.
func Aborted(consumer string, reason AbortReason) CompletionResult {
	return CompletionResult{Status: CompletionAborted, Reason: reason, AbortedBy: consumer}
}

// IsNormal reports whether the element ran the full chain successfully.
func (r CompletionResult) IsNormal() bool { return r.Status == CompletionNormal }
