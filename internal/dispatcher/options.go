package dispatcher

// Options configures a Dispatcher at construction. All fields are
// immutable once the dispatcher is built.
type Options struct {
	// Name identifies the dispatcher in logs, trace lines, and counter
	// labels (e.g. "block", "transaction").
	Name string
	// RingCapacity bounds the number of elements in flight at once.
	RingCapacity int
	// ElementTraceInterval is how many processed slots elapse between
	// trace log lines.
	ElementTraceInterval int
	// ShouldThrowIfFull selects backpressure behavior: true rejects a
	// submission with a capacity error when the ring is full; false
	// blocks the submitting goroutine until a slot frees up.
	ShouldThrowIfFull bool
}

// DefaultOptions returns reasonable defaults for tests and small nodes.
func DefaultOptions(name string) Options {
	return Options{
		Name:                 name,
		RingCapacity:         4096,
		ElementTraceInterval: 1000,
		ShouldThrowIfFull:    false,
	}
}
