// Package dispatcher implements the bounded, in-order pipeline that
// pushes a ConsumerInput through an ordered chain of consumers and an
// inspector, reporting completion to whoever submitted it.
//
// Each consumer stage runs on its own goroutine reading slot indices off
// a channel shared with the stage before it. Because a channel delivers
// to a single reader in FIFO order, and each stage has exactly one
// reader, a slot can only reach stage k after it has been released by
// stage k-1 in the same order stage k-1 released it — the ordering
// invariant the disruptor-style design note in spec.md §9 calls for,
// achieved with the "channel per stage" alternative rather than raw
// atomic-cursor publication.
package dispatcher

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

// ErrDispatcherFull is returned by ProcessElement when the ring has no
// free slot and the dispatcher is configured to reject rather than
// block.
var ErrDispatcherFull = errors.New("dispatcher: ring is full")

// CompletionCallback is invoked exactly once per submitted input, after
// the inspector has run.
type CompletionCallback func(id chain.ElementID, result chain.CompletionResult)

type slot struct {
	input    *chain.ConsumerInput
	callback CompletionCallback
}

// Dispatcher accepts ConsumerInput submissions and drives them through a
// fixed, ordered chain of Consumers.
type Dispatcher struct {
	opts      Options
	logger    log.Logger
	consumers []Consumer
	inspector Inspector
	metrics   *Metrics

	slots []slot
	mu    []sync.Mutex // per-slot, guards slot.input/callback between stages

	free      chan int
	stageIn   []chan int
	done      chan int
	abortedBy sync.Map // slot index -> abortInfo, set only for aborted slots

	nextID     atomic.Uint64
	lastStatus atomic.Int32
	closeOnce  sync.Once
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New builds a Dispatcher with the given consumer chain and inspector.
// The dispatcher's goroutines are started immediately; Stop ends new
// submissions but does not stop or drain them (see Stop).
func New(logger log.Logger, opts Options, consumers []Consumer, inspector Inspector, m *Metrics) *Dispatcher {
	if m == nil {
		m = NopMetrics()
	}
	if inspector == nil {
		inspector = NopInspector()
	}

	d := &Dispatcher{
		opts:      opts,
		logger:    logger.With("dispatcher", opts.Name),
		consumers: consumers,
		inspector: inspector,
		metrics:   m,
		slots:     make([]slot, opts.RingCapacity),
		mu:        make([]sync.Mutex, opts.RingCapacity),
		free:      make(chan int, opts.RingCapacity),
		done:      make(chan int, opts.RingCapacity),
		stopCh:    make(chan struct{}),
	}

	d.stageIn = make([]chan int, len(consumers))
	for i := range d.stageIn {
		d.stageIn[i] = make(chan int, opts.RingCapacity)
	}

	for i := 0; i < opts.RingCapacity; i++ {
		d.free <- i
	}

	d.start()
	return d
}

func (d *Dispatcher) start() {
	for i, c := range d.consumers {
		i, c := i, c
		d.wg.Add(1)
		go d.runStage(i, c)
	}
	d.wg.Add(1)
	go d.runFinish()
}

func (d *Dispatcher) firstStage() chan int {
	if len(d.stageIn) == 0 {
		return d.done
	}
	return d.stageIn[0]
}

func (d *Dispatcher) nextStage(i int) chan int {
	if i+1 < len(d.stageIn) {
		return d.stageIn[i+1]
	}
	return d.done
}

func (d *Dispatcher) runStage(i int, c Consumer) {
	defer d.wg.Done()
	for idx := range d.stageIn[i] {
		result := d.runConsumer(c, idx)
		switch result.Outcome {
		case Continue:
			select {
			case d.nextStage(i) <- idx:
			case <-d.stopCh:
				d.done <- idx
			}
		case Complete:
			d.done <- idx
		case Abort:
			d.finishAborted(idx, c.Name(), result.Reason)
		}
	}
}

// runConsumer executes a single consumer against a slot, recovering a
// panic as AbortConsumerRaised per spec.md §4.1's failure semantics.
func (d *Dispatcher) runConsumer(c Consumer, idx int) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("consumer panicked",
				"consumer", c.Name(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = ResultAbort(chain.AbortConsumerRaised)
		}
	}()

	d.mu[idx].Lock()
	input := d.slots[idx].input
	d.mu[idx].Unlock()

	res, err := c.Process(context.Background(), input)
	if err != nil {
		d.logger.Error("consumer returned error", "consumer", c.Name(), "err", err)
		return ResultAbort(chain.AbortConsumerRaised)
	}
	return res
}

// finishAborted short-circuits an aborted element straight to the finish
// stage, bypassing any remaining consumers.
func (d *Dispatcher) finishAborted(idx int, consumer string, reason chain.AbortReason) {
	d.abortedBy.Store(idx, abortInfo{consumer: consumer, reason: reason})
	d.done <- idx
}

func (d *Dispatcher) runFinish() {
	defer d.wg.Done()
	var count uint64
	for idx := range d.done {
		d.mu[idx].Lock()
		s := d.slots[idx]
		d.mu[idx].Unlock()

		result := chain.Normal()
		if info, ok := d.abortedBy.LoadAndDelete(idx); ok {
			ai := info.(abortInfo)
			result = chain.Aborted(ai.consumer, ai.reason)
		}

		d.inspector.Inspect(s.input, result)
		if s.callback != nil {
			s.callback(s.input.ID, result)
		}

		d.metrics.Throughput.Add(1)
		count++
		d.lastStatus.Store(int32(result.Status))
		if d.opts.ElementTraceInterval > 0 && count%uint64(d.opts.ElementTraceInterval) == 0 {
			d.logger.Info("dispatcher trace",
				"processed", count,
				"last_status", traceStatusString(result.Status),
			)
		}

		d.mu[idx].Lock()
		d.slots[idx] = slot{}
		d.mu[idx].Unlock()
		d.metrics.ActiveElements.Add(-1)
		d.free <- idx
	}
}

func traceStatusString(s chain.CompletionStatus) string {
	if s == chain.CompletionNormal {
		return "normal"
	}
	return "aborted"
}

// ProcessElement submits input fire-and-forget and returns the assigned
// element id.
func (d *Dispatcher) ProcessElement(ctx context.Context, input *chain.ConsumerInput) (chain.ElementID, error) {
	return d.ProcessElementWithCallback(ctx, input, nil)
}

// ProcessElementWithCallback submits input and invokes callback exactly
// once after the inspector runs.
func (d *Dispatcher) ProcessElementWithCallback(
	ctx context.Context,
	input *chain.ConsumerInput,
	callback CompletionCallback,
) (chain.ElementID, error) {
	idx, err := d.acquireSlot(ctx)
	if err != nil {
		return 0, err
	}

	id := chain.ElementID(d.nextID.Add(1))
	input.ID = id

	d.mu[idx].Lock()
	d.slots[idx] = slot{input: input, callback: callback}
	d.mu[idx].Unlock()

	d.metrics.ActiveElements.Add(1)
	d.metrics.TotalElements.Add(1)

	select {
	case d.firstStage() <- idx:
	case <-d.stopCh:
		return 0, errors.New("dispatcher: stopped")
	}

	return id, nil
}

func (d *Dispatcher) acquireSlot(ctx context.Context) (int, error) {
	if d.opts.ShouldThrowIfFull {
		select {
		case idx := <-d.free:
			return idx, nil
		default:
			return 0, ErrDispatcherFull
		}
	}

	select {
	case idx := <-d.free:
		return idx, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-d.stopCh:
		return 0, errors.New("dispatcher: stopped")
	}
}

// Stop closes the dispatcher's stop channel, so a submission that is
// still waiting for a free slot or for the first stage returns an error.
// It returns at once. It does not wait for in-flight elements, and it
// does not end the stage goroutines: they keep reading their input
// channels, which are never closed. An element that a stage releases
// with Continue after Stop may skip the remaining stages and go straight
// to the finish stage. In ShouldThrowIfFull mode a submission is still
// accepted after Stop when a slot is free.
func (d *Dispatcher) Stop() {
	d.closeOnce.Do(func() {
		close(d.stopCh)
	})
}

// Name returns the dispatcher's configured name.
func (d *Dispatcher) Name() string { return d.opts.Name }

type abortInfo struct {
	consumer string
	reason   chain.AbortReason
}
