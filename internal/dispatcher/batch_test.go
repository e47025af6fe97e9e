package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

type fakeFetcher struct {
	mu     sync.Mutex
	ranges []HeightRange
}

func (f *fakeFetcher) Fetch(_ context.Context, r HeightRange) (*chain.ConsumerInput, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	f.mu.Unlock()
	return &chain.ConsumerInput{Source: r.Source}, nil
}

func (f *fakeFetcher) fetched() []HeightRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]HeightRange, len(f.ranges))
	copy(out, f.ranges)
	return out
}

func TestBatchRangeDispatcherCoalescesAdjacentRanges(t *testing.T) {
	fetcher := &fakeFetcher{}
	target := New(log.NewNopLogger(), DefaultOptions("block"), nil, nil, nil)

	b := NewBatchRangeDispatcher(log.NewNopLogger(), fetcher, target, time.Hour)
	b.Queue(HeightRange{From: 1, To: 10, Source: chain.SourceLocal, Peer: "peer-a"})
	b.Queue(HeightRange{From: 11, To: 20, Source: chain.SourceLocal, Peer: "peer-a"})
	b.Queue(HeightRange{From: 31, To: 40, Source: chain.SourceLocal, Peer: "peer-a"})

	b.flushAll(context.Background())

	fetched := fetcher.fetched()
	require.Len(t, fetched, 2)
	require.Equal(t, int64(1), fetched[0].From)
	require.Equal(t, int64(20), fetched[0].To)
	require.Equal(t, int64(31), fetched[1].From)
	require.Equal(t, int64(40), fetched[1].To)
}

func TestBatchRangeDispatcherKeepsSourcesIndependent(t *testing.T) {
	fetcher := &fakeFetcher{}
	target := New(log.NewNopLogger(), DefaultOptions("block"), nil, nil, nil)

	b := NewBatchRangeDispatcher(log.NewNopLogger(), fetcher, target, time.Hour)
	b.Queue(HeightRange{From: 1, To: 5, Source: chain.SourceLocal})
	b.Queue(HeightRange{From: 1, To: 5, Source: chain.SourceRemotePush})

	b.flushAll(context.Background())

	require.Len(t, fetcher.fetched(), 2)
}

func TestBatchRangeDispatcherCoalescesAcrossPeersOfSameSource(t *testing.T) {
	fetcher := &fakeFetcher{}
	target := New(log.NewNopLogger(), DefaultOptions("block"), nil, nil, nil)

	b := NewBatchRangeDispatcher(log.NewNopLogger(), fetcher, target, time.Hour)
	b.Queue(HeightRange{From: 1, To: 5, Source: chain.SourceRemotePush, Peer: "peer-a"})
	b.Queue(HeightRange{From: 6, To: 10, Source: chain.SourceRemotePush, Peer: "peer-b"})

	b.flushAll(context.Background())

	fetched := fetcher.fetched()
	require.Len(t, fetched, 1)
	require.Equal(t, int64(1), fetched[0].From)
	require.Equal(t, int64(10), fetched[0].To)
}

func TestCoalesceMergesOverlapping(t *testing.T) {
	merged := coalesce([]HeightRange{
		{From: 5, To: 10},
		{From: 1, To: 6},
		{From: 20, To: 25},
	})
	require.Len(t, merged, 2)
	require.Equal(t, HeightRange{From: 1, To: 10}, merged[0])
	require.Equal(t, HeightRange{From: 20, To: 25}, merged[1])
}
