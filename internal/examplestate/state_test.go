package examplestate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/pkg/chain"
)

func TestHasherIsDeterministic(t *testing.T) {
	tx := &chain.TransactionElement{Transaction: chain.Transaction{Raw: []byte("hello")}}
	h1 := Hasher{}.HashTransaction(tx)
	h2 := Hasher{}.HashTransaction(tx)
	require.Equal(t, h1, h2)
}

func TestValidateStatelessRejectsEmpty(t *testing.T) {
	require.Error(t, ValidateStateless(chain.TransactionElement{}))
	require.NoError(t, ValidateStateless(chain.TransactionElement{Transaction: chain.Transaction{Raw: []byte("x")}}))
}

func TestCacheBeginCommit(t *testing.T) {
	c := NewCache()
	require.EqualValues(t, 0, c.Snapshot().Height())

	tx := c.Begin()
	require.NoError(t, tx.Commit())
	require.EqualValues(t, 0, c.Snapshot().Height())
}

func TestStorageAppendLoadDrop(t *testing.T) {
	s := NewStorage()
	blocks := []chain.BlockElement{
		{Block: chain.Block{Height: 1}},
		{Block: chain.Block{Height: 2}},
	}
	require.NoError(t, s.Append(blocks))
	require.EqualValues(t, 2, s.Height())

	loaded, err := s.LoadRange(1, 2)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	require.NoError(t, s.DropAbove(1))
	require.EqualValues(t, 1, s.Height())

	_, err = s.LoadRange(1, 2)
	require.Error(t, err)
}

func TestPoolInsertRemoveHasPrune(t *testing.T) {
	p := NewPool()
	tx := chain.TransactionElement{Hash: chain.Hash("h1")}

	now := time.Now()
	p.Insert(tx, now)
	require.True(t, p.Has(tx.Hash))
	require.Equal(t, 1, p.Len())

	p.Prune(now.Add(time.Hour), time.Minute)
	require.False(t, p.Has(tx.Hash))
	require.Equal(t, 0, p.Len())

	p.Insert(tx, now)
	p.Remove(tx.Hash)
	require.False(t, p.Has(tx.Hash))
}
