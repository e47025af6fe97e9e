package instancelock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}

func TestLockRejectsSecondAcquire(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := New(dir)
	err := second.Acquire()
	require.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestLockCreatesDataDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/data"
	l := New(dir)

	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}
