package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTable_Reentrant(t *testing.T) {
	lt := newLockTable()
	ctx := t.Context()

	taken, err := lt.acquire(ctx, "counters//a", 1)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = lt.acquire(ctx, "counters//a", 1)
	require.NoError(t, err)
	assert.False(t, taken)

	owner, held := lt.holder("counters//a")
	assert.True(t, held)
	assert.Equal(t, uint64(1), owner)
}

func TestLockTable_BlocksUntilReleased(t *testing.T) {
	lt := newLockTable()
	ctx := t.Context()

	_, err := lt.acquire(ctx, "counters//a", 1)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		_, err := lt.acquire(ctx, "counters//a", 2)
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("second owner acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	lt.release("counters//a", 1)

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second owner never acquired the released lock")
	}

	owner, _ := lt.holder("counters//a")
	assert.Equal(t, uint64(2), owner)
}

func TestLockTable_ReleaseByOtherOwnerIsIgnored(t *testing.T) {
	lt := newLockTable()

	_, err := lt.acquire(t.Context(), "k", 1)
	require.NoError(t, err)

	lt.release("k", 2)

	owner, held := lt.holder("k")
	assert.True(t, held)
	assert.Equal(t, uint64(1), owner)
}

func TestLockTable_ContextCancel(t *testing.T) {
	lt := newLockTable()

	_, err := lt.acquire(t.Context(), "k", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = lt.acquire(ctx, "k", 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
