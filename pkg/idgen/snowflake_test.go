package idgen

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idTime(id int64) time.Time {
	return time.UnixMilli(id>>timeShift + epochMS).UTC()
}

func TestNew_RejectsInvalidWorker(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)
	_, err = New(MaxWorkerID + 1)
	assert.Error(t, err)
	assert.Error(t, Init(MaxWorkerID+1))
}

func TestNext_IncreasingAndDecomposable(t *testing.T) {
	g, err := New(3)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := g.Next()
		require.Greater(t, id, prev)
		prev = id
	}

	assert.Equal(t, int64(3), prev>>workerShift&MaxWorkerID)
	assert.WithinDuration(t, time.Now(), idTime(prev), time.Minute)
}

func TestNext_ClockMovesBackwards(t *testing.T) {
	g, err := New(7)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	g.now = func() time.Time { return now }

	first := g.Next()
	now = base.Add(-time.Second)
	second := g.Next()

	assert.Greater(t, second, first)
	assert.True(t, base.Equal(idTime(second)))
	assert.Equal(t, int64(1), second&maxSequence)
}

func TestNextID_Concurrent(t *testing.T) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{})
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := NextID()
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 8*500)
}

func TestPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateAccountID(), "ACC"))
	assert.True(t, strings.HasPrefix(GenerateLockToken(), "LCK"))
	assert.NotEqual(t, GenerateAccountID(), GenerateAccountID())
}
