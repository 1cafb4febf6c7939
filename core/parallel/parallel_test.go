package parallel

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

func TestParallelizeWithThresholdCoversRange(t *testing.T) {
	for _, n := range []int{0, 1, 17, 5000} {
		seen := make([]int32, n)
		ParallelizeWithThreshold(n, 100, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			require.Equal(t, int32(1), c, "n=%d index %d", n, i)
		}
	}
}

func TestMapKeepsOrder(t *testing.T) {
	got, err := Map(context.Background(), 50, 4, func(_ context.Context, i int) (int, error) {
		return i * i, nil
	})
	require.NoError(t, err)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestMapReturnsFirstError(t *testing.T) {
	boom := errors.New("fold failed")
	_, err := Map(context.Background(), 20, 3, func(_ context.Context, i int) (int, error) {
		if i == 7 {
			return 0, boom
		}
		return i, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(3))
	assert.GreaterOrEqual(t, Workers(-1), 1)
}
