package utils

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionMap(t *testing.T) {
	{ // Test bucket sizes
		getHisto := func(N, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, N)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				histo[pm.GetBucketDimension(np)]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Test bucket probe
		for maxIndex := 10; maxIndex < 300; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				tryCount, bn, min, max := pm.getBucketWithTryCount(k)
				mmin, mmax := pm.GetBucketRange(bn)
				assert.True(t, k >= min && k < max && min == mmin && max == mmax && tryCount <= 1)
				local, _, b := pm.GetLocalIndex(k)
				assert.Equal(t, k, pm.GetGlobalIndex(local, b))
			}
		}
		pm := NewPartitionMap(4, 10)
		bn, _, _ := pm.GetBucket(10)
		assert.Equal(t, -1, bn)
	}
}

func TestExecutionPolicies(t *testing.T) {
	bulk := NewBulk(3)
	defer bulk.Close()
	policies := []ExecutionPolicy{Serial{}, Threaded{}, bulk}
	const N = 1001
	data := make([]float64, N)
	for i := range data {
		data[i] = float64(i)
	}
	for _, ep := range policies {
		{ // Test every index is visited exactly once
			var count int64
			visited := make([]int32, N)
			ep.ForEach(N, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&visited[i], 1)
					atomic.AddInt64(&count, 1)
				}
			})
			assert.Equal(t, int64(N), count, ep.Name())
			for i := range visited {
				require.Equal(t, int32(1), visited[i])
			}
		}
		{ // Test reductions
			sum := ep.SumReduce(N, func(lo, hi int) (s float64) {
				for i := lo; i < hi; i++ {
					s += data[i]
				}
				return
			})
			assert.InDelta(t, float64(N*(N-1)/2), sum, 1e-9, ep.Name())
			mx := ep.MaxReduce(N, func(lo, hi int) (m float64) {
				m = math.Inf(-1)
				for i := lo; i < hi; i++ {
					m = math.Max(m, data[i])
				}
				return
			})
			assert.Equal(t, float64(N-1), mx, ep.Name())
		}
		{ // Test empty ranges
			ep.ForEach(0, func(lo, hi int) { t.Fatal("kernel called on empty range") })
			assert.Equal(t, 0., ep.SumReduce(0, nil))
		}
	}
	{ // Test policy lookup
		ep, err := NewExecutionPolicy("Threaded", 0)
		require.NoError(t, err)
		assert.Equal(t, "threaded", ep.Name())
		_, err = NewExecutionPolicy("gpu", 0)
		assert.Error(t, err)
	}
}
