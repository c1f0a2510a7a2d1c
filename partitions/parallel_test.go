package partitions

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEachPatch(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 64} {
		var hits [17]int32
		ForEachPatch(len(hits), workers, func(i int) { atomic.AddInt32(&hits[i], 1) })
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "patch %d workers %d", i, workers)
		}
	}
	ForEachPatch(0, 4, func(int) { t.Fatal("called on empty range") })
}

func TestReducePatches(t *testing.T) {
	for _, workers := range []int{0, 1, 5} {
		sum := ReducePatches(10, workers, func(i int) float64 { return float64(i) },
			func(x, y float64) float64 { return x + y })
		assert.Equal(t, 45.0, sum)
		mx := ReducePatches(10, workers, func(i int) float64 { return float64(i % 7) }, math.Max)
		assert.Equal(t, 6.0, mx)
	}
	assert.Equal(t, 0.0, ReducePatches(0, 2, nil, nil))
}
