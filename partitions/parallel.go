package partitions

import (
	"runtime"

	"github.com/exascience/pargo/parallel"
)

// ForEachPatch calls f for patches [0, n) in parallel on at most workers
// goroutines; workers <= 0 means GOMAXPROCS
func ForEachPatch(n, workers int, f func(i int)) {
	switch {
	case n <= 0:
		return
	case n == 1 || workers == 1:
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}
	parallel.Range(0, n, clampWorkers(n, workers), func(low, high int) {
		for i := low; i < high; i++ {
			f(i)
		}
	})
}

// ReducePatches combines f over patches [0, n) with pair; n == 0 yields zero
func ReducePatches(n, workers int, f func(i int) float64, pair func(x, y float64) float64) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1 || workers == 1:
		res := f(0)
		for i := 1; i < n; i++ {
			res = pair(res, f(i))
		}
		return res
	}
	return parallel.RangeReduceFloat64(0, n, clampWorkers(n, workers),
		func(low, high int) float64 {
			res := f(low)
			for i := low + 1; i < high; i++ {
				res = pair(res, f(i))
			}
			return res
		},
		pair,
	)
}

// clampWorkers keeps every sub-range pargo hands out non-empty
func clampWorkers(n, workers int) int {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return min(workers, n)
}
