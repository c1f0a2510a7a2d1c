package extrapolate

import (
	"testing"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/mesh"
	"github.com/notargets/MGKernel/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const sentinel = -99.0

func setup(t *testing.T, boxes []box.Box, domain box.Box, ncomp int) (*partitions.PartitionedArray, mesh.Geometry) {
	layout, err := partitions.NewPartitionLayout(boxes, make([]int, len(boxes)), 1, 0)
	require.NoError(t, err)
	hi := [box.MaxDim]float64{float64(domain.Length(0)), float64(domain.Length(1))}
	geom := mesh.NewGeometry(domain, [box.MaxDim]float64{}, hi, [box.MaxDim]bool{})
	field := partitions.NewPartitionedArray(layout, ncomp, 1)
	field.SetVal(sentinel)
	for i := 0; i < field.NumPatches(); i++ {
		fb := field.Fab(i)
		field.ValidBox(i).ForEach(func(iv box.IntVect) {
			for n := 0; n < ncomp; n++ {
				fb.Set(iv, n, float64(iv[0]+iv[1]+10*n))
			}
		})
	}
	return field, geom
}

func TestFirstOrderExtrap_SinglePatch(t *testing.T) {
	dom := box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})

	t.Run("first_order", func(t *testing.T) {
		field, geom := setup(t, []box.Box{dom}, dom, 1)
		FirstOrderExtrap(field, geom, 0, 1, 1, 0)
		// x+y is reproduced exactly, corners included
		field.FabBox(0).ForEach(func(iv box.IntVect) {
			assert.InDelta(t, float64(iv[0]+iv[1]), field.Fab(0).At(iv, 0), 1e-14, "cell %v", iv)
		})
	})

	t.Run("zeroth_order", func(t *testing.T) {
		field, geom := setup(t, []box.Box{dom}, dom, 1)
		FirstOrderExtrap(field, geom, 0, 1, 0, 0)
		// rows j = -1..4, columns i = -1..4
		want := mat.NewDense(6, 6, []float64{
			0, 0, 1, 2, 3, 3,
			0, 0, 1, 2, 3, 3,
			1, 1, 2, 3, 4, 4,
			2, 2, 3, 4, 5, 5,
			3, 3, 4, 5, 6, 6,
			3, 3, 4, 5, 6, 6,
		})
		got := field.Fab(0).Slab2D(field.FabBox(0), 0)
		assert.True(t, mat.Equal(want, got), "got\n%v", mat.Formatted(got))
	})
}

func TestFirstOrderExtrap_LeavesFineBoundary(t *testing.T) {
	dom := box.New(2, box.IntVect{0, 0}, box.IntVect{7, 3})
	left := box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})
	right := box.New(2, box.IntVect{4, 0}, box.IntVect{7, 3})
	field, geom := setup(t, []box.Box{left, right}, dom, 2)

	FirstOrderExtrap(field, geom, 1, 1, 1, 0)
	masks := partitions.BuildMask(field.Layout, geom, 1)
	for i := 0; i < field.NumPatches(); i++ {
		fb, valid := field.Fab(i), field.ValidBox(i)
		field.FabBox(i).ForEach(func(iv box.IntVect) {
			if valid.Contains(iv) {
				return
			}
			outside := 0
			for d := 0; d < 2; d++ {
				if iv[d] < valid.Lo[d] || iv[d] > valid.Hi[d] {
					outside++
				}
			}
			assert.Equal(t, sentinel, fb.At(iv, 0), "component 0 is outside the range, cell %v", iv)
			switch {
			case masks[i].At(iv) == partitions.FineBnd:
				assert.Equal(t, sentinel, fb.At(iv, 1), "fine boundary cell %v", iv)
			case outside == 1:
				assert.InDelta(t, float64(iv[0]+iv[1]+10), fb.At(iv, 1), 1e-14, "cell %v", iv)
			}
		})
	}
}

func TestFirstOrderExtrap_NarrowPatchFallsBack(t *testing.T) {
	dom := box.New(2, box.IntVect{0, 0}, box.IntVect{0, 3})
	field, geom := setup(t, []box.Box{dom}, dom, 1)
	FirstOrderExtrap(field, geom, 0, 1, 1, 0)
	fb := field.Fab(0)
	for j := 0; j < 4; j++ {
		assert.Equal(t, float64(j), fb.At(box.IntVect{-1, j}, 0))
		assert.Equal(t, float64(j), fb.At(box.IntVect{1, j}, 0))
	}
	assert.Equal(t, -1.0, fb.At(box.IntVect{0, -1}, 0))
	assert.Equal(t, 4.0, fb.At(box.IntVect{0, 4}, 0))
}

func TestFirstOrderExtrap_Preconditions(t *testing.T) {
	dom := box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})
	field, geom := setup(t, []box.Box{dom}, dom, 1)
	assert.Panics(t, func() { FirstOrderExtrap(field, geom, 0, 2, 1, 0) })
	assert.Panics(t, func() { FirstOrderExtrap(field, geom, 0, 1, 2, 0) })

	wide := partitions.NewPartitionedArray(field.Layout, 1, 2)
	assert.Panics(t, func() { FirstOrderExtrap(wide, geom, 0, 1, 0, 0) })
}

func TestFirstOrderExtrap_WorkerCount(t *testing.T) {
	dom := box.New(2, box.IntVect{0, 0}, box.IntVect{7, 7})
	var boxes []box.Box
	for j := 0; j < 8; j += 4 {
		for i := 0; i < 8; i += 2 {
			boxes = append(boxes, box.New(2, box.IntVect{i, j}, box.IntVect{i + 1, j + 3}))
		}
	}
	serial, geom := setup(t, boxes, dom, 2)
	parallel, _ := setup(t, boxes, dom, 2)
	FirstOrderExtrap(serial, geom, 0, 2, 1, 1)
	FirstOrderExtrap(parallel, geom, 0, 2, 1, 4)
	assert.Equal(t, serial.GlobalData, parallel.GlobalData)
	assert.Equal(t, 9.0, serial.Fab(0).At(box.IntVect{-1, 0}, 1))
}
