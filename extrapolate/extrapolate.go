// Package extrapolate fills the ghost cells that no neighboring patch can
// supply from the valid data of the patch itself.
package extrapolate

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/mesh"
	"github.com/notargets/MGKernel/partitions"
)

// FirstOrderExtrap fills the coarse/fine and physical boundary ghost cells of
// components [srcComp, srcComp+numComp) of field, which must carry exactly
// one ghost layer. Ghosts covered by another patch of the level are left for
// FillBoundary.
//
// Directions are filled in order, each over the range already grown by the
// directions before it, so edge and corner ghosts extrapolate from ghosts set
// earlier. order 0 copies the nearest valid value; order 1 uses 2*u1 - u2 and
// falls back to order 0 on patches one cell wide in that direction. Patches
// are filled on workers goroutines, <= 0 for GOMAXPROCS.
func FirstOrderExtrap(field *partitions.PartitionedArray, geom mesh.Geometry, srcComp, numComp, order, workers int) {
	switch {
	case field.NGhost != 1:
		panic(fmt.Sprintf("extrapolate: field has %d ghost layers, need exactly 1", field.NGhost))
	case !field.IsCellCentered():
		panic("extrapolate: field must be cell-centered")
	case srcComp < 0 || numComp < 1 || srcComp+numComp > field.NComp:
		panic(fmt.Sprintf("extrapolate: component range [%d,%d) outside [0,%d)",
			srcComp, srcComp+numComp, field.NComp))
	case order != 0 && order != 1:
		panic(fmt.Sprintf("extrapolate: order %d, want 0 or 1", order))
	}
	if geom.Dim() != field.Layout.Dim() {
		panic(fmt.Sprintf("extrapolate: %dD geometry for a %dD layout", geom.Dim(), field.Layout.Dim()))
	}

	masks := partitions.BuildMask(field.Layout, geom, 1)
	dim := geom.Dim()
	partitions.ForEachPatch(field.NumPatches(), workers, func(i int) {
		f, m := field.Fab(i), masks[i]
		valid := field.ValidBox(i)
		span := valid
		for d := 0; d < dim; d++ {
			e := box.Unit(d)
			linear := order == 1 && valid.Length(d) >= 2
			for _, side := range []box.Side{box.Low, box.High} {
				step := e
				if side == box.High {
					step = e.Scale(-1)
				}
				span.AdjacentSlab(d, side, 1).ForEach(func(iv box.IntVect) {
					if k := m.At(iv); k != partitions.CrseBnd && k != partitions.PhysBnd {
						return
					}
					u1, u2 := iv.Add(step), iv.Add(step.Scale(2))
					for n := srcComp; n < srcComp+numComp; n++ {
						v := f.At(u1, n)
						if linear {
							v = 2*v - f.At(u2, n)
						}
						f.Set(iv, n, v)
					}
				})
			}
			span = span.GrowDir(d, 1)
		}
	})
}
