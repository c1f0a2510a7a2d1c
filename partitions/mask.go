package partitions

import (
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/fab"
	"github.com/notargets/MGKernel/mesh"
)

// Classification of the points of a patch grown by its ghost width
const (
	Interior = iota // valid cell of the patch
	FineBnd         // ghost covered by another box of the level, or a periodic image
	CrseBnd         // ghost inside the domain that no box of the level covers
	PhysBnd         // ghost outside the domain in a non-periodic direction
)

// BuildMask classifies every point of every owned patch grown by nghost
func BuildMask(layout *PartitionLayout, geom mesh.Geometry, nghost int) []*fab.IArrayBox {
	masks := make([]*fab.IArrayBox, len(layout.owned))
	for i, k := range layout.owned {
		valid := layout.Boxes[k]
		grown := valid.Grow(nghost)
		m := fab.NewIArrayBox(grown)
		m.SetVal(CrseBnd, grown)

		shifts := append([]box.IntVect{{}}, geom.PeriodicShifts(grown)...)
		for _, s := range shifts {
			moved := grown.Shift(s)
			for j, other := range layout.Boxes {
				if j == k && s == (box.IntVect{}) {
					continue
				}
				if ov := moved.Intersect(other); ov.Ok() {
					m.SetVal(FineBnd, ov.Shift(s.Scale(-1)))
				}
			}
		}

		for d := 0; d < geom.Dim(); d++ {
			if geom.IsPeriodic(d) {
				continue
			}
			dom := geom.Domain
			if grown.Lo[d] < dom.Lo[d] {
				m.SetVal(PhysBnd, outsideLow(grown, dom, d))
			}
			if grown.Hi[d] > dom.Hi[d] {
				m.SetVal(PhysBnd, outsideHigh(grown, dom, d))
			}
		}

		m.SetVal(Interior, valid)
		masks[i] = m
	}
	return masks
}

// outsideLow returns the part of b below the domain in direction d
func outsideLow(b, dom box.Box, d int) box.Box {
	r := b
	r.Hi[d] = dom.Lo[d] - 1
	return r
}

// outsideHigh returns the part of b above the domain in direction d
func outsideHigh(b, dom box.Box, d int) box.Box {
	r := b
	r.Lo[d] = dom.Hi[d] + 1
	return r
}
