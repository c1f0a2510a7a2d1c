package coefficients

import (
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/partitions"
)

// coarsenA sets each coarse cell to the mean of the 2^dim fine cells it covers
func (s *Store) coarsenA(fine, crse *partitions.PartitionedArray) {
	s.coarsen(fine, crse, childOffsets(s.dim, -1))
}

// coarsenB sets each coarse face normal to dir to the mean of the 2^(dim-1)
// fine faces lying on it
func (s *Store) coarsenB(dir int, fine, crse *partitions.PartitionedArray) {
	s.coarsen(fine, crse, childOffsets(s.dim, dir))
}

// coarsen averages fine points 2*ic+o over offsets into every coarse point ic.
// Patch i of both arrays is the same box at the two resolutions.
func (s *Store) coarsen(fine, crse *partitions.PartitionedArray, offsets []box.IntVect) {
	w := 1 / float64(len(offsets))
	partitions.ForEachPatch(crse.NumPatches(), s.workers, func(i int) {
		ff, cf := fine.Fab(i), crse.Fab(i)
		crse.ValidBox(i).ForEach(func(ic box.IntVect) {
			base := ic.Scale(2)
			sum := 0.0
			for _, o := range offsets {
				sum += ff.At(base.Add(o), 0)
			}
			cf.Set(ic, 0, sum*w)
		})
	})
}

// childOffsets lists the offsets in {0,1}^dim that are zero in direction skip
func childOffsets(dim, skip int) []box.IntVect {
	offsets := []box.IntVect{{}}
	for d := 0; d < dim; d++ {
		if d == skip {
			continue
		}
		n := len(offsets)
		for k := 0; k < n; k++ {
			o := offsets[k]
			o[d] = 1
			offsets = append(offsets, o)
		}
	}
	return offsets
}
