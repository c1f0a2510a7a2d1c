package linop

import (
	"fmt"
	"sync"
	"time"

	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/partitions"
	"github.com/sirupsen/logrus"
)

// RelaxGSRB performs an in-place Gauss-Seidel sweep over the cells of the
// given color, for every component of soln:
//
//	soln += (rhs - L(soln)) / diag(L)
//
// Colors follow the parity of the global cell index sum, so patches agree on
// them. Ghost cells of soln are read as they are; RedBlack performs no
// exchange between its two passes.
func (o *base) RelaxGSRB(soln, rhs *partitions.PartitionedArray, level int, color Color) {
	ncomp := soln.NComp
	o.checkArray("soln", soln, level, 0, ncomp, 1)
	o.checkArray("rhs", rhs, level, 0, ncomp, 0)
	switch color {
	case Red, Black:
		o.gsrbPass(soln, rhs, level, int(color))
	case RedBlack:
		o.gsrbPass(soln, rhs, level, int(Red))
		o.gsrbPass(soln, rhs, level, int(Black))
	default:
		panic(fmt.Sprintf("linop: unknown color %d", color))
	}
}

func (o *base) gsrbPass(soln, rhs *partitions.PartitionedArray, level, parity int) {
	start := time.Now()
	coefs := o.coefs(level)
	invH2 := o.invH2(level)
	ncomp := soln.NComp
	partitions.ForEachPatch(soln.NumPatches(), o.workers, func(i int) {
		fs, fr := soln.Fab(i), rhs.Fab(i)
		valid := soln.ValidBox(i)
		valid.ForEach(func(iv box.IntVect) {
			if (iv.Sum(o.dim)%2+2)%2 != parity {
				return
			}
			for n := 0; n < ncomp; n++ {
				lphi, diag := o.stencil(&coefs[i], fs, iv, n, &invH2)
				fs.Set(iv, n, fs.At(iv, n)+(fr.At(iv, n)-lphi)/diag)
			}
		})
	})
	o.observe("gsrb", level, soln.Layout, start)
}

// RelaxJacobi performs one weighted Jacobi sweep for every component of soln.
// Every update reads the previous iterate; the new values are committed
// together at the end of the sweep.
func (o *base) RelaxJacobi(soln, rhs *partitions.PartitionedArray, level int) {
	ncomp := soln.NComp
	o.checkArray("soln", soln, level, 0, ncomp, 1)
	o.checkArray("rhs", rhs, level, 0, ncomp, 0)
	start := time.Now()
	coefs := o.coefs(level)
	invH2 := o.invH2(level)
	next := o.scratch.take(o, level, ncomp)
	defer o.scratch.put(level, next)
	partitions.ForEachPatch(soln.NumPatches(), o.workers, func(i int) {
		fs, fr, fn := soln.Fab(i), rhs.Fab(i), next.Fab(i)
		soln.ValidBox(i).ForEach(func(iv box.IntVect) {
			for n := 0; n < ncomp; n++ {
				lphi, diag := o.stencil(&coefs[i], fs, iv, n, &invH2)
				fn.Set(iv, n, fs.At(iv, n)+o.omega*(fr.At(iv, n)-lphi)/diag)
			}
		})
	})
	soln.CopyValid(next, 0, 0, ncomp)
	o.observe("jacobi", level, soln.Layout, start)
}

// scratchPool caches one Jacobi buffer per level. A buffer is checked out for
// the length of a sweep, so overlapping sweeps on one level get their own.
type scratchPool struct {
	mu   sync.Mutex
	bufs map[int]*partitions.PartitionedArray
}

func newScratchPool() *scratchPool {
	return &scratchPool{bufs: make(map[int]*partitions.PartitionedArray)}
}

// take checks out the buffer of level, allocating one when none is cached or
// the cached one has another component count
func (p *scratchPool) take(o *base, level, ncomp int) *partitions.PartitionedArray {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.bufs[level]; ok && s.NComp == ncomp {
		delete(p.bufs, level)
		return s
	}
	o.log.WithFields(logrus.Fields{"level": level, "ncomp": ncomp}).Debug("allocated jacobi scratch")
	return partitions.NewPartitionedArray(o.layouts[level], ncomp, 0)
}

func (p *scratchPool) put(level int, s *partitions.PartitionedArray) {
	p.mu.Lock()
	p.bufs[level] = s
	p.mu.Unlock()
}

// Smooth fills ghost cells, relaxes the red cells, fills ghost cells again
// and relaxes the black cells
func (o *base) Smooth(soln, rhs *partitions.PartitionedArray, level int, mode bc.Mode) {
	ncomp := soln.NComp
	o.checkArray("soln", soln, level, 0, ncomp, 1)
	o.reg.ApplyBC(soln, level, mode, 0, ncomp, 0)
	o.RelaxGSRB(soln, rhs, level, Red)
	o.reg.ApplyBC(soln, level, mode, 0, ncomp, 0)
	o.RelaxGSRB(soln, rhs, level, Black)
}
