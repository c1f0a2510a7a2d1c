package linop

import (
	"fmt"
	"math"
	"time"

	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/comm"
	"github.com/notargets/MGKernel/fab"
	"github.com/notargets/MGKernel/partitions"
	"gonum.org/v1/gonum/floats"
)

// stencil evaluates L at one cell: it returns L(in) for component comp and
// the diagonal entry of the stencil row
func (o *base) stencil(c *patchCoef, in *fab.FArrayBox, iv box.IntVect, comp int,
	invH2 *[box.MaxDim]float64) (lphi, diag float64) {
	phi := in.At(iv, comp)
	a := o.alpha * c.A(iv)
	diag = a
	lap := 0.0
	for d := 0; d < o.dim; d++ {
		e := box.Unit(d)
		hi := iv.Add(e)
		bl, bh := c.B(d, iv), c.B(d, hi)
		lap += (bh*(in.At(hi, comp)-phi) - bl*(phi-in.At(iv.Sub(e), comp))) * invH2[d]
		diag += o.beta * (bl + bh) * invH2[d]
	}
	return a*phi - o.beta*lap, diag
}

// Apply computes out = L(in) on the valid cells of every owned patch of level.
// in needs one filled ghost layer.
func (o *base) Apply(out, in *partitions.PartitionedArray, level, srcComp, dstComp, numComp int) {
	o.checkArray("in", in, level, srcComp, numComp, 1)
	o.checkArray("out", out, level, dstComp, numComp, 0)
	start := time.Now()
	coefs := o.coefs(level)
	invH2 := o.invH2(level)
	partitions.ForEachPatch(in.NumPatches(), o.workers, func(i int) {
		fin, fout := in.Fab(i), out.Fab(i)
		in.ValidBox(i).ForEach(func(iv box.IntVect) {
			for n := 0; n < numComp; n++ {
				lphi, _ := o.stencil(&coefs[i], fin, iv, srcComp+n, &invH2)
				fout.Set(iv, dstComp+n, lphi)
			}
		})
	})
	o.observe("apply", level, in.Layout, start)
}

// ApplyBC fills the ghost cells of in from the boundary registry and applies L
func (o *base) ApplyBC(out, in *partitions.PartitionedArray, level int, mode bc.Mode,
	srcComp, dstComp, numComp, bndComp int) {
	o.checkArray("in", in, level, srcComp, numComp, 1)
	o.reg.ApplyBC(in, level, mode, srcComp, numComp, bndComp)
	o.Apply(out, in, level, srcComp, dstComp, numComp)
}

// Residual computes res = rhs - L(soln) for every component of soln, filling
// the ghost cells of soln first
func (o *base) Residual(res, soln, rhs *partitions.PartitionedArray, level int, mode bc.Mode) {
	ncomp := soln.NComp
	o.checkArray("rhs", rhs, level, 0, ncomp, 0)
	o.checkArray("res", res, level, 0, ncomp, 0)
	o.ApplyBC(res, soln, level, mode, 0, 0, ncomp, 0)
	partitions.ForEachPatch(res.NumPatches(), o.workers, func(i int) {
		fres, frhs := res.Fab(i), rhs.Fab(i)
		res.ValidBox(i).ForEach(func(iv box.IntVect) {
			for n := 0; n < ncomp; n++ {
				fres.Set(iv, n, frhs.At(iv, n)-fres.At(iv, n))
			}
		})
	})
}

// CompFlux computes F_d = -beta * b[d] * (in_hi - in_lo) / h_d on every face of
// every owned patch of level. fluxes[d] holds the faces normal to d. With
// doApplyBC the ghost cells of in are filled from the boundary registry first.
func (o *base) CompFlux(fluxes []*partitions.PartitionedArray, in *partitions.PartitionedArray, level int,
	doApplyBC bool, mode bc.Mode, srcComp, dstComp, numComp, bndComp int) {
	o.compFlux(fluxes, in, level, doApplyBC, mode, srcComp, dstComp, numComp, bndComp, false)
}

// CompFluxExtensive is CompFlux with every flux multiplied by its face area
func (o *base) CompFluxExtensive(fluxes []*partitions.PartitionedArray, in *partitions.PartitionedArray, level int,
	doApplyBC bool, mode bc.Mode, srcComp, dstComp, numComp, bndComp int) {
	o.compFlux(fluxes, in, level, doApplyBC, mode, srcComp, dstComp, numComp, bndComp, true)
}

func (o *base) compFlux(fluxes []*partitions.PartitionedArray, in *partitions.PartitionedArray, level int,
	doApplyBC bool, mode bc.Mode, srcComp, dstComp, numComp, bndComp int, extensive bool) {
	o.checkArray("in", in, level, srcComp, numComp, 1)
	if len(fluxes) != o.dim {
		panic(fmt.Sprintf("linop: %d flux arrays for %d directions", len(fluxes), o.dim))
	}
	for d, f := range fluxes {
		if f == nil || f.FaceDir != d || !f.Layout.SameAs(o.layouts[level]) ||
			dstComp < 0 || dstComp+numComp > f.NComp {
			panic(fmt.Sprintf("linop: flux array %d is not a face array of level %d in direction %d "+
				"with components [%d,%d)", d, level, d, dstComp, dstComp+numComp))
		}
	}
	if doApplyBC {
		o.reg.ApplyBC(in, level, mode, srcComp, numComp, bndComp)
	}
	start := time.Now()
	coefs := o.coefs(level)
	geom := o.reg.Geometry(level)
	partitions.ForEachPatch(in.NumPatches(), o.workers, func(i int) {
		c := &coefs[i]
		fin := in.Fab(i)
		for d := 0; d < o.dim; d++ {
			scale := -o.beta / geom.CellSize[d]
			if extensive {
				scale *= geom.FaceArea(d)
			}
			e := box.Unit(d)
			ff := fluxes[d].Fab(i)
			fluxes[d].ValidBox(i).ForEach(func(iv box.IntVect) {
				lo := iv.Sub(e)
				bf := c.B(d, iv)
				for n := 0; n < numComp; n++ {
					ff.Set(iv, dstComp+n, scale*bf*(fin.At(iv, srcComp+n)-fin.At(lo, srcComp+n)))
				}
			})
		}
	})
	o.observe("flux", level, in.Layout, start)
}

// Norm returns a norm of the stencil of level. The coefficients are shared by
// every component, so one value covers all of them. local restricts the
// result to the patches of this rank.
func (o *base) Norm(kind NormKind, level int, local bool) float64 {
	o.checkLevel(level)
	if kind != NormInf && kind != NormFrobenius {
		panic(fmt.Sprintf("linop: unknown norm kind %d", kind))
	}
	start := time.Now()
	layout := o.layouts[level]
	coefs := o.coefs(level)
	invH2 := o.invH2(level)

	pair := math.Max
	if kind == NormFrobenius {
		pair = func(x, y float64) float64 { return x + y }
	}
	owned := layout.OwnedBoxes()
	res := partitions.ReducePatches(len(owned), o.workers, func(i int) float64 {
		c := &coefs[i]
		valid := layout.Boxes[owned[i]]
		rows := make([]float64, 0, valid.NumPts())
		valid.ForEach(func(iv box.IntVect) {
			diag := o.alpha * c.A(iv)
			var off []float64
			for d := 0; d < o.dim; d++ {
				bl, bh := c.B(d, iv), c.B(d, iv.Add(box.Unit(d)))
				diag += o.beta * (bl + bh) * invH2[d]
				off = append(off, o.beta*bl*invH2[d], o.beta*bh*invH2[d])
			}
			if kind == NormInf {
				rows = append(rows, math.Abs(diag)+floats.Norm(off, 1))
			} else {
				rows = append(rows, diag*diag+floats.Dot(off, off))
			}
		})
		if kind == NormInf {
			return floats.Max(rows)
		}
		return floats.Sum(rows)
	}, pair)

	if !local {
		op := comm.Max
		if kind == NormFrobenius {
			op = comm.Sum
		}
		res = o.reg.Communicator().AllReduce(res, op)
	}
	o.observe("norm", level, layout, start)
	if kind == NormFrobenius {
		return math.Sqrt(res)
	}
	return res
}
