// Package linop implements cell-centered second-order elliptic operators
//
//	L(phi) = alpha*a*phi - beta*div(b*grad(phi))
//
// on a hierarchy of box layouts, with flux evaluation, operator norms and
// Gauss-Seidel red-black and weighted Jacobi smoothers. Level 0 is the
// coarsest level of the hierarchy.
package linop

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/fab"
	"github.com/notargets/MGKernel/metrics"
	"github.com/notargets/MGKernel/partitions"
	"github.com/sirupsen/logrus"
)

// LinOp is the contract multigrid drivers program against
type LinOp interface {
	ID() uuid.UUID
	NumLevels() int
	Layout(level int) *partitions.PartitionLayout

	Apply(out, in *partitions.PartitionedArray, level, srcComp, dstComp, numComp int)
	ApplyBC(out, in *partitions.PartitionedArray, level int, mode bc.Mode, srcComp, dstComp, numComp, bndComp int)
	Residual(res, soln, rhs *partitions.PartitionedArray, level int, mode bc.Mode)
	CompFlux(fluxes []*partitions.PartitionedArray, in *partitions.PartitionedArray, level int,
		doApplyBC bool, mode bc.Mode, srcComp, dstComp, numComp, bndComp int)
	Norm(kind NormKind, level int, local bool) float64

	RelaxGSRB(soln, rhs *partitions.PartitionedArray, level int, color Color)
	RelaxJacobi(soln, rhs *partitions.PartitionedArray, level int)
	Smooth(soln, rhs *partitions.PartitionedArray, level int, mode bc.Mode)
}

// NormKind selects the operator norm
type NormKind int

const (
	// NormInf is the largest absolute row sum of the stencil
	NormInf NormKind = iota
	// NormFrobenius is the square root of the sum of squared stencil entries
	NormFrobenius
)

// Color selects the cells a Gauss-Seidel sweep updates
type Color int

const (
	Red      Color = iota // even sum of cell indices
	Black                 // odd sum of cell indices
	RedBlack              // red, then black, without exchange in between
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	case RedBlack:
		return "redblack"
	default:
		return fmt.Sprintf("Color(%d)", int(c))
	}
}

const DefaultJacobiWeight = 2.0 / 3.0

// Options configures an operator. The zero value is usable.
type Options struct {
	Alpha, Beta  *float64 // nil means 1
	JacobiWeight float64  // 0 means DefaultJacobiWeight
	Workers      int      // patch-parallel workers, <= 0 for GOMAXPROCS
	Logger       logrus.FieldLogger
	Metrics      *metrics.Metrics
}

// Float returns a pointer to v, for Options literals
func Float(v float64) *float64 { return &v }

// patchCoef gives the stencil coefficients on one patch. The views are
// unset when the coefficients are the constants a0 and b0.
type patchCoef struct {
	constant bool
	a0, b0   float64
	a        fab.View
	b        [box.MaxDim]fab.View
}

func (c *patchCoef) A(iv box.IntVect) float64 {
	if c.constant {
		return c.a0
	}
	return c.a.At(iv, 0)
}

// B returns b in direction d on the low face of cell iv
func (c *patchCoef) B(d int, iv box.IntVect) float64 {
	if c.constant {
		return c.b0
	}
	return c.b[d].At(iv, 0)
}

// base carries the kernels shared by the operators of this package. Kernels
// may run concurrently on distinct output arrays once the coefficients are
// set; coefficient setters must not overlap with kernel calls.
type base struct {
	id      uuid.UUID
	alpha   float64
	beta    float64
	omega   float64
	layouts []*partitions.PartitionLayout
	reg     *bc.Registry
	dim     int
	workers int
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	// coefficients of patch i of a level, prepared once per kernel call
	coefs func(level int) []patchCoef

	scratch *scratchPool
}

func newBase(kind string, reg *bc.Registry, finest *partitions.PartitionLayout, opts Options) base {
	layouts := finest.Hierarchy(reg.NumLevels())
	for l, layout := range layouts {
		dom := reg.Geometry(l).Domain
		for k, b := range layout.Boxes {
			if !dom.ContainsBox(b) {
				panic(fmt.Sprintf("linop: level %d box %d %v outside domain %v", l, k, b, dom))
			}
		}
	}
	o := base{
		id:      uuid.New(),
		alpha:   1,
		beta:    1,
		omega:   DefaultJacobiWeight,
		layouts: layouts,
		reg:     reg,
		dim:     finest.Dim(),
		workers: opts.Workers,
		metrics: opts.Metrics,
		scratch: newScratchPool(),
	}
	if opts.Alpha != nil {
		o.alpha = *opts.Alpha
	}
	if opts.Beta != nil {
		o.beta = *opts.Beta
	}
	if opts.JacobiWeight != 0 {
		o.omega = opts.JacobiWeight
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	o.log = log.WithFields(logrus.Fields{"op": o.id.String(), "kind": kind})
	o.log.WithFields(logrus.Fields{
		"levels": len(layouts),
		"alpha":  o.alpha,
		"beta":   o.beta,
		"boxes":  finest.NumBoxes(),
	}).Debug("created operator")
	return o
}

func (o *base) ID() uuid.UUID  { return o.id }
func (o *base) NumLevels() int { return len(o.layouts) }

// Scalars returns alpha and beta
func (o *base) Scalars() (alpha, beta float64) { return o.alpha, o.beta }

// SetScalars replaces alpha and beta
func (o *base) SetScalars(alpha, beta float64) {
	o.alpha, o.beta = alpha, beta
}

func (o *base) Layout(level int) *partitions.PartitionLayout {
	o.checkLevel(level)
	return o.layouts[level]
}

// Registry returns the boundary conditions the operator applies
func (o *base) Registry() *bc.Registry { return o.reg }

func (o *base) checkLevel(level int) {
	if level < 0 || level >= len(o.layouts) {
		panic(fmt.Sprintf("linop: level %d outside [0,%d)", level, len(o.layouts)))
	}
}

// checkArray panics unless pa is a cell-centered array of level with
// components [scomp, scomp+ncomp) and at least minGhost ghost layers
func (o *base) checkArray(name string, pa *partitions.PartitionedArray, level, scomp, ncomp, minGhost int) {
	o.checkLevel(level)
	switch {
	case pa == nil:
		panic(fmt.Sprintf("linop: %s is nil", name))
	case !pa.IsCellCentered():
		panic(fmt.Sprintf("linop: %s must be cell-centered", name))
	case !pa.Layout.SameAs(o.layouts[level]):
		panic(fmt.Sprintf("linop: %s does not live on the layout of level %d", name, level))
	case pa.NGhost < minGhost:
		panic(fmt.Sprintf("linop: %s has %d ghost layers, need %d", name, pa.NGhost, minGhost))
	case scomp < 0 || ncomp < 1 || scomp+ncomp > pa.NComp:
		panic(fmt.Sprintf("linop: %s component range [%d,%d) outside [0,%d)", name, scomp, scomp+ncomp, pa.NComp))
	}
}

// invH2 returns 1/h_d^2 per direction of level
func (o *base) invH2(level int) (r [box.MaxDim]float64) {
	h := o.reg.Geometry(level).CellSize
	for d := 0; d < o.dim; d++ {
		r[d] = 1 / (h[d] * h[d])
	}
	return
}

func (o *base) observe(kernel string, level int, layout *partitions.PartitionLayout, start time.Time) {
	if o.metrics == nil {
		return
	}
	cells := 0
	for _, k := range layout.OwnedBoxes() {
		cells += layout.Boxes[k].NumPts()
	}
	o.metrics.ObserveKernel(kernel, strconv.Itoa(level), cells, start)
}
