package linop

import (
	"sync"

	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/coefficients"
	"github.com/notargets/MGKernel/partitions"
)

// ABec is L(phi) = alpha*a*phi - beta*div(b*grad(phi)) with a cell-centered
// and b face-centered, both varying in space and held per level
type ABec struct {
	base

	// mu serializes access to store, which prepares levels lazily
	mu    sync.Mutex
	store *coefficients.Store
}

var _ LinOp = (*ABec)(nil)

// NewABec creates an operator on the levels of reg, with finest as the layout
// of the finest level. Coefficients start at a = 0, b = 1.
func NewABec(reg *bc.Registry, finest *partitions.PartitionLayout, opts Options) *ABec {
	op := &ABec{base: newBase("abec", reg, finest, opts)}
	op.store = coefficients.NewStore(op.layouts, coefficients.Options{
		Logger:  op.log,
		Metrics: opts.Metrics,
		Workers: opts.Workers,
	})
	op.coefs = op.patchCoefs
	return op
}

// Coefficients returns the store holding a and b. Calls on the store bypass
// the locking of the operator methods.
func (op *ABec) Coefficients() *coefficients.Store { return op.store }

// SetA replaces a on level; see coefficients.Store.SetA
func (op *ABec) SetA(level int, a *partitions.PartitionedArray) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.SetA(level, a)
}

// SetB replaces b in direction dir on level; see coefficients.Store.SetB
func (op *ABec) SetB(level, dir int, b *partitions.PartitionedArray) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.SetB(level, dir, b)
}

// ZeroA sets a to zero on level, which leaves a pure diffusion operator there
func (op *ABec) ZeroA(level int) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.ZeroA(level)
}

// InvalidateATo forces level and every coarser level to re-derive a
func (op *ABec) InvalidateATo(level int) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.InvalidateATo(level)
}

// InvalidateBTo forces level and every coarser level to re-derive b
func (op *ABec) InvalidateBTo(level int) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.InvalidateBTo(level)
}

// ClearToLevel releases the coefficients of level and every finer level
func (op *ABec) ClearToLevel(level int) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.ClearToLevel(level)
}

// PrepareForLevel makes the coefficients of level ready for the kernels
func (op *ABec) PrepareForLevel(level int) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.store.PrepareForLevel(level)
}

func (op *ABec) patchCoefs(level int) []patchCoef {
	op.mu.Lock()
	defer op.mu.Unlock()
	a := op.store.A(level)
	var b [box.MaxDim]partitions.View
	for d := 0; d < op.dim; d++ {
		b[d] = op.store.B(d, level)
	}
	coefs := make([]patchCoef, a.NumPatches())
	for i := range coefs {
		coefs[i].a = a.Fab(i)
		for d := 0; d < op.dim; d++ {
			coefs[i].b[d] = b[d].Fab(i)
		}
	}
	return coefs
}
