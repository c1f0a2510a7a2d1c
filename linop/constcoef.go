package linop

import (
	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/partitions"
)

// ConstCoef is L(phi) = alpha*a0*phi - beta*b0*lap(phi) with scalar a0 and b0
type ConstCoef struct {
	base
	a0, b0 float64
}

var _ LinOp = (*ConstCoef)(nil)

// NewConstCoef creates a constant coefficient operator on the levels of reg
func NewConstCoef(reg *bc.Registry, finest *partitions.PartitionLayout, a0, b0 float64, opts Options) *ConstCoef {
	op := &ConstCoef{base: newBase("constcoef", reg, finest, opts), a0: a0, b0: b0}
	op.coefs = op.patchCoefs
	return op
}

// SetCoefficients replaces a0 and b0
func (op *ConstCoef) SetCoefficients(a0, b0 float64) { op.a0, op.b0 = a0, b0 }

func (op *ConstCoef) patchCoefs(level int) []patchCoef {
	coefs := make([]patchCoef, len(op.layouts[level].OwnedBoxes()))
	for i := range coefs {
		coefs[i] = patchCoef{constant: true, a0: op.a0, b0: op.b0}
	}
	return coefs
}
