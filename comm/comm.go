// Package comm provides the collective operations the kernels need across
// compute units: a sparse all-to-all exchange used by halo filling and a
// scalar all-reduce used by global norms.
package comm

import (
	"errors"
	"fmt"
	"math"
)

// ReduceOp combines contributions in AllReduce
type ReduceOp uint8

const (
	Sum ReduceOp = iota
	Max
	Min
)

func (op ReduceOp) String() string {
	switch op {
	case Sum:
		return "sum"
	case Max:
		return "max"
	case Min:
		return "min"
	default:
		return fmt.Sprintf("ReduceOp(%d)", uint8(op))
	}
}

// Apply combines two values
func (op ReduceOp) Apply(x, y float64) float64 {
	switch op {
	case Max:
		return math.Max(x, y)
	case Min:
		return math.Min(x, y)
	default:
		return x + y
	}
}

// ErrAborted is raised inside a rank blocked in a collective when another rank failed
var ErrAborted = errors.New("comm: collective aborted by a failed rank")

// Communicator connects the ranks that share a distributed array.
// Exchange and AllReduce are collective: every rank must call them in the same order.
type Communicator interface {
	Rank() int
	Size() int

	// Exchange sends sends[q] to rank q and returns, indexed by source rank,
	// what every rank sent to this one. len(sends) must equal Size().
	Exchange(sends [][]float64) [][]float64

	// AllReduce combines v over all ranks and returns the same result everywhere
	AllReduce(v float64, op ReduceOp) float64
}

// Local is the single-rank communicator
type Local struct{}

func (Local) Rank() int { return 0 }
func (Local) Size() int { return 1 }

func (Local) Exchange(sends [][]float64) [][]float64 {
	if len(sends) != 1 {
		panic(fmt.Sprintf("comm: exchange with %d destinations on a single rank", len(sends)))
	}
	return [][]float64{sends[0]}
}

func (Local) AllReduce(v float64, _ ReduceOp) float64 { return v }
