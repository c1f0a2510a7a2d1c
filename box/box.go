package box

import (
	"fmt"
	"strings"
)

// MaxDim is the largest spatial dimension a Box can carry
const MaxDim = 3

// Side selects the low or high face of a box in one direction
type Side uint8

const (
	Low Side = iota
	High
)

func (s Side) String() string {
	if s == Low {
		return "lo"
	}
	return "hi"
}

// IntVect is a point in index space. Components beyond a box's Dim are zero.
type IntVect [MaxDim]int

// Unit returns the unit vector in direction d
func Unit(d int) (iv IntVect) {
	iv[d] = 1
	return
}

func (v IntVect) Add(o IntVect) IntVect {
	return IntVect{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v IntVect) Sub(o IntVect) IntVect {
	return IntVect{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v IntVect) Scale(s int) IntVect {
	return IntVect{v[0] * s, v[1] * s, v[2] * s}
}

// Sum returns the sum of the first dim components, used for red/black parity
func (v IntVect) Sum(dim int) (s int) {
	for d := 0; d < dim; d++ {
		s += v[d]
	}
	return
}

// Box is a logically rectangular region of index space with inclusive bounds
type Box struct {
	Dim    int
	Lo, Hi IntVect
}

// New creates a Box, zeroing components beyond dim
func New(dim int, lo, hi IntVect) Box {
	if dim < 1 || dim > MaxDim {
		panic(fmt.Sprintf("box: dimension %d out of range [1,%d]", dim, MaxDim))
	}
	for d := dim; d < MaxDim; d++ {
		lo[d], hi[d] = 0, 0
	}
	return Box{Dim: dim, Lo: lo, Hi: hi}
}

// Ok reports whether the box is non-empty
func (b Box) Ok() bool {
	if b.Dim == 0 {
		return false
	}
	for d := 0; d < b.Dim; d++ {
		if b.Hi[d] < b.Lo[d] {
			return false
		}
	}
	return true
}

// Length returns the number of points in direction d
func (b Box) Length(d int) int {
	if d >= b.Dim {
		return 1
	}
	return b.Hi[d] - b.Lo[d] + 1
}

// Size returns the per-direction lengths
func (b Box) Size() (sz IntVect) {
	for d := 0; d < MaxDim; d++ {
		sz[d] = b.Length(d)
	}
	return
}

// NumPts returns the number of points in the box, zero when empty
func (b Box) NumPts() int {
	if !b.Ok() {
		return 0
	}
	n := 1
	for d := 0; d < b.Dim; d++ {
		n *= b.Length(d)
	}
	return n
}

// Strides returns the linear index increment of a unit step in each direction,
// with the first direction varying fastest
func (b Box) Strides() (s IntVect) {
	s[0] = 1
	for d := 1; d < MaxDim; d++ {
		s[d] = s[d-1] * b.Length(d-1)
	}
	return
}

// Index returns the linear offset of iv inside the box
func (b Box) Index(iv IntVect) int {
	s := b.Strides()
	idx := 0
	for d := 0; d < b.Dim; d++ {
		idx += (iv[d] - b.Lo[d]) * s[d]
	}
	return idx
}

func (b Box) Contains(iv IntVect) bool {
	for d := 0; d < b.Dim; d++ {
		if iv[d] < b.Lo[d] || iv[d] > b.Hi[d] {
			return false
		}
	}
	return true
}

func (b Box) ContainsBox(o Box) bool {
	return o.Ok() && b.Contains(o.Lo) && b.Contains(o.Hi)
}

// Grow extends the box by n cells on every side of every active direction
func (b Box) Grow(n int) Box {
	for d := 0; d < b.Dim; d++ {
		b.Lo[d] -= n
		b.Hi[d] += n
	}
	return b
}

// GrowDir extends the box by n cells on both sides of direction d
func (b Box) GrowDir(d, n int) Box {
	b.Lo[d] -= n
	b.Hi[d] += n
	return b
}

func (b Box) Shift(s IntVect) Box {
	b.Lo = b.Lo.Add(s)
	b.Hi = b.Hi.Add(s)
	return b
}

// Intersect returns the common region; check Ok on the result
func (b Box) Intersect(o Box) Box {
	r := b
	for d := 0; d < b.Dim; d++ {
		r.Lo[d] = max(b.Lo[d], o.Lo[d])
		r.Hi[d] = min(b.Hi[d], o.Hi[d])
	}
	return r
}

func (b Box) Intersects(o Box) bool {
	return b.Intersect(o).Ok()
}

// Coarsen divides the bounds by ratio, rounding toward negative infinity
func (b Box) Coarsen(ratio int) Box {
	for d := 0; d < b.Dim; d++ {
		b.Lo[d] = floorDiv(b.Lo[d], ratio)
		b.Hi[d] = floorDiv(b.Hi[d], ratio)
	}
	return b
}

func (b Box) Refine(ratio int) Box {
	for d := 0; d < b.Dim; d++ {
		b.Lo[d] *= ratio
		b.Hi[d] = (b.Hi[d]+1)*ratio - 1
	}
	return b
}

// CoarsenableBy reports whether coarsening by ratio loses no cells
func (b Box) CoarsenableBy(ratio int) bool {
	return b.Coarsen(ratio).Refine(ratio) == b
}

// SurroundingNodes returns the face-centered box in direction d: one more point
// than the cell box, covering both bounding faces
func (b Box) SurroundingNodes(d int) Box {
	b.Hi[d]++
	return b
}

// AdjacentSlab returns the n-cell thick slab just outside the box on the given side
// of direction d, spanning the full tangential extent of the box
func (b Box) AdjacentSlab(d int, side Side, n int) Box {
	r := b
	if side == Low {
		r.Hi[d] = b.Lo[d] - 1
		r.Lo[d] = b.Lo[d] - n
	} else {
		r.Lo[d] = b.Hi[d] + 1
		r.Hi[d] = b.Hi[d] + n
	}
	return r
}

// ForEach visits every point of the box with the first direction varying fastest
func (b Box) ForEach(f func(iv IntVect)) {
	if !b.Ok() {
		return
	}
	var iv IntVect
	for iv[2] = b.Lo[2]; iv[2] <= b.Hi[2]; iv[2]++ {
		for iv[1] = b.Lo[1]; iv[1] <= b.Hi[1]; iv[1]++ {
			for iv[0] = b.Lo[0]; iv[0] <= b.Hi[0]; iv[0]++ {
				f(iv)
			}
		}
	}
}

// Chop splits the box into pieces no longer than maxSize in any direction
func (b Box) Chop(maxSize int) []Box {
	if maxSize < 1 {
		panic(fmt.Sprintf("box: invalid max size %d", maxSize))
	}
	boxes := []Box{b}
	for d := 0; d < b.Dim; d++ {
		var next []Box
		for _, bx := range boxes {
			for lo := bx.Lo[d]; lo <= bx.Hi[d]; lo += maxSize {
				piece := bx
				piece.Lo[d] = lo
				piece.Hi[d] = min(lo+maxSize-1, bx.Hi[d])
				next = append(next, piece)
			}
		}
		boxes = next
	}
	return boxes
}

func (b Box) String() string {
	var sb strings.Builder
	sb.WriteString("((")
	for d := 0; d < b.Dim; d++ {
		if d > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", b.Lo[d])
	}
	sb.WriteString(") (")
	for d := 0; d < b.Dim; d++ {
		if d > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", b.Hi[d])
	}
	sb.WriteString("))")
	return sb.String()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
