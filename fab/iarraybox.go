package fab

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
)

// IArrayBox is a single-component integer array over a box, used for masks
type IArrayBox struct {
	bx   box.Box
	data []int
}

func NewIArrayBox(b box.Box) *IArrayBox {
	if !b.Ok() {
		panic(fmt.Sprintf("fab: invalid mask box %v", b))
	}
	return &IArrayBox{bx: b, data: make([]int, b.NumPts())}
}

func (m *IArrayBox) Box() box.Box              { return m.bx }
func (m *IArrayBox) Data() []int               { return m.data }
func (m *IArrayBox) At(iv box.IntVect) int     { return m.data[m.bx.Index(iv)] }
func (m *IArrayBox) Set(iv box.IntVect, v int) { m.data[m.bx.Index(iv)] = v }

// SetVal assigns v over the part of region inside the mask box
func (m *IArrayBox) SetVal(v int, region box.Box) {
	region.Intersect(m.bx).ForEach(func(iv box.IntVect) {
		m.data[m.bx.Index(iv)] = v
	})
}

// Count returns how many points carry value v
func (m *IArrayBox) Count(v int) (n int) {
	for _, x := range m.data {
		if x == v {
			n++
		}
	}
	return
}
