package fab

import (
	"fmt"
	"math"

	"github.com/notargets/MGKernel/box"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FArrayBox holds NComp float64 values per point of a box.
// Storage is component-major: all of component 0, then component 1, ...
// with the first direction varying fastest inside a component.
type FArrayBox struct {
	bx    box.Box
	ncomp int
	npts  int
	data  []float64
}

// New allocates a zeroed FArrayBox covering b
func New(b box.Box, ncomp int) *FArrayBox {
	if !b.Ok() || ncomp < 1 {
		panic(fmt.Sprintf("fab: invalid shape box=%v ncomp=%d", b, ncomp))
	}
	n := b.NumPts()
	return &FArrayBox{
		bx:    b,
		ncomp: ncomp,
		npts:  n,
		data:  make([]float64, n*ncomp),
	}
}

// NewWithData wraps caller storage; len(data) must equal b.NumPts()*ncomp
func NewWithData(b box.Box, ncomp int, data []float64) *FArrayBox {
	if !b.Ok() || ncomp < 1 || len(data) != b.NumPts()*ncomp {
		panic(fmt.Sprintf("fab: storage of length %d does not fit box=%v ncomp=%d",
			len(data), b, ncomp))
	}
	return &FArrayBox{bx: b, ncomp: ncomp, npts: b.NumPts(), data: data}
}

func (f *FArrayBox) Box() box.Box { return f.bx }
func (f *FArrayBox) NComp() int   { return f.ncomp }

// Data returns the raw storage
func (f *FArrayBox) Data() []float64 { return f.data }

// CompData returns the storage of a single component
func (f *FArrayBox) CompData(comp int) []float64 {
	f.checkComps(comp, 1)
	return f.data[comp*f.npts : (comp+1)*f.npts]
}

// Index returns the offset of (iv, comp) in Data
func (f *FArrayBox) Index(iv box.IntVect, comp int) int {
	return comp*f.npts + f.bx.Index(iv)
}

func (f *FArrayBox) At(iv box.IntVect, comp int) float64 {
	return f.data[f.Index(iv, comp)]
}

func (f *FArrayBox) Set(iv box.IntVect, comp int, v float64) {
	f.data[f.Index(iv, comp)] = v
}

// SetVal assigns v to components [scomp, scomp+ncomp) over region
func (f *FArrayBox) SetVal(v float64, region box.Box, scomp, ncomp int) {
	f.checkComps(scomp, ncomp)
	region = region.Intersect(f.bx)
	if region.Ok() && region == f.bx {
		for n := scomp; n < scomp+ncomp; n++ {
			cd := f.data[n*f.npts : (n+1)*f.npts]
			for i := range cd {
				cd[i] = v
			}
		}
		return
	}
	for n := scomp; n < scomp+ncomp; n++ {
		region.ForEach(func(iv box.IntVect) {
			f.data[f.Index(iv, n)] = v
		})
	}
}

// SetAll assigns v everywhere, ghosts included
func (f *FArrayBox) SetAll(v float64) {
	for i := range f.data {
		f.data[i] = v
	}
}

// CopyShifted copies src into f over dstRegion, reading src at iv+shift
func (f *FArrayBox) CopyShifted(src *FArrayBox, dstRegion box.Box, shift box.IntVect,
	scomp, dcomp, ncomp int) {
	src.checkComps(scomp, ncomp)
	f.checkComps(dcomp, ncomp)
	for n := 0; n < ncomp; n++ {
		dstRegion.ForEach(func(iv box.IntVect) {
			f.data[f.Index(iv, dcomp+n)] = src.data[src.Index(iv.Add(shift), scomp+n)]
		})
	}
}

// Copy copies the overlap of f and src for the given components
func (f *FArrayBox) Copy(src *FArrayBox, scomp, dcomp, ncomp int) {
	region := f.bx.Intersect(src.bx)
	if !region.Ok() {
		return
	}
	f.CopyShifted(src, region, box.IntVect{}, scomp, dcomp, ncomp)
}

// Pack appends the values of region to buf in component-major order
func (f *FArrayBox) Pack(region box.Box, scomp, ncomp int, buf []float64) []float64 {
	f.checkComps(scomp, ncomp)
	for n := scomp; n < scomp+ncomp; n++ {
		region.ForEach(func(iv box.IntVect) {
			buf = append(buf, f.data[f.Index(iv, n)])
		})
	}
	return buf
}

// Unpack consumes values from buf into region and returns the remainder
func (f *FArrayBox) Unpack(region box.Box, dcomp, ncomp int, buf []float64) []float64 {
	f.checkComps(dcomp, ncomp)
	need := region.NumPts() * ncomp
	if len(buf) < need {
		panic(fmt.Sprintf("fab: unpack needs %d values, have %d", need, len(buf)))
	}
	k := 0
	for n := dcomp; n < dcomp+ncomp; n++ {
		region.ForEach(func(iv box.IntVect) {
			f.data[f.Index(iv, n)] = buf[k]
			k++
		})
	}
	return buf[need:]
}

// Scale multiplies every value by s
func (f *FArrayBox) Scale(s float64) {
	floats.Scale(s, f.data)
}

// MaxAbs returns the largest magnitude of components [scomp, scomp+ncomp) in region
func (f *FArrayBox) MaxAbs(region box.Box, scomp, ncomp int) float64 {
	f.checkComps(scomp, ncomp)
	region = region.Intersect(f.bx)
	if !region.Ok() {
		return 0
	}
	if region == f.bx {
		return floats.Norm(f.data[scomp*f.npts:(scomp+ncomp)*f.npts], math.Inf(1))
	}
	res := 0.0
	for n := scomp; n < scomp+ncomp; n++ {
		region.ForEach(func(iv box.IntVect) {
			res = math.Max(res, math.Abs(f.data[f.Index(iv, n)]))
		})
	}
	return res
}

// Slab2D copies a 2D region of one component into a dense matrix with
// row index along direction 1 and column index along direction 0
func (f *FArrayBox) Slab2D(region box.Box, comp int) *mat.Dense {
	if region.Dim != 2 {
		panic(fmt.Sprintf("fab: Slab2D needs a 2D region, got dim %d", region.Dim))
	}
	f.checkComps(comp, 1)
	rows, cols := region.Length(1), region.Length(0)
	m := mat.NewDense(rows, cols, nil)
	region.ForEach(func(iv box.IntVect) {
		m.Set(iv[1]-region.Lo[1], iv[0]-region.Lo[0], f.At(iv, comp))
	})
	return m
}

func (f *FArrayBox) checkComps(scomp, ncomp int) {
	if scomp < 0 || ncomp < 0 || scomp+ncomp > f.ncomp {
		panic(fmt.Sprintf("fab: component range [%d,%d) outside [0,%d)",
			scomp, scomp+ncomp, f.ncomp))
	}
}

// View is a read-only handle on an FArrayBox
type View struct {
	f *FArrayBox
}

// NewView wraps f
func NewView(f *FArrayBox) View { return View{f: f} }

func (v View) Box() box.Box                        { return v.f.bx }
func (v View) NComp() int                          { return v.f.ncomp }
func (v View) At(iv box.IntVect, comp int) float64 { return v.f.At(iv, comp) }

func (v View) Slab2D(region box.Box, comp int) *mat.Dense {
	return v.f.Slab2D(region, comp)
}

func (v View) MaxAbs(region box.Box, scomp, ncomp int) float64 {
	return v.f.MaxAbs(region, scomp, ncomp)
}

// Clone returns a mutable deep copy
func (v View) Clone() *FArrayBox {
	c := New(v.f.bx, v.f.ncomp)
	copy(c.data, v.f.data)
	return c
}
