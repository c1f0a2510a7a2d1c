package fab

import (
	"testing"

	"github.com/notargets/MGKernel/box"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFArrayBox_Layout(t *testing.T) {
	b := box.New(2, box.IntVect{-1, -1}, box.IntVect{2, 1})
	f := New(b, 2)
	require.Len(t, f.Data(), 4*3*2)

	f.Set(box.IntVect{2, 1}, 1, 7)
	assert.Equal(t, 7.0, f.Data()[len(f.Data())-1], "last point of last component")
	assert.Equal(t, 7.0, f.CompData(1)[b.NumPts()-1])

	assert.Panics(t, func() { f.CompData(2) })
	assert.Panics(t, func() { New(b, 0) })
}

func TestFArrayBox_SetValAndMaxAbs(t *testing.T) {
	b := box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})
	f := New(b, 1)
	f.SetAll(1)
	inner := box.New(2, box.IntVect{1, 1}, box.IntVect{2, 2})
	f.SetVal(-5, inner, 0, 1)

	assert.Equal(t, 5.0, f.MaxAbs(b, 0, 1))
	assert.Equal(t, 1.0, f.MaxAbs(box.New(2, box.IntVect{0, 0}, box.IntVect{0, 3}), 0, 1))
	f.Scale(2)
	assert.Equal(t, -10.0, f.At(box.IntVect{1, 2}, 0))
}

func TestFArrayBox_PackUnpackShift(t *testing.T) {
	b := box.New(2, box.IntVect{0, 0}, box.IntVect{3, 1})
	src := New(b, 2)
	b.ForEach(func(iv box.IntVect) {
		src.Set(iv, 0, float64(10*iv[0]+iv[1]))
		src.Set(iv, 1, -float64(10*iv[0]+iv[1]))
	})

	region := box.New(2, box.IntVect{1, 0}, box.IntVect{2, 1})
	buf := src.Pack(region, 0, 2, nil)
	require.Len(t, buf, 8)

	dst := New(b, 2)
	rest := dst.Unpack(region, 0, 2, append(buf, 99))
	assert.Equal(t, []float64{99}, rest)
	assert.Equal(t, src.At(box.IntVect{2, 1}, 1), dst.At(box.IntVect{2, 1}, 1))
	assert.Equal(t, 0.0, dst.At(box.IntVect{0, 0}, 0))

	// periodic style copy: the dst column 0 reads the src column 3
	shifted := New(b, 1)
	col0 := box.New(2, box.IntVect{0, 0}, box.IntVect{0, 1})
	shifted.CopyShifted(src, col0, box.IntVect{3, 0}, 1, 0, 1)
	assert.Equal(t, -31.0, shifted.At(box.IntVect{0, 1}, 0))
}

func TestFArrayBox_Slab2DAndView(t *testing.T) {
	b := box.New(2, box.IntVect{0, 0}, box.IntVect{2, 1})
	f := New(b, 1)
	b.ForEach(func(iv box.IntVect) {
		f.Set(iv, 0, float64(iv[0]+10*iv[1]))
	})
	want := mat.NewDense(2, 3, []float64{
		0, 1, 2,
		10, 11, 12,
	})
	v := NewView(f)
	assert.True(t, mat.Equal(want, v.Slab2D(b, 0)))

	c := v.Clone()
	c.SetAll(0)
	assert.Equal(t, 12.0, v.At(box.IntVect{2, 1}, 0), "clone does not alias")
}

func TestIArrayBox(t *testing.T) {
	b := box.New(2, box.IntVect{-1, -1}, box.IntVect{1, 1})
	m := NewIArrayBox(b)
	m.SetVal(3, box.New(2, box.IntVect{0, -5}, box.IntVect{0, 5}))
	assert.Equal(t, 3, m.Count(3))
	assert.Equal(t, 3, m.At(box.IntVect{0, 1}))
	m.Set(box.IntVect{-1, -1}, 4)
	assert.Equal(t, 4, m.Data()[0])
}
