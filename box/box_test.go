package box

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_Basics(t *testing.T) {
	b := New(2, IntVect{0, 0, 7}, IntVect{3, 5, 9})
	assert.Equal(t, IntVect{0, 0, 0}, b.Lo, "unused dims are zeroed")
	assert.Equal(t, 24, b.NumPts())
	assert.Equal(t, IntVect{4, 6, 1}, b.Size())
	assert.Equal(t, IntVect{1, 4, 24}, b.Strides())
	assert.Equal(t, 4*2+3, b.Index(IntVect{3, 2}))
	assert.True(t, b.Contains(IntVect{3, 5}))
	assert.False(t, b.Contains(IntVect{4, 5}))

	g := b.Grow(1)
	assert.Equal(t, IntVect{-1, -1, 0}, g.Lo)
	assert.Equal(t, IntVect{4, 6, 0}, g.Hi)
	assert.True(t, g.ContainsBox(b))

	assert.Panics(t, func() { New(4, IntVect{}, IntVect{}) })
}

func TestBox_Intersect(t *testing.T) {
	a := New(2, IntVect{0, 0}, IntVect{7, 7})
	b := New(2, IntVect{4, 6}, IntVect{10, 12})
	c := a.Intersect(b)
	require.True(t, c.Ok())
	assert.Equal(t, IntVect{4, 6}, c.Lo)
	assert.Equal(t, IntVect{7, 7}, c.Hi)

	d := New(2, IntVect{8, 0}, IntVect{9, 7})
	assert.False(t, a.Intersects(d))
	assert.Equal(t, 0, a.Intersect(d).NumPts())
}

func TestBox_CoarsenRefine(t *testing.T) {
	testCases := []struct {
		name   string
		box    Box
		ratio  int
		coarse Box
		exact  bool
	}{
		{"aligned", New(2, IntVect{0, 4}, IntVect{7, 11}), 2,
			New(2, IntVect{0, 2}, IntVect{3, 5}), true},
		{"negative", New(2, IntVect{-4, -2}, IntVect{-1, 1}), 2,
			New(2, IntVect{-2, -1}, IntVect{-1, 0}), true},
		{"ragged", New(1, IntVect{1}, IntVect{4}), 2,
			New(1, IntVect{0}, IntVect{2}), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.coarse, tc.box.Coarsen(tc.ratio))
			assert.Equal(t, tc.exact, tc.box.CoarsenableBy(tc.ratio))
		})
	}
}

func TestBox_FacesAndSlabs(t *testing.T) {
	b := New(3, IntVect{0, 0, 0}, IntVect{3, 4, 5})
	f := b.SurroundingNodes(1)
	assert.Equal(t, IntVect{3, 5, 5}, f.Hi)

	lo := b.AdjacentSlab(0, Low, 1)
	assert.Equal(t, IntVect{-1, 0, 0}, lo.Lo)
	assert.Equal(t, IntVect{-1, 4, 5}, lo.Hi)
	hi := b.AdjacentSlab(2, High, 2)
	assert.Equal(t, IntVect{0, 0, 6}, hi.Lo)
	assert.Equal(t, IntVect{3, 4, 7}, hi.Hi)
}

func TestBox_ForEachAndChop(t *testing.T) {
	b := New(2, IntVect{0, 0}, IntVect{9, 4})
	count := 0
	last := IntVect{}
	b.ForEach(func(iv IntVect) {
		assert.Equal(t, count, b.Index(iv), "visit order matches linear index")
		count++
		last = iv
	})
	assert.Equal(t, b.NumPts(), count)
	assert.Equal(t, b.Hi, last)

	pieces := b.Chop(4)
	require.Len(t, pieces, 6)
	total := 0
	for _, p := range pieces {
		assert.True(t, b.ContainsBox(p))
		assert.LessOrEqual(t, p.Length(0), 4)
		assert.LessOrEqual(t, p.Length(1), 4)
		total += p.NumPts()
	}
	assert.Equal(t, b.NumPts(), total)
}

func TestIntVect_Sum(t *testing.T) {
	assert.Equal(t, 3, IntVect{1, 2, 100}.Sum(2))
	assert.Equal(t, IntVect{0, 1, 0}, Unit(1))
	assert.Equal(t, "((0,1) (2,3))", New(2, IntVect{0, 1}, IntVect{2, 3}).String())
}
