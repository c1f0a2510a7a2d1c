package bc

import (
	"testing"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/comm"
	"github.com/notargets/MGKernel/mesh"
	"github.com/notargets/MGKernel/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linear(x [box.MaxDim]float64) float64 { return x[0] + 2*x[1] }

// gradient of linear along the outward normal of face
func outwardSlope(face Face) float64 {
	slope := []float64{1, 2}[face.Dir]
	if face.Side == box.Low {
		return -slope
	}
	return slope
}

func setup(t *testing.T, boxes []box.Box) (*Registry, *partitions.PartitionedArray, mesh.Geometry) {
	domain := box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})
	geom := mesh.NewGeometry(domain, [3]float64{}, [3]float64{1, 1}, [3]bool{})
	layout, err := partitions.NewPartitionLayout(boxes, make([]int, len(boxes)), 1, 0)
	require.NoError(t, err)
	field := partitions.NewPartitionedArray(layout, 1, 1)
	for i := 0; i < field.NumPatches(); i++ {
		f := field.Fab(i)
		f.SetAll(99)
		field.ValidBox(i).ForEach(func(iv box.IntVect) {
			f.Set(iv, 0, linear(geom.CellCenter(iv)))
		})
	}
	return NewRegistry(comm.Local{}, []mesh.Geometry{geom}), field, geom
}

func TestCondition_Ghost(t *testing.T) {
	h := 0.5
	pi, pf := 3.0, 2.0 // interior cell value and face value
	testCases := []struct {
		name string
		cond Condition
		g    float64
	}{
		{"dirichlet", DirichletCondition(nil), pf},
		{"neumann", NeumannCondition(nil), (2*pf - 2*pi) / h},
		{"robin", RobinCondition(2, 3, nil), 2*pf + 3*(2*pf-2*pi)/h},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// ghost value that puts pf on the face
			assert.InDelta(t, 2*pf-pi, tc.cond.Ghost(pi, tc.g, h), 1e-12)
		})
	}
	k, err := ParseKind("robin")
	require.NoError(t, err)
	assert.Equal(t, Robin, k)
	_, err = ParseKind("periodic")
	assert.Error(t, err)
}

func TestApplyBC_Inhomogeneous(t *testing.T) {
	for _, kind := range []Kind{Dirichlet, Neumann, Robin} {
		t.Run(kind.String(), func(t *testing.T) {
			reg, field, geom := setup(t, []box.Box{box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})})
			for _, face := range Faces(2) {
				face := face
				var cond Condition
				switch kind {
				case Dirichlet:
					cond = DirichletCondition(func(x [box.MaxDim]float64, _ int) float64 { return linear(x) })
				case Neumann:
					cond = NeumannCondition(func(_ [box.MaxDim]float64, _ int) float64 { return outwardSlope(face) })
				case Robin:
					cond = RobinCondition(2, 0.5, func(x [box.MaxDim]float64, _ int) float64 {
						return 2*linear(x) + 0.5*outwardSlope(face)
					})
				}
				reg.SetCondition(0, face, cond)
			}
			assert.Equal(t, kind, reg.Kind(0, Face{1, box.High}))

			reg.ApplyBC(field, 0, Inhomogeneous, 0, 1, 0)
			f := field.Fab(0)
			// a linear field is reproduced exactly in every face ghost
			for _, iv := range []box.IntVect{{-1, 0}, {4, 2}, {1, -1}, {3, 4}} {
				assert.InDelta(t, linear(geom.CellCenter(iv)), f.At(iv, 0), 1e-12, "cell %v", iv)
			}
			for _, iv := range []box.IntVect{{-1, -1}, {4, 4}, {-1, 4}} {
				assert.Equal(t, 99.0, f.At(iv, 0), "corner %v", iv)
			}
		})
	}
}

func TestApplyBC_Homogeneous(t *testing.T) {
	reg, field, _ := setup(t, []box.Box{box.New(2, box.IntVect{0, 0}, box.IntVect{3, 3})})
	reg.SetAllLevels(Face{0, box.Low}, DirichletCondition(func([box.MaxDim]float64, int) float64 { return 100 }))
	reg.SetAllLevels(Face{0, box.High}, NeumannCondition(func([box.MaxDim]float64, int) float64 { return 100 }))
	reg.ApplyBC(field, 0, Homogeneous, 0, 1, 0)
	f := field.Fab(0)
	for j := 0; j < 4; j++ {
		assert.InDelta(t, -f.At(box.IntVect{0, j}, 0), f.At(box.IntVect{-1, j}, 0), 1e-12)
		assert.InDelta(t, f.At(box.IntVect{3, j}, 0), f.At(box.IntVect{4, j}, 0), 1e-12)
	}
}

func TestApplyBC_CoarseFineAndHalo(t *testing.T) {
	// only the bottom half is covered; two boxes share the x = 1/2 line
	boxes := []box.Box{
		box.New(2, box.IntVect{0, 0}, box.IntVect{1, 1}),
		box.New(2, box.IntVect{2, 0}, box.IntVect{3, 1}),
	}
	reg, field, geom := setup(t, boxes)
	reg.SetCoarseFine(NeumannCondition(nil))
	assert.Equal(t, Neumann, reg.CoarseFine().Kind)

	reg.ApplyBC(field, 0, Inhomogeneous, 0, 1, 0)
	f0 := field.Fab(0)

	// halo from the neighboring box
	assert.InDelta(t, linear(geom.CellCenter(box.IntVect{2, 1})), f0.At(box.IntVect{2, 1}, 0), 1e-12)
	// coarse/fine interface with a zero-slope condition
	assert.Equal(t, f0.At(box.IntVect{0, 1}, 0), f0.At(box.IntVect{0, 2}, 0))
	// physical face with the default homogeneous Dirichlet condition
	assert.InDelta(t, -f0.At(box.IntVect{0, 0}, 0), f0.At(box.IntVect{-1, 0}, 0), 1e-12)

	m := reg.Mask(field.Layout, 0)
	assert.Same(t, &m[0], &reg.Mask(field.Layout, 0)[0])
	assert.Equal(t, partitions.CrseBnd, m[0].At(box.IntVect{1, 2}))

	thin := partitions.NewPartitionedArray(field.Layout, 1, 0)
	assert.Panics(t, func() { reg.ApplyBC(thin, 0, Homogeneous, 0, 1, 0) })
	assert.Panics(t, func() { reg.ApplyBC(field, 1, Homogeneous, 0, 1, 0) })
}
