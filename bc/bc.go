// Package bc fills the first ghost layer of cell-centered arrays from the
// boundary conditions registered per level and per domain face.
package bc

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/comm"
	"github.com/notargets/MGKernel/fab"
	"github.com/notargets/MGKernel/mesh"
	"github.com/notargets/MGKernel/partitions"
)

// Kind is the type of a boundary condition
type Kind uint8

const (
	Dirichlet Kind = iota
	Neumann
	Robin
)

func (k Kind) String() string {
	switch k {
	case Dirichlet:
		return "dirichlet"
	case Neumann:
		return "neumann"
	case Robin:
		return "robin"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind maps a configuration string to a Kind
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Dirichlet, Neumann, Robin} {
		if k.String() == s {
			return k, nil
		}
	}
	return Dirichlet, fmt.Errorf("unknown boundary condition %q", s)
}

// Mode selects whether boundary values take part in ghost filling
type Mode uint8

const (
	// Homogeneous treats every boundary value as zero, as needed by
	// correction equations
	Homogeneous Mode = iota
	Inhomogeneous
)

func (m Mode) String() string {
	if m == Homogeneous {
		return "homogeneous"
	}
	return "inhomogeneous"
}

// ValueFunc returns the boundary value g at a face center for a component
type ValueFunc func(x [box.MaxDim]float64, comp int) float64

// Condition is A*u + B*du/dn = g on a face, with n the outward normal.
// Dirichlet and Neumann fix (A, B) to (1, 0) and (0, 1).
type Condition struct {
	Kind  Kind
	A, B  float64 // Robin coefficients
	Value ValueFunc
}

// DirichletCondition returns u = g; nil g means zero
func DirichletCondition(g ValueFunc) Condition { return Condition{Kind: Dirichlet, Value: g} }

// NeumannCondition returns du/dn = g; nil g means zero
func NeumannCondition(g ValueFunc) Condition { return Condition{Kind: Neumann, Value: g} }

// RobinCondition returns a*u + b*du/dn = g
func RobinCondition(a, b float64, g ValueFunc) Condition {
	return Condition{Kind: Robin, A: a, B: b, Value: g}
}

// Coefficients returns the (A, B) pair of the condition
func (c Condition) Coefficients() (a, b float64) {
	switch c.Kind {
	case Dirichlet:
		return 1, 0
	case Neumann:
		return 0, 1
	default:
		return c.A, c.B
	}
}

// Ghost returns the ghost value across a face of spacing h from interior
// value pi, placing the face value halfway between the two cell centers
func (c Condition) Ghost(pi, g, h float64) float64 {
	a, b := c.Coefficients()
	return (g - pi*(a/2-b/h)) / (a/2 + b/h)
}

// Face names one side of one direction of the domain
type Face struct {
	Dir  int
	Side box.Side
}

func (f Face) String() string { return fmt.Sprintf("%s%d", f.Side, f.Dir) }

// Faces lists the 2*dim faces of a dim-dimensional domain
func Faces(dim int) []Face {
	faces := make([]Face, 0, 2*dim)
	for d := 0; d < dim; d++ {
		faces = append(faces, Face{d, box.Low}, Face{d, box.High})
	}
	return faces
}

type maskKey struct {
	layout *partitions.PartitionLayout
	level  int
}

// Registry holds per-level per-face boundary conditions and the condition
// used at coarse/fine interfaces
type Registry struct {
	comm  comm.Communicator
	geoms []mesh.Geometry

	faces     []map[Face]Condition
	crseFine  Condition
	fallback  Condition
	maskCache map[maskKey][]*fab.IArrayBox
}

// NewRegistry creates a registry for the levels described by geoms, coarsest
// first. Every face starts as a homogeneous Dirichlet condition.
func NewRegistry(c comm.Communicator, geoms []mesh.Geometry) *Registry {
	if len(geoms) == 0 {
		panic("bc: registry needs at least one level")
	}
	r := &Registry{
		comm:      c,
		geoms:     geoms,
		faces:     make([]map[Face]Condition, len(geoms)),
		crseFine:  DirichletCondition(nil),
		fallback:  DirichletCondition(nil),
		maskCache: make(map[maskKey][]*fab.IArrayBox),
	}
	for l := range r.faces {
		r.faces[l] = make(map[Face]Condition)
	}
	return r
}

func (r *Registry) NumLevels() int { return len(r.geoms) }

// Geometry returns the geometry of level
func (r *Registry) Geometry(level int) mesh.Geometry {
	r.checkLevel(level)
	return r.geoms[level]
}

func (r *Registry) Communicator() comm.Communicator { return r.comm }

// SetCondition registers cond on face of level
func (r *Registry) SetCondition(level int, face Face, cond Condition) {
	r.checkLevel(level)
	r.faces[level][face] = cond
}

// SetAllLevels registers cond on face of every level
func (r *Registry) SetAllLevels(face Face, cond Condition) {
	for l := range r.faces {
		r.faces[l][face] = cond
	}
}

// SetCoarseFine sets the condition applied where a patch abuts uncovered cells
func (r *Registry) SetCoarseFine(cond Condition) { r.crseFine = cond }

// Condition returns the condition on face of level
func (r *Registry) Condition(level int, face Face) Condition {
	r.checkLevel(level)
	if c, ok := r.faces[level][face]; ok {
		return c
	}
	return r.fallback
}

// Kind returns the boundary type on face of level
func (r *Registry) Kind(level int, face Face) Kind { return r.Condition(level, face).Kind }

func (r *Registry) CoarseFine() Condition { return r.crseFine }

// Mask returns the one-ghost classification of the owned patches of layout,
// built once per layout and level
func (r *Registry) Mask(layout *partitions.PartitionLayout, level int) []*fab.IArrayBox {
	key := maskKey{layout, level}
	m, ok := r.maskCache[key]
	if !ok {
		m = partitions.BuildMask(layout, r.Geometry(level), 1)
		r.maskCache[key] = m
	}
	return m
}

// ApplyBC fills ghost cells of components [scomp, scomp+ncomp) of field on level:
// neighbor values by halo exchange, then the first ghost layer across physical
// faces and coarse/fine interfaces from the registered conditions. Boundary
// values are taken from component bndComp + n for field component scomp + n.
// Corner ghost cells are left as they are.
func (r *Registry) ApplyBC(field *partitions.PartitionedArray, level int, mode Mode,
	scomp, ncomp, bndComp int) {
	if field.NGhost < 1 {
		panic(fmt.Sprintf("bc: ApplyBC needs at least one ghost layer, array has %d", field.NGhost))
	}
	geom := r.Geometry(level)
	field.FillBoundary(r.comm, geom, scomp, ncomp)

	masks := r.Mask(field.Layout, level)
	dim := geom.Dim()
	for i := 0; i < field.NumPatches(); i++ {
		f := field.Fab(i)
		valid := field.ValidBox(i)
		for _, face := range Faces(dim) {
			phys := r.Condition(level, face)
			h := geom.CellSize[face.Dir]
			inward := box.Unit(face.Dir)
			if face.Side == box.High {
				inward = inward.Scale(-1)
			}
			valid.AdjacentSlab(face.Dir, face.Side, 1).ForEach(func(iv box.IntVect) {
				var cond Condition
				switch masks[i].At(iv) {
				case partitions.PhysBnd:
					cond = phys
				case partitions.CrseBnd:
					cond = r.crseFine
				default:
					return
				}
				in := iv.Add(inward)
				x := geom.FaceCenter(in, face.Dir, face.Side)
				for n := 0; n < ncomp; n++ {
					g := 0.0
					if mode == Inhomogeneous && cond.Value != nil {
						g = cond.Value(x, bndComp+n)
					}
					f.Set(iv, scomp+n, cond.Ghost(f.At(in, scomp+n), g, h))
				}
			})
		}
	}
}

func (r *Registry) checkLevel(level int) {
	if level < 0 || level >= len(r.geoms) {
		panic(fmt.Sprintf("bc: level %d outside [0,%d)", level, len(r.geoms)))
	}
}
