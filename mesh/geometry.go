package mesh

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
)

// Geometry maps index space onto physical space for one level
type Geometry struct {
	Domain   box.Box
	ProbLo   [box.MaxDim]float64
	CellSize [box.MaxDim]float64
	Periodic [box.MaxDim]bool
}

// NewGeometry builds a geometry whose domain spans [probLo, probHi] in each direction
func NewGeometry(domain box.Box, probLo, probHi [box.MaxDim]float64,
	periodic [box.MaxDim]bool) Geometry {
	if !domain.Ok() {
		panic(fmt.Sprintf("mesh: empty domain %v", domain))
	}
	g := Geometry{Domain: domain, ProbLo: probLo, Periodic: periodic}
	for d := 0; d < domain.Dim; d++ {
		if probHi[d] <= probLo[d] {
			panic(fmt.Sprintf("mesh: direction %d has probHi %g <= probLo %g", d, probHi[d], probLo[d]))
		}
		g.CellSize[d] = (probHi[d] - probLo[d]) / float64(domain.Length(d))
	}
	for d := domain.Dim; d < box.MaxDim; d++ {
		g.CellSize[d] = 1
		g.Periodic[d] = false
	}
	return g
}

func (g Geometry) Dim() int { return g.Domain.Dim }

// IsPeriodic reports whether direction d wraps around
func (g Geometry) IsPeriodic(d int) bool {
	return d < g.Dim() && g.Periodic[d]
}

// Period returns the domain length in cells for each periodic direction, zero otherwise
func (g Geometry) Period() (p box.IntVect) {
	for d := 0; d < g.Dim(); d++ {
		if g.Periodic[d] {
			p[d] = g.Domain.Length(d)
		}
	}
	return
}

// CellCenter returns the physical coordinate of the center of cell iv
func (g Geometry) CellCenter(iv box.IntVect) (x [box.MaxDim]float64) {
	for d := 0; d < g.Dim(); d++ {
		x[d] = g.ProbLo[d] + (float64(iv[d]-g.Domain.Lo[d])+0.5)*g.CellSize[d]
	}
	return
}

// FaceCenter returns the center of the face of cell iv on the given side of direction dir
func (g Geometry) FaceCenter(iv box.IntVect, dir int, side box.Side) [box.MaxDim]float64 {
	x := g.CellCenter(iv)
	if side == box.Low {
		x[dir] -= 0.5 * g.CellSize[dir]
	} else {
		x[dir] += 0.5 * g.CellSize[dir]
	}
	return x
}

// FaceArea returns the measure of a face normal to dir
func (g Geometry) FaceArea(dir int) float64 {
	a := 1.0
	for d := 0; d < g.Dim(); d++ {
		if d != dir {
			a *= g.CellSize[d]
		}
	}
	return a
}

// CellVolume returns the measure of one cell
func (g Geometry) CellVolume() float64 {
	v := 1.0
	for d := 0; d < g.Dim(); d++ {
		v *= g.CellSize[d]
	}
	return v
}

// Coarsen returns the geometry of the level coarser by ratio
func (g Geometry) Coarsen(ratio int) Geometry {
	c := g
	c.Domain = g.Domain.Coarsen(ratio)
	for d := 0; d < g.Dim(); d++ {
		c.CellSize[d] = g.CellSize[d] * float64(ratio)
	}
	return c
}

// PeriodicShifts returns every non-zero shift by whole periods under which the
// region, moved by the shift, still touches the domain. Shifts are returned
// in a fixed order so that every rank enumerates them identically.
func (g Geometry) PeriodicShifts(region box.Box) []box.IntVect {
	period := g.Period()
	var shifts []box.IntVect
	var rng [box.MaxDim][]int
	for d := 0; d < box.MaxDim; d++ {
		rng[d] = []int{0}
		if period[d] > 0 {
			rng[d] = []int{-1, 0, 1}
		}
	}
	for _, k := range rng[2] {
		for _, j := range rng[1] {
			for _, i := range rng[0] {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				s := box.IntVect{i * period[0], j * period[1], k * period[2]}
				if region.Shift(s).Intersects(g.Domain) {
					shifts = append(shifts, s)
				}
			}
		}
	}
	return shifts
}
