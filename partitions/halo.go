package partitions

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/comm"
	"github.com/notargets/MGKernel/mesh"
)

// HaloCopy moves the values of source box cells into ghost cells of a
// destination box. Cell iv of Region on DstBox receives cell iv+Shift of SrcBox;
// Shift is zero except across periodic boundaries.
type HaloCopy struct {
	SrcBox, DstBox int
	Region         box.Box
	Shift          box.IntVect
}

// HaloPlan holds the pick and place lists of one rank for filling NGhost
// ghost layers. Every rank enumerates copies in the same global order, so the
// values rank p picks for rank q arrive in the order rank q places them.
type HaloPlan struct {
	NumRanks int
	Rank     int
	NGhost   int

	// Copies with both boxes on this rank
	Local []HaloCopy

	Pick  [][]HaloCopy // [targetRank] copies this rank sends
	Place [][]HaloCopy // [sourceRank] copies this rank receives
}

// BuildHaloPlan constructs the pick and place lists for a cell-centered array
// on layout with nghost ghost layers
func BuildHaloPlan(layout *PartitionLayout, geom mesh.Geometry, nghost int) *HaloPlan {
	hp := &HaloPlan{
		NumRanks: layout.NumRanks,
		Rank:     layout.Rank,
		NGhost:   nghost,
		Pick:     make([][]HaloCopy, layout.NumRanks),
		Place:    make([][]HaloCopy, layout.NumRanks),
	}
	if nghost == 0 {
		return hp
	}
	forEachHaloCopy(layout, geom, nghost, func(hc HaloCopy) {
		src, dst := layout.BToR[hc.SrcBox], layout.BToR[hc.DstBox]
		switch {
		case src == hp.Rank && dst == hp.Rank:
			hp.Local = append(hp.Local, hc)
		case src == hp.Rank:
			hp.Pick[dst] = append(hp.Pick[dst], hc)
		case dst == hp.Rank:
			hp.Place[src] = append(hp.Place[src], hc)
		}
	})
	return hp
}

// forEachHaloCopy visits every ghost region of every box that another box, or
// a periodic image of any box, covers
func forEachHaloCopy(layout *PartitionLayout, geom mesh.Geometry, nghost int, f func(hc HaloCopy)) {
	for j, dst := range layout.Boxes {
		grown := dst.Grow(nghost)
		shifts := append([]box.IntVect{{}}, geom.PeriodicShifts(grown)...)
		for _, s := range shifts {
			moved := grown.Shift(s)
			for i, src := range layout.Boxes {
				if i == j && s == (box.IntVect{}) {
					continue
				}
				ov := moved.Intersect(src)
				if !ov.Ok() {
					continue
				}
				f(HaloCopy{SrcBox: i, DstBox: j, Region: ov.Shift(s.Scale(-1)), Shift: s})
			}
		}
	}
}

// GetPickIndices returns the copies sent from this rank to target
func (hp *HaloPlan) GetPickIndices(target int) []HaloCopy {
	if target < 0 || target >= hp.NumRanks {
		return nil
	}
	return hp.Pick[target]
}

// GetPlaceIndices returns the copies this rank receives from source
func (hp *HaloPlan) GetPlaceIndices(source int) []HaloCopy {
	if source < 0 || source >= hp.NumRanks {
		return nil
	}
	return hp.Place[source]
}

// NumPoints returns the number of ghost points this rank sends to and receives from q
func (hp *HaloPlan) NumPoints(q int) (send, recv int) {
	for _, hc := range hp.Pick[q] {
		send += hc.Region.NumPts()
	}
	for _, hc := range hp.Place[q] {
		recv += hc.Region.NumPts()
	}
	return
}

// Verify checks index validity and that no ghost point is written twice
func (hp *HaloPlan) Verify(layout *PartitionLayout) error {
	check := func(hc HaloCopy) error {
		if hc.SrcBox < 0 || hc.SrcBox >= layout.NumBoxes() || hc.DstBox < 0 || hc.DstBox >= layout.NumBoxes() {
			return fmt.Errorf("copy %d -> %d references a box outside the layout", hc.SrcBox, hc.DstBox)
		}
		dst := layout.Boxes[hc.DstBox]
		if !dst.Grow(hp.NGhost).ContainsBox(hc.Region) || hc.Region.Intersects(dst) {
			return fmt.Errorf("copy %d -> %d: region %v is not a ghost region of %v",
				hc.SrcBox, hc.DstBox, hc.Region, dst)
		}
		if !layout.Boxes[hc.SrcBox].ContainsBox(hc.Region.Shift(hc.Shift)) {
			return fmt.Errorf("copy %d -> %d: source region %v outside %v",
				hc.SrcBox, hc.DstBox, hc.Region.Shift(hc.Shift), layout.Boxes[hc.SrcBox])
		}
		return nil
	}

	// Ghost points filled on each owned box, for the no-double-write check
	written := make(map[int][]box.Box)
	incoming := append([]HaloCopy(nil), hp.Local...)
	for q := 0; q < hp.NumRanks; q++ {
		for _, hc := range hp.Pick[q] {
			if layout.BToR[hc.SrcBox] != hp.Rank || layout.BToR[hc.DstBox] != q {
				return fmt.Errorf("pick %d -> %d listed for ranks %d -> %d", hc.SrcBox, hc.DstBox, hp.Rank, q)
			}
			if err := check(hc); err != nil {
				return err
			}
		}
		for _, hc := range hp.Place[q] {
			if layout.BToR[hc.DstBox] != hp.Rank || layout.BToR[hc.SrcBox] != q {
				return fmt.Errorf("place %d -> %d listed for ranks %d -> %d", hc.SrcBox, hc.DstBox, q, hp.Rank)
			}
		}
		incoming = append(incoming, hp.Place[q]...)
	}
	for _, hc := range incoming {
		if err := check(hc); err != nil {
			return err
		}
		for _, prev := range written[hc.DstBox] {
			if prev.Intersects(hc.Region) {
				return fmt.Errorf("ghost points %v of box %d written twice", prev.Intersect(hc.Region), hc.DstBox)
			}
		}
		written[hc.DstBox] = append(written[hc.DstBox], hc.Region)
	}
	return nil
}

// VerifyHaloPlans checks that what each rank picks for another matches, copy
// for copy, what that rank places
func VerifyHaloPlans(plans []*HaloPlan) error {
	for p, pp := range plans {
		for q, qp := range plans {
			if p == q {
				continue
			}
			picks, places := pp.Pick[q], qp.Place[p]
			if len(picks) != len(places) {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, len(picks), q, p, len(places))
			}
			for n := range picks {
				if picks[n] != places[n] {
					return fmt.Errorf("pick[%d][%d][%d] %+v != place[%d][%d][%d] %+v",
						p, q, n, picks[n], q, p, n, places[n])
				}
			}
		}
	}
	return nil
}

type haloCache struct {
	geom mesh.Geometry
	plan *HaloPlan
}

// HaloPlan returns the plan for this array's layout and ghost width, building
// it on first use for geom
func (pa *PartitionedArray) HaloPlan(geom mesh.Geometry) *HaloPlan {
	if pa.halo == nil || pa.halo.geom != geom {
		pa.halo = &haloCache{geom: geom, plan: BuildHaloPlan(pa.Layout, geom, pa.NGhost)}
	}
	return pa.halo.plan
}

// FillBoundary copies valid values of neighboring boxes, including periodic
// images, into ghost cells for components [scomp, scomp+ncomp). Ghost cells no
// box covers are left untouched. Collective over c.
func (pa *PartitionedArray) FillBoundary(c comm.Communicator, geom mesh.Geometry, scomp, ncomp int) {
	if !pa.IsCellCentered() {
		panic("partitions: FillBoundary needs a cell-centered array")
	}
	if c.Size() != pa.Layout.NumRanks || c.Rank() != pa.Layout.Rank {
		panic(fmt.Sprintf("partitions: communicator rank %d/%d does not match layout rank %d/%d",
			c.Rank(), c.Size(), pa.Layout.Rank, pa.Layout.NumRanks))
	}
	if scomp < 0 || ncomp < 0 || scomp+ncomp > pa.NComp {
		panic(fmt.Sprintf("partitions: component range [%d,%d) outside [0,%d)", scomp, scomp+ncomp, pa.NComp))
	}
	hp := pa.HaloPlan(geom)
	layout := pa.Layout

	sends := make([][]float64, hp.NumRanks)
	for q, picks := range hp.Pick {
		for _, hc := range picks {
			src := pa.fabs[layout.LocalIndex(hc.SrcBox)]
			sends[q] = src.Pack(hc.Region.Shift(hc.Shift), scomp, ncomp, sends[q])
		}
	}

	for _, hc := range hp.Local {
		src := pa.fabs[layout.LocalIndex(hc.SrcBox)]
		dst := pa.fabs[layout.LocalIndex(hc.DstBox)]
		dst.CopyShifted(src, hc.Region, hc.Shift, scomp, scomp, ncomp)
	}

	recvs := c.Exchange(sends)
	for q, places := range hp.Place {
		if q == hp.Rank {
			continue
		}
		buf := recvs[q]
		for _, hc := range places {
			dst := pa.fabs[layout.LocalIndex(hc.DstBox)]
			buf = dst.Unpack(hc.Region, scomp, ncomp, buf)
		}
		if len(buf) != 0 {
			panic(fmt.Sprintf("partitions: %d unexpected halo values from rank %d", len(buf), q))
		}
	}
}
