package partitions

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/fab"
)

// PartitionLayout is a decomposition of a level into disjoint boxes and the
// assignment of each box to a compute unit (rank)
type PartitionLayout struct {
	// All boxes of the level, identical on every rank
	Boxes []box.Box

	// Box to rank mapping: box k is owned by rank BToR[k]
	BToR []int

	NumRanks int
	Rank     int // rank of the process holding this layout

	owned   []int // box ids owned by Rank, ascending
	localOf []int // box id -> position in owned, -1 if remote
}

// NewPartitionLayout builds and validates a layout seen from rank
func NewPartitionLayout(boxes []box.Box, bToR []int, numRanks, rank int) (*PartitionLayout, error) {
	pl := &PartitionLayout{
		Boxes:    boxes,
		BToR:     bToR,
		NumRanks: numRanks,
		Rank:     rank,
	}
	if err := pl.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	pl.index()
	return pl, nil
}

func (pl *PartitionLayout) index() {
	pl.owned = pl.owned[:0]
	pl.localOf = make([]int, len(pl.Boxes))
	for k, r := range pl.BToR {
		pl.localOf[k] = -1
		if r == pl.Rank {
			pl.localOf[k] = len(pl.owned)
			pl.owned = append(pl.owned, k)
		}
	}
}

// Dim returns the spatial dimension of the layout
func (pl *PartitionLayout) Dim() int {
	if len(pl.Boxes) == 0 {
		return 0
	}
	return pl.Boxes[0].Dim
}

func (pl *PartitionLayout) NumBoxes() int { return len(pl.Boxes) }

// GetPartition returns the rank owning box k
func (pl *PartitionLayout) GetPartition(boxID int) int {
	if boxID < 0 || boxID >= len(pl.BToR) {
		return -1
	}
	return pl.BToR[boxID]
}

// OwnedBoxes returns the ids of the boxes this rank owns
func (pl *PartitionLayout) OwnedBoxes() []int { return pl.owned }

// LocalIndex returns the position of box k among the owned boxes, or -1
func (pl *PartitionLayout) LocalIndex(boxID int) int {
	if boxID < 0 || boxID >= len(pl.localOf) {
		return -1
	}
	return pl.localOf[boxID]
}

// ValidateLayout checks box shapes, disjointness and rank assignments
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Boxes) == 0 {
		return fmt.Errorf("layout has no boxes")
	}
	if len(pl.BToR) != len(pl.Boxes) {
		return fmt.Errorf("BToR length %d != number of boxes %d", len(pl.BToR), len(pl.Boxes))
	}
	if pl.NumRanks < 1 || pl.Rank < 0 || pl.Rank >= pl.NumRanks {
		return fmt.Errorf("rank %d outside [0,%d)", pl.Rank, pl.NumRanks)
	}
	dim := pl.Boxes[0].Dim
	for k, b := range pl.Boxes {
		if !b.Ok() {
			return fmt.Errorf("box %d is empty: %v", k, b)
		}
		if b.Dim != dim {
			return fmt.Errorf("box %d has dimension %d, layout has %d", k, b.Dim, dim)
		}
		if r := pl.BToR[k]; r < 0 || r >= pl.NumRanks {
			return fmt.Errorf("box %d assigned to rank %d outside [0,%d)", k, r, pl.NumRanks)
		}
		for j := 0; j < k; j++ {
			if b.Intersects(pl.Boxes[j]) {
				return fmt.Errorf("boxes %d %v and %d %v overlap", j, pl.Boxes[j], k, b)
			}
		}
	}
	return nil
}

// Coarsen returns the layout with every box coarsened by ratio and the same
// box to rank mapping. Panics if a box is not coarsenable.
func (pl *PartitionLayout) Coarsen(ratio int) *PartitionLayout {
	c := &PartitionLayout{
		Boxes:    make([]box.Box, len(pl.Boxes)),
		BToR:     append([]int(nil), pl.BToR...),
		NumRanks: pl.NumRanks,
		Rank:     pl.Rank,
	}
	for k, b := range pl.Boxes {
		if !b.CoarsenableBy(ratio) {
			panic(fmt.Sprintf("partitions: box %d %v not coarsenable by %d", k, b, ratio))
		}
		c.Boxes[k] = b.Coarsen(ratio)
	}
	c.index()
	return c
}

// Hierarchy returns numLevels layouts, coarsest first, with pl as the finest
// and each coarser level halved
func (pl *PartitionLayout) Hierarchy(numLevels int) []*PartitionLayout {
	if numLevels < 1 {
		panic(fmt.Sprintf("partitions: invalid number of levels %d", numLevels))
	}
	layouts := make([]*PartitionLayout, numLevels)
	layouts[numLevels-1] = pl
	for l := numLevels - 2; l >= 0; l-- {
		layouts[l] = layouts[l+1].Coarsen(2)
	}
	return layouts
}

// SameAs reports whether two layouts describe the same boxes on the same ranks
func (pl *PartitionLayout) SameAs(o *PartitionLayout) bool {
	if pl == o {
		return true
	}
	if o == nil || len(pl.Boxes) != len(o.Boxes) || pl.Rank != o.Rank || pl.NumRanks != o.NumRanks {
		return false
	}
	for k := range pl.Boxes {
		if pl.Boxes[k] != o.Boxes[k] || pl.BToR[k] != o.BToR[k] {
			return false
		}
	}
	return true
}

// CellCentered marks a PartitionedArray whose points are cells
const CellCentered = -1

// PartitionedArray holds data for the boxes a rank owns, each grown by NGhost.
// Storage is contiguous across patches:
// [Patch 0 Data][Patch 1 Data]...[Patch N-1 Data]
type PartitionedArray struct {
	Layout *PartitionLayout
	NComp  int
	NGhost int

	// CellCentered, or the direction whose faces the points sit on
	FaceDir int

	GlobalData []float64

	// Offset of each owned patch in GlobalData; Offsets[i+1]-Offsets[i] is its size
	Offsets []int

	fabs []*fab.FArrayBox

	halo *haloCache
}

// NewPartitionedArray allocates a zeroed cell-centered array
func NewPartitionedArray(layout *PartitionLayout, ncomp, nghost int) *PartitionedArray {
	return allocate(layout, ncomp, nghost, CellCentered)
}

// NewFaceArray allocates a zeroed array on the faces normal to dir
func NewFaceArray(layout *PartitionLayout, dir, ncomp, nghost int) *PartitionedArray {
	if dir < 0 || dir >= layout.Dim() {
		panic(fmt.Sprintf("partitions: face direction %d outside [0,%d)", dir, layout.Dim()))
	}
	return allocate(layout, ncomp, nghost, dir)
}

func allocate(layout *PartitionLayout, ncomp, nghost, faceDir int) *PartitionedArray {
	if ncomp < 1 || nghost < 0 {
		panic(fmt.Sprintf("partitions: invalid ncomp=%d nghost=%d", ncomp, nghost))
	}
	pa := &PartitionedArray{
		Layout:  layout,
		NComp:   ncomp,
		NGhost:  nghost,
		FaceDir: faceDir,
		Offsets: make([]int, len(layout.owned)+1),
		fabs:    make([]*fab.FArrayBox, len(layout.owned)),
	}
	for i := range layout.owned {
		pa.Offsets[i+1] = pa.Offsets[i] + pa.FabBox(i).NumPts()*ncomp
	}
	pa.GlobalData = make([]float64, pa.Offsets[len(layout.owned)])
	for i := range layout.owned {
		pa.fabs[i] = fab.NewWithData(pa.FabBox(i), ncomp, pa.GetPartitionData(i))
	}
	return pa
}

// NumPatches returns the number of boxes stored on this rank
func (pa *PartitionedArray) NumPatches() int { return len(pa.fabs) }

// OwnedBoxes returns the global box ids of the stored patches
func (pa *PartitionedArray) OwnedBoxes() []int { return pa.Layout.owned }

// Fab returns the storage of owned patch i
func (pa *PartitionedArray) Fab(i int) *fab.FArrayBox { return pa.fabs[i] }

// GetPartitionData returns the slice of GlobalData holding owned patch i
func (pa *PartitionedArray) GetPartitionData(i int) []float64 {
	return pa.GlobalData[pa.Offsets[i]:pa.Offsets[i+1]]
}

func (pa *PartitionedArray) IsCellCentered() bool { return pa.FaceDir == CellCentered }

// ValidBox returns the points of patch i excluding ghosts
func (pa *PartitionedArray) ValidBox(i int) box.Box {
	b := pa.Layout.Boxes[pa.Layout.owned[i]]
	if pa.FaceDir != CellCentered {
		b = b.SurroundingNodes(pa.FaceDir)
	}
	return b
}

// FabBox returns the points of patch i including ghosts
func (pa *PartitionedArray) FabBox(i int) box.Box {
	return pa.ValidBox(i).Grow(pa.NGhost)
}

// SetVal assigns v to every point, ghosts included
func (pa *PartitionedArray) SetVal(v float64) {
	for i := range pa.GlobalData {
		pa.GlobalData[i] = v
	}
}

// SameShape reports whether o can be used in place of pa: same layout, centering
// and component count. Ghost widths may differ.
func (pa *PartitionedArray) SameShape(o *PartitionedArray) bool {
	return pa.FaceDir == o.FaceDir && pa.NComp == o.NComp && pa.Layout.SameAs(o.Layout)
}

// CopyValid copies components of src into pa over the valid region of every patch
func (pa *PartitionedArray) CopyValid(src *PartitionedArray, scomp, dcomp, ncomp int) {
	if pa.FaceDir != src.FaceDir || !pa.Layout.SameAs(src.Layout) {
		panic("partitions: CopyValid between arrays of different shape")
	}
	for i, f := range pa.fabs {
		f.CopyShifted(src.fabs[i], pa.ValidBox(i), box.IntVect{}, scomp, dcomp, ncomp)
	}
}

// Clone returns a deep copy
func (pa *PartitionedArray) Clone() *PartitionedArray {
	c := allocate(pa.Layout, pa.NComp, pa.NGhost, pa.FaceDir)
	copy(c.GlobalData, pa.GlobalData)
	return c
}

// View returns a read-only handle on the array
func (pa *PartitionedArray) View() View { return View{pa: pa} }

// View is a read-only handle on a PartitionedArray
type View struct {
	pa *PartitionedArray
}

func (v View) Layout() *PartitionLayout { return v.pa.Layout }
func (v View) NComp() int               { return v.pa.NComp }
func (v View) NGhost() int              { return v.pa.NGhost }
func (v View) FaceDir() int             { return v.pa.FaceDir }
func (v View) NumPatches() int          { return v.pa.NumPatches() }
func (v View) ValidBox(i int) box.Box   { return v.pa.ValidBox(i) }
func (v View) FabBox(i int) box.Box     { return v.pa.FabBox(i) }
func (v View) Fab(i int) fab.View       { return fab.NewView(v.pa.fabs[i]) }
func (v View) IsNil() bool              { return v.pa == nil }
func (v View) Clone() *PartitionedArray { return v.pa.Clone() }

// Raw returns the storage of patch i for indexed reads inside kernels
func (v View) Raw(i int) []float64 { return v.pa.fabs[i].Data() }

func (v View) SameShape(o *PartitionedArray) bool { return v.pa.SameShape(o) }

// Global exposes the contiguous storage and patch offsets, for bulk transfer
// to a device. The slices must not be modified.
func (v View) Global() (data []float64, offsets []int) { return v.pa.GlobalData, v.pa.Offsets }
