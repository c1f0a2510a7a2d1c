// Package coefficients owns the per-level coefficient fields of a variable
// coefficient operator: the cell-centered a and one face-centered b per
// direction, with validity tracking across the level hierarchy.
package coefficients

import (
	"fmt"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/metrics"
	"github.com/notargets/MGKernel/partitions"
	"github.com/sirupsen/logrus"
)

const (
	DefaultA = 0.0
	DefaultB = 1.0
)

// Options configures a Store
type Options struct {
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
	Workers int // patch-parallel workers, <= 0 for GOMAXPROCS
}

// slot is the state of one level. Stamps order the data held by different
// levels: a slot holds data at least as new as its stamp.
type slot struct {
	a      *partitions.PartitionedArray
	b      [box.MaxDim]*partitions.PartitionedArray
	aValid bool
	bValid bool
	aStamp uint64
	bStamp uint64
}

// Store holds coefficients for levels 0 (coarsest) to NumLevels-1 (finest).
// It is not safe for concurrent mutation.
type Store struct {
	layouts []*partitions.PartitionLayout
	dim     int
	slots   []*slot
	clock   uint64

	log     logrus.FieldLogger
	metrics *metrics.Metrics
	workers int
}

// NewStore creates an empty store for the given level layouts, coarsest first.
// Every coarser layout must be its finer neighbor coarsened by 2.
func NewStore(layouts []*partitions.PartitionLayout, opts Options) *Store {
	if len(layouts) == 0 {
		panic("coefficients: store needs at least one level")
	}
	for l := 0; l+1 < len(layouts); l++ {
		if !layouts[l].SameAs(layouts[l+1].Coarsen(2)) {
			panic(fmt.Sprintf("coefficients: level %d layout is not level %d coarsened by 2", l, l+1))
		}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		layouts: layouts,
		dim:     layouts[0].Dim(),
		slots:   make([]*slot, len(layouts)),
		log:     log,
		metrics: opts.Metrics,
		workers: opts.Workers,
	}
}

func (s *Store) NumLevels() int { return len(s.layouts) }
func (s *Store) Dim() int       { return s.dim }

// Layout returns the layout of level
func (s *Store) Layout(level int) *partitions.PartitionLayout {
	s.checkLevel(level)
	return s.layouts[level]
}

// PrepareForLevel makes the coefficients of level present and valid. An
// invalid level is re-derived from the next finer level when that level holds
// newer data, and keeps its own data otherwise. Absent levels start from the
// default values.
func (s *Store) PrepareForLevel(level int) {
	s.checkLevel(level)
	sl := s.allocate(level)
	if sl.aValid && sl.bValid {
		return
	}

	var finer *slot
	if s.finerAllocated(level) {
		s.PrepareForLevel(level + 1)
		finer = s.slots[level+1]
	}

	if !sl.aValid {
		if finer != nil && finer.aStamp > sl.aStamp {
			s.coarsenA(finer.a, sl.a)
			sl.aStamp = finer.aStamp
			s.metrics.ObserveDerivation("a")
			s.log.WithFields(logrus.Fields{"level": level, "stamp": sl.aStamp}).Debug("derived a from finer level")
		}
		sl.aValid = true
	}
	if !sl.bValid {
		if finer != nil && finer.bStamp > sl.bStamp {
			for d := 0; d < s.dim; d++ {
				s.coarsenB(d, finer.b[d], sl.b[d])
			}
			sl.bStamp = finer.bStamp
			s.metrics.ObserveDerivation("b")
			s.log.WithFields(logrus.Fields{"level": level, "stamp": sl.bStamp}).Debug("derived b from finer level")
		}
		sl.bValid = true
	}
}

// finerAllocated reports whether any level finer than level holds a slot.
// Missing levels in between are allocated and derived on the way down.
func (s *Store) finerAllocated(level int) bool {
	for l := level + 1; l < len(s.slots); l++ {
		if s.slots[l] != nil {
			return true
		}
	}
	return false
}

// allocate creates the slot of level with default values if it is absent
func (s *Store) allocate(level int) *slot {
	if sl := s.slots[level]; sl != nil {
		return sl
	}
	layout := s.layouts[level]
	sl := &slot{a: partitions.NewPartitionedArray(layout, 1, 0)}
	sl.a.SetVal(DefaultA)
	for d := 0; d < s.dim; d++ {
		sl.b[d] = partitions.NewFaceArray(layout, d, 1, 0)
		sl.b[d].SetVal(DefaultB)
	}
	s.slots[level] = sl
	s.log.WithField("level", level).Debug("allocated coefficient level")
	return sl
}

// SetA copies the valid region of a into level and invalidates level and
// every coarser level
func (s *Store) SetA(level int, a *partitions.PartitionedArray) {
	s.checkLevel(level)
	sl := s.allocate(level)
	if !sl.a.SameShape(a) {
		panic(fmt.Sprintf("coefficients: SetA on level %d with an array of a different shape", level))
	}
	sl.a.CopyValid(a, 0, 0, 1)
	s.InvalidateATo(level)
	s.clock++
	sl.aStamp = s.clock
}

// SetB copies the valid faces of b into direction dir of level and
// invalidates level and every coarser level
func (s *Store) SetB(level, dir int, b *partitions.PartitionedArray) {
	s.checkLevel(level)
	if dir < 0 || dir >= s.dim {
		panic(fmt.Sprintf("coefficients: direction %d outside [0,%d)", dir, s.dim))
	}
	sl := s.allocate(level)
	if !sl.b[dir].SameShape(b) {
		panic(fmt.Sprintf("coefficients: SetB on level %d direction %d with an array of a different shape", level, dir))
	}
	sl.b[dir].CopyValid(b, 0, 0, 1)
	s.InvalidateBTo(level)
	s.clock++
	sl.bStamp = s.clock
}

// ZeroA sets a to zero on level with the invalidation of SetA
func (s *Store) ZeroA(level int) {
	s.checkLevel(level)
	sl := s.allocate(level)
	sl.a.SetVal(0)
	s.InvalidateATo(level)
	s.clock++
	sl.aStamp = s.clock
}

// InvalidateATo marks a invalid on level and every coarser level. Data of
// those levels counts as older than any finer data.
func (s *Store) InvalidateATo(level int) {
	s.checkLevel(level)
	n := 0
	for l := level; l >= 0; l-- {
		if sl := s.slots[l]; sl != nil {
			sl.aValid = false
			sl.aStamp = 0
			n++
		}
	}
	s.metrics.ObserveInvalidation("a", n)
	s.log.WithFields(logrus.Fields{"level": level, "slots": n}).Debug("invalidated a")
}

// InvalidateBTo marks b invalid on level and every coarser level
func (s *Store) InvalidateBTo(level int) {
	s.checkLevel(level)
	n := 0
	for l := level; l >= 0; l-- {
		if sl := s.slots[l]; sl != nil {
			sl.bValid = false
			sl.bStamp = 0
			n++
		}
	}
	s.metrics.ObserveInvalidation("b", n)
	s.log.WithFields(logrus.Fields{"level": level, "slots": n}).Debug("invalidated b")
}

// ClearToLevel releases the coefficients of level and every finer level
func (s *Store) ClearToLevel(level int) {
	s.checkLevel(level)
	for l := level; l < len(s.slots); l++ {
		s.slots[l] = nil
	}
	s.log.WithField("level", level).Debug("cleared coefficient levels")
}

// A prepares level and returns a read-only view of a
func (s *Store) A(level int) partitions.View {
	s.PrepareForLevel(level)
	return s.slots[level].a.View()
}

// B prepares level and returns a read-only view of b in direction dir
func (s *Store) B(dir, level int) partitions.View {
	if dir < 0 || dir >= s.dim {
		panic(fmt.Sprintf("coefficients: direction %d outside [0,%d)", dir, s.dim))
	}
	s.PrepareForLevel(level)
	return s.slots[level].b[dir].View()
}

func (s *Store) Allocated(level int) bool {
	s.checkLevel(level)
	return s.slots[level] != nil
}

func (s *Store) AValid(level int) bool {
	s.checkLevel(level)
	return s.slots[level] != nil && s.slots[level].aValid
}

func (s *Store) BValid(level int) bool {
	s.checkLevel(level)
	return s.slots[level] != nil && s.slots[level].bValid
}

func (s *Store) checkLevel(level int) {
	if level < 0 || level >= len(s.layouts) {
		panic(fmt.Sprintf("coefficients: level %d outside [0,%d)", level, len(s.layouts)))
	}
}
