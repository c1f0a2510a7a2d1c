package partitions

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/MGKernel/box"
)

// PartitionBuilder constructs box layouts for a level
type PartitionBuilder struct {
	// Either a domain to be chopped into boxes of at most MaxGridSize cells
	// per direction, or an explicit list of boxes
	Domain      box.Box
	MaxGridSize int
	Boxes       []box.Box

	NumRanks int
	Strategy PartitionStrategy
}

// PartitionStrategy defines how boxes are assigned to ranks
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive boxes
	RoundRobin                              // Distribute cyclically
	CellBalanced                            // Greedy by cell count, largest box first
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	case CellBalanced:
		return "cells"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// ParsePartitionStrategy maps a configuration string to a strategy
func ParsePartitionStrategy(s string) (PartitionStrategy, error) {
	for _, st := range []PartitionStrategy{BlockPartition, RoundRobin, CellBalanced} {
		if st.String() == s {
			return st, nil
		}
	}
	return BlockPartition, fmt.Errorf("unknown partition strategy %q", s)
}

// BuildPartitions creates the layout seen from rank
func (pb *PartitionBuilder) BuildPartitions(rank int) (*PartitionLayout, error) {
	boxes := pb.Boxes
	if boxes == nil {
		if !pb.Domain.Ok() {
			return nil, fmt.Errorf("builder needs a domain or a box list")
		}
		maxSize := pb.MaxGridSize
		if maxSize < 1 {
			maxSize = math.MaxInt32
		}
		boxes = pb.Domain.Chop(maxSize)
	}
	numRanks := pb.NumRanks
	if numRanks < 1 {
		numRanks = 1
	}

	layout, err := NewPartitionLayout(boxes, pb.partitionBoxes(boxes, numRanks), numRanks, rank)
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// partitionBoxes assigns boxes to ranks
func (pb *PartitionBuilder) partitionBoxes(boxes []box.Box, numRanks int) []int {
	bToR := make([]int, len(boxes))

	switch pb.Strategy {
	case RoundRobin:
		for k := range boxes {
			bToR[k] = k % numRanks
		}

	case CellBalanced:
		order := make([]int, len(boxes))
		for k := range order {
			order[k] = k
		}
		// stable, so every rank derives the same assignment
		sort.SliceStable(order, func(i, j int) bool {
			return boxes[order[i]].NumPts() > boxes[order[j]].NumPts()
		})
		load := make([]int, numRanks)
		for _, k := range order {
			r := 0
			for q := 1; q < numRanks; q++ {
				if load[q] < load[r] {
					r = q
				}
			}
			bToR[k] = r
			load[r] += boxes[k].NumPts()
		}

	default:
		boxesPerRank := int(math.Ceil(float64(len(boxes)) / float64(numRanks)))
		for k := range boxes {
			bToR[k] = k / boxesPerRank
			if bToR[k] >= numRanks {
				bToR[k] = numRanks - 1
			}
		}
	}

	return bToR
}

// PartitionStatistics computes load balance metrics in cells per rank
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	cells := make([]int, pl.NumRanks)
	total := 0
	for k, b := range pl.Boxes {
		cells[pl.BToR[k]] += b.NumPts()
		total += b.NumPts()
	}
	stats := PartitionStats{
		NumRanks: pl.NumRanks,
		NumBoxes: len(pl.Boxes),
		MinCells: math.MaxInt32,
		AvgCells: float64(total) / float64(pl.NumRanks),
	}
	for _, c := range cells {
		if c < stats.MinCells {
			stats.MinCells = c
		}
		if c > stats.MaxCells {
			stats.MaxCells = c
		}
	}
	stats.Imbalance = float64(stats.MaxCells) / stats.AvgCells
	return stats
}

type PartitionStats struct {
	NumRanks  int
	NumBoxes  int
	MinCells  int
	MaxCells  int
	AvgCells  float64
	Imbalance float64 // MaxCells / AvgCells
}
