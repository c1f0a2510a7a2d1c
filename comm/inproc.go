package comm

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type group struct {
	size  int
	chans [][]chan []float64 // [src][dst]
	abort chan struct{}
	once  sync.Once
}

// InProc is one rank of a group of goroutine ranks sharing an address space
type InProc struct {
	rank int
	g    *group
}

// NewGroup creates size connected in-process ranks
func NewGroup(size int) []*InProc {
	if size < 1 {
		panic(fmt.Sprintf("comm: invalid group size %d", size))
	}
	g := &group{
		size:  size,
		chans: make([][]chan []float64, size),
		abort: make(chan struct{}),
	}
	for p := 0; p < size; p++ {
		g.chans[p] = make([]chan []float64, size)
		for q := 0; q < size; q++ {
			if p != q {
				g.chans[p][q] = make(chan []float64, 1)
			}
		}
	}
	ranks := make([]*InProc, size)
	for p := range ranks {
		ranks[p] = &InProc{rank: p, g: g}
	}
	return ranks
}

func (c *InProc) Rank() int { return c.rank }
func (c *InProc) Size() int { return c.g.size }

func (c *InProc) Exchange(sends [][]float64) [][]float64 {
	if len(sends) != c.g.size {
		panic(fmt.Sprintf("comm: exchange with %d destinations in a group of %d", len(sends), c.g.size))
	}
	for q := 0; q < c.g.size; q++ {
		if q == c.rank {
			continue
		}
		msg := append([]float64(nil), sends[q]...)
		select {
		case c.g.chans[c.rank][q] <- msg:
		case <-c.g.abort:
			panic(ErrAborted)
		}
	}
	recvs := make([][]float64, c.g.size)
	recvs[c.rank] = sends[c.rank]
	for q := 0; q < c.g.size; q++ {
		if q == c.rank {
			continue
		}
		select {
		case recvs[q] = <-c.g.chans[q][c.rank]:
		case <-c.g.abort:
			panic(ErrAborted)
		}
	}
	return recvs
}

func (c *InProc) AllReduce(v float64, op ReduceOp) float64 {
	sends := make([][]float64, c.g.size)
	for q := range sends {
		sends[q] = []float64{v}
	}
	recvs := c.Exchange(sends)
	// combine in rank order so every rank produces bit-identical results
	res := recvs[0][0]
	for q := 1; q < len(recvs); q++ {
		res = op.Apply(res, recvs[q][0])
	}
	return res
}

func (g *group) fail() {
	g.once.Do(func() { close(g.abort) })
}

// Run executes fn on every rank of a new group of the given size, one goroutine
// per rank. A panic in a rank is returned as an error and releases the other
// ranks from pending collectives. The error of the lowest failing rank that did
// not merely observe the abort is returned.
func Run(size int, fn func(c Communicator) error) error {
	ranks := NewGroup(size)
	errs := make([]error, size)
	var eg errgroup.Group
	for _, r := range ranks {
		r := r
		eg.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					if e, ok := p.(error); ok {
						err = fmt.Errorf("rank %d: %w", r.rank, e)
					} else {
						err = fmt.Errorf("rank %d: %v", r.rank, p)
					}
				}
				if err != nil {
					errs[r.rank] = err
					r.g.fail()
				}
			}()
			return fn(r)
		})
	}
	first := eg.Wait()
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrAborted) {
			return err
		}
	}
	return first
}
