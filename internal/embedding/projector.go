// Package embedding maps standardized feature vectors into the frozen 2-D embedding space
// by inverse-distance weighting over their nearest reference points.
package embedding

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/hyperjump/clusterizer/internal/transform"
	"github.com/hyperjump/clusterizer/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultNeighbors is the neighbor count used when none is configured.
	DefaultNeighbors = 15
	// DefaultEpsilon keeps the weight of an exact match finite.
	DefaultEpsilon = 1e-10
)

// Projector interpolates 2-D coordinates from a frozen reference set.
// It holds no mutable state and is safe for concurrent use.
type Projector struct {
	ref          *transform.Reference
	k            int
	eps          float64
	workers      int
	oodThreshold float64
	logger       *zap.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithNeighbors sets the neighbor count. It is capped at one less than the reference count.
func WithNeighbors(k int) Option {
	return func(p *Projector) {
		if k > 0 {
			p.k = k
		}
	}
}

// WithEpsilon sets the distance offset of the weights.
func WithEpsilon(eps float64) Option {
	return func(p *Projector) {
		if eps > 0 {
			p.eps = eps
		}
	}
}

// WithWorkers sets how many goroutines project rows of one call.
func WithWorkers(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithOODThreshold flags rows whose nearest reference point is farther than d.
// Zero disables the flag.
func WithOODThreshold(d float64) Option {
	return func(p *Projector) {
		if d >= 0 {
			p.oodThreshold = d
		}
	}
}

// WithLogger sets the logger for the projector.
func WithLogger(l *zap.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProjector creates a Projector over ref.
func NewProjector(ref *transform.Reference, opts ...Option) (*Projector, error) {
	if ref == nil || ref.Len() == 0 {
		return nil, fmt.Errorf("projector requires a non-empty reference set")
	}
	p := &Projector{
		ref:     ref,
		k:       DefaultNeighbors,
		eps:     DefaultEpsilon,
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if limit := ref.Len() - 1; p.k > limit {
		p.k = limit
	}
	if p.k < 1 {
		p.k = 1
	}
	return p, nil
}

// Neighbors returns the effective neighbor count.
func (p *Projector) Neighbors() int {
	return p.k
}

// OODThreshold returns the out-of-distribution distance, or 0 when disabled.
func (p *Projector) OODThreshold() float64 {
	return p.oodThreshold
}

// Interpolation is the projection of one vector with the neighbors and weights behind it.
type Interpolation struct {
	Coord     [2]float64
	Neighbors []vector.Neighbor
	Weights   []float64
}

// Nearest returns the distance to the closest reference point.
func (in *Interpolation) Nearest() float64 {
	return in.Neighbors[0].Distance
}

// Interpolate projects a single standardized vector.
func (p *Projector) Interpolate(q []float64) (*Interpolation, error) {
	nbrs, err := p.ref.Index().Search(q, p.k)
	if err != nil {
		return nil, err
	}
	if len(nbrs) == 0 {
		return nil, fmt.Errorf("no neighbors found")
	}
	w := make([]float64, len(nbrs))
	for i, n := range nbrs {
		if math.IsNaN(n.Distance) || math.IsInf(n.Distance, 0) {
			return nil, fmt.Errorf("non-finite distance %v to reference point %d", n.Distance, n.Index)
		}
		w[i] = 1 / (n.Distance + p.eps)
	}
	sum := floats.Sum(w)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("degenerate neighbor weights (sum %v)", sum)
	}
	floats.Scale(1/sum, w)

	var coord [2]float64
	for i, n := range nbrs {
		c := p.ref.Coordinate(n.Index)
		coord[0] += w[i] * c[0]
		coord[1] += w[i] * c[1]
	}
	return &Interpolation{Coord: coord, Neighbors: nbrs, Weights: w}, nil
}

// Projection holds per-row results of Project.
type Projection struct {
	Coords            [][2]float64
	Nearest           []float64
	OutOfDistribution []bool
}

// OODCount returns how many rows were flagged out of distribution.
func (pr *Projection) OODCount() int {
	n := 0
	for _, f := range pr.OutOfDistribution {
		if f {
			n++
		}
	}
	return n
}

// Project maps every row of x. Rows are processed in parallel chunks.
func (p *Projector) Project(ctx context.Context, x *mat.Dense) (*Projection, error) {
	rows, cols := x.Dims()
	if cols != p.ref.Dims() {
		return nil, fmt.Errorf("projector expects %d features, got %d", p.ref.Dims(), cols)
	}
	out := &Projection{
		Coords:            make([][2]float64, rows),
		Nearest:           make([]float64, rows),
		OutOfDistribution: make([]bool, rows),
	}

	chunk := rows / (p.workers * 4)
	if chunk < 1 {
		chunk = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for start := 0; start < rows; start += chunk {
		start, end := start, min(start+chunk, rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				in, err := p.Interpolate(x.RawRowView(i))
				if err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				out.Coords[i] = in.Coord
				out.Nearest[i] = in.Nearest()
				out.OutOfDistribution[i] = p.oodThreshold > 0 && in.Nearest() > p.oodThreshold
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("projected rows",
		zap.Int("rows", rows),
		zap.Int("neighbors", p.k),
		zap.Int("out_of_distribution", out.OODCount()))
	return out, nil
}
