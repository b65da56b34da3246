package vector

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// BruteIndex scans every point on each query. Exact, including tie order.
type BruteIndex struct {
	dims   int
	points [][]float64
}

// NewBruteIndex creates a brute-force index over points. The slice is retained, not copied.
func NewBruteIndex(points [][]float64) (*BruteIndex, error) {
	dims, err := checkPoints(points)
	if err != nil {
		return nil, err
	}
	return &BruteIndex{dims: dims, points: points}, nil
}

// Type returns the index type identifier.
func (b *BruteIndex) Type() string {
	return string(IndexTypeBrute)
}

// Search returns the k nearest points to query, closest first.
func (b *BruteIndex) Search(query []float64, k int) ([]Neighbor, error) {
	if len(query) != b.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), b.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	return scan(b.points, query, k), nil
}

// scan ranks every point by floats.Distance, which scales before squaring and so stays
// finite where a plain sum of squares overflows.
func scan(points [][]float64, query []float64, k int) []Neighbor {
	all := make([]Neighbor, len(points))
	for i, p := range points {
		all[i] = Neighbor{Index: i, Distance: floats.Distance(query, p, 2)}
	}
	sort.Sort(byDistance(all))
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// Len returns the number of indexed points.
func (b *BruteIndex) Len() int {
	return len(b.points)
}

// Dims returns the dimension of indexed points.
func (b *BruteIndex) Dims() int {
	return b.dims
}

func checkPoints(points [][]float64) (int, error) {
	if len(points) == 0 {
		return 0, fmt.Errorf("index requires at least one point")
	}
	dims := len(points[0])
	if dims == 0 {
		return 0, fmt.Errorf("dimensions must be positive")
	}
	for i, p := range points {
		if len(p) != dims {
			return 0, fmt.Errorf("point %d dimension mismatch: got %d, expected %d", i, len(p), dims)
		}
	}
	return dims, nil
}
