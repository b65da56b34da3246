package vector

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTreeIndex is a k-d tree over the reference points (gonum spatial/kdtree).
// Results match BruteIndex, including the lower-index rule on equal distances.
type KDTreeIndex struct {
	dims   int
	points [][]float64
	tree   *kdtree.Tree
}

// NewKDTreeIndex builds a k-d tree over points. The slice is retained, not copied.
func NewKDTreeIndex(points [][]float64) (*KDTreeIndex, error) {
	dims, err := checkPoints(points)
	if err != nil {
		return nil, err
	}
	pts := make(refPoints, len(points))
	for i, p := range points {
		pts[i] = refPoint{idx: i, v: p}
	}
	return &KDTreeIndex{dims: dims, points: points, tree: kdtree.New(pts, false)}, nil
}

// Type returns the index type identifier.
func (t *KDTreeIndex) Type() string {
	return string(IndexTypeKDTree)
}

// Search returns the k nearest points to query, closest first.
func (t *KDTreeIndex) Search(query []float64, k int) ([]Neighbor, error) {
	if len(query) != t.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), t.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(t.points) {
		k = len(t.points)
	}
	for _, v := range query {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return scan(t.points, query, k), nil
		}
	}
	q := refPoint{idx: -1, v: query}

	nk := kdtree.NewNKeeper(k)
	t.tree.NearestSet(nk, q)
	radius := 0.0
	finite := true
	for _, c := range nk.Heap {
		if c.Comparable == nil {
			continue
		}
		if math.IsInf(c.Dist, 0) || math.IsNaN(c.Dist) {
			finite = false
		} else if c.Dist > radius {
			radius = c.Dist
		}
	}
	// Squared distances overflowed, so the tree cannot order candidates.
	if !finite {
		return scan(t.points, query, k), nil
	}

	// Collect everything within the k-th distance so equal-distance points at the
	// boundary resolve to the lowest index.
	dk := kdtree.NewDistKeeper(radius)
	t.tree.NearestSet(dk, q)
	hits := make([]Neighbor, 0, len(dk.Heap))
	for _, c := range dk.Heap {
		if c.Comparable == nil {
			continue
		}
		idx := c.Comparable.(refPoint).idx
		hits = append(hits, Neighbor{Index: idx, Distance: floats.Distance(query, t.points[idx], 2)})
	}
	sort.Sort(byDistance(hits))
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed points.
func (t *KDTreeIndex) Len() int {
	return len(t.points)
}

// Dims returns the dimension of indexed points.
func (t *KDTreeIndex) Dims() int {
	return t.dims
}

// refPoint is a reference vector tagged with its row index.
type refPoint struct {
	idx int
	v   []float64
}

func (p refPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.v[d] - c.(refPoint).v[d]
}

func (p refPoint) Dims() int { return len(p.v) }

// Distance is the squared Euclidean distance, as the tree expects.
func (p refPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(refPoint)
	var sum float64
	for i, x := range p.v {
		d := x - q.v[i]
		sum += d * d
	}
	return sum
}

type refPoints []refPoint

func (p refPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p refPoints) Len() int                      { return len(p) }
func (p refPoints) Pivot(d kdtree.Dim) int {
	return refPlane{refPoints: p, dim: d}.Pivot()
}
func (p refPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// refPlane sorts refPoints along one dimension for median partitioning.
type refPlane struct {
	refPoints
	dim kdtree.Dim
}

func (p refPlane) Less(i, j int) bool {
	return p.refPoints[i].v[p.dim] < p.refPoints[j].v[p.dim]
}
func (p refPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p refPlane) Slice(start, end int) kdtree.SortSlicer {
	p.refPoints = p.refPoints[start:end]
	return p
}
func (p refPlane) Swap(i, j int) {
	p.refPoints[i], p.refPoints[j] = p.refPoints[j], p.refPoints[i]
}
