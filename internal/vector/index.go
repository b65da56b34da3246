// Package vector provides exact nearest-neighbor indexes over dense float64 vectors.
package vector

// Index answers k-nearest-neighbor queries under Euclidean distance.
// Implementations are immutable after construction and safe for concurrent Search calls.
type Index interface {
	Search(query []float64, k int) ([]Neighbor, error)
	Len() int
	Dims() int
	Type() string
}

// Neighbor is a single search hit. Index is the row of the point in the slice the index was built from.
type Neighbor struct {
	Index    int
	Distance float64 // Euclidean, not squared
}

// byDistance orders neighbors by distance, then by lower index.
type byDistance []Neighbor

func (n byDistance) Len() int      { return len(n) }
func (n byDistance) Swap(i, j int) { n[i], n[j] = n[j], n[i] }
func (n byDistance) Less(i, j int) bool {
	if n[i].Distance != n[j].Distance {
		return n[i].Distance < n[j].Distance
	}
	return n[i].Index < n[j].Index
}
