package vector

import "fmt"

// IndexType represents the type of neighbor index to use.
type IndexType string

const (
	// IndexTypeBrute scans all points. Good for small reference sets (<10k points).
	IndexTypeBrute IndexType = "brute"
	// IndexTypeKDTree uses a k-d tree. Faster for large, low-dimensional reference sets.
	IndexTypeKDTree IndexType = "kdtree"
)

// NewIndex creates an index of the specified type over points.
// Supported types: "brute" (default), "kdtree".
func NewIndex(indexType string, points [][]float64) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeBrute, "":
		return NewBruteIndex(points)
	case IndexTypeKDTree:
		return NewKDTreeIndex(points)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: brute, kdtree)", indexType)
	}
}
