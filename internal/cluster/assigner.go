// Package cluster assigns 2-D points to the nearest frozen centroid.
package cluster

import (
	"github.com/hyperjump/clusterizer/internal/transform"
)

// Assigner labels points by nearest Euclidean centroid; ties go to the lowest label.
type Assigner struct {
	centroids *transform.Centroids
}

// NewAssigner creates an Assigner over centroids.
func NewAssigner(centroids *transform.Centroids) *Assigner {
	return &Assigner{centroids: centroids}
}

// Assign returns one label per point.
func (a *Assigner) Assign(points [][2]float64) []int {
	labels := make([]int, len(points))
	for i, p := range points {
		labels[i] = a.Nearest(p)
	}
	return labels
}

// Nearest returns the label of the centroid closest to p.
func (a *Assigner) Nearest(p [2]float64) int {
	best, bestDist := 0, sqDist(p, a.centroids.At(0))
	for k := 1; k < a.centroids.Len(); k++ {
		if d := sqDist(p, a.centroids.At(k)); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// Distribution counts labels per cluster, including empty clusters.
func (a *Assigner) Distribution(labels []int) []int {
	counts := make([]int, a.centroids.Len())
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

func sqDist(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}
