package transform

import "path/filepath"

// Artifacts bundles the three documents, as produced by the offline training job.
type Artifacts struct {
	Scaler    ScalerDocument
	Embedding EmbeddingDocument
	Centroids CentroidsDocument
}

// NewArtifacts encodes plain values as float64 documents.
func NewArtifacts(names []string, mean, scale []float64, reference [][]float64, coords [][2]float64, algorithm string, centers [][2]float64) *Artifacts {
	d := 0
	if len(reference) > 0 {
		d = len(reference[0])
	}
	flat := make([]float64, 0, len(reference)*d)
	for _, p := range reference {
		flat = append(flat, p...)
	}
	return &Artifacts{
		Scaler: ScalerDocument{
			FeatureNames: names,
			Mean:         NewArray(mean, len(mean)),
			Scale:        NewArray(scale, len(scale)),
		},
		Embedding: EmbeddingDocument{
			Reference:   NewArray(flat, len(reference), d),
			Coordinates: NewArray(flattenPairs(coords), len(coords), 2),
			Index:       IndexSpec{Algorithm: algorithm, Metric: "euclidean"},
		},
		Centroids: CentroidsDocument{
			Centers:   NewArray(flattenPairs(centers), len(centers), 2),
			NClusters: len(centers),
		},
	}
}

// WriteDir writes the three documents into dir under names.
func (a *Artifacts) WriteDir(dir string, names ArtifactNames) error {
	if err := WriteDocument(filepath.Join(dir, names.Scaler), a.Scaler); err != nil {
		return err
	}
	if err := WriteDocument(filepath.Join(dir, names.Embedding), a.Embedding); err != nil {
		return err
	}
	return WriteDocument(filepath.Join(dir, names.Centroids), a.Centroids)
}

func flattenPairs(pairs [][2]float64) []float64 {
	out := make([]float64, 0, 2*len(pairs))
	for _, p := range pairs {
		out = append(out, p[0], p[1])
	}
	return out
}
