// Package transform loads the frozen standardization, reference-embedding, and centroid
// artifacts and exposes them as immutable views.
package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hyperjump/clusterizer/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ErrArtifactMissing is returned when one of the three artifacts does not exist.
var ErrArtifactMissing = errors.New("artifact missing")

// Artifact identifiers used in errors and logs.
const (
	ArtifactScaler    = "scaler"
	ArtifactEmbedding = "embedding"
	ArtifactCentroids = "centroids"
)

// ArtifactNames are the object names of the three artifacts within a Source.
type ArtifactNames struct {
	Scaler    string
	Embedding string
	Centroids string
}

// DefaultArtifactNames returns the conventional artifact file names.
func DefaultArtifactNames() ArtifactNames {
	return ArtifactNames{
		Scaler:    "scaler.json",
		Embedding: "embedding.json.zst",
		Centroids: "centroids.json",
	}
}

// Info summarizes a loaded Store.
type Info struct {
	Features   int       `json:"features"`
	References int       `json:"references"`
	Clusters   int       `json:"clusters"`
	Components int       `json:"components"`
	Algorithm  string    `json:"index_algorithm"`
	Location   string    `json:"location"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Store holds the three frozen artifacts. It is never mutated after Load.
type Store struct {
	scaler    *Scaler
	reference *Reference
	centroids *Centroids
	info      Info
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used while loading.
func WithLogger(l *zap.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load reads, validates, and indexes the three artifacts from src concurrently.
func Load(ctx context.Context, src Source, names ArtifactNames, opts ...Option) (*Store, error) {
	o := &loadOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger

	var (
		scalerDoc    ScalerDocument
		embeddingDoc EmbeddingDocument
		centroidsDoc CentroidsDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fetch(gctx, src, ArtifactScaler, names.Scaler, &scalerDoc, logger) })
	g.Go(func() error { return fetch(gctx, src, ArtifactEmbedding, names.Embedding, &embeddingDoc, logger) })
	g.Go(func() error { return fetch(gctx, src, ArtifactCentroids, names.Centroids, &centroidsDoc, logger) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scaler, err := scalerFromDocument(&scalerDoc, logger)
	if err != nil {
		return nil, err
	}
	reference, err := referenceFromDocument(&embeddingDoc, logger)
	if err != nil {
		return nil, err
	}
	if reference.Dims() != scaler.Len() {
		return nil, fmt.Errorf("%s: reference dimension %d does not match %d scaler features",
			ArtifactEmbedding, reference.Dims(), scaler.Len())
	}
	centroids, err := centroidsFromDocument(&centroidsDoc, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		scaler:    scaler,
		reference: reference,
		centroids: centroids,
		info: Info{
			Features:   scaler.Len(),
			References: reference.Len(),
			Clusters:   centroids.Len(),
			Components: 2,
			Algorithm:  reference.Algorithm(),
			Location:   src.Location(""),
			LoadedAt:   time.Now(),
		},
	}
	logger.Info("artifacts loaded",
		zap.Int("features", s.info.Features),
		zap.Int("references", s.info.References),
		zap.Int("clusters", s.info.Clusters),
		zap.String("index", s.info.Algorithm))
	return s, nil
}

// NewStore assembles a Store from already-built views.
func NewStore(scaler *Scaler, reference *Reference, centroids *Centroids) (*Store, error) {
	if scaler == nil || reference == nil || centroids == nil {
		return nil, fmt.Errorf("store requires scaler, reference, and centroids")
	}
	if reference.Dims() != scaler.Len() {
		return nil, fmt.Errorf("reference dimension %d does not match %d scaler features", reference.Dims(), scaler.Len())
	}
	return &Store{
		scaler:    scaler,
		reference: reference,
		centroids: centroids,
		info: Info{
			Features:   scaler.Len(),
			References: reference.Len(),
			Clusters:   centroids.Len(),
			Components: 2,
			Algorithm:  reference.Algorithm(),
			LoadedAt:   time.Now(),
		},
	}, nil
}

func fetch(ctx context.Context, src Source, artifact, name string, v any, logger *zap.Logger) error {
	start := time.Now()
	rc, err := src.Open(ctx, name)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("%w: %s artifact not found at %s", ErrArtifactMissing, artifact, src.Location(name))
		}
		return fmt.Errorf("open %s artifact at %s: %w", artifact, src.Location(name), err)
	}
	defer rc.Close()
	if err := decodeDocument(name, rc, v); err != nil {
		return fmt.Errorf("%s artifact: %w", artifact, err)
	}
	logger.Debug("artifact fetched",
		zap.String("artifact", artifact),
		zap.String("location", src.Location(name)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Scaler returns the standardization view.
func (s *Store) Scaler() *Scaler { return s.scaler }

// Reference returns the reference-point view.
func (s *Store) Reference() *Reference { return s.reference }

// Centroids returns the centroid view.
func (s *Store) Centroids() *Centroids { return s.centroids }

// Info returns a summary of the loaded artifacts.
func (s *Store) Info() Info { return s.info }

// Scaler holds per-feature standardization parameters.
type Scaler struct {
	names []string
	mean  []float64
	scale []float64
}

// NewScaler validates standardization parameters. Zero scales become 1.
func NewScaler(names []string, mean, scale []float64, logger *zap.Logger) (*Scaler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: no feature names", ArtifactScaler)
	}
	if len(mean) != len(names) || len(scale) != len(names) {
		return nil, fmt.Errorf("%s: %d feature names but %d means and %d scales",
			ArtifactScaler, len(names), len(mean), len(scale))
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("%s: duplicate feature name %q", ArtifactScaler, n)
		}
		seen[n] = struct{}{}
	}
	sc := make([]float64, len(scale))
	copy(sc, scale)
	for i, v := range sc {
		if v == 0 {
			logger.Warn("zero scale replaced by 1", zap.String("feature", names[i]))
			sc[i] = 1
		}
	}
	return &Scaler{names: names, mean: mean, scale: sc}, nil
}

func scalerFromDocument(doc *ScalerDocument, logger *zap.Logger) (*Scaler, error) {
	d := len(doc.FeatureNames)
	mean, _, err := doc.Mean.decode(ArtifactScaler, "mean", logger, d)
	if err != nil {
		return nil, err
	}
	scale, _, err := doc.Scale.decode(ArtifactScaler, "scale", logger, d)
	if err != nil {
		return nil, err
	}
	return NewScaler(doc.FeatureNames, mean, scale, logger)
}

// FeatureNames returns the expected features in column order.
func (s *Scaler) FeatureNames() []string { return s.names }

// Mean returns the per-feature centers.
func (s *Scaler) Mean() []float64 { return s.mean }

// Scale returns the per-feature scales.
func (s *Scaler) Scale() []float64 { return s.scale }

// Len returns the number of features.
func (s *Scaler) Len() int { return len(s.names) }

// Transform returns (x - mean) / scale for every row of x.
func (s *Scaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	_, c := x.Dims()
	if c != len(s.names) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.names), c)
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, x)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		for j, v := range out.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d: feature %s standardizes to %v", i, s.names[j], v)
			}
		}
	}
	return &out, nil
}

// Reference holds the reference points, their 2-D coordinates, and a neighbor index.
type Reference struct {
	points    *mat.Dense
	coords    [][2]float64
	index     vector.Index
	algorithm string
}

// NewReference builds the neighbor index over points. coords[i] is the coordinate of points[i].
func NewReference(points [][]float64, coords [][2]float64, algorithm string) (*Reference, error) {
	if len(points) != len(coords) {
		return nil, fmt.Errorf("%s: %d reference points but %d coordinates", ArtifactEmbedding, len(points), len(coords))
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: no reference points", ArtifactEmbedding)
	}
	if algorithm == "" {
		algorithm = string(vector.IndexTypeBrute)
	}
	idx, err := vector.NewIndex(algorithm, points)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ArtifactEmbedding, err)
	}
	d := len(points[0])
	flat := make([]float64, 0, len(points)*d)
	for _, p := range points {
		flat = append(flat, p...)
	}
	return &Reference{
		points:    mat.NewDense(len(points), d, flat),
		coords:    coords,
		index:     idx,
		algorithm: algorithm,
	}, nil
}

func referenceFromDocument(doc *EmbeddingDocument, logger *zap.Logger) (*Reference, error) {
	if doc.Index.Metric != "" && doc.Index.Metric != "euclidean" {
		return nil, fmt.Errorf("%s: unsupported metric %q", ArtifactEmbedding, doc.Index.Metric)
	}
	data, shape, err := doc.Reference.decode(ArtifactEmbedding, "reference", logger, -1, -1)
	if err != nil {
		return nil, err
	}
	n, d := shape[0], shape[1]
	cdata, _, err := doc.Coordinates.decode(ArtifactEmbedding, "coordinates", logger, n, 2)
	if err != nil {
		return nil, err
	}
	points := make([][]float64, n)
	coords := make([][2]float64, n)
	for i := 0; i < n; i++ {
		points[i] = data[i*d : (i+1)*d : (i+1)*d]
		coords[i] = [2]float64{cdata[2*i], cdata[2*i+1]}
	}
	return NewReference(points, coords, doc.Index.Algorithm)
}

// Len returns the number of reference points.
func (r *Reference) Len() int { return len(r.coords) }

// Dims returns the feature dimension of reference points.
func (r *Reference) Dims() int { return r.index.Dims() }

// Algorithm returns the neighbor index type.
func (r *Reference) Algorithm() string { return r.algorithm }

// Index returns the neighbor index over the reference points.
func (r *Reference) Index() vector.Index { return r.index }

// Points returns the reference feature matrix. Callers must not modify it.
func (r *Reference) Points() *mat.Dense { return r.points }

// Coordinate returns the 2-D coordinate of reference point i.
func (r *Reference) Coordinate(i int) [2]float64 { return r.coords[i] }

// Centroids is the ordered set of 2-D cluster centers. Labels are indices.
type Centroids struct {
	centers [][2]float64
}

// NewCentroids validates centers.
func NewCentroids(centers [][2]float64) (*Centroids, error) {
	if len(centers) == 0 {
		return nil, fmt.Errorf("%s: no centers", ArtifactCentroids)
	}
	for i, c := range centers {
		if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
			return nil, fmt.Errorf("%s: center %d is not finite", ArtifactCentroids, i)
		}
	}
	return &Centroids{centers: centers}, nil
}

func centroidsFromDocument(doc *CentroidsDocument, logger *zap.Logger) (*Centroids, error) {
	data, shape, err := doc.Centers.decode(ArtifactCentroids, "centers", logger, -1, 2)
	if err != nil {
		return nil, err
	}
	k := shape[0]
	if doc.NClusters != 0 && doc.NClusters != k {
		return nil, fmt.Errorf("%s: n_clusters is %d but %d centers were stored", ArtifactCentroids, doc.NClusters, k)
	}
	centers := make([][2]float64, k)
	for i := range centers {
		centers[i] = [2]float64{data[2*i], data[2*i+1]}
	}
	return NewCentroids(centers)
}

// Len returns the number of clusters.
func (c *Centroids) Len() int { return len(c.centers) }

// At returns the center of cluster i.
func (c *Centroids) At(i int) [2]float64 { return c.centers[i] }

// Points returns all centers in label order. Callers must not modify the slice.
func (c *Centroids) Points() [][2]float64 { return c.centers }
