// Package pipeline runs the prediction steps: feature building, standardization,
// projection, and cluster assignment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/clusterizer/internal/cluster"
	"github.com/hyperjump/clusterizer/internal/embedding"
	"github.com/hyperjump/clusterizer/internal/features"
	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/hyperjump/clusterizer/internal/transform"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Pipeline orchestrates a prediction. It is safe for concurrent use.
type Pipeline struct {
	provider *transform.Provider
	builder  *features.Builder
	projOpts []embedding.Option
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProjectorOptions sets the options used to build the projector.
func WithProjectorOptions(opts ...embedding.Option) Option {
	return func(p *Pipeline) {
		p.projOpts = append(p.projOpts, opts...)
	}
}

// New creates a Pipeline.
func New(provider *transform.Provider, builder *features.Builder, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider: provider,
		builder:  builder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelInfo describes the loaded model for status endpoints.
type ModelInfo struct {
	Status        string  `json:"status"`
	NClusters     int     `json:"n_clusters"`
	Components    int     `json:"n_components"`
	Neighbors     int     `json:"n_neighbors"`
	Features      int     `json:"n_features"`
	References    int     `json:"n_references"`
	Algorithm     string  `json:"index_algorithm"`
	ReferenceDate string  `json:"reference_date"`
	OODThreshold  float64 `json:"ood_threshold,omitempty"`
}

// Info loads the store if needed and describes it.
func (p *Pipeline) Info(ctx context.Context) (*ModelInfo, error) {
	store, err := p.provider.Get(ctx)
	if err != nil {
		return nil, err
	}
	proj, err := embedding.NewProjector(store.Reference(), p.projOpts...)
	if err != nil {
		return nil, err
	}
	info := store.Info()
	return &ModelInfo{
		Status:        "loaded",
		NClusters:     info.Clusters,
		Components:    info.Components,
		Neighbors:     proj.Neighbors(),
		Features:      info.Features,
		References:    info.References,
		Algorithm:     info.Algorithm,
		ReferenceDate: p.builder.ReferenceDate().Format("2006-01-02"),
		OODThreshold:  proj.OODThreshold(),
	}, nil
}

// Predict clusters every valid row of raw. Errors caused by the data are *InputError.
func (p *Pipeline) Predict(ctx context.Context, raw *models.RawTable) (*models.Prediction, error) {
	start := time.Now()
	store, err := p.provider.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	p.logger.Info("[1/5] building features", zap.Int("rows", raw.Len()))
	ft, err := p.builder.Build(raw)
	if err != nil {
		return nil, inputError("invalid input table", err)
	}

	p.logger.Info("[2/5] selecting model features", zap.Int("expected", store.Scaler().Len()))
	x, kept, err := selectFeatures(ft, store.Scaler().FeatureNames())
	if err != nil {
		return nil, err
	}
	incomplete := ft.Len() - len(kept)
	if incomplete > 0 {
		p.logger.Warn("rows dropped for null features", zap.Int("dropped", incomplete))
	}
	if len(kept) == 0 {
		return nil, inputError(fmt.Sprintf("no valid rows remain after dropping %d rows with missing values", incomplete), features.ErrNoRows)
	}

	p.logger.Info("[3/5] standardizing", zap.Int("rows", len(kept)))
	scaled, err := store.Scaler().Transform(x)
	if err != nil {
		return nil, inputError("standardization failed", err)
	}
	mean, std := stat.MeanStdDev(scaled.RawMatrix().Data, nil)
	p.logger.Debug("standardized matrix", zap.Float64("mean", mean), zap.Float64("std", std))

	p.logger.Info("[4/5] projecting")
	projector, err := embedding.NewProjector(store.Reference(), append([]embedding.Option{embedding.WithLogger(p.logger)}, p.projOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("create projector: %w", err)
	}
	proj, err := projector.Project(ctx, scaled)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, inputError("projection failed", err)
	}

	p.logger.Info("[5/5] assigning clusters", zap.Int("clusters", store.Centroids().Len()))
	assigner := cluster.NewAssigner(store.Centroids())
	labels := assigner.Assign(proj.Coords)

	pred := &models.Prediction{
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		FeatureNames: ft.Names,
		Assignments:  make([]*models.Assignment, len(kept)),
	}
	for i, r := range kept {
		pred.Assignments[i] = &models.Assignment{
			Row:               ft.SourceRows[r],
			Client:            ft.Clients[r],
			Cluster:           labels[i],
			UMAP1:             proj.Coords[i][0],
			UMAP2:             proj.Coords[i][1],
			NearestDistance:   proj.Nearest[i],
			OutOfDistribution: proj.OutOfDistribution[i],
			Features:          ft.Rows[r],
		}
	}

	pred.Summary = models.Summary{
		RowsIn:              ft.RowsIn,
		RowsMissingRequired: ft.RowsMissingRequired,
		RowsIncomplete:      incomplete,
		RowsOut:             len(kept),
		OutOfDistribution:   proj.OODCount(),
		CoercionCount:       ft.Report.Total,
		Coercions:           ft.Report.Issues,
	}
	for k, count := range assigner.Distribution(labels) {
		pct := 100 * float64(count) / float64(len(kept))
		pred.Summary.Clusters = append(pred.Summary.Clusters, models.ClusterCount{Cluster: k, Count: count, Percent: pct})
		p.logger.Info("cluster distribution",
			zap.Int("cluster", k),
			zap.Int("count", count),
			zap.Float64("percent", math.Round(pct*10)/10))
	}

	p.logger.Info("prediction complete",
		zap.String("run_id", pred.RunID),
		zap.Int("rows_in", ft.RowsIn),
		zap.Int("rows_out", len(kept)),
		zap.Duration("elapsed", time.Since(start)))
	return pred, nil
}

// selectFeatures extracts the expected columns in order and drops rows with any NaN.
// It returns the matrix and, for each matrix row, the feature-table row it came from.
func selectFeatures(ft *features.FeatureTable, expected []string) (*mat.Dense, []int, error) {
	cols := make([]int, len(expected))
	var missing []string
	for i, name := range expected {
		cols[i] = ft.ColumnIndex(name)
		if cols[i] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		available := append([]string(nil), ft.Names...)
		sort.Strings(available)
		return nil, nil, inputError(fmt.Sprintf("missing %d features expected by the model: %s (available: %s)",
			len(missing), strings.Join(missing, ", "), strings.Join(available, ", ")), nil)
	}

	data := make([]float64, 0, ft.Len()*len(expected))
	var kept []int
rows:
	for r, row := range ft.Rows {
		for _, c := range cols {
			if math.IsNaN(row[c]) {
				continue rows
			}
		}
		for _, c := range cols {
			data = append(data, row[c])
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil, nil, nil
	}
	return mat.NewDense(len(kept), len(expected), data), kept, nil
}
