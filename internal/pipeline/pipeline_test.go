package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/clusterizer/internal/embedding"
	"github.com/hyperjump/clusterizer/internal/features"
	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/hyperjump/clusterizer/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testStore builds a two-point reference: the origin embeds at (1,1), and a point with
// Saldo_aportes and Ingresos at 100 embeds at (9,9). Centroids sit at (0,0) and (10,10).
func testStore(t *testing.T, names []string, scale float64) *transform.Store {
	t.Helper()
	mean := make([]float64, len(names))
	scales := make([]float64, len(names))
	for i := range scales {
		scales[i] = scale
	}
	scaler, err := transform.NewScaler(names, mean, scales, zap.NewNop())
	require.NoError(t, err)

	points := [][]float64{make([]float64, len(names)), make([]float64, len(names))}
	for i, name := range names {
		if name == "Saldo_aportes" || name == "Ingresos" {
			points[1][i] = 100
		}
	}
	ref, err := transform.NewReference(points, [][2]float64{{1, 1}, {9, 9}}, "brute")
	require.NoError(t, err)
	centroids, err := transform.NewCentroids([][2]float64{{0, 0}, {10, 10}})
	require.NoError(t, err)
	store, err := transform.NewStore(scaler, ref, centroids)
	require.NoError(t, err)
	return store
}

// modelFeatureNames is the frozen list without the preserved text positions.
func modelFeatureNames() []string {
	preserved := make(map[string]bool, len(models.ClientFieldNames))
	for _, n := range models.ClientFieldNames {
		preserved[n] = true
	}
	var names []string
	for _, n := range features.FeatureNames {
		if !preserved[n] {
			names = append(names, n)
		}
	}
	return names
}

func newTestPipeline(t *testing.T, names []string) *Pipeline {
	return newScaledPipeline(t, names, 1)
}

func newScaledPipeline(t *testing.T, names []string, scale float64) *Pipeline {
	builder := features.NewBuilder(features.WithReferenceDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	return New(transform.StaticProvider(testStore(t, names, scale)), builder,
		WithLogger(zap.NewNop()),
		WithProjectorOptions(embedding.WithNeighbors(15)))
}

func rawTable() *models.RawTable {
	return &models.RawTable{
		Columns: []string{"IdUnico", "Saldo_aportes", "Cuotas_canceladas_aportes", "Cuotas_mora_aportes", "Vlr_mora", "Ingresos", "Cta_Dep"},
		Rows: [][]string{
			{"near-low", "1", "1", "0", "0", "1", "1"},
			{"no-balance", "", "1", "0", "0", "1", "1"},
			{"near-high", "99", "1", "0", "0", "100", "0"},
		},
	}
}

func TestPredict_AssignsClusters(t *testing.T) {
	names := modelFeatureNames()
	require.Greater(t, len(names), 150)
	p := newTestPipeline(t, names)

	pred, err := p.Predict(context.Background(), rawTable())
	require.NoError(t, err)
	require.Len(t, pred.Assignments, 2)
	assert.NotEmpty(t, pred.RunID)
	assert.Len(t, pred.FeatureNames, len(features.FeatureNames))

	low, high := pred.Assignments[0], pred.Assignments[1]
	assert.Equal(t, "near-low", low.Client.IDUnico)
	assert.Equal(t, 0, low.Row)
	assert.Equal(t, 0, low.Cluster)
	assert.Equal(t, [2]float64{1, 1}, [2]float64{low.UMAP1, low.UMAP2})

	assert.Equal(t, "near-high", high.Client.IDUnico)
	assert.Equal(t, 2, high.Row)
	assert.Equal(t, 1, high.Cluster)
	assert.Equal(t, [2]float64{9, 9}, [2]float64{high.UMAP1, high.UMAP2})

	s := pred.Summary
	assert.Equal(t, 3, s.RowsIn)
	assert.Equal(t, 1, s.RowsMissingRequired)
	assert.Equal(t, 0, s.RowsIncomplete)
	assert.Equal(t, 2, s.RowsOut)
	require.Len(t, s.Clusters, 2)
	assert.Equal(t, models.ClusterCount{Cluster: 0, Count: 1, Percent: 50}, s.Clusters[0])
}

func TestPredict_DropsRowsWithNullFeatures(t *testing.T) {
	p := newTestPipeline(t, []string{"Saldo_aportes", "Cta_Dep"})
	raw := rawTable()
	raw.Rows[0][6] = "null"

	pred, err := p.Predict(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, pred.Assignments, 1)
	assert.Equal(t, "near-high", pred.Assignments[0].Client.IDUnico)
	assert.Equal(t, 1, pred.Summary.RowsIncomplete)
}

func TestPredict_NoRowsAfterNullDrop(t *testing.T) {
	p := newTestPipeline(t, []string{"Saldo_aportes", "Cta_Dep"})
	raw := rawTable()
	raw.Rows[0][6] = ""
	raw.Rows[2][6] = "n/a"

	_, err := p.Predict(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.True(t, errors.Is(err, features.ErrNoRows))
}

func TestPredict_MissingExpectedFeature(t *testing.T) {
	p := newTestPipeline(t, []string{"Saldo_aportes", "Not_A_Feature"})

	_, err := p.Predict(context.Background(), rawTable())
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.Contains(t, err.Error(), "Not_A_Feature")
	assert.Contains(t, err.Error(), "available:")
}

func TestPredict_BuilderFailureIsInputError(t *testing.T) {
	p := newTestPipeline(t, []string{"Saldo_aportes", "Ingresos"})

	_, err := p.Predict(context.Background(), &models.RawTable{Columns: []string{"Ingresos"}, Rows: [][]string{{"1"}}})
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.True(t, errors.Is(err, features.ErrNoRows))
}

func TestPredict_LoadErrorIsNotInputError(t *testing.T) {
	provider := transform.NewProvider(func(ctx context.Context) (*transform.Store, error) {
		return transform.Load(ctx, &transform.LocalSource{Dir: t.TempDir()}, transform.DefaultArtifactNames())
	})
	p := New(provider, features.NewBuilder())

	_, err := p.Predict(context.Background(), rawTable())
	require.Error(t, err)
	assert.False(t, IsInputError(err))
	assert.True(t, errors.Is(err, transform.ErrArtifactMissing))
}

func TestInfo(t *testing.T) {
	p := newTestPipeline(t, []string{"Saldo_aportes", "Ingresos"})
	info, err := p.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "loaded", info.Status)
	assert.Equal(t, 2, info.NClusters)
	assert.Equal(t, 2, info.Components)
	assert.Equal(t, 1, info.Neighbors)
	assert.Equal(t, 2, info.Features)
	assert.Equal(t, "2024-01-01", info.ReferenceDate)
}

func TestPredict_TwoFeatureModel(t *testing.T) {
	p := newTestPipeline(t, []string{"Saldo_aportes", "Ingresos"})

	pred, err := p.Predict(context.Background(), rawTable())
	require.NoError(t, err)
	require.Len(t, pred.Assignments, 2)
	assert.Equal(t, 0, pred.Assignments[0].Cluster)
	assert.Equal(t, 1, pred.Assignments[1].Cluster)
}

func TestPredict_OverflowingStandardizationIsInputError(t *testing.T) {
	p := newScaledPipeline(t, []string{"Saldo_aportes", "Ingresos"}, 1e-300)
	raw := rawTable()
	raw.Rows[2][1] = "1e300"

	_, err := p.Predict(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.Contains(t, err.Error(), "Saldo_aportes")
}
