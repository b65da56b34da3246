// Package clientindex provides text search over the preserved fields of clustered clients.
package clientindex

import (
	"context"

	"github.com/hyperjump/clusterizer/internal/models"
)

// Index defines client search operations.
type Index interface {
	// IndexPrediction adds every assignment of p. A client already indexed under the same
	// IdUnico is replaced, so lookups see the latest assignment.
	IndexPrediction(ctx context.Context, p *models.Prediction) error
	Search(ctx context.Context, q *models.ClientQuery) ([]*Hit, error)
	// DeleteRun removes documents whose latest assignment came from runID.
	DeleteRun(ctx context.Context, runID string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single client search result.
type Hit struct {
	ID      string              `json:"id"`
	Score   float64             `json:"score"`
	RunID   string              `json:"run_id"`
	Cluster int                 `json:"cluster"`
	Client  models.ClientFields `json:"client"`
}
