// Package storage defines the persistence interface for prediction runs and assignments.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/clusterizer/internal/models"
)

// ErrNotFound is returned when a run or client has no stored record.
var ErrNotFound = errors.New("not found")

// Storage defines run and assignment persistence operations.
type Storage interface {
	// Run operations
	SaveRun(ctx context.Context, p *models.Prediction, sourceKey string) (*models.Run, error)
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error)
	GetRunBySourceKey(ctx context.Context, sourceKey string) (*models.Run, error)

	// Assignment lookups
	GetRunAssignments(ctx context.Context, runID string) ([]*models.ClientAssignment, error)
	GetClientAssignment(ctx context.Context, idUnico string) (*models.ClientAssignment, error)

	// Retention
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteRun(ctx context.Context, id string) error

	// Stats
	CountRuns(ctx context.Context) (int64, error)
	CountAssignments(ctx context.Context) (int64, error)

	Close() error
}
