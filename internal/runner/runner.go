// Package runner clusters tables and files and records the results in storage and the client index.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/clusterizer/internal/clientindex"
	"github.com/hyperjump/clusterizer/internal/fileid"
	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/hyperjump/clusterizer/internal/storage"
	"github.com/hyperjump/clusterizer/internal/tabular"
	"go.uber.org/zap"
)

// OutputMarker is inserted before the extension of result files written next to inputs.
const OutputMarker = ".clustered"

// Predictor turns a raw table into cluster assignments.
type Predictor interface {
	Predict(ctx context.Context, raw *models.RawTable) (*models.Prediction, error)
}

// Runner runs predictions and persists them.
type Runner struct {
	predictor   Predictor
	storage     storage.Storage
	clientIndex clientindex.Index
	reader      *tabular.Reader
	writer      *tabular.Writer
	outputDir   string
	format      tabular.Format
	logger      *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStorage records every run in s.
func WithStorage(s storage.Storage) Option {
	return func(r *Runner) { r.storage = s }
}

// WithClientIndex indexes every run's clients in idx.
func WithClientIndex(idx clientindex.Index) Option {
	return func(r *Runner) { r.clientIndex = idx }
}

// WithOutputDir writes file results to dir instead of next to the input.
func WithOutputDir(dir string) Option {
	return func(r *Runner) { r.outputDir = dir }
}

// WithOutputFormat sets the encoding of file results. Default CSV.
func WithOutputFormat(f tabular.Format) Option {
	return func(r *Runner) { r.format = f }
}

// WithWriteOptions sets the column options of file results.
func WithWriteOptions(o tabular.WriteOptions) Option {
	return func(r *Runner) { r.writer = tabular.NewWriter(o) }
}

// New creates a Runner around predictor.
func New(predictor Predictor, opts ...Option) *Runner {
	r := &Runner{
		predictor: predictor,
		reader:    tabular.NewReader(),
		writer:    tabular.NewWriter(tabular.WriteOptions{}),
		format:    tabular.FormatCSV,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reader returns the table reader used for files.
func (r *Runner) Reader() *tabular.Reader {
	return r.reader
}

// ClusterTable predicts raw and records the run under source.
func (r *Runner) ClusterTable(ctx context.Context, raw *models.RawTable, source string) (*models.Prediction, error) {
	pred, err := r.predictor.Predict(ctx, raw)
	if err != nil {
		return nil, err
	}
	pred.Source = source
	if _, err := r.Record(ctx, pred, ""); err != nil {
		return nil, err
	}
	return pred, nil
}

// Record stores pred and indexes its clients. Without storage it is a no-op.
func (r *Runner) Record(ctx context.Context, pred *models.Prediction, sourceKey string) (*models.Run, error) {
	if r.storage == nil {
		return nil, nil
	}
	run, err := r.storage.SaveRun(ctx, pred, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}
	if r.clientIndex != nil {
		if err := r.clientIndex.IndexPrediction(ctx, pred); err != nil {
			return nil, fmt.Errorf("failed to index clients: %w", err)
		}
	}
	r.logger.Debug("run recorded", zap.String("run_id", run.ID), zap.String("source", run.Source))
	return run, nil
}

// FileResult describes one clustered file.
type FileResult struct {
	Input      string
	Output     string
	Prediction *models.Prediction
	// Skipped is set when this version of the file was already clustered.
	Skipped bool
}

// IsOutputFile reports whether path is a result written by a Runner.
func IsOutputFile(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(stem, OutputMarker)
}

// OutputPath returns where the result for input is written.
func (r *Runner) OutputPath(input string) string {
	dir := r.outputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+OutputMarker+r.format.Extension())
}

// ClusterFile reads path, clusters it, writes the result file and records the run.
// A file version already recorded is skipped. If allowedExts is non-empty, the file's
// extension must be in it (case-insensitive).
func (r *Runner) ClusterFile(ctx context.Context, path string, allowedExts []string) (*FileResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	if IsOutputFile(absPath) {
		return nil, fmt.Errorf("refusing to cluster result file %s", absPath)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	res := &FileResult{Input: absPath, Output: r.OutputPath(absPath)}
	key := fileid.SourceKey(absPath, info.Size(), info.ModTime())
	if r.storage != nil {
		if _, err := r.storage.GetRunBySourceKey(ctx, key); err == nil {
			r.logger.Debug("skipping unchanged file", zap.String("path", absPath))
			res.Skipped = true
			return res, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	raw, err := r.reader.Read(absPath)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	pred, err := r.predictor.Predict(ctx, raw)
	if err != nil {
		return nil, err
	}
	pred.Source = filepath.Base(absPath)
	res.Prediction = pred

	if err := r.writeResult(res.Output, pred); err != nil {
		return nil, err
	}
	if _, err := r.Record(ctx, pred, key); err != nil {
		return nil, err
	}
	r.logger.Info("file clustered",
		zap.String("input", absPath),
		zap.String("output", res.Output),
		zap.Int("rows", len(pred.Assignments)))
	return res, nil
}

func (r *Runner) writeResult(path string, pred *models.Prediction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	body, err := r.writer.Bytes(r.format, pred)
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	// Write then rename so watchers never see a partial result.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// ClusterDirectory walks dir recursively and clusters each regular file whose extension is
// in allowedExts. Result files are ignored. Returns the number of files clustered (skipped
// files excluded) and the first error encountered.
func (r *Runner) ClusterDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || IsOutputFile(path) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		res, clusterErr := r.ClusterFile(ctx, path, allowedExts)
		if clusterErr != nil {
			return fmt.Errorf("%s: %w", path, clusterErr)
		}
		if !res.Skipped {
			n++
		}
		return nil
	})
	return n, err
}

// Purge deletes runs created before cutoff from storage and the client index.
// Returns the number of runs removed.
func (r *Runner) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	if r.storage == nil {
		return 0, nil
	}
	ids, err := r.storage.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	if r.clientIndex != nil {
		for _, id := range ids {
			if err := r.clientIndex.DeleteRun(ctx, id); err != nil {
				return len(ids), fmt.Errorf("failed to delete run %s from client index: %w", id, err)
			}
		}
	}
	if len(ids) > 0 {
		r.logger.Info("purged runs", zap.Int("count", len(ids)), zap.Time("cutoff", cutoff))
	}
	return len(ids), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
