// Package integration runs directory batches against real storage and indices.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/clusterizer/internal/clientindex"
	"github.com/hyperjump/clusterizer/internal/features"
	"github.com/hyperjump/clusterizer/internal/pipeline"
	"github.com/hyperjump/clusterizer/internal/runner"
	"github.com/hyperjump/clusterizer/internal/storage"
	"github.com/hyperjump/clusterizer/internal/tabular"
	"github.com/hyperjump/clusterizer/internal/transform"
	"github.com/hyperjump/clusterizer/test/e2e"
)

func TestIntegration_ClusterDirectory(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")
	if err := os.MkdirAll(artifacts, 0755); err != nil {
		t.Fatal(err)
	}
	population := e2e.BuildPopulation(20)
	if err := e2e.BuildArtifacts(population).WriteDir(artifacts, transform.DefaultArtifactNames()); err != nil {
		t.Fatal(err)
	}
	provider := transform.NewProvider(func(ctx context.Context) (*transform.Store, error) {
		return transform.Load(ctx, &transform.LocalSource{Dir: artifacts}, transform.DefaultArtifactNames())
	})
	pipe := pipeline.New(provider, features.NewBuilder(features.WithReferenceDate(e2e.ReferenceDate)))

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	idx, err := clientindex.NewBleveIndex(filepath.Join(dir, "clients"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	inbox := filepath.Join(dir, "inbox")
	outbox := filepath.Join(dir, "outbox")
	if err := os.MkdirAll(filepath.Join(inbox, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	csvBody := e2e.EncodeCSV(population.Columns(), population.Rows())
	xlsxBody, err := e2e.EncodeXLSX(population.Columns(), population.Rows())
	if err != nil {
		t.Fatal(err)
	}
	files := map[string][]byte{
		filepath.Join(inbox, "a.csv"):           csvBody,
		filepath.Join(inbox, "nested", "b.xlsx"): xlsxBody,
		filepath.Join(inbox, "notes.txt"):       []byte("ignored"),
	}
	for path, body := range files {
		if err := os.WriteFile(path, body, 0644); err != nil {
			t.Fatal(err)
		}
	}

	run := runner.New(pipe,
		runner.WithStorage(store),
		runner.WithClientIndex(idx),
		runner.WithOutputDir(outbox),
		runner.WithOutputFormat(tabular.FormatXLSX))
	ctx := context.Background()

	n, err := run.ClusterDirectory(ctx, inbox, tabular.SupportedExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("clustered %d files, want 2", n)
	}
	for _, name := range []string{"a.clustered.xlsx", "b.clustered.xlsx"} {
		raw, err := tabular.NewReader().Read(filepath.Join(outbox, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if raw.Len() != 20 || raw.ColumnIndex(tabular.ColumnCluster) < 0 {
			t.Errorf("%s: %d rows, columns %v", name, raw.Len(), raw.Columns)
		}
	}

	// A second pass finds nothing new.
	n, err = run.ClusterDirectory(ctx, inbox, tabular.SupportedExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass clustered %d files, want 0", n)
	}

	// Touching a file makes it a new version.
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(filepath.Join(inbox, "a.csv"), later, later); err != nil {
		t.Fatal(err)
	}
	n, err = run.ClusterDirectory(ctx, inbox, tabular.SupportedExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("after touch clustered %d files, want 1", n)
	}

	runs, err := store.CountRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
	docs, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if docs != 20 {
		t.Errorf("indexed clients = %d, want 20 (latest assignment per client)", docs)
	}

	purged, err := run.Purge(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 3 {
		t.Errorf("purged %d runs, want 3", purged)
	}
}
