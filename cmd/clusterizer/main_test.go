package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/clusterizer/internal/cli"
	"github.com/hyperjump/clusterizer/internal/config"
	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/hyperjump/clusterizer/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientsCSV = "IdUnico;Saldo_aportes;Cuotas_canceladas_aportes;Cuotas_mora_aportes;Vlr_mora;Ingresos\n" +
	"a;1;1;0;0;1\n" +
	"b;99;1;0;0;100\n"

// writeFixture writes artifacts, a config and an input file into a temp dir and
// returns the config path and the input path.
func writeFixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "artifacts")
	require.NoError(t, os.MkdirAll(artifactsDir, 0755))
	a := transform.NewArtifacts([]string{"Saldo_aportes", "Ingresos"},
		[]float64{0, 0}, []float64{1, 1},
		[][]float64{{0, 0}, {100, 100}}, [][2]float64{{1, 1}, {9, 9}}, "kdtree",
		[][2]float64{{0, 0}, {10, 10}})
	require.NoError(t, a.WriteDir(artifactsDir, transform.DefaultArtifactNames()))

	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
artifacts:
  dir: %q
features:
  reference_date: "2024-01-01"
storage:
  database_path: %q
  bleve_index_path: %q
`, artifactsDir, filepath.Join(dir, "runs.db"), filepath.Join(dir, "clients.bleve"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	input := filepath.Join(dir, "clients.csv")
	require.NoError(t, os.WriteFile(input, []byte(clientsCSV), 0644))
	return configPath, input
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	predictOut, predictFormat, predictFeatures, predictRecord, predictOutput = "", "csv", false, false, "text"
	runsOutput, runsLimit = "text", 20
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./runs.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	origWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(origWd) }()
	require.NoError(t, os.Chdir(dir))

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// t.TempDir() may sit behind a symlink (macOS /var -> /private/var).
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "runs.db", filepath.Base(cfg.Storage.DatabasePath))
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadConfig_invalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("artifacts:\n  source: ftp\n"), 0600))

	_, _, err := loadConfig(configPath)
	assert.Error(t, err)
}

func TestSourceConfig(t *testing.T) {
	cfg := &config.Config{Artifacts: config.ArtifactsConfig{
		Source: "minio", Endpoint: "minio:9000", Bucket: "models", Prefix: "v3", UseSSL: true,
		Scaler: "s.json", Embedding: "e.json.zst", Centroids: "c.json",
	}}
	sc := sourceConfig(cfg)
	assert.Equal(t, "minio", sc.Kind)
	assert.Equal(t, "models", sc.Bucket)
	assert.Equal(t, "v3", sc.Prefix)
	assert.True(t, sc.UseSSL)
	assert.Equal(t, transform.ArtifactNames{Scaler: "s.json", Embedding: "e.json.zst", Centroids: "c.json"}, artifactNames(cfg))
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"server"}, {"predict"}, {"artifacts", "inspect"}, {"status"}, {"runs"}, {"purge"}, {"version"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "clusterizer version dev")
}

func TestArtifactsInspect(t *testing.T) {
	configPath, _ := writeFixture(t)
	out, err := execute(t, "--config", configPath, "artifacts", "inspect", "--output", "json")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	assert.Equal(t, float64(2), decoded["clusters"])
	assert.Equal(t, "kdtree", decoded["index_algorithm"])
}

func TestPredictCommand(t *testing.T) {
	configPath, input := writeFixture(t)
	out, err := execute(t, "--config", configPath, "predict", input)
	require.NoError(t, err)
	assert.Contains(t, out, "rows clustered:        2")

	result := strings.TrimSuffix(input, ".csv") + ".clustered.csv"
	f, err := os.Open(result)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Contains(t, records[0], "Cluster")
}

func TestPredictCommand_RecordThenListRuns(t *testing.T) {
	configPath, input := writeFixture(t)
	out := filepath.Join(filepath.Dir(input), "segments.json")
	_, err := execute(t, "--config", configPath, "predict", "--record", "--format", "json", "--out", out, input)
	require.NoError(t, err)
	assert.FileExists(t, out)

	listed, err := execute(t, "--config", configPath, "runs", "--output", "json")
	require.NoError(t, err)
	var runs []*models.Run
	require.NoError(t, json.Unmarshal([]byte(listed), &runs), listed)
	require.Len(t, runs, 1)
	assert.Equal(t, "clients.csv", runs[0].Source)
	assert.Equal(t, 2, runs[0].Summary.RowsOut)
}

func TestStatusViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"model":{"status":"loaded","n_clusters":4},"runs":3,"assignments":120,"indexed_clients":90,"disk_usage_bytes":2048}`))
	}))
	defer ts.Close()

	s, err := statusViaHTTP(ts.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Runs)
	assert.Equal(t, uint64(90), s.IndexedClients)
	require.NotNil(t, s.Model)
	assert.Equal(t, 4, s.Model.NClusters)

	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, s, cli.OutputText))
	assert.Contains(t, buf.String(), "disk_usage_bytes: 2048")

	_, err = statusViaHTTP(ts.URL + "/missing")
	assert.Error(t, err)
}
