package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyperjump/clusterizer/internal/cli"
	"github.com/hyperjump/clusterizer/internal/retention"
	"github.com/hyperjump/clusterizer/internal/storage"
	"github.com/spf13/cobra"
)

var (
	statusServer string
	statusOutput string
	runsLimit    int
	runsOutput   string
	purgeDays    int
)

// statusModel is the model part of GET /api/v1/status.
type statusModel struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	NClusters  int    `json:"n_clusters,omitempty"`
	Features   int    `json:"n_features,omitempty"`
	References int    `json:"n_references,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Model            *statusModel      `json:"model,omitempty"`
	Runs             int64             `json:"runs"`
	Assignments      int64             `json:"assignments"`
	IndexedClients   uint64            `json:"indexed_clients"`
	DiskUsageBytes   *int64            `json:"disk_usage_bytes,omitempty"`
	WatchDirectories []string          `json:"watch_directories,omitempty"`
	Retention        *retention.Status `json:"retention,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model, run store and client index status",
	Long: `Query a running server for its status. With --server "" the run store and
client index are opened directly; only do that when no server holds them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(statusOutput)
		if err != nil {
			return err
		}
		var status *statusResponse
		if statusServer != "" {
			status, err = statusViaHTTP(statusServer)
		} else {
			status, err = statusDirect()
		}
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return writeStatus(cmd.OutOrStdout(), status, format)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(runsOutput)
		if err != nil {
			return err
		}
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()
		runs, err := store.ListRuns(context.Background(), 0, runsLimit)
		if err != nil {
			return err
		}
		return cli.WriteRuns(cmd.OutOrStdout(), runs, format)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		days := cfg.Storage.RetentionDays
		if purgeDays > 0 {
			days = purgeDays
		}
		components, err := initializeComponents(cfg, logger, true)
		if err != nil {
			return err
		}
		defer components.Close()
		sched, err := retention.New(components.Runner, days, cfg.Storage.RetentionSchedule, retention.WithLogger(logger))
		if err != nil {
			return err
		}
		n, err := sched.RunNow(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d run(s) created before %s\n", n, sched.Cutoff().Format(time.RFC3339))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", `server URL ("" = open storage directly)`)
	statusCmd.Flags().StringVar(&statusOutput, "output", "text", "output format: text or json")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to list")
	runsCmd.Flags().StringVar(&runsOutput, "output", "text", "output format: text or json")
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "retention period in days (default: storage.retention_days)")
	rootCmd.AddCommand(statusCmd, runsCmd, purgeCmd)
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func statusDirect() (*statusResponse, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	s := &statusResponse{WatchDirectories: cfg.Watch.Directories}
	if info, err := components.Pipeline.Info(ctx); err != nil {
		s.Model = &statusModel{Status: "error", Error: err.Error()}
	} else {
		s.Model = &statusModel{Status: info.Status, NClusters: info.NClusters, Features: info.Features, References: info.References}
	}
	if s.Runs, err = components.Storage.CountRuns(ctx); err != nil {
		return nil, err
	}
	if s.Assignments, err = components.Storage.CountAssignments(ctx); err != nil {
		return nil, err
	}
	if s.IndexedClients, err = components.ClientIndex.DocCount(); err != nil {
		return nil, err
	}
	paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.BleveIndexPath)
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		s.DiskUsageBytes = &n
	}
	return s, nil
}

func writeStatus(w io.Writer, s *statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	if s.Model != nil {
		if s.Model.Error != "" {
			fmt.Fprintf(w, "model:            %s (%s)\n", s.Model.Status, s.Model.Error)
		} else {
			fmt.Fprintf(w, "model:            %s   # %d clusters, %d features, %d references\n",
				s.Model.Status, s.Model.NClusters, s.Model.Features, s.Model.References)
		}
	}
	fmt.Fprintf(w, "runs:             %d\n", s.Runs)
	fmt.Fprintf(w, "assignments:      %d\n", s.Assignments)
	fmt.Fprintf(w, "indexed_clients:  %d\n", s.IndexedClients)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes: %d   # run store + client index on disk\n", *s.DiskUsageBytes)
	}
	for _, d := range s.WatchDirectories {
		fmt.Fprintf(w, "watching:         %s\n", d)
	}
	if s.Retention != nil {
		fmt.Fprintf(w, "retention:        %d days, schedule %q\n", s.Retention.RetentionDays, s.Retention.Schedule)
		if !s.Retention.LastRun.IsZero() {
			fmt.Fprintf(w, "last purge:       %s (%d runs)\n", s.Retention.LastRun.Format(time.RFC3339), s.Retention.LastPurged)
		}
	}
	return nil
}
