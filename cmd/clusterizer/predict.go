package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/clusterizer/internal/cli"
	"github.com/hyperjump/clusterizer/internal/tabular"
	"github.com/spf13/cobra"
)

var (
	predictOut      string
	predictFormat   string
	predictFeatures bool
	predictRecord   bool
	predictOutput   string
)

var predictCmd = &cobra.Command{
	Use:   "predict <file-or-directory>",
	Short: "Cluster a spreadsheet without the server",
	Long: `Cluster a .csv or .xlsx file and write the result table. For a directory every
supported file is clustered and written next to its input (or to watch.output_dir).

With --record the run is stored and its clients indexed; do not combine it with a running
server that holds the same database.`,
	Example: `  clusterizer predict clients.xlsx
  clusterizer predict --format xlsx --out segments.xlsx clients.csv
  clusterizer predict --features --output json clients.csv
  clusterizer predict --record ./exports`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd, args[0])
	},
}

func init() {
	predictCmd.Flags().StringVarP(&predictOut, "out", "o", "", "result file path (default: <input>.clustered.<format>)")
	predictCmd.Flags().StringVar(&predictFormat, "format", "csv", "result format: csv, xlsx or json")
	predictCmd.Flags().BoolVar(&predictFeatures, "features", false, "include the model feature columns in the result")
	predictCmd.Flags().BoolVar(&predictRecord, "record", false, "store the run and index its clients")
	predictCmd.Flags().StringVar(&predictOutput, "output", "text", "summary format: text or json")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, path string) error {
	format, err := tabular.ParseFormat(predictFormat)
	if err != nil {
		return err
	}
	outFormat, err := cli.ParseOutputFormat(predictOutput)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg.Watch.Format = string(format)

	components, err := initializeComponents(cfg, logger, predictRecord)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if info.IsDir() {
		n, err := components.Runner.ClusterDirectory(ctx, path, cfg.Watch.Extensions)
		if err != nil {
			return fmt.Errorf("clustering directory failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Clustered %d file(s) from %s\n", n, path)
		return nil
	}

	run := components.Runner
	raw, err := run.Reader().Read(path)
	if err != nil {
		return err
	}
	pred, err := run.ClusterTable(ctx, raw, filepath.Base(path))
	if err != nil {
		return err
	}

	out := predictOut
	if out == "" {
		out = run.OutputPath(path)
	}
	body, err := tabular.NewWriter(tabular.WriteOptions{IncludeFeatures: predictFeatures}).Bytes(format, pred)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, body, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return cli.WritePrediction(cmd.OutOrStdout(), pred, out, outFormat)
}
