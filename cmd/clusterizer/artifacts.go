package main

import (
	"context"
	"time"

	"github.com/hyperjump/clusterizer/internal/cli"
	"github.com/hyperjump/clusterizer/internal/transform"
	"github.com/spf13/cobra"
)

var artifactsOutput string

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Model artifact operations",
}

var artifactsInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load and validate the configured artifacts",
	Long: `Fetch the scaler, reference embedding and centroid artifacts from the configured
source, validate them against each other and print what they contain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(artifactsOutput)
		if err != nil {
			return err
		}
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		src, err := transform.NewSource(ctx, sourceConfig(cfg))
		if err != nil {
			return err
		}
		store, err := transform.Load(ctx, src, artifactNames(cfg), transform.WithLogger(logger))
		if err != nil {
			return err
		}
		return cli.WriteArtifacts(cmd.OutOrStdout(), store.Info(), store.Scaler().FeatureNames(), format)
	},
}

func init() {
	artifactsInspectCmd.Flags().StringVar(&artifactsOutput, "output", "text", "output format: text or json")
	artifactsCmd.AddCommand(artifactsInspectCmd)
	rootCmd.AddCommand(artifactsCmd)
}
