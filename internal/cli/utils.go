// Package cli provides output helpers for the clusterizer commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/hyperjump/clusterizer/internal/transform"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// predictionReport is the JSON shape of WritePrediction.
type predictionReport struct {
	RunID   string         `json:"run_id"`
	Source  string         `json:"source"`
	Output  string         `json:"output,omitempty"`
	Summary models.Summary `json:"summary"`
}

// WritePrediction writes the summary of a finished prediction. output is where the
// clustered table was written, if anywhere.
func WritePrediction(w io.Writer, p *models.Prediction, output string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, predictionReport{RunID: p.RunID, Source: p.Source, Output: output, Summary: p.Summary})
	}
	s := p.Summary
	fmt.Fprintf(w, "\nRun %s (%s)\n", p.RunID, p.Source)
	fmt.Fprintf(w, "rows in:               %d\n", s.RowsIn)
	fmt.Fprintf(w, "missing required:      %d\n", s.RowsMissingRequired)
	fmt.Fprintf(w, "incomplete features:   %d\n", s.RowsIncomplete)
	fmt.Fprintf(w, "rows clustered:        %d\n", s.RowsOut)
	if s.OutOfDistribution > 0 {
		fmt.Fprintf(w, "out of distribution:   %d\n", s.OutOfDistribution)
	}
	if s.CoercionCount > 0 {
		fmt.Fprintf(w, "coerced values:        %d\n", s.CoercionCount)
	}
	if len(s.Clusters) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CLUSTER\tCOUNT\tPERCENT")
		for _, c := range s.Clusters {
			fmt.Fprintf(tw, "%d\t%d\t%.1f%%\n", c.Cluster, c.Count, c.Percent)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if output != "" {
		fmt.Fprintf(w, "\nwritten to %s\n", output)
	}
	return nil
}

// WriteArtifacts describes a loaded artifact store.
func WriteArtifacts(w io.Writer, info transform.Info, featureNames []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			transform.Info
			FeatureNames []string `json:"feature_names"`
		}{info, featureNames})
	}
	fmt.Fprintf(w, "location:        %s\n", info.Location)
	fmt.Fprintf(w, "features:        %d\n", info.Features)
	fmt.Fprintf(w, "references:      %d\n", info.References)
	fmt.Fprintf(w, "clusters:        %d\n", info.Clusters)
	fmt.Fprintf(w, "components:      %d\n", info.Components)
	fmt.Fprintf(w, "index algorithm: %s\n", info.Algorithm)
	if len(featureNames) > 0 {
		fmt.Fprintf(w, "feature names:   %s\n", Truncate(strings.Join(featureNames, ", "), 200))
	}
	return nil
}

// WriteRuns lists persisted runs, newest first.
func WriteRuns(w io.Writer, runs []*models.Run, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.Run{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tROWS\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"),
			r.Summary.RowsOut, r.Summary.RowsIn, Truncate(r.Source, 60))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
