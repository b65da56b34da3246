package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/xuri/excelize/v2"
)

// Format is an output encoding for a prediction.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Result column names appended after the client fields.
const (
	ColumnCluster = "Cluster"
	ColumnUMAP1   = "UMAP_1"
	ColumnUMAP2   = "UMAP_2"
	ColumnOOD     = "OOD"
)

// DownloadBase is the file name stem of rendered results.
const DownloadBase = "clustered_users"

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: output format %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension for f, with the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Filename is the attachment name for a rendered result.
func (f Format) Filename() string {
	return DownloadBase + f.Extension()
}

// WriteOptions control which columns are rendered.
type WriteOptions struct {
	// IncludeFeatures adds the numeric model inputs between client fields and results.
	IncludeFeatures bool
}

// Writer renders predictions.
type Writer struct {
	opts WriteOptions
}

// NewWriter returns a Writer using opts.
func NewWriter(opts WriteOptions) *Writer {
	return &Writer{opts: opts}
}

// Write renders p to w in format f.
func (wr *Writer) Write(w io.Writer, f Format, p *models.Prediction) error {
	switch f {
	case FormatCSV:
		return wr.writeCSV(w, p)
	case FormatXLSX:
		return wr.writeXLSX(w, p)
	case FormatJSON:
		return wr.writeJSON(w, p)
	}
	return fmt.Errorf("%w: output format %q", ErrUnsupportedFormat, f)
}

// Bytes renders p in format f and returns the encoded body.
func (wr *Writer) Bytes(f Format, p *models.Prediction) ([]byte, error) {
	var buf bytes.Buffer
	if err := wr.Write(&buf, f, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// featureColumn maps an output column to its position in Assignment.Features.
type featureColumn struct {
	name string
	pos  int
}

// featureColumns returns model inputs that are not already rendered as client fields.
func (wr *Writer) featureColumns(p *models.Prediction) []featureColumn {
	if !wr.opts.IncludeFeatures {
		return nil
	}
	client := make(map[string]struct{}, len(models.ClientFieldNames))
	for _, n := range models.ClientFieldNames {
		client[n] = struct{}{}
	}
	var cols []featureColumn
	for i, n := range p.FeatureNames {
		if _, ok := client[n]; ok {
			continue
		}
		cols = append(cols, featureColumn{name: n, pos: i})
	}
	return cols
}

// Header returns the output column names for p.
func (wr *Writer) Header(p *models.Prediction) []string {
	header := append([]string{}, models.ClientFieldNames...)
	for _, c := range wr.featureColumns(p) {
		header = append(header, c.name)
	}
	return append(header, ColumnCluster, ColumnUMAP1, ColumnUMAP2, ColumnOOD)
}

func (wr *Writer) record(a *models.Assignment, cols []featureColumn) []string {
	rec := a.Client.Values()
	for _, c := range cols {
		v := math.NaN()
		if c.pos < len(a.Features) {
			v = a.Features[c.pos]
		}
		rec = append(rec, formatFloat(v))
	}
	return append(rec,
		strconv.Itoa(a.Cluster),
		formatFloat(a.UMAP1),
		formatFloat(a.UMAP2),
		strconv.FormatBool(a.OutOfDistribution),
	)
}

func (wr *Writer) writeCSV(w io.Writer, p *models.Prediction) error {
	cw := csv.NewWriter(w)
	cols := wr.featureColumns(p)
	if err := cw.Write(wr.Header(p)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range p.Assignments {
		if err := cw.Write(wr.record(a, cols)); err != nil {
			return fmt.Errorf("write csv row %d: %w", a.Row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Clusters"

func (wr *Writer) writeXLSX(w io.Writer, p *models.Prediction) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	header := wr.Header(p)
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := sw.SetRow("A1", row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	cols := wr.featureColumns(p)
	for i, a := range p.Assignments {
		row := make([]interface{}, 0, len(header))
		for _, v := range a.Client.Values() {
			row = append(row, v)
		}
		for _, c := range cols {
			if c.pos < len(a.Features) && !math.IsNaN(a.Features[c.pos]) {
				row = append(row, a.Features[c.pos])
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, a.Cluster, a.UMAP1, a.UMAP2, a.OutOfDistribution)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", a.Row, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// jsonRecord is one output row. Field order follows Header.
type jsonRecord map[string]interface{}

func (wr *Writer) writeJSON(w io.Writer, p *models.Prediction) error {
	cols := wr.featureColumns(p)
	records := make([]jsonRecord, 0, len(p.Assignments))
	for _, a := range p.Assignments {
		rec := make(jsonRecord, len(models.ClientFieldNames)+len(cols)+4)
		for i, v := range a.Client.Values() {
			rec[models.ClientFieldNames[i]] = v
		}
		for _, c := range cols {
			if c.pos < len(a.Features) && !math.IsNaN(a.Features[c.pos]) {
				rec[c.name] = a.Features[c.pos]
			} else {
				rec[c.name] = nil
			}
		}
		rec[ColumnCluster] = a.Cluster
		rec[ColumnUMAP1] = a.UMAP1
		rec[ColumnUMAP2] = a.UMAP2
		rec[ColumnOOD] = a.OutOfDistribution
		records = append(records, rec)
	}
	body := struct {
		RunID   string         `json:"run_id"`
		Columns []string       `json:"columns"`
		Rows    []jsonRecord   `json:"rows"`
		Summary models.Summary `json:"summary"`
	}{p.RunID, wr.Header(p), records, p.Summary}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
