package e2e

import (
	"bytes"
	"encoding/csv"
	"math"

	"github.com/hyperjump/clusterizer/internal/transform"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"
)

// ModelFeatures are the columns the fixture model was fit on.
var ModelFeatures = []string{"Saldo_aportes", "Ingresos", "Edad", "Creditos"}

// GroupCentroids are the 2-D cluster centers; group g embeds around GroupCentroids[g].
var GroupCentroids = [][2]float64{{0, 0}, {10, 10}}

// EncodeCSV renders a table as CSV.
func EncodeCSV(columns []string, rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(columns)
	_ = w.WriteAll(rows)
	return buf.Bytes()
}

// EncodeXLSX renders a table as a single-sheet workbook.
func EncodeXLSX(columns []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for c, name := range columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildArtifacts fits a scaler on the population and uses its standardized vectors as
// the reference set. Each reference sits within half a unit of its group's centroid.
func BuildArtifacts(p *Population) *transform.Artifacts {
	vectors := p.FeatureVectors()
	d := len(ModelFeatures)
	mean := make([]float64, d)
	scale := make([]float64, d)
	col := make([]float64, len(vectors))
	for j := 0; j < d; j++ {
		for i, v := range vectors {
			col[i] = v[j]
		}
		m, s := stat.MeanStdDev(col, nil)
		mean[j] = m
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		scale[j] = s
	}

	reference := make([][]float64, len(vectors))
	coords := make([][2]float64, len(vectors))
	for i, v := range vectors {
		z := make([]float64, d)
		for j := range v {
			z[j] = (v[j] - mean[j]) / scale[j]
		}
		reference[i] = z
		c := GroupCentroids[p.Clients[i].Group]
		offset := float64(i%5)/5 - 0.4
		coords[i] = [2]float64{c[0] + offset, c[1] - offset}
	}
	return transform.NewArtifacts(ModelFeatures, mean, scale, reference, coords, "kdtree", GroupCentroids)
}
