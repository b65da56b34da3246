package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/clusterizer/internal/models"
)

// Kind is the semantic type of an input column.
type Kind int

const (
	KindNumeric Kind = iota
	KindIdentifier
	KindDate
	KindCategorical
	KindFreeText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindIdentifier:
		return "identifier"
	case KindDate:
		return "date"
	case KindCategorical:
		return "categorical"
	case KindFreeText:
		return "free_text"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Column is a declared input column.
type Column struct {
	Name string
	Kind Kind
}

// Schema declares every non-numeric input column. Columns not listed are numeric.
var Schema = []Column{
	{Name: "IdUnico", Kind: KindIdentifier},
	{Name: "Fecha_Ingreso", Kind: KindDate},
	{Name: "Fecha_Nacimiento", Kind: KindDate},
	{Name: "Nombre_Estado", Kind: KindCategorical},
	{Name: "Nombre_Tipo_Vinculacion", Kind: KindCategorical},
	{Name: "Estado_Civil", Kind: KindCategorical},
	{Name: "Sexo", Kind: KindCategorical},
	{Name: "Estrato", Kind: KindCategorical},
	{Name: "Nombre_Tipo_Vivienda", Kind: KindCategorical},
	{Name: "Nombre_Nivel_Academico", Kind: KindCategorical},
	{Name: "Nombre_Ocupacion", Kind: KindCategorical},
	{Name: "Nombre_Titulo_Obtenido", Kind: KindFreeText},
	{Name: "Zona", Kind: KindFreeText},
}

var schemaKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(Schema))
	for _, c := range Schema {
		m[c.Name] = c.Kind
	}
	return m
}()

// KindOf returns the declared kind of a column.
func KindOf(name string) Kind {
	if k, ok := schemaKinds[name]; ok {
		return k
	}
	return KindNumeric
}

// ErrDuplicateColumn is returned when the input header names a column twice.
var ErrDuplicateColumn = errors.New("duplicate column")

const maxReportedIssues = 50

// CoercionReport collects cells that could not be converted to their declared kind.
// Only the first issues are kept; Total counts all of them.
type CoercionReport struct {
	Issues []models.CoercionIssue
	Total  int
}

func (r *CoercionReport) add(issue models.CoercionIssue) {
	r.Total++
	if len(r.Issues) < maxReportedIssues {
		r.Issues = append(r.Issues, issue)
	}
}

// cell is one reified input value. Null covers both missing and unconvertible cells;
// an unconvertible cell keeps its raw text.
type cell struct {
	Null bool
	Num  float64
	Date time.Time
	Text string
}

// reified is a raw table with the columns of interest converted to their declared kinds.
type reified struct {
	cols map[string][]cell
	rows int
}

func (r *reified) column(name string) ([]cell, bool) {
	c, ok := r.cols[name]
	return c, ok
}

// reify converts the raw columns accepted by keep. Failed conversions are recorded in report.
func reify(raw *models.RawTable, keep func(string) bool, report *CoercionReport) (*reified, error) {
	seen := make(map[string]struct{}, len(raw.Columns))
	for _, name := range raw.Columns {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		seen[name] = struct{}{}
	}

	out := &reified{cols: make(map[string][]cell), rows: raw.Len()}
	for col, name := range raw.Columns {
		if !keep(name) {
			continue
		}
		kind := KindOf(name)
		cells := make([]cell, raw.Len())
		for row := range cells {
			v := raw.Cell(row, col)
			if models.IsNull(v) {
				cells[row] = cell{Null: true, Num: math.NaN()}
				continue
			}
			c, ok := convert(kind, v)
			if !ok {
				report.add(models.CoercionIssue{Column: name, Row: row, Value: v, Kind: kind.String()})
				c = cell{Null: true, Num: math.NaN(), Text: v}
			}
			cells[row] = c
		}
		out.cols[name] = cells
	}
	return out, nil
}

func convert(kind Kind, v string) (cell, bool) {
	switch kind {
	case KindNumeric:
		f, ok := parseNumber(v)
		return cell{Num: f, Text: v}, ok
	case KindDate:
		d, ok := parseDate(v)
		return cell{Date: d, Text: v}, ok
	case KindCategorical:
		return cell{Text: categoryValue(v)}, true
	default:
		return cell{Text: v}, true
	}
}

func parseNumber(v string) (float64, bool) {
	s := strings.TrimSpace(v)
	switch strings.ToLower(s) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN(), false
	}
	return f, true
}

// categoryValue renders integral numbers without a fractional part so "2.0" and "2"
// produce the same indicator.
func categoryValue(v string) string {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return v
}
