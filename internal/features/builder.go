// Package features turns raw customer spreadsheets into fixed-width numeric feature vectors.
package features

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hyperjump/clusterizer/internal/models"
	"go.uber.org/zap"
)

// ErrNoRows is returned when no row survives cleaning.
var ErrNoRows = errors.New("no valid rows after cleaning")

// FeatureTable is the numeric table produced by Build, row-aligned with the preserved
// client fields. Positions of preserved text fields hold NaN.
type FeatureTable struct {
	Names   []string
	Rows    [][]float64
	Clients []models.ClientFields
	// SourceRows maps each row back to its zero-based row in the raw table.
	SourceRows          []int
	RowsIn              int
	RowsMissingRequired int
	Report              CoercionReport

	index map[string]int
}

// Len returns the number of retained rows.
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *FeatureTable) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Value returns the named feature of row, or NaN if the name is unknown.
func (t *FeatureTable) Value(row int, name string) float64 {
	i := t.ColumnIndex(name)
	if i < 0 {
		return math.NaN()
	}
	return t.Rows[row][i]
}

// Builder builds feature tables. It is immutable and safe for concurrent use.
type Builder struct {
	refDate  time.Time
	names    []string
	index    map[string]int
	taxonomy *Taxonomy
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithReferenceDate sets the date that tenure and age are measured against.
func WithReferenceDate(d time.Time) BuilderOption {
	return func(b *Builder) {
		if !d.IsZero() {
			b.refDate = truncateDay(d)
		}
	}
}

// WithFeatureNames overrides the frozen feature-name list.
func WithFeatureNames(names []string) BuilderOption {
	return func(b *Builder) {
		if len(names) > 0 {
			b.names = names
		}
	}
}

// WithTaxonomy sets the title and region lookup tables.
func WithTaxonomy(t *Taxonomy) BuilderOption {
	return func(b *Builder) {
		if t != nil {
			b.taxonomy = t
		}
	}
}

// WithLogger sets the logger for the builder.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder. Defaults: today's date, FeatureNames, DefaultTaxonomy.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		refDate:  truncateDay(time.Now()),
		names:    FeatureNames,
		taxonomy: DefaultTaxonomy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.index = make(map[string]int, len(b.names))
	for i, n := range b.names {
		b.index[n] = i
	}
	return b
}

// ReferenceDate returns the date tenure and age are computed against.
func (b *Builder) ReferenceDate() time.Time {
	return b.refDate
}

// FeatureNames returns the frozen feature-name list.
func (b *Builder) FeatureNames() []string {
	return b.names
}

// Build converts raw into a FeatureTable. Rows missing any required field are rejected.
// Columns of the frozen list that are absent from raw are zero-filled.
func (b *Builder) Build(raw *models.RawTable) (*FeatureTable, error) {
	if raw == nil || raw.Len() == 0 {
		return nil, fmt.Errorf("%w: input has no data rows", ErrNoRows)
	}

	dropped := toSet(redundantColumns, unusedProductColumns)
	required := toSet(RequiredFields)
	keep := func(name string) bool {
		if _, ok := dropped[name]; ok {
			return false
		}
		if isDerived(name) {
			return false
		}
		if _, ok := schemaKinds[name]; ok {
			return true
		}
		if _, ok := required[name]; ok {
			return true
		}
		_, ok := b.index[name]
		return ok || name == colIngresosDefl
	}

	ft := &FeatureTable{Names: b.names, RowsIn: raw.Len(), index: b.index}
	cols, err := reify(raw, keep, &ft.Report)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("reified input",
		zap.Int("rows", cols.rows),
		zap.Int("columns", len(cols.cols)),
		zap.Int("coercion_failures", ft.Report.Total))

	var absentRequired []string
	for _, name := range RequiredFields {
		if _, ok := cols.column(name); !ok {
			absentRequired = append(absentRequired, name)
		}
	}

	for row := 0; row < cols.rows; row++ {
		if len(absentRequired) > 0 || !b.hasRequired(cols, row) {
			ft.RowsMissingRequired++
			continue
		}
		vec, client := b.buildRow(cols, row)
		ft.Rows = append(ft.Rows, vec)
		ft.Clients = append(ft.Clients, client)
		ft.SourceRows = append(ft.SourceRows, row)
	}

	if ft.RowsMissingRequired > 0 {
		b.logger.Warn("rows rejected for missing required fields",
			zap.Int("rejected", ft.RowsMissingRequired),
			zap.Strings("required", RequiredFields))
	}
	if ft.Report.Total > 0 {
		b.logger.Warn("cells could not be converted",
			zap.Int("count", ft.Report.Total))
	}
	if len(ft.Rows) == 0 {
		if len(absentRequired) > 0 {
			return nil, fmt.Errorf("%w: required columns absent: %s", ErrNoRows, strings.Join(absentRequired, ", "))
		}
		return nil, fmt.Errorf("%w: all %d rows miss a required field (%s)", ErrNoRows, ft.RowsIn, strings.Join(RequiredFields, ", "))
	}

	b.logger.Info("features built",
		zap.Int("rows_in", ft.RowsIn),
		zap.Int("rows_out", len(ft.Rows)),
		zap.Int("features", len(b.names)))
	return ft, nil
}

func (b *Builder) hasRequired(cols *reified, row int) bool {
	for _, name := range RequiredFields {
		c, _ := cols.column(name)
		if c[row].Null {
			return false
		}
	}
	return true
}

// isDerived reports whether name is computed from other columns. Input columns with
// these names are ignored.
func isDerived(name string) bool {
	return name == colRegion || name == colAreaTitulo
}

func (b *Builder) set(vec []float64, name string, v float64) {
	if i, ok := b.index[name]; ok {
		vec[i] = v
	}
}

func (b *Builder) buildRow(cols *reified, row int) ([]float64, models.ClientFields) {
	vec := make([]float64, len(b.names))
	var client models.ClientFields

	// Numeric columns, verbatim. Nulls stay NaN.
	for name, cells := range cols.cols {
		if KindOf(name) == KindNumeric {
			b.set(vec, name, cells[row].Num)
		}
	}

	b.deriveLog(vec, cols, row, colLogIngresos, colIngresos)
	b.deriveLog(vec, cols, row, colLogIngresosDefl, colIngresosDefl)

	if c, ok := cols.column(colFechaIngreso); ok {
		v := math.NaN()
		if !c[row].Null {
			v = daysBetween(c[row].Date, b.refDate)
		}
		b.set(vec, colAntiguedadDias, v)
	}
	if c, ok := cols.column(colFechaNacimiento); ok {
		v := math.NaN()
		if !c[row].Null {
			v = yearsBetween(c[row].Date, b.refDate)
		}
		b.set(vec, colEdad, v)
	}

	for _, name := range CategoricalColumns {
		c, ok := cols.column(name)
		if !ok || c[row].Null {
			continue
		}
		b.set(vec, name+"_"+c[row].Text, 1)
	}

	if c, ok := cols.column(colZona); ok {
		region := OtherCategory
		if !c[row].Null {
			region = b.taxonomy.ClassifyCity(c[row].Text)
		}
		b.set(vec, region, 1)
		client.Region = region
	}
	if c, ok := cols.column(colTitulo); ok {
		area := OtherCategory
		if !c[row].Null {
			area = b.taxonomy.ClassifyTitle(c[row].Text)
		}
		if area == OtherCategory {
			b.set(vec, titleOtherIndicator, 1)
		} else {
			b.set(vec, area, 1)
		}
		client.AreaTitulo = area
	}

	for _, name := range models.ClientFieldNames {
		b.set(vec, name, math.NaN())
		if isDerived(name) {
			continue
		}
		c, ok := cols.column(name)
		if !ok {
			continue
		}
		cl := c[row]
		switch {
		case cl.Null:
			client.Set(name, cl.Text)
		case KindOf(name) == KindDate:
			client.Set(name, formatDate(cl.Date))
		default:
			client.Set(name, cl.Text)
		}
	}
	return vec, client
}

// deriveLog fills dst with log(src) unless dst was supplied by the input.
// log of a non-positive or missing source is NaN, zero-filled in the vector.
func (b *Builder) deriveLog(vec []float64, cols *reified, row int, dst, src string) {
	if _, provided := cols.column(dst); provided {
		return
	}
	c, ok := cols.column(src)
	if !ok {
		return
	}
	lv := math.NaN()
	if v := c[row]; !v.Null && v.Num > 0 {
		lv = math.Log(v.Num)
	}
	// Reindexing zero-fills a derived NaN; only input-provided nulls stay null.
	if math.IsNaN(lv) {
		lv = 0
	}
	b.set(vec, dst, lv)
}
