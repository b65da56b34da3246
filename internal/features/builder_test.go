package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var refDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	return NewBuilder(WithReferenceDate(refDate), WithLogger(zap.NewNop()))
}

func sampleTable() *models.RawTable {
	return &models.RawTable{
		Columns: []string{
			"IdUnico", "Fecha_Ingreso", "Fecha_Nacimiento", "Sexo", "Estrato", "Zona",
			"Nombre_Titulo_Obtenido", "Saldo_aportes", "Cuotas_canceladas_aportes",
			"Cuotas_mora_aportes", "Vlr_mora", "Ingresos", "Ingresos_Deflactados", "Cta_Dep", "Estado",
		},
		Rows: [][]string{
			{"A1", "01/15/2020", "06/30/1990", "M", "2.0", " bogotá ", "Ingeniero de Sistemas", "100", "12", "0", "0", "1000", "0", "1", "X"},
			{"A2", "2019-03-01", "1/16/1980", "J", "No Cruza", "Leticia", "Derecho", "50", "3", "1", "20", "2500", "2000", "abc", "Y"},
			{"A3", "01/01/2021", "01/01/2000", "M", "3", "Springfield", "", "", "1", "0", "0", "900", "900", "0", "Z"},
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	ft, err := newTestBuilder().Build(sampleTable())
	require.NoError(t, err)

	assert.Equal(t, 3, ft.RowsIn)
	assert.Equal(t, 1, ft.RowsMissingRequired)
	require.Equal(t, 2, ft.Len())
	assert.Equal(t, []int{0, 1}, ft.SourceRows)
	assert.Len(t, ft.Rows[0], len(FeatureNames))

	// Derived features.
	assert.Equal(t, 1461.0, ft.Value(0, "Antiguedad_dias"))
	assert.Equal(t, 33.0, ft.Value(0, "Edad"))
	assert.Equal(t, 43.0, ft.Value(1, "Edad"), "birthday falls the day after the reference date")
	assert.InDelta(t, math.Log(1000), ft.Value(0, "log_ingresos"), 1e-12)
	assert.Equal(t, 0.0, ft.Value(0, "log_ingresos_deflactados"), "log of zero is zero-filled")

	// Indicators.
	assert.Equal(t, 1.0, ft.Value(0, "Sexo_M"))
	assert.Equal(t, 0.0, ft.Value(0, "Sexo_J"))
	assert.Equal(t, 1.0, ft.Value(0, "Estrato_2"))
	assert.Equal(t, 1.0, ft.Value(1, "Estrato_No Cruza"))
	assert.Equal(t, 1.0, ft.Value(0, "Andina"))
	assert.Equal(t, 1.0, ft.Value(0, "Tecnología"))
	assert.Equal(t, 1.0, ft.Value(1, "Ciencias Sociales"))
	assert.Equal(t, 0.0, ft.Value(1, "Otro"))

	// Absent columns are zero-filled; preserved text positions are NaN.
	assert.Equal(t, 0.0, ft.Value(0, "PAP"))
	assert.Equal(t, 0.0, ft.Value(0, "Cdat"))
	assert.True(t, math.IsNaN(ft.Value(0, "IdUnico")))
	assert.True(t, math.IsNaN(ft.Value(0, "Zona")))
	assert.True(t, math.IsNaN(ft.Value(0, "Area_Titulo")))

	// Preserved fields.
	assert.Equal(t, "A1", ft.Clients[0].IDUnico)
	assert.Equal(t, "2020-01-15", ft.Clients[0].FechaIngreso)
	assert.Equal(t, "Andina", ft.Clients[0].Region)
	assert.Equal(t, "Tecnología", ft.Clients[0].AreaTitulo)
	assert.Equal(t, "Amazonía", ft.Clients[1].Region)
}

func TestBuilder_CoercionFailure(t *testing.T) {
	ft, err := newTestBuilder().Build(sampleTable())
	require.NoError(t, err)

	assert.True(t, math.IsNaN(ft.Value(1, "Cta_Dep")))
	require.Equal(t, 1, ft.Report.Total)
	issue := ft.Report.Issues[0]
	assert.Equal(t, "Cta_Dep", issue.Column)
	assert.Equal(t, 1, issue.Row)
	assert.Equal(t, "abc", issue.Value)
	assert.Equal(t, "numeric", issue.Kind)
}

func TestBuilder_DropsRowWithNullBalance(t *testing.T) {
	raw := sampleTable()
	full, err := newTestBuilder().Build(&models.RawTable{Columns: raw.Columns, Rows: raw.Rows[:2]})
	require.NoError(t, err)

	raw.Rows[1][7] = "NaN"
	dropped, err := newTestBuilder().Build(&models.RawTable{Columns: raw.Columns, Rows: raw.Rows[:2]})
	require.NoError(t, err)

	assert.Equal(t, full.Len()-1, dropped.Len())
	for _, c := range dropped.Clients {
		assert.NotEqual(t, "A2", c.IDUnico)
	}
}

func TestBuilder_ProvidedLogValuesAreKept(t *testing.T) {
	raw := &models.RawTable{
		Columns: []string{"IdUnico", "Saldo_aportes", "Cuotas_canceladas_aportes", "Cuotas_mora_aportes",
			"Vlr_mora", "Ingresos", "log_ingresos", "Ingresos_Deflactados", "log_ingresos_deflactados"},
		Rows: [][]string{
			{"1", "1", "1", "0", "0", "1000", "3.5", "500", ""},
		},
	}
	b := newTestBuilder()
	first, err := b.Build(raw)
	require.NoError(t, err)
	second, err := b.Build(raw)
	require.NoError(t, err)

	assert.Equal(t, 3.5, first.Value(0, "log_ingresos"))
	assert.Equal(t, first.Value(0, "log_ingresos"), second.Value(0, "log_ingresos"))
	assert.True(t, math.IsNaN(first.Value(0, "log_ingresos_deflactados")), "provided null stays null")
	assert.True(t, math.IsNaN(second.Value(0, "log_ingresos_deflactados")))
}

func TestBuilder_TitleOtherIndicator(t *testing.T) {
	raw := &models.RawTable{
		Columns: []string{"Saldo_aportes", "Cuotas_canceladas_aportes", "Cuotas_mora_aportes",
			"Vlr_mora", "Ingresos", "Nombre_Titulo_Obtenido", "Zona"},
		Rows: [][]string{{"1", "1", "0", "0", "10", "Chef", "Atlantis"}},
	}
	ft, err := newTestBuilder().Build(raw)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ft.Value(0, "Otro.1"))
	assert.Equal(t, 1.0, ft.Value(0, "Otro"))
	assert.Equal(t, "Otro", ft.Clients[0].AreaTitulo)
	assert.Equal(t, "Otro", ft.Clients[0].Region)
}

func TestBuilder_NoRows(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Build(&models.RawTable{Columns: []string{"Ingresos"}})
	assert.True(t, errors.Is(err, ErrNoRows))

	_, err = b.Build(&models.RawTable{
		Columns: []string{"IdUnico", "Ingresos"},
		Rows:    [][]string{{"1", "100"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRows))
	assert.Contains(t, err.Error(), "Saldo_aportes")
}

func TestBuilder_DuplicateColumn(t *testing.T) {
	_, err := newTestBuilder().Build(&models.RawTable{
		Columns: []string{"Ingresos", "Ingresos"},
		Rows:    [][]string{{"1", "2"}},
	})
	assert.True(t, errors.Is(err, ErrDuplicateColumn))
}

func TestBuilder_CustomFeatureNames(t *testing.T) {
	b := NewBuilder(WithReferenceDate(refDate), WithFeatureNames([]string{"Ingresos", "Saldo_aportes", "Nope"}))
	ft, err := b.Build(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 100, 0}, ft.Rows[0])
	assert.Equal(t, refDate, b.ReferenceDate())
}

func TestFeatureNames_Frozen(t *testing.T) {
	require.Len(t, FeatureNames, 175)
	seen := make(map[string]bool)
	for _, n := range FeatureNames {
		assert.False(t, seen[n], "duplicate feature name %q", n)
		seen[n] = true
	}
	for _, n := range models.ClientFieldNames {
		assert.True(t, seen[n], "preserved field %q missing from feature names", n)
	}
}

func TestBuilder_DerivedFieldsIgnoreInputColumns(t *testing.T) {
	// A re-uploaded result file carries Region and Area_Titulo already.
	raw := &models.RawTable{
		Columns: []string{"IdUnico", "Saldo_aportes", "Cuotas_canceladas_aportes", "Cuotas_mora_aportes",
			"Vlr_mora", "Ingresos", "Zona", "Region", "Nombre_Titulo_Obtenido", "Area_Titulo"},
		Rows: [][]string{{"1", "1", "1", "0", "0", "10", "Cali", "", "Medicina", "Caribe"}},
	}
	ft, err := newTestBuilder().Build(raw)
	require.NoError(t, err)
	require.Equal(t, 1, ft.Len())

	assert.Equal(t, 1.0, ft.Value(0, "Pacífica"))
	assert.Equal(t, 0.0, ft.Value(0, "Caribe"))
	assert.Equal(t, 1.0, ft.Value(0, "Salud"))
	assert.Equal(t, "Pacífica", ft.Clients[0].Region)
	assert.Equal(t, "Salud", ft.Clients[0].AreaTitulo)
	assert.True(t, math.IsNaN(ft.Value(0, "Region")))
	assert.True(t, math.IsNaN(ft.Value(0, "Area_Titulo")))
	assert.Equal(t, 0, ft.Report.Total, "derived columns are not coerced")
}

func TestBuilder_LogOfNonPositiveIncomeIsZeroFilled(t *testing.T) {
	raw := &models.RawTable{
		Columns: []string{"Saldo_aportes", "Cuotas_canceladas_aportes", "Cuotas_mora_aportes",
			"Vlr_mora", "Ingresos", "Ingresos_Deflactados"},
		Rows: [][]string{
			{"1", "1", "0", "0", "-5", ""},
			{"1", "1", "0", "0", "0", "NaN"},
		},
	}
	ft, err := newTestBuilder().Build(raw)
	require.NoError(t, err)
	require.Equal(t, 2, ft.Len())
	for row := 0; row < 2; row++ {
		assert.Equal(t, 0.0, ft.Value(row, "log_ingresos"))
		assert.Equal(t, 0.0, ft.Value(row, "log_ingresos_deflactados"))
	}
}
