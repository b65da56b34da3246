// Package e2e provides end-to-end tests that drive the full clustering stack over a
// synthetic client population.
package e2e

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// ReferenceDate anchors age and tenure for the population.
var ReferenceDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Client is one synthetic customer. Group is the segment it was generated in.
type Client struct {
	ID         string
	Group      int
	Occupation string
	Zone       string
	Age        int
	Balance    float64
	Income     float64
	Credits    int
}

// Population is a set of clients drawn from two well separated segments.
type Population struct {
	Clients []Client
}

var populationColumns = []string{
	"IdUnico", "Fecha_Ingreso", "Fecha_Nacimiento", "Nombre_Ocupacion", "Zona",
	"Saldo_aportes", "Cuotas_canceladas_aportes", "Cuotas_mora_aportes", "Vlr_mora",
	"Ingresos", "Creditos",
}

// BuildPopulation returns n clients, alternating between a young low-balance segment
// (group 0) and a senior high-balance segment (group 1). The result is deterministic.
func BuildPopulation(n int) *Population {
	rng := rand.New(rand.NewSource(42))
	p := &Population{Clients: make([]Client, n)}
	for i := range p.Clients {
		c := Client{ID: fmt.Sprintf("C%04d", i+1), Group: i % 2}
		if c.Group == 0 {
			c.Occupation = "Asalariado"
			c.Zone = "Bogotá"
			c.Age = 22 + rng.Intn(8)
			c.Balance = 300 + float64(rng.Intn(400))
			c.Income = 1.2e6 + float64(rng.Intn(600))*1000
		} else {
			c.Occupation = "Pensionado - Jubilado"
			c.Zone = "Cali"
			c.Age = 58 + rng.Intn(10)
			c.Balance = 40000 + float64(rng.Intn(20000))
			c.Income = 7e6 + float64(rng.Intn(3000))*1000
			c.Credits = 1 + rng.Intn(3)
		}
		p.Clients[i] = c
	}
	return p
}

// Columns is the header of the population table.
func (p *Population) Columns() []string {
	return append([]string(nil), populationColumns...)
}

// Rows renders the population as raw cells matching Columns.
func (p *Population) Rows() [][]string {
	rows := make([][]string, len(p.Clients))
	for i, c := range p.Clients {
		birth := time.Date(ReferenceDate.Year()-1-c.Age, time.June, 15, 0, 0, 0, 0, time.UTC)
		joined := ReferenceDate.AddDate(-2, 0, -i)
		rows[i] = []string{
			c.ID,
			joined.Format("2006-01-02"),
			birth.Format("2006-01-02"),
			c.Occupation,
			c.Zone,
			strconv.FormatFloat(c.Balance, 'f', -1, 64),
			"12",
			"0",
			"0",
			strconv.FormatFloat(c.Income, 'f', -1, 64),
			strconv.Itoa(c.Credits),
		}
	}
	return rows
}

// FeatureVectors returns each client's values for ModelFeatures, in order.
func (p *Population) FeatureVectors() [][]float64 {
	out := make([][]float64, len(p.Clients))
	for i, c := range p.Clients {
		out[i] = []float64{c.Balance, c.Income, float64(c.Age), float64(c.Credits)}
	}
	return out
}

// Groups returns the generated segment of each client keyed by IdUnico.
func (p *Population) Groups() map[string]int {
	m := make(map[string]int, len(p.Clients))
	for _, c := range p.Clients {
		m[c.ID] = c.Group
	}
	return m
}
