package models

import "time"

// ClientFieldNames lists the identifier and free-text fields carried through a prediction
// unchanged, in output order. Area_Titulo and Region are derived by the feature builder.
var ClientFieldNames = []string{
	"IdUnico",
	"Fecha_Ingreso",
	"Nombre_Estado",
	"Nombre_Tipo_Vinculacion",
	"Estado_Civil",
	"Sexo",
	"Nombre_Tipo_Vivienda",
	"Nombre_Nivel_Academico",
	"Fecha_Nacimiento",
	"Nombre_Titulo_Obtenido",
	"Nombre_Ocupacion",
	"Zona",
	"Area_Titulo",
	"Region",
}

// ClientFields holds the preserved, non-numeric fields of one customer record.
type ClientFields struct {
	IDUnico               string `json:"IdUnico"`
	FechaIngreso          string `json:"Fecha_Ingreso"`
	NombreEstado          string `json:"Nombre_Estado"`
	NombreTipoVinculacion string `json:"Nombre_Tipo_Vinculacion"`
	EstadoCivil           string `json:"Estado_Civil"`
	Sexo                  string `json:"Sexo"`
	NombreTipoVivienda    string `json:"Nombre_Tipo_Vivienda"`
	NombreNivelAcademico  string `json:"Nombre_Nivel_Academico"`
	FechaNacimiento       string `json:"Fecha_Nacimiento"`
	NombreTituloObtenido  string `json:"Nombre_Titulo_Obtenido"`
	NombreOcupacion       string `json:"Nombre_Ocupacion"`
	Zona                  string `json:"Zona"`
	AreaTitulo            string `json:"Area_Titulo"`
	Region                string `json:"Region"`
}

// field returns a pointer to the struct field backing name, or nil.
func (c *ClientFields) field(name string) *string {
	switch name {
	case "IdUnico":
		return &c.IDUnico
	case "Fecha_Ingreso":
		return &c.FechaIngreso
	case "Nombre_Estado":
		return &c.NombreEstado
	case "Nombre_Tipo_Vinculacion":
		return &c.NombreTipoVinculacion
	case "Estado_Civil":
		return &c.EstadoCivil
	case "Sexo":
		return &c.Sexo
	case "Nombre_Tipo_Vivienda":
		return &c.NombreTipoVivienda
	case "Nombre_Nivel_Academico":
		return &c.NombreNivelAcademico
	case "Fecha_Nacimiento":
		return &c.FechaNacimiento
	case "Nombre_Titulo_Obtenido":
		return &c.NombreTituloObtenido
	case "Nombre_Ocupacion":
		return &c.NombreOcupacion
	case "Zona":
		return &c.Zona
	case "Area_Titulo":
		return &c.AreaTitulo
	case "Region":
		return &c.Region
	}
	return nil
}

// Set assigns value to the named field. It returns false for unknown names.
func (c *ClientFields) Set(name, value string) bool {
	f := c.field(name)
	if f == nil {
		return false
	}
	*f = value
	return true
}

// Get returns the named field value and whether the name is a client field.
func (c *ClientFields) Get(name string) (string, bool) {
	f := c.field(name)
	if f == nil {
		return "", false
	}
	return *f, true
}

// Values returns the fields in ClientFieldNames order.
func (c *ClientFields) Values() []string {
	out := make([]string, len(ClientFieldNames))
	for i, name := range ClientFieldNames {
		out[i] = *c.field(name)
	}
	return out
}

// Assignment is the prediction for one retained input row.
type Assignment struct {
	// Row is the zero-based data row index in the uploaded table.
	Row     int          `json:"row"`
	Client  ClientFields `json:"client"`
	Cluster int          `json:"cluster"`
	UMAP1   float64      `json:"umap_1"`
	UMAP2   float64      `json:"umap_2"`
	// NearestDistance is the standardized-space distance to the closest reference point.
	NearestDistance   float64   `json:"nearest_distance"`
	OutOfDistribution bool      `json:"out_of_distribution"`
	Features          []float64 `json:"-"`
}

// ClusterCount is one bucket of a cluster distribution.
type ClusterCount struct {
	Cluster int     `json:"cluster"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CoercionIssue records a cell that could not be converted to its declared type.
type CoercionIssue struct {
	Column string `json:"column"`
	Row    int    `json:"row"`
	Value  string `json:"value"`
	Kind   string `json:"kind"`
}

// Summary describes what happened to the rows of one prediction request.
type Summary struct {
	RowsIn int `json:"rows_in"`
	// RowsMissingRequired were rejected by the feature builder for a null required field.
	RowsMissingRequired int `json:"rows_missing_required"`
	// RowsIncomplete were dropped by the pipeline for a null model feature.
	RowsIncomplete    int             `json:"rows_incomplete"`
	RowsOut           int             `json:"rows_out"`
	Clusters          []ClusterCount  `json:"clusters"`
	OutOfDistribution int             `json:"out_of_distribution"`
	CoercionCount     int             `json:"coercion_count"`
	Coercions         []CoercionIssue `json:"coercions,omitempty"`
}

// Prediction is the full result of one pipeline run.
type Prediction struct {
	RunID        string        `json:"run_id"`
	Source       string        `json:"source"`
	CreatedAt    time.Time     `json:"created_at"`
	FeatureNames []string      `json:"feature_names,omitempty"`
	Assignments  []*Assignment `json:"assignments"`
	Summary      Summary       `json:"summary"`
}

// Run is the persisted summary of a prediction.
type Run struct {
	ID        string    `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	SourceKey string    `json:"source_key,omitempty" db:"source_key"`
	Summary   Summary   `json:"summary" db:"summary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ClientAssignment is a persisted assignment joined with its run.
type ClientAssignment struct {
	RunID      string       `json:"run_id" db:"run_id"`
	Row        int          `json:"row" db:"row_index"`
	Client     ClientFields `json:"client" db:"client"`
	Cluster    int          `json:"cluster" db:"cluster"`
	UMAP1      float64      `json:"umap_1" db:"umap_1"`
	UMAP2      float64      `json:"umap_2" db:"umap_2"`
	OOD        bool         `json:"out_of_distribution" db:"ood"`
	AssignedAt time.Time    `json:"assigned_at" db:"created_at"`
}
