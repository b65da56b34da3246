package features

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// OtherCategory is the fallback for unmatched titles and cities.
const OtherCategory = "Otro"

// TitleRule maps an academic title to Area when its lower-cased text contains any pattern.
type TitleRule struct {
	Area     string   `yaml:"area"`
	Patterns []string `yaml:"patterns"`
}

// Taxonomy holds the title-area and city-region lookup tables.
// Rules are evaluated in order; the first match wins.
type Taxonomy struct {
	TitleRules []TitleRule         `yaml:"title_rules"`
	Regions    map[string][]string `yaml:"regions"` // region -> cities
	cityRegion map[string]string
}

// DefaultTaxonomy returns the built-in tables.
func DefaultTaxonomy() *Taxonomy {
	t := &Taxonomy{
		TitleRules: []TitleRule{
			{Area: "Salud", Patterns: []string{"enfermer", "quirúrgica", "medicina"}},
			{Area: "Tecnología", Patterns: []string{"sistem", "analisis", "tecnolog"}},
			{Area: "Administración", Patterns: []string{"admin", "negocios", "gestion"}},
			{Area: "Ciencias Sociales", Patterns: []string{"derecho", "relaciones internacionales", "ciencias sociales"}},
			{Area: "Educación", Patterns: []string{"docente", "lic."}},
			{Area: "Ingeniería", Patterns: []string{"ingenier"}},
			{Area: "Comunicaciones", Patterns: []string{"comunicacion", "periodismo"}},
			{Area: "Arquitectura", Patterns: []string{"arquitectura"}},
		},
		Regions: map[string][]string{
			"Andina": {
				"Bogotá", "Medellín", "Manizales", "Pereira", "Ibagué", "Tunja",
				"Armenia", "Neiva", "Bucaramanga", "Cúcuta", "Popayán", "Pasto",
				"Chía", "Zipaquirá", "Soacha", "Floridablanca", "Girón", "Dosquebradas",
			},
			"Caribe": {
				"Barranquilla", "Cartagena", "Santa Marta", "Montería", "Sincelejo", "Valledupar",
				"Riohacha", "Ciénaga", "Soledad", "Malambo", "Sabanalarga", "Turbaco",
				"Magangué", "Lorica", "Plato", "Cereté",
			},
			"Pacífica": {
				"Cali", "Buenaventura", "Quibdó", "Tumaco", "Guapi", "Timbiquí",
				"Istmina", "San Andrés de Tumaco",
			},
			"Orinoquía": {
				"Villavicencio", "Yopal", "Arauca", "Puerto Carreño", "Tame", "Paz de Ariporo",
				"Saravena",
			},
			"Amazonía": {
				"Leticia", "Florencia", "Mocoa", "San José del Guaviare", "Mitú", "Inírida",
				"Puerto Asís", "La Chorrera",
			},
		},
	}
	t.index()
	return t
}

// LoadTaxonomy reads a YAML taxonomy file. An empty path returns DefaultTaxonomy.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy: %w", err)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	if len(t.TitleRules) == 0 && len(t.Regions) == 0 {
		return nil, fmt.Errorf("taxonomy %s defines no title rules or regions", path)
	}
	for i, r := range t.TitleRules {
		if r.Area == "" || len(r.Patterns) == 0 {
			return nil, fmt.Errorf("taxonomy %s: title rule %d needs an area and patterns", path, i)
		}
		for j, p := range r.Patterns {
			t.TitleRules[i].Patterns[j] = strings.ToLower(p)
		}
	}
	t.index()
	return &t, nil
}

func (t *Taxonomy) index() {
	t.cityRegion = make(map[string]string)
	for region, cities := range t.Regions {
		for _, c := range cities {
			t.cityRegion[normalizeCity(c)] = region
		}
	}
}

// ClassifyTitle returns the area of an academic title, or OtherCategory.
func (t *Taxonomy) ClassifyTitle(title string) string {
	lower := strings.ToLower(title)
	for _, r := range t.TitleRules {
		for _, p := range r.Patterns {
			if strings.Contains(lower, p) {
				return r.Area
			}
		}
	}
	return OtherCategory
}

// ClassifyCity returns the region of a city, or OtherCategory.
// Matching is exact after trimming and title-casing both sides.
func (t *Taxonomy) ClassifyCity(city string) string {
	if region, ok := t.cityRegion[normalizeCity(city)]; ok {
		return region
	}
	return OtherCategory
}

// normalizeCity trims and title-cases a city name. A Caser is stateful, so one is made per call.
func normalizeCity(city string) string {
	return cases.Title(language.Spanish).String(strings.TrimSpace(city))
}
