// Package catalog holds the static table of paid services and the chat
// widgets that sell them.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Service describes one paid offering and its checkout defaults.
type Service struct {
	ID          string  `json:"id" yaml:"id"`
	Path        string  `json:"path" yaml:"path"`
	Name        string  `json:"defaultName" yaml:"name"`
	Description string  `json:"defaultDescription" yaml:"description"`
	Price       float64 `json:"defaultPrice" yaml:"price"`
}

// Catalog indexes services by id and widgets by name.
type Catalog struct {
	services map[string]Service
	widgets  map[string]Widget
}

var defaultServices = []Service{
	{ID: "1", Path: "descripcion-cartas", Name: "Lectura de cartas tarot", Description: "Lectura personalizada de cartas del tarot con interpretación detallada", Price: 15000},
	{ID: "2", Path: "significado-suenos", Name: "Significado de Sueños", Description: "Interpretación profesional de tus sueños", Price: 12000},
	{ID: "3", Path: "Informacion-zodiaco", Name: "Información del Zodiaco", Description: "Análisis completo de tu signo zodiacal", Price: 10000},
	{ID: "4", Path: "lectura-numerologia", Name: "Lectura de Numerología", Description: "Descubre el significado de tus números personales", Price: 14000},
	{ID: "5", Path: "mapa-vocacional", Name: "Mapa Vocacional", Description: "Descubre tu camino profesional ideal", Price: 18000},
	{ID: "6", Path: "animal-interior", Name: "Animal Interior", Description: "Conoce tu animal espiritual guía", Price: 11000},
	{ID: "7", Path: "tabla-nacimiento", Name: "Tabla de Nacimiento", Description: "Análisis numerológico de tu fecha de nacimiento", Price: 13000},
	{ID: "8", Path: "horoscopo", Name: "Horóscopo Personalizado", Description: "Predicciones detalladas para tu signo", Price: 9000},
	{ID: "9", Path: "calculadora-amor", Name: "Calculadora del Amor", Description: "Compatibilidad amorosa y análisis de pareja", Price: 12000},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		services: make(map[string]Service, len(defaultServices)),
		widgets:  make(map[string]Widget, len(defaultWidgets)),
	}
	for _, s := range defaultServices {
		c.services[s.ID] = s
	}
	for _, w := range defaultWidgets {
		c.widgets[w.Name] = w
	}
	return c
}

// Lookup returns the service with the given id.
func (c *Catalog) Lookup(id string) (Service, bool) {
	s, ok := c.services[id]
	return s, ok
}

// IDs returns every service id in numeric order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.services))
	for id := range c.services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}

// Services returns all services ordered by id.
func (c *Catalog) Services() []Service {
	ids := c.IDs()
	out := make([]Service, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.services[id])
	}
	return out
}

// overrideFile is the on-disk shape of a catalog override.
type overrideFile struct {
	Services []Service `yaml:"services"`
	Widgets  []Widget  `yaml:"widgets"`
}

// Load returns the built-in catalog with the YAML file at path applied on top.
// Non-zero fields in the file replace the defaults; unknown entries are added.
// An empty path yields the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for _, s := range file.Services {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog service without id")
		}
		c.services[s.ID] = mergeService(c.services[s.ID], s)
	}
	for _, w := range file.Widgets {
		if w.Name == "" {
			return nil, fmt.Errorf("catalog widget without name")
		}
		c.widgets[w.Name] = mergeWidget(c.widgets[w.Name], w)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every widget points at a known service and has a usable threshold.
func (c *Catalog) Validate() error {
	for _, w := range c.widgets {
		if w.Threshold < 1 {
			return fmt.Errorf("widget %q: threshold must be >= 1", w.Name)
		}
		if _, ok := c.services[w.ServiceID]; !ok {
			return fmt.Errorf("widget %q: unknown service %q", w.Name, w.ServiceID)
		}
		if w.KeyPrefix == "" {
			return fmt.Errorf("widget %q: key prefix cannot be empty", w.Name)
		}
	}
	return nil
}

func mergeService(base, over Service) Service {
	base.ID = over.ID
	if over.Path != "" {
		base.Path = over.Path
	}
	if over.Name != "" {
		base.Name = over.Name
	}
	if over.Description != "" {
		base.Description = over.Description
	}
	if over.Price > 0 {
		base.Price = over.Price
	}
	return base
}
