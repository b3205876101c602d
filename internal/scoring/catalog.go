package scoring

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pavelanni/aidiag/internal/model"
)

//go:embed catalogs/*.json
var catalogFS embed.FS

// Catalog is an immutable set of categories and weighted questions.
// It is loaded once at startup and shared by all requests without locking.
type Catalog struct {
	name       string
	version    string
	categories []model.Category
	questions  []model.Question
	byCategory map[model.CategoryKey][]model.Question
	byID       map[string]model.Question
}

type catalogFile struct {
	Name       string           `json:"name"`
	Version    string           `json:"version"`
	Categories []model.Category `json:"categories"`
	Questions  []model.Question `json:"questions"`
}

// LoadCatalog loads one of the embedded catalogs by name.
func LoadCatalog(name string) (*Catalog, error) {
	data, err := catalogFS.ReadFile("catalogs/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown catalog %q: %w", name, err)
	}
	return ParseCatalog(data)
}

// LoadCatalogFile loads a catalog from a JSON file on disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return newCatalog(f)
}

func newCatalog(f catalogFile) (*Catalog, error) {
	if len(f.Categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}
	c := &Catalog{
		name:       f.Name,
		version:    f.Version,
		categories: f.Categories,
		questions:  f.Questions,
		byCategory: make(map[model.CategoryKey][]model.Question, len(f.Categories)),
		byID:       make(map[string]model.Question, len(f.Questions)),
	}
	for _, cat := range f.Categories {
		if _, dup := c.byCategory[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Key)
		}
		c.byCategory[cat.Key] = nil
	}
	for _, q := range f.Questions {
		if q.ID == "" {
			return nil, errors.New("question without id")
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		if _, ok := c.byCategory[q.Category]; !ok {
			return nil, fmt.Errorf("question %q: unknown category %q", q.ID, q.Category)
		}
		if q.Weight <= 0 {
			return nil, fmt.Errorf("question %q: weight must be positive, got %v", q.ID, q.Weight)
		}
		c.byID[q.ID] = q
		c.byCategory[q.Category] = append(c.byCategory[q.Category], q)
	}
	for _, cat := range f.Categories {
		if len(c.byCategory[cat.Key]) == 0 {
			return nil, fmt.Errorf("category %q has no questions", cat.Key)
		}
	}
	return c, nil
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Version returns the catalog version string.
func (c *Catalog) Version() string { return c.version }

// Categories returns the categories in display order.
func (c *Catalog) Categories() []model.Category {
	return append([]model.Category(nil), c.categories...)
}

// Questions returns all questions in catalog order.
func (c *Catalog) Questions() []model.Question {
	return append([]model.Question(nil), c.questions...)
}

// QuestionsIn returns the questions of one category.
func (c *Catalog) QuestionsIn(key model.CategoryKey) []model.Question {
	return append([]model.Question(nil), c.byCategory[key]...)
}

// Question looks up a question by ID.
func (c *Catalog) Question(id string) (model.Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Category looks up a category by key.
func (c *Catalog) Category(key model.CategoryKey) (model.Category, bool) {
	for _, cat := range c.categories {
		if cat.Key == key {
			return cat, true
		}
	}
	return model.Category{}, false
}

// Len returns the number of questions.
func (c *Catalog) Len() int { return len(c.questions) }

// MarshalJSON implements json.Marshaler.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(catalogFile{
		Name:       c.name,
		Version:    c.version,
		Categories: c.categories,
		Questions:  c.questions,
	})
}

// Known counts how many of the given responses refer to catalog questions.
func (c *Catalog) Known(responses model.Responses) int {
	n := 0
	for id := range responses {
		if _, ok := c.byID[id]; ok {
			n++
		}
	}
	return n
}
