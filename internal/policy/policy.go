package policy

import (
	"fmt"

	"github.com/forgeworks/forge-coordinator/internal/classify"
	"github.com/forgeworks/forge-coordinator/internal/config"
)

// Candidate is one (provider, model) pair eligible for a task category.
// Position in a category list is the fallback order.
type Candidate struct {
	Provider string
	Model    string
}

func (c Candidate) String() string {
	return c.Provider + "/" + c.Model
}

// Table holds the per-category candidate lists. Built once at startup,
// immutable afterwards.
type Table struct {
	categories map[classify.Category][]Candidate
	primary    string
}

// New builds a Table from routing config and validates it: every category
// must have a non-empty, duplicate-free list whose first entry carries the
// primary model.
func New(cfg *config.RoutingConfig) (*Table, error) {
	t := &Table{
		categories: make(map[classify.Category][]Candidate),
		primary:    cfg.PrimaryModel,
	}

	for _, cat := range classify.Categories() {
		entries, ok := cfg.Categories[string(cat)]
		if !ok || len(entries) == 0 {
			return nil, fmt.Errorf("category %s has no candidates", cat)
		}

		list := make([]Candidate, 0, len(entries))
		seen := make(map[Candidate]bool)
		for _, e := range entries {
			if e.Provider == "" || e.Model == "" {
				return nil, fmt.Errorf("category %s has a candidate with empty provider or model", cat)
			}
			c := Candidate{Provider: e.Provider, Model: e.Model}
			if seen[c] {
				return nil, fmt.Errorf("category %s lists %s twice", cat, c)
			}
			seen[c] = true
			list = append(list, c)
		}

		if list[0].Model != cfg.PrimaryModel {
			return nil, fmt.Errorf("category %s must lead with primary model %s, got %s", cat, cfg.PrimaryModel, list[0].Model)
		}

		t.categories[cat] = list
	}

	return t, nil
}

// Candidates returns the ordered fallback list for a category. The returned
// slice is a copy; callers may not mutate the table. An unknown category
// resolves to the default list.
func (t *Table) Candidates(cat classify.Category) []Candidate {
	list, ok := t.categories[cat]
	if !ok {
		list = t.categories[classify.Default]
	}
	out := make([]Candidate, len(list))
	copy(out, list)
	return out
}

// Primary returns the globally preferred model, the first entry of every
// category list.
func (t *Table) Primary() string {
	return t.primary
}

// Models returns the distinct models across all categories, in first-seen
// order following classification priority.
func (t *Table) Models() []string {
	seen := make(map[string]bool)
	var models []string
	for _, cat := range classify.Categories() {
		for _, c := range t.categories[cat] {
			if !seen[c.Model] {
				seen[c.Model] = true
				models = append(models, c.Model)
			}
		}
	}
	return models
}
