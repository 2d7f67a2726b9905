package pipeline

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/searches.yaml
var searchesYAML embed.FS

// SearchMode selects the fetch strategy for a saved search.
type SearchMode string

const (
	// ModePerKeyword issues one request per keyword; a failed keyword is
	// logged and skipped, the run continues.
	ModePerKeyword SearchMode = "per-keyword"
	// ModeComposite issues a single request with a boolean expression; any
	// failure aborts the run.
	ModeComposite SearchMode = "composite"
)

// SavedSearch is one registered query producing one email per run.
type SavedSearch struct {
	ID                 string     `yaml:"id"`
	Name               string     `yaml:"name"`
	Prefix             string     `yaml:"prefix"`
	Mode               SearchMode `yaml:"mode"`
	Keywords           []string   `yaml:"keywords,omitempty"`
	Expression         string     `yaml:"expression,omitempty"`
	PostedWindowDays   int        `yaml:"posted_window_days"`
	DeadlineWindowDays int        `yaml:"deadline_window_days"`
	Recipients         []string   `yaml:"recipients,omitempty"` // overrides global recipients
	SavedSearchID      string     `yaml:"saved_search_id,omitempty"`
}

// Registry holds all saved searches.
type Registry struct {
	Searches []SavedSearch `yaml:"searches"`
}

// LoadRegistry reads the registry from path, or from the embedded defaults
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read searches file: %w", err)
		}
	} else {
		data, err = searchesYAML.ReadFile("config/searches.yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded searches: %w", err)
		}
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse searches yaml: %w", err)
	}

	for i := range reg.Searches {
		if err := reg.Searches[i].validate(); err != nil {
			return nil, err
		}
	}
	return &reg, nil
}

func (s *SavedSearch) validate() error {
	if s.ID == "" {
		return fmt.Errorf("saved search missing id")
	}
	if s.Prefix == "" {
		s.Prefix = s.ID
	}
	switch s.Mode {
	case ModePerKeyword:
		if len(s.Keywords) == 0 {
			return fmt.Errorf("search %q: per-keyword mode needs keywords", s.ID)
		}
	case ModeComposite:
		if s.Expression == "" && s.SavedSearchID == "" {
			return fmt.Errorf("search %q: composite mode needs an expression or saved_search_id", s.ID)
		}
	default:
		return fmt.Errorf("search %q: unknown mode %q", s.ID, s.Mode)
	}
	return nil
}

// Find returns the search with the given ID.
func (r *Registry) Find(id string) (*SavedSearch, error) {
	for i := range r.Searches {
		if r.Searches[i].ID == id {
			return &r.Searches[i], nil
		}
	}
	return nil, fmt.Errorf("search id %q not found in registry", id)
}
