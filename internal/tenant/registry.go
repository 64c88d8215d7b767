package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// Path builds a tenant path from a university's location:
// lowercase state_city_campus with whitespace replaced by underscores.
func Path(state, city, campus string) string {
	return reWhitespace.ReplaceAllString(strings.ToLower(state+"_"+city+"_"+campus), "_")
}

type University struct {
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
	State  string `json:"state" yaml:"state"`
	City   string `json:"city" yaml:"city"`
	Campus string `json:"campus" yaml:"campus"`
}

type UniversitiesFile struct {
	Universities []University `json:"universities" yaml:"universities"`
}

// Registry is the in-memory set of known tenants.
type Registry struct {
	mu           sync.RWMutex
	universities map[string]*University
}

func NewRegistry() *Registry {
	return &Registry{
		universities: make(map[string]*University),
	}
}

// LoadFromFile reads a seed file of universities. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universities config: %w", err)
	}

	var file UniversitiesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse universities config: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Universities {
		u := &file.Universities[i]
		if u.Path == "" {
			u.Path = Path(u.State, u.City, u.Campus)
		}
		registry.Register(u)
	}
	return registry, nil
}

func (r *Registry) Register(u *University) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.universities[u.Path] = u
}

func (r *Registry) Get(path string) *University {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.universities[path]
}

func (r *Registry) Exists(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.universities[path]
	return ok
}

// All returns the registered universities ordered by path.
func (r *Registry) All() []*University {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*University, 0, len(r.universities))
	for _, u := range r.universities {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}
