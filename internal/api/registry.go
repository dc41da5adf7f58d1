package api

import (
	"fmt"
	"sort"
	"sync"

	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/models"
)

// DocumentRepository is the engine instance behind every HTTP collection.
type DocumentRepository = core.Repository[models.Document, *models.Document]

// Registry maps URL names to repositories.
type Registry struct {
	mu    sync.RWMutex
	repos map[string]*DocumentRepository
}

func NewRegistry() *Registry {
	return &Registry{repos: make(map[string]*DocumentRepository)}
}

// Register adds repo under name. Names must be unique.
func (r *Registry) Register(name string, repo *DocumentRepository) error {
	if name == "" || repo == nil {
		return fmt.Errorf("register %q: name and repository are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.repos[name]; exists {
		return fmt.Errorf("register %q: name already in use", name)
	}
	r.repos[name] = repo
	return nil
}

func (r *Registry) Lookup(name string) (*DocumentRepository, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.repos[name]
	return repo, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.repos))
	for name := range r.repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
