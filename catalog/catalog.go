// Package catalog persists packaged apps: the installer descriptor, the
// synthesized detection rules, and the command lines the deployment pipeline
// embeds in the final package.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/jthornton/deploycart/detection"
)

// App is one packaged application ready for deployment.
type App struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Installer        detection.Installer `json:"installer"`
	Rules            detection.RuleSet   `json:"detectionRules"`
	InstallCommand   string              `json:"installCommand"`
	UninstallCommand string              `json:"uninstallCommand"`
	Provenance       string              `json:"provenance"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Store manages packaged-app persistence.
type Store interface {
	// Add a newly packaged app
	Add(app *App) error

	// Get an app by ID
	Get(id string) (*App, error)

	// List all packaged apps
	List() ([]*App, error)

	// Delete a packaged app
	Delete(id string) error
}

// InMemoryStore implements Store with an in-memory map. Thread-safe.
type InMemoryStore struct {
	apps map[string]*App
	mu   sync.RWMutex
}

// NewInMemoryStore creates a new in-memory app store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[string]*App)}
}

// Add stores a packaged app, enforcing unique IDs.
func (s *InMemoryStore) Add(app *App) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; exists {
		return fmt.Errorf("app with ID %s already exists", app.ID)
	}

	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now
	s.apps[app.ID] = app
	return nil
}

// Get retrieves a packaged app by ID.
func (s *InMemoryStore) Get(id string) (*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, exists := s.apps[id]
	if !exists {
		return nil, fmt.Errorf("app with ID %s not found", id)
	}
	return app, nil
}

// List returns all packaged apps.
func (s *InMemoryStore) List() ([]*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]*App, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	return apps, nil
}

// Delete removes a packaged app.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[id]; !exists {
		return fmt.Errorf("app with ID %s not found", id)
	}

	delete(s.apps, id)
	return nil
}
