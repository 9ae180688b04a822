package policy

import (
	"fmt"
	"sync"
	"time"
)

// Store manages policy persistence and retrieval.
type Store interface {
	// Add a new policy
	Add(p *Policy) error

	// Get a policy by ID
	Get(id string) (*Policy, error)

	// List all active policies
	ListActive() ([]*Policy, error)

	// Update an existing policy
	Update(p *Policy) error

	// Delete a policy
	Delete(id string) error
}

// InMemoryStore implements Store using an in-memory map. Thread-safe.
type InMemoryStore struct {
	policies map[string]*Policy
	mu       sync.RWMutex
}

// NewInMemoryStore creates a new in-memory policy store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[string]*Policy),
	}
}

// Add adds a new policy, enforcing unique IDs and stamping timestamps.
func (s *InMemoryStore) Add(p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.policies[p.ID]; exists {
		return fmt.Errorf("policy with ID %s already exists", p.ID)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.policies[p.ID] = p
	return nil
}

// Get retrieves a policy by ID.
func (s *InMemoryStore) Get(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.policies[id]
	if !exists {
		return nil, fmt.Errorf("policy with ID %s not found", id)
	}
	return p, nil
}

// ListActive returns all active policies.
func (s *InMemoryStore) ListActive() ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Policy
	for _, p := range s.policies {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// Update updates an existing policy, preserving CreatedAt.
func (s *InMemoryStore) Update(p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.policies[p.ID]
	if !exists {
		return fmt.Errorf("policy with ID %s not found", p.ID)
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	s.policies[p.ID] = p
	return nil
}

// Delete removes a policy from the store.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.policies[id]; !exists {
		return fmt.Errorf("policy with ID %s not found", id)
	}

	delete(s.policies, id)
	return nil
}
