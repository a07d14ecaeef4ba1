package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/traffic-editor/protocol"
)

var (
	ErrWorldNotFound      = errors.New("world not found")
	ErrWorldAlreadyExists = errors.New("world already exists")
	ErrInvalidWorldID     = errors.New("invalid world id")
	ErrEdgeExists         = errors.New("edge already exists")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrInvalidEdge        = errors.New("invalid edge")
	ErrVehicleNotFound    = errors.New("vehicle not found")
)

// Manager handles world lifecycle
type Manager struct {
	worlds map[string]*World
	mu     sync.RWMutex
}

// NewManager creates a new world manager
func NewManager() *Manager {
	return &Manager{
		worlds: make(map[string]*World),
	}
}

// Create creates a world with the given id, seeded from seed when non-nil
func (m *Manager) Create(id string, seed *protocol.SnapshotData) (*World, error) {
	if id == "" {
		return nil, ErrInvalidWorldID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.worlds[id]; exists {
		return nil, ErrWorldAlreadyExists
	}

	w := newWorld(id, seed)
	m.worlds[id] = w
	return w, nil
}

// Get retrieves a world by id
func (m *Manager) Get(id string) (*World, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, exists := m.worlds[id]
	if !exists {
		return nil, ErrWorldNotFound
	}
	return w, nil
}

// GetOrCreate gets an existing world or creates a new one
func (m *Manager) GetOrCreate(id string, seed *protocol.SnapshotData) (*World, error) {
	w, err := m.Get(id)
	if err == nil {
		return w, nil
	}

	w, err = m.Create(id, seed)
	if errors.Is(err, ErrWorldAlreadyExists) {
		// lost a race with another creator
		return m.Get(id)
	}
	return w, err
}

// List returns all worlds ordered by id
func (m *Manager) List() []*World {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*World, 0, len(m.worlds))
	for _, w := range m.worlds {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Delete removes a world
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.worlds[id]; !exists {
		return ErrWorldNotFound
	}
	delete(m.worlds, id)
	return nil
}

// CleanupIdle removes worlds that have not been accessed within maxAge,
// skipping any id for which keep returns true. It returns the removed ids.
func (m *Manager) CleanupIdle(maxAge time.Duration, keep func(id string) bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var removed []string

	for id, w := range m.worlds {
		if keep != nil && keep(id) {
			continue
		}
		if w.LastAccessedAt().Before(cutoff) {
			delete(m.worlds, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Count returns the number of worlds
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.worlds)
}
