package resource

import (
	"log/slog"
	"slices"
	"sync"
)

// Manager owns the audio resources of a project. Resources are looked up by
// ID or by the exact path they were imported from. IDs increase
// monotonically; UpdateResourceID keeps the counter above restored IDs.
type Manager struct {
	targetRate int
	opts       []Option
	log        *slog.Logger

	importMu sync.Mutex

	mu        sync.RWMutex
	resources []*Resource
	byID      map[int]*Resource
	byPath    map[string]*Resource
	nextID    int
}

// NewManager returns an empty manager that loads every resource at
// targetRate. opts are applied to each imported resource.
func NewManager(targetRate int, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := o.logger
	if l == nil {
		l = slog.Default()
	}
	return &Manager{
		targetRate: targetRate,
		opts:       opts,
		log:        l,
		byID:       make(map[int]*Resource),
		byPath:     make(map[string]*Resource),
		nextID:     1,
	}
}

func (m *Manager) TargetRate() int { return m.targetRate }

// ImportAudio returns the resource already imported from path, or decodes the
// file and registers it under the next ID. A file that fails to load is not
// registered.
func (m *Manager) ImportAudio(path string) (*Resource, error) {
	m.importMu.Lock()
	defer m.importMu.Unlock()

	if r := m.ResourceByPath(path); r != nil {
		return r, nil
	}
	r := New(0, path, m.opts...)
	if err := r.Load(m.targetRate); err != nil {
		return nil, err
	}

	m.mu.Lock()
	r.id = m.nextID
	m.nextID++
	m.resources = append(m.resources, r)
	m.byID[r.id] = r
	m.byPath[path] = r
	m.mu.Unlock()

	m.log.Info("audio imported", "id", r.id, "path", path, "seconds", r.Duration())
	return r, nil
}

// Resource returns the resource with id, or nil.
func (m *Manager) Resource(id int) *Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// ResourceByPath returns the resource imported from path, or nil.
func (m *Manager) ResourceByPath(path string) *Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPath[path]
}

// Resources returns the registered resources in import order.
func (m *Manager) Resources() []*Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.resources)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resources)
}

// RemoveAudioResource unregisters and closes the resource with id. It
// reports false for an unknown id.
func (m *Manager) RemoveAudioResource(id int) bool {
	m.mu.Lock()
	r, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.byID, id)
	delete(m.byPath, r.path)
	m.resources = slices.DeleteFunc(m.resources, func(x *Resource) bool { return x == r })
	m.mu.Unlock()

	r.Close()
	m.log.Debug("audio resource removed", "id", id, "path", r.path)
	return true
}

// UpdateResourceID re-registers r under newID, used when restoring saved
// IDs. It fails when r is not registered here, newID is not positive or
// newID belongs to another resource.
func (m *Manager) UpdateResourceID(r *Resource, newID int) bool {
	if r == nil || newID <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID[r.id] != r {
		return false
	}
	if other, ok := m.byID[newID]; ok && other != r {
		return false
	}
	delete(m.byID, r.id)
	r.id = newID
	m.byID[newID] = r
	if m.nextID <= newID {
		m.nextID = newID + 1
	}
	return true
}

// Clear closes every resource and resets the ID counter to 1.
func (m *Manager) Clear() {
	m.mu.Lock()
	old := m.resources
	m.resources = nil
	m.byID = make(map[int]*Resource)
	m.byPath = make(map[string]*Resource)
	m.nextID = 1
	m.mu.Unlock()

	for _, r := range old {
		r.Close()
	}
}

// Close releases all resources.
func (m *Manager) Close() error {
	m.Clear()
	return nil
}
