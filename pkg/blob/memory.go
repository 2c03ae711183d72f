package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps objects in process memory. It backs local runs without
// a storage account.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryBackend creates an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *MemoryBackend) Upload(_ context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
	m.types[name] = contentType
	return nil
}

func (m *MemoryBackend) Download(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return ErrNotFound
	}
	delete(m.objects, name)
	delete(m.types, name)
	return nil
}

// ContentType returns the content type an object was stored with
func (m *MemoryBackend) ContentType(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[name]
}
