package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/V4T54L/jmlog/internal/domain"
)

// MockLogSource is an in-memory implementation of domain.LogSource for testing.
type MockLogSource struct {
	mu      sync.Mutex
	Files   []string
	Content map[string][]string
	ListErr error
	ReadErr map[string]error
	Reads   []string
}

func (m *MockLogSource) ListFiles(ctx context.Context) ([]string, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Files, nil
}

func (m *MockLogSource) ReadLines(ctx context.Context, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads = append(m.Reads, name)
	if err := m.ReadErr[name]; err != nil {
		return nil, err
	}
	lines, ok := m.Content[name]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", name)
	}
	return lines, nil
}

// MockSessionRepository records saved session maps.
type MockSessionRepository struct {
	mu    sync.Mutex
	Saved []*domain.SessionMap
	Err   error
}

func (m *MockSessionRepository) SaveSessions(ctx context.Context, sessions *domain.SessionMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, sessions)
	return nil
}

// MockLabelRepository records saved label lists.
type MockLabelRepository struct {
	mu    sync.Mutex
	Saved [][]domain.Label
	Err   error
}

func (m *MockLabelRepository) SaveLabels(ctx context.Context, labels []domain.Label) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, labels)
	return nil
}
