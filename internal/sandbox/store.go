package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/spigell/interview-runner/internal/interview"
)

var ErrNotFound = errors.New("interview not found")

// Store persists interview documents. Update runs fn on a private copy and
// saves it only when fn returns nil.
type Store interface {
	Create(ctx context.Context, iv *interview.Interview) error
	Get(ctx context.Context, id string) (*interview.Interview, error)
	Update(ctx context.Context, id string, fn func(iv *interview.Interview) error) (*interview.Interview, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Create(_ context.Context, iv *interview.Interview) error {
	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("encode interview: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[iv.ID]; ok {
		return fmt.Errorf("interview %s already exists", iv.ID)
	}
	m.docs[iv.ID] = doc
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*interview.Interview, error) {
	m.mu.Lock()
	doc, ok := m.docs[id]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decode(doc)
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(iv *interview.Interview) error) (*interview.Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	iv, err := decode(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(iv); err != nil {
		return nil, err
	}

	updated, err := json.Marshal(iv)
	if err != nil {
		return nil, fmt.Errorf("encode interview: %w", err)
	}
	m.docs[id] = updated

	return iv, nil
}

func decode(doc []byte) (*interview.Interview, error) {
	var iv interview.Interview
	if err := json.Unmarshal(doc, &iv); err != nil {
		return nil, fmt.Errorf("decode interview: %w", err)
	}
	return &iv, nil
}
