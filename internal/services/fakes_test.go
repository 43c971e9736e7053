package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/repositories"
)

type stubModel struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	prompts []string
}

func (s *stubModel) Invoke(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)

	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", errors.New("stubModel: no output configured")
}

func (s *stubModel) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type memAnalysisRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]models.Analysis
	err     error
}

func newMemAnalysisRepo() *memAnalysisRepo {
	return &memAnalysisRepo{records: map[uuid.UUID]models.Analysis{}}
}

func (m *memAnalysisRepo) Create(_ context.Context, a *models.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.records[a.ID]; !ok {
		m.records[a.ID] = *a
	}
	return nil
}

func (m *memAnalysisRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, repositories.ErrNotFound)
	}
	return &a, nil
}

func (m *memAnalysisRepo) FindByDocumentID(_ context.Context, documentID uuid.UUID) ([]models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Analysis
	for _, a := range m.records {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memAnalysisRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("analysis %s: %w", id, repositories.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *memAnalysisRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memDocumentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]models.Document
}

func newMemDocumentRepo(docs ...models.Document) *memDocumentRepo {
	m := &memDocumentRepo{docs: map[uuid.UUID]models.Document{}}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocumentRepo) Create(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = *d
	return nil
}

func (m *memDocumentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, repositories.ErrNotFound)
	}
	return &d, nil
}

func (m *memDocumentRepo) List(_ context.Context, limit int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		out = append(out, d)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDocumentRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, repositories.ErrNotFound)
	}
	delete(m.docs, id)
	return nil
}
