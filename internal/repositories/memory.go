package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"alfredoptarigan/resume-analyzer/internal/models"
)

// MemoryStore keeps documents and analyses in process memory. It backs
// one-shot CLI runs that have no database, and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[uuid.UUID]models.Document
	analyses map[uuid.UUID]models.Analysis
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[uuid.UUID]models.Document),
		analyses: make(map[uuid.UUID]models.Analysis),
	}
}

func (s *MemoryStore) Documents() DocumentRepository { return memoryDocuments{s} }

func (s *MemoryStore) Analyses() AnalysisRepository { return memoryAnalyses{s} }

type memoryDocuments struct{ s *MemoryStore }

func (m memoryDocuments) Create(_ context.Context, document *models.Document) error {
	if document.ID == uuid.Nil {
		return errors.New("document id must be assigned before saving")
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.docs[document.ID]; exists {
		return fmt.Errorf("failed to create document: duplicate id %s", document.ID)
	}
	m.s.docs[document.ID] = *document
	return nil
}

func (m memoryDocuments) FindByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	doc, ok := m.s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return &doc, nil
}

func (m memoryDocuments) List(_ context.Context, limit int) ([]models.Document, error) {
	m.s.mu.RLock()
	docs := make([]models.Document, 0, len(m.s.docs))
	for _, doc := range m.s.docs {
		docs = append(docs, doc)
	}
	m.s.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Delete removes the document and its analyses, like the cascading foreign
// key of the database schema.
func (m memoryDocuments) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	delete(m.s.docs, id)
	for analysisID, a := range m.s.analyses {
		if a.DocumentID == id {
			delete(m.s.analyses, analysisID)
		}
	}
	return nil
}

type memoryAnalyses struct{ s *MemoryStore }

// Create keeps the first record saved under an ID, like the ON CONFLICT
// DO NOTHING insert of the database repository.
func (m memoryAnalyses) Create(_ context.Context, analysis *models.Analysis) error {
	if analysis.ID == uuid.Nil {
		return errors.New("analysis id must be assigned before saving")
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.analyses[analysis.ID]; !exists {
		m.s.analyses[analysis.ID] = *analysis
	}
	return nil
}

func (m memoryAnalyses) FindByID(_ context.Context, id uuid.UUID) (*models.Analysis, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	analysis, ok := m.s.analyses[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	return &analysis, nil
}

func (m memoryAnalyses) FindByDocumentID(_ context.Context, documentID uuid.UUID) ([]models.Analysis, error) {
	m.s.mu.RLock()
	var analyses []models.Analysis
	for _, a := range m.s.analyses {
		if a.DocumentID == documentID {
			analyses = append(analyses, a)
		}
	}
	m.s.mu.RUnlock()

	sort.SliceStable(analyses, func(i, j int) bool { return analyses[i].CreatedAt.After(analyses[j].CreatedAt) })
	return analyses, nil
}

func (m memoryAnalyses) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.analyses[id]; !ok {
		return fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	delete(m.s.analyses, id)
	return nil
}
