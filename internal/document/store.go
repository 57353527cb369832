package document

import (
	"os"
	"sync"
)

// Store is the open-document table. It holds one reference per tracked
// document; compilations take additional references of their own, so a
// closed document stays valid for any design that still depends on it.
type Store struct {
	mu   sync.Mutex
	docs map[string]*Document
}

// NewStore creates an empty document table.
func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Open tracks a document with the given text, replacing the buffer if the
// path is already open. The store keeps its own reference.
func (s *Store) Open(path, text string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[path]; ok {
		d.SetText(text)
		return d
	}
	d := New(path, text)
	s.docs[path] = d
	return d
}

// Get returns the tracked document for path, or nil.
func (s *Store) Get(path string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[path]
}

// Acquire returns the tracked document for path, loading it from disk when
// it is not open. The returned document carries an extra reference owned by
// the caller.
func (s *Store) Acquire(path string) (*Document, error) {
	s.mu.Lock()
	if d, ok := s.docs[path]; ok {
		s.mu.Unlock()
		return d.Retain(), nil
	}
	s.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[path]; ok {
		return d.Retain(), nil
	}
	d := New(path, string(content))
	s.docs[path] = d
	return d.Retain(), nil
}

// Close drops the store's reference and stops tracking the path. Other
// holders keep the document alive.
func (s *Store) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[path]; ok {
		d.Release()
		delete(s.docs, path)
	}
}

// Paths returns the tracked document paths.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	return paths
}

// Len returns the number of tracked documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
