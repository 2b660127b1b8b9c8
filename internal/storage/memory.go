package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryBlob struct {
	contentType string
	data        []byte
}

// MemoryStore keeps blobs in process, for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string]memoryBlob{}}
}

func (s *MemoryStore) Upload(_ context.Context, name, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = memoryBlob{contentType: contentType, data: append([]byte(nil), data...)}
	return objectURL("memory://media", name), nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; !ok {
		return fmt.Errorf("memory delete %s: %w", name, ErrBlobNotFound)
	}
	delete(s.blobs, name)
	return nil
}

func (s *MemoryStore) PresignURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[name]; !ok {
		return "", fmt.Errorf("memory presign %s: %w", name, ErrBlobNotFound)
	}
	return fmt.Sprintf("%s?expires=%d", objectURL("memory://media", name), int(ttl.Seconds())), nil
}

func (s *MemoryStore) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[name]
	return ok
}

func (s *MemoryStore) ContentType(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blobs[name].contentType
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
