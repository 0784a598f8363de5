package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is an in-memory object store keyed by "bucket/path".
type MemoryStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	Err     error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Objects: map[string][]byte{}, Types: map[string]string{}}
}

func (s *MemoryStore) Upload(_ context.Context, bucket, objectPath, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Objects[bucket+"/"+objectPath] = data
	s.Types[bucket+"/"+objectPath] = contentType
	return nil
}

func (s *MemoryStore) SignedURL(_ context.Context, bucket, objectPath string, expiresIn time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Objects[bucket+"/"+objectPath]; !ok {
		return "", errors.New("object not found")
	}
	return "https://storage.test/" + bucket + "/" + objectPath + "?ttl=" + expiresIn.String(), nil
}

func (s *MemoryStore) Remove(_ context.Context, bucket string, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.Objects, bucket+"/"+p)
		delete(s.Types, bucket+"/"+p)
	}
	return nil
}

// Has reports whether an object was stored.
func (s *MemoryStore) Has(bucket, objectPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[bucket+"/"+objectPath]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Objects)
}
