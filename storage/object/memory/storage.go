package memstore

import (
	"context"
	"io"
	"sync"

	"github.com/vocsite/chuo/core"
)

type object struct {
	data        []byte
	contentType string
}

// Storage is the in-memory object store used by tests and DEV.
type Storage struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object

	// failure injection (tests only)
	UploadErr error
	RemoveErr error
}

var _ core.ObjectStorage = (*Storage)(nil)

func New(bucket string) *Storage {
	return &Storage{bucket: bucket, objects: make(map[string]object)}
}

func (s *Storage) Upload(_ context.Context, path string, r io.Reader, contentType string) error {
	if s.UploadErr != nil {
		return s.UploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{data: data, contentType: contentType}
	return nil
}

func (s *Storage) PublicURL(path string) string {
	return "https://storage.local/" + s.bucket + "/" + path
}

func (s *Storage) Remove(_ context.Context, path string) error {
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

// Exists reports whether an object was stored under path.
func (s *Storage) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok
}

// Len is the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
