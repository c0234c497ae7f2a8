package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

// MemoryStore is an in-memory Store used by handler and vacuum tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	Now     func() time.Time
}

// NewMemoryStore builds an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		Now:     time.Now,
	}
}

func (s *MemoryStore) PutBytes(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	s.objects[key] = memoryObject{body: cp, contentType: contentType, modified: s.Now()}
	return nil
}

func (s *MemoryStore) PutReader(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return s.PutBytes(ctx, key, data, contentType)
}

func (s *MemoryStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("memory store: key %q not found", key)
	}
	return obj.body, nil
}

func (s *MemoryStore) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	body, err := s.GetBytes(ctx, key)
	if err != nil {
		return nil, err
	}
	end := offset + length
	if end > int64(len(body)) {
		end = int64(len(body))
	}
	if offset > int64(len(body)) {
		offset = int64(len(body))
	}
	return body[offset:end], nil
}

func (s *MemoryStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("memory store: key %q not found", key)
	}
	return ObjectInfo{Key: key, Size: int64(len(obj.body)), LastModified: obj.modified, ContentType: obj.contentType}, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) DeleteBatch(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) ListPrefix(_ context.Context, prefix string, yield func(ObjectInfo) error) error {
	s.mu.Lock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	infos := make([]ObjectInfo, 0, len(keys))
	for _, k := range keys {
		obj := s.objects[k]
		infos = append(infos, ObjectInfo{Key: k, Size: int64(len(obj.body)), LastModified: obj.modified, ContentType: obj.contentType})
	}
	s.mu.Unlock()

	for _, info := range infos {
		if err := yield(info); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("memory store: key %q not found", srcKey)
	}
	s.objects[dstKey] = obj
	return nil
}

func (s *MemoryStore) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("memory://presigned-get/%s?expires=%s", key, expires), nil
}

func (s *MemoryStore) PresignPut(_ context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("memory://presigned-put/%s?expires=%s", key, expires), nil
}
