package material

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/platform/cache"
)

// BlobID returns the content address of data: hex BLAKE2b-256.
func BlobID(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MemoryBlobStore is an in-memory BlobStore.
type MemoryBlobStore struct {
	blobs map[string][]byte
	mu    sync.RWMutex
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(_ context.Context, data []byte) (string, error) {
	id := BlobID(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		s.blobs[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (s *MemoryBlobStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", id, assessment.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

// RedisBlobStore keeps blobs in Redis under assess:blob:<id>.
type RedisBlobStore struct {
	cache *cache.Cache
}

func NewRedisBlobStore(c *cache.Cache) *RedisBlobStore {
	return &RedisBlobStore{cache: c}
}

func (s *RedisBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	id := BlobID(data)
	if _, err := s.cache.SetNX(ctx, cache.Key("blob", id), data); err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return id, nil
}

func (s *RedisBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := s.cache.Get(ctx, cache.Key("blob", id))
	if errors.Is(err, cache.ErrMiss) {
		return nil, fmt.Errorf("blob %s: %w", id, assessment.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return b, nil
}
