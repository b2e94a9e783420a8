package session

import (
	"context"
	"errors"
	"sync"

	"storefront-core/internal/domain"
)

type memoryRepo struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemory returns a process-local Repository.
func NewMemory() Repository {
	return &memoryRepo{values: make(map[string]map[string]string)}
}

func (r *memoryRepo) Get(_ context.Context, sessionID, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[sessionID][key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *memoryRepo) Put(_ context.Context, sessionID string, values map[string]string) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.values[sessionID]
	if bucket == nil {
		bucket = make(map[string]string)
		r.values[sessionID] = bucket
	}
	for key, value := range values {
		if value == "" {
			delete(bucket, key)
			continue
		}
		bucket[key] = value
	}
	return nil
}

func (r *memoryRepo) DeleteSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.values, sessionID)
	r.mu.Unlock()
	return nil
}
