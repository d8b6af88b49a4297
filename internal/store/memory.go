package store

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBackend keeps collections in process memory. Nothing survives Close.
type MemoryBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[name]
	if !ok {
		return nil, ErrNotExist
	}
	return bytes.Clone(data), nil
}

func (b *MemoryBackend) Save(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[name] = bytes.Clone(data)
	return nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs = make(map[string][]byte)
	return nil
}
