// Package memory keeps cart snapshots in process memory.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/repository"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string][]byte)}
}

func (r *CartRepository) Load(_ context.Context, sessionID string) (*entity.Cart, error) {
	r.mu.RLock()
	data, ok := r.carts[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrCartNotFound
	}

	var c entity.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", sessionID, err)
	}
	return &c, nil
}

func (r *CartRepository) Save(_ context.Context, sessionID string, c entity.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", sessionID, err)
	}

	r.mu.Lock()
	r.carts[sessionID] = data
	r.mu.Unlock()
	return nil
}

func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.carts, sessionID)
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored carts.
func (r *CartRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}
