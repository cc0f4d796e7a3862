package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Tenants is an in-memory tenant directory for no-db mode.
type Tenants struct {
	mu     sync.Mutex
	byName map[string]string
}

func NewTenants() *Tenants {
	return &Tenants{byName: make(map[string]string)}
}

func (t *Tenants) Create(ctx context.Context, name string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byName[name]; exists {
		return "", fmt.Errorf("tenant %q already exists", name)
	}
	id := uuid.NewString()
	t.byName[name] = id
	return id, nil
}
