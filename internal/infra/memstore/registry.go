package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"consentledger/internal/domain"
)

// Registry is an in-memory IdentityRegistry.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]map[string]domain.IdentityKey
}

func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]map[string]domain.IdentityKey)}
}

func (r *Registry) Get(ctx context.Context, tenantID, identityID string) (domain.IdentityKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[tenantID][identityID]
	if !ok {
		return domain.IdentityKey{}, fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, identityID)
	}
	return key, nil
}

func (r *Registry) Put(ctx context.Context, key domain.IdentityKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenant := r.keys[key.TenantID]
	if tenant == nil {
		tenant = make(map[string]domain.IdentityKey)
		r.keys[key.TenantID] = tenant
	}
	if _, exists := tenant[key.IdentityID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrIdentityExists, key.IdentityID)
	}
	tenant[key.IdentityID] = key
	return nil
}

func (r *Registry) Revoke(ctx context.Context, tenantID, identityID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[tenantID][identityID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrIdentityUnknown, identityID)
	}
	if key.RevokedAt == nil {
		key.RevokedAt = &at
		r.keys[tenantID][identityID] = key
	}
	return nil
}

func (r *Registry) List(ctx context.Context, tenantID string) ([]domain.IdentityKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant := r.keys[tenantID]
	out := make([]domain.IdentityKey, 0, len(tenant))
	for _, key := range tenant {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, nil
}
