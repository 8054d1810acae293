package auth

import (
	"sync"
	"time"
)

// DefaultRevocationLimit is the hard ceiling on retained fingerprints.
const DefaultRevocationLimit = 10000

type revocationEntry struct {
	fingerprint string
	expiresAt   time.Time
}

// Registry is the set of revoked-token fingerprints. Presence always
// means reject; absence proves nothing (the token must still verify
// and its subject must still resolve).
//
// Entries carry the revoked token's own expiry, so Compact can drop
// only fingerprints whose tokens could no longer verify anyway. The
// ceiling-triggered half drop remains as a last resort against
// pathological logout volume, and is the one case where a revoked,
// still-live token could slip back through.
type Registry struct {
	mu      sync.Mutex
	members map[string]time.Time
	order   []revocationEntry
	limit   int

	now func() time.Time
}

func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultRevocationLimit
	}
	return &Registry{
		members: make(map[string]time.Time),
		limit:   limit,
		now:     time.Now,
	}
}

// Revoke records the fingerprint until expiresAt. A zero expiresAt is
// accepted and treated as never-expiring (only the ceiling fallback
// can remove it).
func (r *Registry) Revoke(fingerprint string, expiresAt time.Time) {
	if fingerprint == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[fingerprint]; !exists {
		r.order = append(r.order, revocationEntry{fingerprint: fingerprint, expiresAt: expiresAt})
	}
	r.members[fingerprint] = expiresAt

	if len(r.members) > r.limit {
		r.compactLocked()
	}
}

// IsRevoked reports fingerprint membership.
func (r *Registry) IsRevoked(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[fingerprint]
	return ok
}

// Compact drops fingerprints whose tokens have expired, then falls
// back to dropping the oldest half in insertion order if the registry
// is still over its ceiling.
func (r *Registry) Compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compactLocked()
}

// Len reports the number of retained fingerprints.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Registry) compactLocked() {
	now := r.now()

	kept := r.order[:0]
	for _, entry := range r.order {
		expiry, live := r.members[entry.fingerprint]
		if !live {
			continue
		}
		if !expiry.IsZero() && now.After(expiry) {
			delete(r.members, entry.fingerprint)
			continue
		}
		kept = append(kept, entry)
	}
	r.order = kept

	if len(r.members) <= r.limit {
		return
	}
	drop := len(r.order) / 2
	for _, entry := range r.order[:drop] {
		delete(r.members, entry.fingerprint)
	}
	r.order = append(r.order[:0], r.order[drop:]...)
}
