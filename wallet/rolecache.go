package wallet

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/singleflight"
)

// RoleLookupFunc fetches the ledger role of an identity.
type RoleLookupFunc func(ctx context.Context,
	identity string) (fn.Option[string], error)

// RoleCache remembers the ledger role of identities. It is owned by the
// caller and may be shared between engines. Concurrent first lookups of the
// same identity are collapsed into one, and the first stored value wins.
type RoleCache struct {
	mu    sync.RWMutex
	roles map[string]fn.Option[string]

	group singleflight.Group
}

// NewRoleCache returns an empty role cache.
func NewRoleCache() *RoleCache {
	return &RoleCache{
		roles: make(map[string]fn.Option[string]),
	}
}

// Get returns the cached role of identity, if any. The outer option reports
// whether the identity is cached, the inner one whether it has a role.
func (c *RoleCache) Get(identity string) fn.Option[fn.Option[string]] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	role, ok := c.roles[identity]
	if !ok {
		return fn.None[fn.Option[string]]()
	}

	return fn.Some(role)
}

// Store records the role of identity unless one is already cached. It
// returns the cached value.
func (c *RoleCache) Store(identity string,
	role fn.Option[string]) fn.Option[string] {

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.roles[identity]; ok {
		return cached
	}
	c.roles[identity] = role

	return role
}

// Forget drops the cached role of identity.
func (c *RoleCache) Forget(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.roles, identity)
}

// Lookup returns the cached role of identity, calling lookup on a miss.
// Failed lookups are not cached. The shared lookup is detached from the
// cancellation of the caller that started it, so a caller giving up never
// fails the others waiting on the same identity.
func (c *RoleCache) Lookup(ctx context.Context, identity string,
	lookup RoleLookupFunc) (fn.Option[string], error) {

	if cached := c.Get(identity); cached.IsSome() {
		return cached.UnwrapOr(fn.None[string]()), nil
	}

	lookupCtx := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(identity, func() (any, error) {
		role, err := lookup(lookupCtx, identity)
		if err != nil {
			return nil, err
		}

		return c.Store(identity, role), nil
	})

	select {
	case res := <-resultChan:
		if res.Err != nil {
			return fn.None[string](), res.Err
		}

		if res.Shared {
			log.Tracef("Shared role lookup for %s", identity)
		}

		return res.Val.(fn.Option[string]), nil

	case <-ctx.Done():
		return fn.None[string](), ctx.Err()
	}
}
