// Package integration resolves an organization's source code integration
// installation.
package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"codemap/internal/config"
)

// ErrInstallationNotFound is returned when an organization has no usable
// source code integration.
var ErrInstallationNotFound = errors.New("installation not found")

// Installation is an organization's source code integration.
type Installation struct {
	OrganizationID int64
	IntegrationID  int64
	Provider       string
	// DomainName is host plus owner, e.g. "github.com/test-org".
	DomainName string
}

// Owner returns the account part of DomainName.
func (i Installation) Owner() string {
	_, owner, ok := strings.Cut(i.DomainName, "/")
	if !ok {
		return ""
	}
	return owner
}

// Resolver looks up the installation of an organization.
type Resolver interface {
	Installation(ctx context.Context, organizationID int64) (Installation, error)
}

// StaticResolver serves installations from configuration.
type StaticResolver map[int64]Installation

// NewStaticResolver builds a resolver from the configured installations.
func NewStaticResolver(installs []config.InstallationConfig) StaticResolver {
	r := make(StaticResolver, len(installs))
	for _, c := range installs {
		r[c.OrganizationID] = Installation{
			OrganizationID: c.OrganizationID,
			IntegrationID:  c.IntegrationID,
			Provider:       c.Provider,
			DomainName:     c.DomainName,
		}
	}
	return r
}

// Installation returns the installation for organizationID.
func (r StaticResolver) Installation(ctx context.Context, organizationID int64) (Installation, error) {
	if err := ctx.Err(); err != nil {
		return Installation{}, err
	}
	inst, ok := r[organizationID]
	if !ok {
		return Installation{}, fmt.Errorf("organization %d: %w", organizationID, ErrInstallationNotFound)
	}
	return inst, nil
}

// CachedResolver memoizes successful lookups of another resolver in an LRU.
// Failures are not cached.
type CachedResolver struct {
	next  Resolver
	cache *lru.Cache[int64, Installation]
}

// NewCachedResolver wraps next with an LRU of the given size.
func NewCachedResolver(next Resolver, size int) (*CachedResolver, error) {
	cache, err := lru.New[int64, Installation](size)
	if err != nil {
		return nil, fmt.Errorf("creating installation cache: %w", err)
	}
	return &CachedResolver{next: next, cache: cache}, nil
}

// Installation returns the cached installation or resolves and caches it.
func (c *CachedResolver) Installation(ctx context.Context, organizationID int64) (Installation, error) {
	if inst, ok := c.cache.Get(organizationID); ok {
		return inst, nil
	}
	inst, err := c.next.Installation(ctx, organizationID)
	if err != nil {
		return Installation{}, err
	}
	c.cache.Add(organizationID, inst)
	return inst, nil
}

// Purge drops every cached installation.
func (c *CachedResolver) Purge() {
	c.cache.Purge()
}
