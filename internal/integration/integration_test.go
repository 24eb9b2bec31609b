package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/config"
)

type countingResolver struct {
	next  Resolver
	calls int
}

func (c *countingResolver) Installation(ctx context.Context, org int64) (Installation, error) {
	c.calls++
	return c.next.Installation(ctx, org)
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver([]config.InstallationConfig{
		{OrganizationID: 1, IntegrationID: 7, Provider: "github", DomainName: "github.com/test-org"},
	})

	inst, err := r.Installation(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), inst.IntegrationID)
	assert.Equal(t, "test-org", inst.Owner())

	_, err = r.Installation(context.Background(), 2)
	assert.ErrorIs(t, err, ErrInstallationNotFound)
}

func TestInstallation_Owner(t *testing.T) {
	assert.Equal(t, "", Installation{DomainName: "github.com"}.Owner())
	assert.Equal(t, "acme/sub", Installation{DomainName: "gitlab.example.com/acme/sub"}.Owner())
}

func TestCachedResolver(t *testing.T) {
	inner := &countingResolver{next: StaticResolver{1: {OrganizationID: 1, IntegrationID: 7}}}
	c, err := NewCachedResolver(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		inst, err := c.Installation(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), inst.IntegrationID)
	}
	assert.Equal(t, 1, inner.calls, "hits are served from the cache")

	for i := 0; i < 2; i++ {
		_, err := c.Installation(ctx, 2)
		assert.ErrorIs(t, err, ErrInstallationNotFound)
	}
	assert.Equal(t, 3, inner.calls, "failures are not cached")

	c.Purge()
	_, err = c.Installation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestNewCachedResolver_InvalidSize(t *testing.T) {
	_, err := NewCachedResolver(StaticResolver{}, 0)
	assert.Error(t, err)
}
