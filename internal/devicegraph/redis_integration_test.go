//go:build integration

package devicegraph_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherlock/internal/devicegraph"
	"sherlock/pkg/testutil/containers"
)

func TestRedisGraph_Link(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	g := devicegraph.NewRedisGraph(rc.Client, time.Hour)
	ctx := context.Background()

	for i, user := range []string{"u1", "u2", "u2", "u3", "u4"} {
		n, err := g.Link(ctx, "dev-1", user)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 2, 3, 4}[i], n)
	}

	n, err := g.Count(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ttl, err := rc.Client.TTL(ctx, "sherlock:device:dev-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}
