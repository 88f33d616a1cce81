package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientDegrades(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "attendance:rollup:course:c1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "attendance:rollup:course:c1", map[string]int{"present": 1}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "attendance:rollup:course:c1"))
	require.NoError(t, repo.Close())

	err = repo.PushJSON(ctx, "attendance:events", map[string]string{"type": "attendance.session.locked"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client not configured")
}
