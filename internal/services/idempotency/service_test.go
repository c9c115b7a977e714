package idempotency

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	return NewService(repositories.NewIdempotencyRepository(db), nil)
}

func TestBeginClaimsKeyOnce(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	record, err := svc.Begin(ctx, 1, "ref-1")
	require.NoError(t, err)
	assert.False(t, record.Success)

	_, err = svc.Begin(ctx, 1, "ref-1")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestFinalizeStoresResultForReplay(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	_, err := svc.Begin(ctx, 1, "ref-1")
	require.NoError(t, err)
	require.NoError(t, svc.Finalize(ctx, 1, "ref-1", models.JSON{"status": "successful"}))

	record, err := svc.Begin(ctx, 1, "ref-1")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	require.NotNil(t, record)
	assert.True(t, record.Success)
	assert.Equal(t, "successful", record.ResponseJSON["status"])
}

func TestKeysAreScopedPerUser(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	_, err := svc.Begin(ctx, 1, "ref-1")
	require.NoError(t, err)

	// A different user may reuse the same key.
	_, err = svc.Begin(ctx, 2, "ref-1")
	assert.NoError(t, err)
}
