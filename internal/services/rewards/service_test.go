package rewards

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T, rate string) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	return NewService(db, decimal.RequireFromString(rate), nil)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPointsForFloorsPartialPoints(t *testing.T) {
	svc := testService(t, "0.01")

	assert.Equal(t, uint(10), svc.PointsFor(d("1000")))
	assert.Equal(t, uint(9), svc.PointsFor(d("999.99")))
	assert.Equal(t, uint(0), svc.PointsFor(d("99")))
	assert.Equal(t, uint(0), svc.PointsFor(d("-500")))
}

func TestAwardOnceIsIdempotentPerTransaction(t *testing.T) {
	svc := testService(t, "0.01")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AwardOnce(ctx, 1, "airtime", "REF-1", d("1000")))
	}

	total, err := svc.TotalPoints(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(10), total)

	var entries int64
	require.NoError(t, svc.db.Model(&models.LoyaltyEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestAwardOnceSkipsZeroPointAmounts(t *testing.T) {
	svc := testService(t, "0.01")
	ctx := context.Background()

	require.NoError(t, svc.AwardOnce(ctx, 1, "airtime", "REF-SMALL", d("50")))

	var entries int64
	require.NoError(t, svc.db.Model(&models.LoyaltyEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), entries)
}

func TestTotalPointsAccumulatesAcrossTransactions(t *testing.T) {
	svc := testService(t, "0.01")
	ctx := context.Background()

	require.NoError(t, svc.AwardOnce(ctx, 1, "airtime", "REF-A", d("1000")))
	require.NoError(t, svc.AwardOnce(ctx, 1, "data", "REF-B", d("2500")))
	require.NoError(t, svc.AwardOnce(ctx, 2, "airtime", "REF-C", d("700")))

	total, err := svc.TotalPoints(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(35), total)

	other, err := svc.TotalPoints(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(7), other)
}

func TestTotalPointsForUnknownUserIsZero(t *testing.T) {
	svc := testService(t, "0.01")

	total, err := svc.TotalPoints(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, uint(0), total)
}

func TestPurchaseHookAwardsFromPurchase(t *testing.T) {
	svc := testService(t, "0.01")
	ctx := context.Background()

	hook := svc.PurchaseHook()
	p := &models.PurchaseRequest{
		UserID:          5,
		Kind:            models.PurchaseKindData,
		Amount:          d("1500"),
		ClientReference: "REF-HOOK",
	}
	hook(ctx, p)
	hook(ctx, p)

	total, err := svc.TotalPoints(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, uint(15), total)
}
