package ledger

import (
	"context"
	"errors"
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

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	return db
}

func testService(t *testing.T) (*Service, repositories.WalletRepository) {
	t.Helper()
	repo := repositories.NewWalletRepository(testDB(t))
	return NewService(repo, nil, nil, nil), repo
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func wallet(t *testing.T, repo repositories.WalletRepository, userID uint) *models.Wallet {
	t.Helper()
	w, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func TestCreditCreatesWalletLazily(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	entry, err := svc.Credit(ctx, 1, d("100.50"), "fund-1")
	require.NoError(t, err)
	assert.Equal(t, models.EntryCredit, entry.Kind)
	assert.True(t, d("100.50").Equal(entry.Amount))

	w := wallet(t, repo, 1)
	assert.True(t, d("100.50").Equal(w.Balance))
	assert.True(t, w.Locked.IsZero())
}

func TestCreditRejectsNonPositive(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("0"), "x")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Credit(ctx, 1, d("-5"), "x")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditTruncatesToTwoDecimals(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("100.999"), "fund-1")
	require.NoError(t, err)

	w := wallet(t, repo, 1)
	assert.True(t, d("100.99").Equal(w.Balance), "got %s", w.Balance)
}

func TestLockUnlockRoundTrip(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("1000"), "fund-1")
	require.NoError(t, err)

	_, err = svc.LockFunds(ctx, 1, d("100"), "buy-1")
	require.NoError(t, err)
	w := wallet(t, repo, 1)
	assert.True(t, d("1000").Equal(w.Balance))
	assert.True(t, d("100").Equal(w.Locked))
	assert.True(t, d("900").Equal(w.Available()))

	_, err = svc.UnlockFunds(ctx, 1, d("100"), "buy-1")
	require.NoError(t, err)
	w = wallet(t, repo, 1)
	assert.True(t, d("1000").Equal(w.Balance))
	assert.True(t, w.Locked.IsZero())
	assert.True(t, d("1000").Equal(w.Available()))
}

func TestLockFailsOnInsufficientAvailable(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("100"), "fund-1")
	require.NoError(t, err)
	_, err = svc.LockFunds(ctx, 1, d("60"), "buy-1")
	require.NoError(t, err)

	// Available is 40 even though balance is 100.
	_, err = svc.LockFunds(ctx, 1, d("50"), "buy-2")
	assert.ErrorIs(t, err, ErrInsufficientAvailable)

	w := wallet(t, repo, 1)
	assert.True(t, d("60").Equal(w.Locked))
}

func TestUnlockFailsBeyondLocked(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("100"), "fund-1")
	require.NoError(t, err)
	_, err = svc.LockFunds(ctx, 1, d("30"), "buy-1")
	require.NoError(t, err)

	_, err = svc.UnlockFunds(ctx, 1, d("30.01"), "buy-1")
	assert.ErrorIs(t, err, ErrUnlockExceedsLocked)
}

func TestDebitConsumesLockedPortionFirst(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("1000"), "fund-1")
	require.NoError(t, err)
	_, err = svc.LockFunds(ctx, 1, d("300"), "buy-1")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 1, d("300"), "buy-1")
	require.NoError(t, err)

	w := wallet(t, repo, 1)
	assert.True(t, d("700").Equal(w.Balance))
	assert.True(t, w.Locked.IsZero())
}

func TestDebitWithoutReservation(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("500"), "fund-1")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 1, d("200"), "spend-1")
	require.NoError(t, err)

	w := wallet(t, repo, 1)
	assert.True(t, d("300").Equal(w.Balance))
	assert.True(t, w.Locked.IsZero())
}

func TestDebitFailsOnInsufficientBalance(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("100"), "fund-1")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 1, d("100.01"), "spend-1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	w := wallet(t, repo, 1)
	assert.True(t, d("100").Equal(w.Balance))
}

func TestEachMutationAppendsOneEntry(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("1000"), "fund-1")
	require.NoError(t, err)
	_, err = svc.LockFunds(ctx, 1, d("200"), "buy-1")
	require.NoError(t, err)
	_, err = svc.Debit(ctx, 1, d("200"), "buy-1")
	require.NoError(t, err)

	w := wallet(t, repo, 1)
	entries, err := repo.ListEntries(ctx, w.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	kinds := []string{entries[2].Kind, entries[1].Kind, entries[0].Kind}
	assert.Equal(t, []string{models.EntryCredit, models.EntryLock, models.EntryDebit}, kinds)
}

func TestWalletsAreIndependent(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("100"), "fund-1")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, 2, d("200"), "fund-2")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 1, d("50"), "spend-1")
	require.NoError(t, err)

	assert.True(t, d("50").Equal(wallet(t, repo, 1).Balance))
	assert.True(t, d("200").Equal(wallet(t, repo, 2).Balance))
}

type fakeCache struct {
	wallets map[uint]*models.Wallet
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{wallets: make(map[uint]*models.Wallet)}
}

func (f *fakeCache) GetWallet(_ context.Context, userID uint) (*models.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return nil, errors.New("miss")
	}
	return w, nil
}

func (f *fakeCache) SetWallet(_ context.Context, w *models.Wallet) error {
	f.wallets[w.UserID] = w
	return nil
}

func (f *fakeCache) DeleteWallet(_ context.Context, userID uint) error {
	delete(f.wallets, userID)
	f.deletes++
	return nil
}

func TestMutationsInvalidateCache(t *testing.T) {
	repo := repositories.NewWalletRepository(testDB(t))
	cache := newFakeCache()
	svc := NewService(repo, cache, nil, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, d("100"), "fund-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)

	// GetWallet primes the cache; the next read is served from it.
	w, err := svc.GetWallet(ctx, 1)
	require.NoError(t, err)
	cached, err := svc.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, w.ID, cached.ID)

	_, err = svc.Debit(ctx, 1, d("40"), "spend-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.deletes)
	_, ok := cache.wallets[1]
	assert.False(t, ok, "cache entry must be gone after a mutation")
}
