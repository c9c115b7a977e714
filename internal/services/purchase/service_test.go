package purchase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/idempotency"
	"quicksurf/internal/services/ledger"
	"quicksurf/internal/services/vtu"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	db        *gorm.DB
	wallets   repositories.WalletRepository
	purchases repositories.PurchaseRepository
	ledger    *ledger.Service
	gateway   *vtu.MockGateway
	svc       *Service
	hookCalls int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	f := &fixture{
		db:        db,
		wallets:   repositories.NewWalletRepository(db),
		purchases: repositories.NewPurchaseRepository(db),
		gateway:   vtu.NewMockGateway(),
	}
	f.ledger = ledger.NewService(f.wallets, nil, nil, nil)
	guard := idempotency.NewService(repositories.NewIdempotencyRepository(db), nil)
	f.svc = NewService(
		db,
		f.wallets,
		f.purchases,
		repositories.NewProviderLogRepository(db),
		f.ledger,
		guard,
		f.gateway,
		nil,
		nil,
		nil,
		DefaultConfig(),
	)
	f.svc.AddHook(func(context.Context, *models.PurchaseRequest) {
		f.hookCalls++
	})
	return f
}

func (f *fixture) fund(t *testing.T, userID uint, amount string) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), userID, d(amount), "test-fund")
	require.NoError(t, err)
}

func (f *fixture) wallet(t *testing.T, userID uint) *models.Wallet {
	t.Helper()
	w, err := f.wallets.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func airtimeInput(ref string, amount string) Input {
	return Input{
		UserID:          1,
		Network:         "mtn",
		Phone:           "08031234567",
		Amount:          d(amount),
		ClientReference: ref,
	}
}

func TestDeliveredPurchaseDebitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")

	p, err := f.svc.BuyAirtime(ctx, airtimeInput("R1", "500"))
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusSuccessful, p.Status)
	assert.NotEmpty(t, p.ProviderReference)

	w := f.wallet(t, 1)
	assert.True(t, d("500").Equal(w.Balance), "balance = %s", w.Balance)
	assert.True(t, w.Locked.IsZero(), "locked = %s", w.Locked)
	assert.Equal(t, 1, f.hookCalls)
}

func TestDeclinedPurchaseRefundsInFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")
	f.gateway.ScriptNext(vtu.FailedOutcome("", "016", "TRANSACTION FAILED"))

	p, err := f.svc.BuyAirtime(ctx, airtimeInput("R2", "500"))
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusFailed, p.Status)

	w := f.wallet(t, 1)
	assert.True(t, d("1000").Equal(w.Balance), "balance = %s", w.Balance)
	assert.True(t, w.Locked.IsZero())
	assert.Equal(t, 0, f.hookCalls)
}

func TestResubmittedReferenceReturnsExistingPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")

	first, err := f.svc.BuyAirtime(ctx, airtimeInput("R3", "300"))
	require.NoError(t, err)

	second, err := f.svc.BuyAirtime(ctx, airtimeInput("R3", "300"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// One provider call, one net debit.
	assert.Len(t, f.gateway.Calls(), 1)
	w := f.wallet(t, 1)
	assert.True(t, d("700").Equal(w.Balance), "balance = %s", w.Balance)

	var count int64
	require.NoError(t, f.db.Model(&models.PurchaseRequest{}).Where("client_reference = ?", "R3").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsufficientFundsRejectsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "100")

	_, err := f.svc.BuyAirtime(ctx, airtimeInput("R4", "200"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientAvailable)

	w := f.wallet(t, 1)
	assert.True(t, d("100").Equal(w.Balance))
	assert.True(t, w.Locked.IsZero())
	assert.Empty(t, f.gateway.Calls())

	_, err = f.purchases.GetByClientReference(ctx, "R4")
	assert.ErrorIs(t, err, repositories.ErrPurchaseNotFound)
}

func TestTransportFailureLeavesFundsReserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")
	f.gateway.ScriptNext(vtu.TransportOutcome(""))

	p, err := f.svc.BuyAirtime(ctx, airtimeInput("R5", "400"))
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, p.Status)

	// No refund: the provider may have fulfilled the purchase.
	w := f.wallet(t, 1)
	assert.True(t, d("1000").Equal(w.Balance))
	assert.True(t, d("400").Equal(w.Locked))
	assert.Equal(t, 0, f.hookCalls)
}

func TestRequerySettlesPendingPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")
	f.gateway.ScriptNext(vtu.PendingOutcome(""))

	p, err := f.svc.BuyAirtime(ctx, airtimeInput("R6", "250"))
	require.NoError(t, err)
	require.Equal(t, models.PurchaseStatusPending, p.Status)

	f.gateway.Script(p.ProviderRequestID, vtu.DeliveredOutcome(p.ProviderRequestID, nil))
	settled, err := f.svc.Requery(ctx, 1, "R6")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusSuccessful, settled.Status)

	w := f.wallet(t, 1)
	assert.True(t, d("750").Equal(w.Balance), "balance = %s", w.Balance)
	assert.True(t, w.Locked.IsZero())
	assert.Equal(t, 1, f.hookCalls)
}

func TestRequeryRefundExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")
	f.gateway.ScriptNext(vtu.PendingOutcome(""))

	p, err := f.svc.BuyAirtime(ctx, airtimeInput("R7", "250"))
	require.NoError(t, err)

	f.gateway.Script(p.ProviderRequestID, vtu.FailedOutcome(p.ProviderRequestID, "016", "TRANSACTION FAILED"))

	settled, err := f.svc.Requery(ctx, 1, "R7")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusFailed, settled.Status)

	// A second requery of the now-terminal purchase must not touch the
	// wallet or the provider again.
	callsBefore := len(f.gateway.Calls())
	again, err := f.svc.Requery(ctx, 1, "R7")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusFailed, again.Status)
	assert.Len(t, f.gateway.Calls(), callsBefore)

	w := f.wallet(t, 1)
	assert.True(t, d("1000").Equal(w.Balance), "balance = %s", w.Balance)
	assert.True(t, w.Locked.IsZero())
}

func TestApplyOutcomeIsIdempotentOnTerminalPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")

	p, err := f.svc.BuyAirtime(ctx, airtimeInput("R8", "100"))
	require.NoError(t, err)
	require.Equal(t, models.PurchaseStatusSuccessful, p.Status)

	// A late duplicate outcome (e.g. a racing sweeper) changes nothing.
	_, became, err := f.svc.ApplyOutcome(ctx, "R8", vtu.FailedOutcome(p.ProviderRequestID, "016", "late decline"))
	require.NoError(t, err)
	assert.False(t, became)

	w := f.wallet(t, 1)
	assert.True(t, d("900").Equal(w.Balance), "balance = %s", w.Balance)
	assert.Equal(t, 1, f.hookCalls)
}

func TestDataPurchaseRequiresPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")

	in := airtimeInput("R9", "300")
	_, err := f.svc.BuyData(ctx, in)
	assert.ErrorIs(t, err, ErrPlanRequired)

	in.Plan = "mtn-1gb"
	p, err := f.svc.BuyData(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseKindData, p.Kind)
	assert.Equal(t, models.PurchaseStatusSuccessful, p.Status)
}

func TestValidationRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr error
	}{
		{"unknown network", func(in *Input) { in.Network = "vodafone" }, ErrUnknownNetwork},
		{"bad phone", func(in *Input) { in.Phone = "not-a-number" }, ErrInvalidPhone},
		{"zero amount", func(in *Input) { in.Amount = d("0") }, ErrInvalidAmount},
		{"below minimum", func(in *Input) { in.Amount = d("10") }, ErrAmountOutOfRange},
		{"above maximum", func(in *Input) { in.Amount = d("100000") }, ErrAmountOutOfRange},
		{"missing reference", func(in *Input) { in.ClientReference = "" }, ErrMissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := airtimeInput("RV-"+tt.name, "500")
			tt.mutate(&in)
			_, err := f.svc.BuyAirtime(ctx, in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.gateway.Calls())
}

func TestPhoneNormalization(t *testing.T) {
	got, err := NormalizePhone(" 0803 123-4567 ")
	require.NoError(t, err)
	assert.Equal(t, "08031234567", got)

	got, err = NormalizePhone("+2348031234567")
	require.NoError(t, err)
	assert.Equal(t, "+2348031234567", got)

	_, err = NormalizePhone("12345")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestHistoryFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "5000")

	_, err := f.svc.BuyAirtime(ctx, airtimeInput("H1", "100"))
	require.NoError(t, err)
	f.gateway.ScriptNext(vtu.FailedOutcome("", "016", "declined"))
	_, err = f.svc.BuyAirtime(ctx, Input{
		UserID: 1, Network: "glo", Phone: "08051234567",
		Amount: d("200"), ClientReference: "H2",
	})
	require.NoError(t, err)

	all, err := f.svc.History(ctx, 1, repositories.PurchaseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := f.svc.History(ctx, 1, repositories.PurchaseFilter{Status: models.PurchaseStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "H2", failed[0].ClientReference)

	mtn, err := f.svc.History(ctx, 1, repositories.PurchaseFilter{Network: "mtn"})
	require.NoError(t, err)
	require.Len(t, mtn, 1)
	assert.Equal(t, "H1", mtn[0].ClientReference)

	other, err := f.svc.History(ctx, 2, repositories.PurchaseFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStatusScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")

	_, err := f.svc.BuyAirtime(ctx, airtimeInput("S1", "100"))
	require.NoError(t, err)

	p, err := f.svc.Status(ctx, 1, "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", p.ClientReference)

	_, err = f.svc.Status(ctx, 2, "S1")
	assert.ErrorIs(t, err, repositories.ErrPurchaseNotFound)
}

func TestProviderLogWrittenPerCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1, "1000")

	_, err := f.svc.BuyAirtime(ctx, airtimeInput("L1", "100"))
	require.NoError(t, err)

	var logs []models.ProviderLog
	require.NoError(t, f.db.Where("client_reference = ?", "L1").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.PurchaseKindAirtime, logs[0].ServiceType)
	assert.Equal(t, "/pay", logs[0].Endpoint)
	// Phone numbers never land in the log unmasked.
	assert.Equal(t, "*******4567", logs[0].RequestPayload["phone"])
}
