// Package purchase orchestrates airtime and data purchases: it reserves
// wallet funds, calls the VTU provider, and settles the result.
//
// The money-safety rules are:
//
//   - Funds are reserved (locked) atomically with the creation of the
//     purchase row, before any provider call.
//   - The provider is never called while a wallet row lock is held.
//   - Settlement runs through one code path, ApplyOutcome, shared by the
//     initial purchase, client-driven requeries and the reconciliation
//     sweeper. A refund fires only on a genuine pending-to-failed
//     transition; a successful purchase is never mutated again.
//   - A transport failure leaves the purchase pending with funds still
//     reserved. The true outcome is unknown until a requery resolves it.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/idempotency"
	"quicksurf/internal/services/ledger"
	"quicksurf/internal/services/vtu"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errLostCreateRace signals that another request created the purchase row
// first; the enclosing transaction rolls back our reservation.
var errLostCreateRace = errors.New("lost purchase create race")

// Input is one purchase submission.
type Input struct {
	UserID          uint
	Kind            string
	Network         string
	Phone           string
	Plan            string
	Amount          decimal.Decimal
	ClientReference string
}

// Locker is an advisory mutex, typically redis. Purchases stay correct
// without it: the database constraints are the source of truth, the locker
// only sheds duplicate load early.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Hook runs after a purchase transitions to successful, outside any
// transaction. Hooks must tolerate being slow or failing; they cannot affect
// the settled purchase.
type Hook func(ctx context.Context, p *models.PurchaseRequest)

// Config tunes purchase limits and advisory lock windows.
type Config struct {
	MinAmount   decimal.Decimal
	MaxAmount   decimal.Decimal
	MutexTTL    time.Duration
	CooldownTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinAmount:   DefaultMinAmount,
		MaxAmount:   DefaultMaxAmount,
		MutexTTL:    30 * time.Second,
		CooldownTTL: 15 * time.Second,
	}
}

// Service is the purchase orchestrator.
type Service struct {
	db        *gorm.DB
	wallets   repositories.WalletRepository
	purchases repositories.PurchaseRepository
	logs      repositories.ProviderLogRepository
	ledger    *ledger.Service
	guard     *idempotency.Service
	gateway   vtu.Gateway
	locks     Locker
	logger    *zap.Logger
	metrics   MetricsCollector
	cfg       Config
	hooks     []Hook
}

// NewService wires the orchestrator. locks and logs may be nil; logger and
// metrics default to no-ops.
func NewService(
	db *gorm.DB,
	wallets repositories.WalletRepository,
	purchases repositories.PurchaseRepository,
	logs repositories.ProviderLogRepository,
	ledgerSvc *ledger.Service,
	guard *idempotency.Service,
	gateway vtu.Gateway,
	locks Locker,
	logger *zap.Logger,
	metrics MetricsCollector,
	cfg Config,
) *Service {
	if db == nil {
		panic("db is required")
	}
	if wallets == nil || purchases == nil {
		panic("wallet and purchase repositories are required")
	}
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if guard == nil {
		panic("idempotency service is required")
	}
	if gateway == nil {
		panic("provider gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	if cfg.MinAmount.IsZero() {
		cfg.MinAmount = DefaultMinAmount
	}
	if cfg.MaxAmount.IsZero() {
		cfg.MaxAmount = DefaultMaxAmount
	}
	if cfg.MutexTTL == 0 {
		cfg.MutexTTL = 30 * time.Second
	}
	if cfg.CooldownTTL == 0 {
		cfg.CooldownTTL = 15 * time.Second
	}
	return &Service{
		db:        db,
		wallets:   wallets,
		purchases: purchases,
		logs:      logs,
		ledger:    ledgerSvc,
		guard:     guard,
		gateway:   gateway,
		locks:     locks,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// AddHook registers a post-success hook. Not safe to call concurrently with
// purchases; register everything at startup.
func (s *Service) AddHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// BuyAirtime submits an airtime purchase.
func (s *Service) BuyAirtime(ctx context.Context, in Input) (*models.PurchaseRequest, error) {
	in.Kind = models.PurchaseKindAirtime
	in.Plan = ""
	return s.buy(ctx, in)
}

// BuyData submits a data bundle purchase.
func (s *Service) BuyData(ctx context.Context, in Input) (*models.PurchaseRequest, error) {
	in.Kind = models.PurchaseKindData
	return s.buy(ctx, in)
}

func (s *Service) buy(ctx context.Context, in Input) (*models.PurchaseRequest, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	// A resubmitted reference returns the existing purchase untouched: no
	// new provider call, no ledger mutation.
	if existing, err := s.purchases.GetByClientReference(ctx, in.ClientReference); err == nil {
		return existing, nil
	} else if !errors.Is(err, repositories.ErrPurchaseNotFound) {
		return nil, err
	}

	release, err := s.acquireMutexes(ctx, in)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.guard.Begin(ctx, in.UserID, in.ClientReference); err != nil {
		if errors.Is(err, idempotency.ErrDuplicateRequest) {
			if existing, lookupErr := s.purchases.GetByClientReference(ctx, in.ClientReference); lookupErr == nil {
				return existing, nil
			}
			// Claimed by a concurrent request that has not created the
			// purchase row yet.
			return nil, ErrInFlight
		}
		return nil, err
	}

	purchase, created, err := s.reserve(ctx, in)
	if err != nil {
		return nil, err
	}
	if !created {
		return purchase, nil
	}

	out := s.dispatch(ctx, purchase)
	s.audit(ctx, purchase, "/pay", out)

	settled, _, err := s.applyAndHook(ctx, purchase.ClientReference, out)
	if err != nil {
		// The provider already answered; the sweeper will settle it.
		s.logger.Error("purchase settlement failed",
			zap.String("client_reference", purchase.ClientReference),
			zap.Error(err),
		)
		return purchase, nil
	}

	if err := s.guard.Finalize(ctx, in.UserID, in.ClientReference, models.JSON{
		"client_reference": settled.ClientReference,
		"status":           settled.Status,
	}); err != nil {
		s.logger.Warn("idempotency finalize failed",
			zap.String("client_reference", settled.ClientReference),
			zap.Error(err),
		)
	}
	return settled, nil
}

// reserve locks the funds and creates the purchase row in one transaction.
// Losing the unique-reference race rolls the reservation back and returns
// the winner's row.
func (s *Service) reserve(ctx context.Context, in Input) (*models.PurchaseRequest, bool, error) {
	purchase := &models.PurchaseRequest{
		UserID:            in.UserID,
		Kind:              in.Kind,
		Network:           in.Network,
		Phone:             in.Phone,
		Plan:              in.Plan,
		Amount:            in.Amount,
		Status:            models.PurchaseStatusPending,
		ClientReference:   in.ClientReference,
		ProviderRequestID: vtu.GenerateRequestID(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		wtx := s.wallets.WithTx(tx)
		ptx := s.purchases.WithTx(tx)

		if _, err := s.ledger.LockFundsTx(ctx, wtx, in.UserID, in.Amount, in.ClientReference); err != nil {
			return err
		}
		if err := ptx.Create(ctx, purchase); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return errLostCreateRace
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errLostCreateRace) {
		existing, lookupErr := s.purchases.GetByClientReference(ctx, in.ClientReference)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return purchase, true, nil
}

func (s *Service) dispatch(ctx context.Context, p *models.PurchaseRequest) vtu.Outcome {
	started := time.Now()
	var out vtu.Outcome
	if p.Kind == models.PurchaseKindData {
		out = s.gateway.PurchaseData(ctx, p.Network, p.Phone, p.Plan, p.ProviderRequestID)
	} else {
		out = s.gateway.PurchaseAirtime(ctx, p.Network, p.Phone, p.Amount, p.ProviderRequestID)
	}
	s.metrics.RecordProviderLatency("/pay", float64(time.Since(started).Milliseconds()))
	return out
}

// ApplyOutcome is the single settlement path for purchases. It re-locks the
// purchase and wallet rows, applies the canonical outcome, and reports
// whether the purchase just transitioned to successful. Re-applying an
// outcome to a terminal purchase is a no-op, so the sweeper, client
// requeries and the initial flow can race safely.
func (s *Service) ApplyOutcome(ctx context.Context, clientRef string, out vtu.Outcome) (*models.PurchaseRequest, bool, error) {
	var purchase *models.PurchaseRequest
	becameSuccessful := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		wtx := s.wallets.WithTx(tx)
		ptx := s.purchases.WithTx(tx)

		var err error
		purchase, err = ptx.GetByClientReferenceForUpdate(ctx, clientRef)
		if err != nil {
			return err
		}
		if purchase.Terminal() {
			return nil
		}

		purchase.ProviderStatusText = string(out.State)
		if out.Code != "" {
			purchase.ProviderStatusText = fmt.Sprintf("%s (%s)", out.State, out.Code)
		}
		if out.ProviderTxnID != "" {
			purchase.ProviderReference = out.ProviderTxnID
		}
		if out.Raw != nil {
			purchase.RawProviderBody = out.Raw
		}

		switch {
		case out.Delivered():
			if _, err := s.ledger.DebitTx(ctx, wtx, purchase.UserID, purchase.Amount, purchase.ClientReference, true); err != nil {
				return err
			}
			purchase.Status = models.PurchaseStatusSuccessful
			becameSuccessful = true
		case out.Declined():
			if _, err := s.ledger.UnlockFundsTx(ctx, wtx, purchase.UserID, purchase.Amount, purchase.ClientReference); err != nil {
				return err
			}
			purchase.Status = models.PurchaseStatusFailed
		default:
			// Still pending, or a transport failure with the true outcome
			// unknown. Funds stay reserved for the sweeper to resolve.
			purchase.Status = models.PurchaseStatusPending
		}
		return ptx.Save(ctx, purchase)
	})
	if err != nil {
		return nil, false, err
	}

	s.metrics.RecordOutcome(purchase.Kind, purchase.Network, purchase.Status)
	s.logger.Info("purchase settled",
		zap.String("client_reference", purchase.ClientReference),
		zap.String("status", purchase.Status),
		zap.Bool("transport_failure", out.Transport),
	)
	return purchase, becameSuccessful, nil
}

// Requery asks the provider for the current state of an open purchase and
// settles it through the shared outcome path. Terminal purchases are
// returned as-is without a provider call.
func (s *Service) Requery(ctx context.Context, userID uint, clientRef string) (*models.PurchaseRequest, error) {
	purchase, err := s.purchases.GetByClientReference(ctx, clientRef)
	if err != nil {
		return nil, err
	}
	if userID != 0 && purchase.UserID != userID {
		return nil, repositories.ErrPurchaseNotFound
	}
	if purchase.Terminal() {
		return purchase, nil
	}

	started := time.Now()
	out := s.gateway.Requery(ctx, purchase.ProviderRequestID)
	s.metrics.RecordProviderLatency("/requery", float64(time.Since(started).Milliseconds()))
	s.audit(ctx, purchase, "/requery", out)

	if out.Transport {
		// Nothing learned; leave the purchase untouched.
		return purchase, nil
	}

	settled, _, err := s.applyAndHook(ctx, clientRef, out)
	return settled, err
}

func (s *Service) applyAndHook(ctx context.Context, clientRef string, out vtu.Outcome) (*models.PurchaseRequest, bool, error) {
	purchase, becameSuccessful, err := s.ApplyOutcome(ctx, clientRef, out)
	if err != nil {
		return nil, false, err
	}
	if becameSuccessful {
		for _, h := range s.hooks {
			h(ctx, purchase)
		}
	}
	return purchase, becameSuccessful, nil
}

// Status returns a purchase scoped to its owner.
func (s *Service) Status(ctx context.Context, userID uint, clientRef string) (*models.PurchaseRequest, error) {
	purchase, err := s.purchases.GetByClientReference(ctx, clientRef)
	if err != nil {
		return nil, err
	}
	if userID != 0 && purchase.UserID != userID {
		return nil, repositories.ErrPurchaseNotFound
	}
	return purchase, nil
}

// History lists the user's purchases, most recent first.
func (s *Service) History(ctx context.Context, userID uint, filter repositories.PurchaseFilter) ([]models.PurchaseRequest, error) {
	return s.purchases.ListByUser(ctx, userID, filter)
}

// ListPlans returns the purchasable data plans for a network.
func (s *Service) ListPlans(ctx context.Context, network string) ([]vtu.Plan, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	serviceID, ok := vtu.DataServiceIDs[network]
	if !ok {
		return nil, ErrUnknownNetwork
	}
	return s.gateway.ListPlans(ctx, serviceID)
}

// acquireMutexes takes the advisory submission mutex and the per-line
// cooldown. The mutex is released when the request finishes; the cooldown
// expires on its own. A lock service outage degrades to no advisory
// locking rather than blocking purchases.
func (s *Service) acquireMutexes(ctx context.Context, in Input) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	refKey := "purchase:ref:" + in.ClientReference
	ok, err := s.locks.AcquireLock(ctx, refKey, s.cfg.MutexTTL)
	if err != nil {
		s.logger.Warn("lock service unavailable, proceeding without advisory locks", zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrInFlight
	}

	lineKey := fmt.Sprintf("purchase:line:%d:%s:%s", in.UserID, in.Network, in.Phone)
	ok, err = s.locks.AcquireLock(ctx, lineKey, s.cfg.CooldownTTL)
	if err == nil && !ok {
		_ = s.locks.ReleaseLock(ctx, refKey)
		return nil, ErrLineBusy
	}

	return func() { _ = s.locks.ReleaseLock(ctx, refKey) }, nil
}

// audit persists one ProviderLog row for a provider exchange. Log failures
// are reported but never break the purchase flow.
func (s *Service) audit(ctx context.Context, p *models.PurchaseRequest, endpoint string, out vtu.Outcome) {
	if s.logs == nil {
		return
	}
	uid := p.UserID
	log := &models.ProviderLog{
		UserID:          &uid,
		ServiceType:     p.Kind,
		ClientReference: p.ClientReference,
		RequestID:       p.ProviderRequestID,
		Endpoint:        endpoint,
		Provider:        "vtpass",
		RequestPayload: vtu.MaskPayload(models.JSON{
			"phone":          p.Phone,
			"network":        p.Network,
			"amount":         p.Amount.StringFixed(2),
			"variation_code": p.Plan,
		}),
		ResponsePayload: vtu.MaskPayload(out.Raw),
		StatusCode:      fmt.Sprint(out.HTTPStatus),
	}
	if out.Transport {
		log.StatusCode = "0"
		log.ErrorMessage = out.Message
	}
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Warn("provider log write failed",
			zap.String("client_reference", p.ClientReference),
			zap.Error(err),
		)
	}
}
