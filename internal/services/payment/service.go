// Package payment handles wallet funding through the card payment gateway:
// intent initialization, client-driven verification and the inbound webhook.
//
// The credit guarantee is at-most-once per intent reference. Verify and
// webhook both funnel through creditOnce, which runs with the intent and
// wallet rows locked in one transaction; whichever path arrives second
// observes status "success" and does nothing.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	wallets repositories.WalletRepository
	intents repositories.PaymentIntentRepository
	logs    repositories.ProviderLogRepository
	ledger  *ledger.Service
	client  GatewayClient
	secret  []byte
	logger  *zap.Logger

	callbackURL string
}

// NewService wires the funding service. logs may be nil.
func NewService(
	db *gorm.DB,
	wallets repositories.WalletRepository,
	intents repositories.PaymentIntentRepository,
	logs repositories.ProviderLogRepository,
	ledgerSvc *ledger.Service,
	client GatewayClient,
	webhookSecret string,
	callbackURL string,
	logger *zap.Logger,
) *Service {
	if db == nil {
		panic("db is required")
	}
	if wallets == nil || intents == nil {
		panic("wallet and intent repositories are required")
	}
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if client == nil {
		panic("gateway client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:          db,
		wallets:     wallets,
		intents:     intents,
		logs:        logs,
		ledger:      ledgerSvc,
		client:      client,
		secret:      []byte(webhookSecret),
		logger:      logger,
		callbackURL: callbackURL,
	}
}

// InitiateFunding creates a PaymentIntent and initializes a gateway
// transaction for it. The returned intent carries the authorization URL the
// client completes the card payment at.
func (s *Service) InitiateFunding(ctx context.Context, userID uint, email string, amount decimal.Decimal) (*models.PaymentIntent, error) {
	amount = models.Quantize(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}

	intent := &models.PaymentIntent{
		UserID:    userID,
		Amount:    amount,
		Currency:  "NGN",
		Reference: fmt.Sprintf("QS-%d-%d", userID, time.Now().UnixNano()),
		Status:    models.PaymentStatusInitialized,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, err
	}

	res, err := s.client.Initialize(ctx, email, amount, intent.Reference, s.callbackURL)
	s.audit(ctx, intent, "/transaction/initialize", res, err)
	if err != nil {
		intent.Status = models.PaymentStatusFailed
		if saveErr := s.intents.Save(ctx, intent); saveErr != nil {
			s.logger.Error("failed to mark intent failed", zap.String("reference", intent.Reference), zap.Error(saveErr))
		}
		return nil, err
	}

	intent.AuthorizationURL = res.AuthorizationURL
	intent.AccessCode = res.AccessCode
	intent.InitResponse = res.Raw
	intent.Status = models.PaymentStatusPending
	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// VerifyFunding polls the gateway for an intent's state and settles it. An
// already-successful intent returns immediately; a gateway-confirmed success
// credits the wallet through the same guarded path as the webhook.
func (s *Service) VerifyFunding(ctx context.Context, userID uint, reference string) (*models.PaymentIntent, error) {
	intent, err := s.intents.GetByUserAndReference(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if intent.Status == models.PaymentStatusSuccess {
		return intent, nil
	}

	res, err := s.client.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		itx := s.intents.WithTx(tx)
		wtx := s.wallets.WithTx(tx)

		locked, err := itx.GetByReferenceForUpdate(ctx, reference)
		if err != nil {
			return err
		}
		locked.VerifyResponse = res.Raw

		switch res.Status {
		case "success":
			if _, err := s.creditOnce(ctx, wtx, locked, res.PaidAt); err != nil {
				return err
			}
		case "failed":
			if locked.Status != models.PaymentStatusSuccess {
				locked.Status = models.PaymentStatusFailed
			}
		case "abandoned":
			if locked.Status != models.PaymentStatusSuccess {
				locked.Status = models.PaymentStatusAbandoned
			}
		default:
			// Still ongoing on the gateway side.
		}

		intent = locked
		return itx.Save(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// webhookEvent is the subset of the gateway's webhook payload we act on.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// VerifySignature checks the webhook signature header: HMAC-SHA512 over the
// raw body, hex-encoded, compared in constant time.
func (s *Service) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// ProcessWebhook handles one inbound gateway event. Unverified payloads are
// rejected with ErrInvalidSignature and never parsed. Unknown references are
// logged and acknowledged: the gateway retries on non-2xx and a retry cannot
// resolve a reference we do not hold.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.VerifySignature(body, signature) {
		s.logger.Warn("webhook rejected: bad signature")
		return ErrInvalidSignature
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		s.logger.Warn("webhook payload unparseable", zap.Error(err))
		return nil
	}
	if evt.Data.Reference == "" {
		s.logger.Warn("webhook event without reference", zap.String("event", evt.Event))
		return nil
	}

	var raw models.JSON
	_ = json.Unmarshal(body, &raw)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		itx := s.intents.WithTx(tx)
		wtx := s.wallets.WithTx(tx)

		intent, err := itx.GetByReferenceForUpdate(ctx, evt.Data.Reference)
		if err != nil {
			if errors.Is(err, repositories.ErrIntentNotFound) {
				s.logger.Warn("webhook for unknown reference",
					zap.String("event", evt.Event),
					zap.String("reference", evt.Data.Reference),
				)
				return nil
			}
			return err
		}

		intent.WebhookEvents = append(intent.WebhookEvents, raw)

		switch {
		case evt.Event == "charge.success" && strings.EqualFold(evt.Data.Status, "success"):
			paidAt := parsePaidAt(evt.Data.PaidAt)
			credited, err := s.creditOnce(ctx, wtx, intent, paidAt)
			if err != nil {
				return err
			}
			if credited && evt.Data.Amount != 0 && !FromKobo(evt.Data.Amount).Equal(intent.Amount) {
				s.logger.Warn("webhook amount differs from intent",
					zap.String("reference", intent.Reference),
					zap.String("intent_amount", intent.Amount.String()),
					zap.Int64("webhook_kobo", evt.Data.Amount),
				)
			}
		case evt.Event == "charge.failed":
			if intent.Status != models.PaymentStatusSuccess {
				intent.Status = models.PaymentStatusFailed
			}
		}

		return itx.Save(ctx, intent)
	})
	if err != nil {
		return err
	}

	s.logger.Info("webhook processed",
		zap.String("event", evt.Event),
		zap.String("reference", evt.Data.Reference),
	)
	return nil
}

// GetIntent returns an intent scoped to its owner.
func (s *Service) GetIntent(ctx context.Context, userID uint, reference string) (*models.PaymentIntent, error) {
	return s.intents.GetByUserAndReference(ctx, userID, reference)
}

// creditOnce is the single guarded credit path. The caller must hold the
// intent row lock in the same transaction as wtx. Credits the intent's own
// recorded amount, never the gateway-reported one.
func (s *Service) creditOnce(ctx context.Context, wtx repositories.WalletRepository, intent *models.PaymentIntent, paidAt *time.Time) (bool, error) {
	if intent.Status == models.PaymentStatusSuccess {
		return false, nil
	}
	if _, err := s.ledger.CreditTx(ctx, wtx, intent.UserID, intent.Amount, intent.Reference); err != nil {
		return false, err
	}
	intent.Status = models.PaymentStatusSuccess
	if paidAt == nil {
		now := time.Now()
		paidAt = &now
	}
	intent.PaidAt = paidAt

	s.logger.Info("wallet funded",
		zap.Uint("user_id", intent.UserID),
		zap.String("reference", intent.Reference),
		zap.String("amount", intent.Amount.String()),
	)
	return true, nil
}

func parsePaidAt(v string) *time.Time {
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t
	}
	return nil
}

func (s *Service) audit(ctx context.Context, intent *models.PaymentIntent, endpoint string, res *InitResult, callErr error) {
	if s.logs == nil {
		return
	}
	uid := intent.UserID
	log := &models.ProviderLog{
		UserID:          &uid,
		ServiceType:     models.ProviderLogPayments,
		ClientReference: intent.Reference,
		Endpoint:        endpoint,
		Provider:        "paystack",
		RequestPayload: models.JSON{
			"reference": intent.Reference,
			"amount":    intent.Amount.StringFixed(2),
		},
	}
	if res != nil {
		log.ResponsePayload = res.Raw
		log.StatusCode = "200"
	}
	if callErr != nil {
		log.ErrorMessage = callErr.Error()
	}
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Warn("provider log write failed", zap.String("reference", intent.Reference), zap.Error(err))
	}
}
