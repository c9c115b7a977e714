// Package notification sends purchase receipts. Delivery is strictly
// best-effort: every path logs the email row first, and a send failure can
// never affect the purchase that triggered it.
package notification

import (
	"context"
	"fmt"

	"quicksurf/internal/models"
	"quicksurf/internal/services/vtu"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sender delivers one email. The SMTP-backed implementation lives at the
// composition root; tests and mock mode use none.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailLookup resolves a user's email address. Account data lives outside
// this service.
type EmailLookup func(ctx context.Context, userID uint) (string, error)

type Service struct {
	db     *gorm.DB
	sender Sender
	lookup EmailLookup
	logger *zap.Logger
}

// NewService wires the receipt sender. sender may be nil, in which case
// receipts are recorded as sent without transport (mock mode).
func NewService(db *gorm.DB, sender Sender, lookup EmailLookup, logger *zap.Logger) *Service {
	if db == nil {
		panic("db is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, sender: sender, lookup: lookup, logger: logger}
}

// SendReceipt emails a purchase receipt. All failures are logged and
// swallowed.
func (s *Service) SendReceipt(ctx context.Context, p *models.PurchaseRequest) {
	to := ""
	if s.lookup != nil {
		email, err := s.lookup(ctx, p.UserID)
		if err != nil {
			s.logger.Warn("receipt skipped: no email for user",
				zap.Uint("user_id", p.UserID),
				zap.Error(err),
			)
			return
		}
		to = email
	}
	if to == "" {
		return
	}

	subject := fmt.Sprintf("Your %s purchase was successful", p.Kind)
	body := receiptBody(p)

	log := &models.EmailLog{
		To:      to,
		Subject: subject,
		Body:    body,
		Status:  models.EmailStatusQueued,
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		s.logger.Error("email log write failed", zap.Error(err))
		return
	}

	if s.sender == nil {
		log.Status = models.EmailStatusSent
	} else if err := s.sender.Send(ctx, to, subject, body); err != nil {
		log.Status = models.EmailStatusFailed
		log.Error = err.Error()
		s.logger.Warn("receipt send failed", zap.String("to", to), zap.Error(err))
	} else {
		log.Status = models.EmailStatusSent
	}

	if err := s.db.WithContext(ctx).Save(log).Error; err != nil {
		s.logger.Error("email log update failed", zap.Error(err))
	}
}

// PurchaseHook adapts SendReceipt into a post-success purchase hook.
func (s *Service) PurchaseHook() func(ctx context.Context, p *models.PurchaseRequest) {
	return s.SendReceipt
}

func receiptBody(p *models.PurchaseRequest) string {
	return fmt.Sprintf(
		"Your %s purchase of NGN %s for %s on %s completed successfully.\nReference: %s",
		p.Kind,
		p.Amount.StringFixed(2),
		vtu.MaskMSISDN(p.Phone),
		p.Network,
		p.ClientReference,
	)
}
