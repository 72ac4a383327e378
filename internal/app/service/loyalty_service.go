package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient loyalty point balance")
	ErrDuplicateLedgerEntry = errors.New("ledger entry already exists for this order")
	ErrNothingToRefund      = errors.New("no redeemed points to refund for this order")
	ErrInvalidPointsAmount  = errors.New("points amount must be positive")
)

// LoyaltyService is the single authoritative mutator of point balances.
// Every mutation appends a PointsHistory entry and updates the balance
// inside one transaction, serialized per user by a version check.
type LoyaltyService interface {
	Earn(ctx context.Context, userID, orderID uint, points int64) error
	Redeem(ctx context.Context, userID, orderID uint, points int64) error
	Refund(ctx context.Context, userID, orderID uint) (int64, error)
	Expire(ctx context.Context, userID uint) (int64, error)
	NotifyExpiring(ctx context.Context) error
	Balance(ctx context.Context, userID uint) (*model.LoyaltyPoints, error)
	History(ctx context.Context, userID uint) ([]model.PointsHistory, error)
	AccrualFor(totalCentavos int64) int64
}

type loyaltyService struct {
	loyaltyRepo repository.LoyaltyRepository
	notifier    NotificationService
	cfg         config.LoyaltyConfig
	retry       config.OrderConfig
	db          *gorm.DB
}

func NewLoyaltyService(
	loyaltyRepo repository.LoyaltyRepository,
	notifier NotificationService,
	cfg config.LoyaltyConfig,
	retryCfg config.OrderConfig,
	db *gorm.DB,
) LoyaltyService {
	return &loyaltyService{
		loyaltyRepo: loyaltyRepo,
		notifier:    notifier,
		cfg:         cfg,
		retry:       retryCfg,
		db:          db,
	}
}

// AccrualFor converts a completed-order total to points. Pure integer
// arithmetic on the configured ratio, rounding down so the shop never
// over-credits.
func (s *loyaltyService) AccrualFor(totalCentavos int64) int64 {
	if totalCentavos <= 0 || s.cfg.AccrualPesos <= 0 {
		return 0
	}
	pesos := totalCentavos / 100
	return pesos * s.cfg.AccrualPoints / s.cfg.AccrualPesos
}

func (s *loyaltyService) Earn(ctx context.Context, userID, orderID uint, points int64) error {
	if points < 0 {
		return ErrInvalidPointsAmount
	}
	if points == 0 {
		logger.Debug("Skipping zero-point accrual", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return nil
	}

	logger.Info("Earning loyalty points", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
		"points":   points,
	})

	expiresAt := time.Now().Add(s.cfg.ExpiryWindow)
	err := withRetry(ctx, s.retry.MaxRetryAttempts, s.retry.RetryBaseDelay, "loyalty.earn", func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if _, err := s.loyaltyRepo.FindEntryByOrderAction(ctx, tx, orderID, model.PointsActionEarned); err == nil {
				return ErrDuplicateLedgerEntry
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			lp, err := s.loyaltyRepo.GetOrCreateBalance(ctx, tx, userID)
			if err != nil {
				return err
			}

			oid := orderID
			entry := &model.PointsHistory{
				UserID:    userID,
				Action:    model.PointsActionEarned,
				Points:    points,
				OrderID:   &oid,
				ExpiresAt: &expiresAt,
			}
			if err := s.loyaltyRepo.AppendEntry(ctx, tx, entry); err != nil {
				return err
			}
			return s.loyaltyRepo.UpdateBalanceWithVersion(ctx, tx, userID, lp.Version, lp.Balance+points)
		})
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateLedgerEntry) {
			logger.Debug("Accrual already recorded for order", map[string]interface{}{
				"user_id":  userID,
				"order_id": orderID,
			})
		}
		return err
	}

	s.notify(ctx, userID, model.NotificationTypeLoyaltyPoints,
		"Points earned",
		fmt.Sprintf("You earned %d loyalty points from your order.", points))

	logger.Info("Loyalty points earned", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
		"points":   points,
	})
	return nil
}

func (s *loyaltyService) Redeem(ctx context.Context, userID, orderID uint, points int64) error {
	if points <= 0 {
		return ErrInvalidPointsAmount
	}

	logger.Info("Redeeming loyalty points", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
		"points":   points,
	})

	return withRetry(ctx, s.retry.MaxRetryAttempts, s.retry.RetryBaseDelay, "loyalty.redeem", func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if _, err := s.loyaltyRepo.FindEntryByOrderAction(ctx, tx, orderID, model.PointsActionRedeemed); err == nil {
				return ErrDuplicateLedgerEntry
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			lp, err := s.loyaltyRepo.GetOrCreateBalance(ctx, tx, userID)
			if err != nil {
				return err
			}
			if points > lp.Balance {
				logger.Warn("Redemption refused: insufficient balance", map[string]interface{}{
					"user_id":   userID,
					"order_id":  orderID,
					"requested": points,
					"balance":   lp.Balance,
				})
				return ErrInsufficientBalance
			}

			oid := orderID
			entry := &model.PointsHistory{
				UserID:  userID,
				Action:  model.PointsActionRedeemed,
				Points:  points,
				OrderID: &oid,
			}
			if err := s.loyaltyRepo.AppendEntry(ctx, tx, entry); err != nil {
				return err
			}
			return s.loyaltyRepo.UpdateBalanceWithVersion(ctx, tx, userID, lp.Version, lp.Balance-points)
		})
	})
}

// Refund credits back the exact amount of a prior redemption for the
// order. Calling it again once refunded is a benign no-op error.
func (s *loyaltyService) Refund(ctx context.Context, userID, orderID uint) (int64, error) {
	logger.Info("Refunding redeemed loyalty points", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
	})

	var refunded int64
	err := withRetry(ctx, s.retry.MaxRetryAttempts, s.retry.RetryBaseDelay, "loyalty.refund", func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			redeemed, err := s.loyaltyRepo.FindEntryByOrderAction(ctx, tx, orderID, model.PointsActionRedeemed)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNothingToRefund
			} else if err != nil {
				return err
			}

			if _, err := s.loyaltyRepo.FindEntryByOrderAction(ctx, tx, orderID, model.PointsActionRefunded); err == nil {
				return ErrNothingToRefund
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			lp, err := s.loyaltyRepo.GetOrCreateBalance(ctx, tx, userID)
			if err != nil {
				return err
			}

			oid := orderID
			entry := &model.PointsHistory{
				UserID:  userID,
				Action:  model.PointsActionRefunded,
				Points:  redeemed.Points,
				OrderID: &oid,
			}
			if err := s.loyaltyRepo.AppendEntry(ctx, tx, entry); err != nil {
				return err
			}
			if err := s.loyaltyRepo.UpdateBalanceWithVersion(ctx, tx, userID, lp.Version, lp.Balance+redeemed.Points); err != nil {
				return err
			}
			refunded = redeemed.Points
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.notify(ctx, userID, model.NotificationTypeLoyaltyPoints,
		"Points refunded",
		fmt.Sprintf("%d loyalty points from your cancelled order are back in your balance.", refunded))

	logger.Info("Loyalty points refunded", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
		"points":   refunded,
	})
	return refunded, nil
}

// Expire writes EXPIRED entries for the unconsumed remainder of lapsed
// EARNED entries. Consumption is reconstructed from the ledger oldest
// first, so a retried sweep never expires the same points twice.
func (s *loyaltyService) Expire(ctx context.Context, userID uint) (int64, error) {
	var totalExpired int64

	err := withRetry(ctx, s.retry.MaxRetryAttempts, s.retry.RetryBaseDelay, "loyalty.expire", func() error {
		totalExpired = 0
		return s.db.Transaction(func(tx *gorm.DB) error {
			var entries []model.PointsHistory
			if err := tx.WithContext(ctx).
				Where("user_id = ?", userID).
				Order("created_at ASC, id ASC").
				Find(&entries).Error; err != nil {
				return err
			}

			// Points consumed so far, allocated to EARNED entries oldest first.
			var consumed int64
			for _, e := range entries {
				switch e.Action {
				case model.PointsActionRedeemed, model.PointsActionExpired:
					consumed += e.Points
				case model.PointsActionRefunded:
					consumed -= e.Points
				}
			}
			if consumed < 0 {
				consumed = 0
			}

			now := time.Now()
			lp, err := s.loyaltyRepo.GetOrCreateBalance(ctx, tx, userID)
			if err != nil {
				return err
			}

			for _, e := range entries {
				if e.Action != model.PointsActionEarned {
					continue
				}
				take := e.Points
				if take > consumed {
					take = consumed
				}
				consumed -= take
				remaining := e.Points - take
				if remaining == 0 || e.ExpiresAt == nil || e.ExpiresAt.After(now) {
					continue
				}

				expiredEntry := &model.PointsHistory{
					UserID:  userID,
					Action:  model.PointsActionExpired,
					Points:  remaining,
					OrderID: e.OrderID, // points back-reference the earning order
				}
				if err := s.loyaltyRepo.AppendEntry(ctx, tx, expiredEntry); err != nil {
					return err
				}
				totalExpired += remaining
			}

			if totalExpired == 0 {
				return nil
			}
			return s.loyaltyRepo.UpdateBalanceWithVersion(ctx, tx, userID, lp.Version, lp.Balance-totalExpired)
		})
	})
	if err != nil {
		return 0, err
	}

	if totalExpired > 0 {
		s.notify(ctx, userID, model.NotificationTypePointsExpiring,
			"Points expired",
			fmt.Sprintf("%d loyalty points have expired from your balance.", totalExpired))
		logger.Info("Loyalty points expired", map[string]interface{}{
			"user_id": userID,
			"points":  totalExpired,
		})
	}
	return totalExpired, nil
}

// NotifyExpiring warns users whose points entered the warning window in
// the last day. Run daily so each entry triggers at most one notice.
func (s *loyaltyService) NotifyExpiring(ctx context.Context) error {
	horizon := time.Now().Add(s.cfg.ExpiryWarning)
	userIDs, err := s.loyaltyRepo.ListUserIDsWithEarnedBefore(ctx, horizon)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		entries, err := s.loyaltyRepo.ListEntriesByUser(ctx, userID)
		if err != nil {
			logger.Error("Failed to load ledger for expiry warning", err, map[string]interface{}{
				"user_id": userID,
			})
			continue
		}

		var expiring int64
		windowStart := horizon.Add(-24 * time.Hour)
		for _, e := range entries {
			if e.Action != model.PointsActionEarned || e.ExpiresAt == nil {
				continue
			}
			if e.ExpiresAt.After(windowStart) && !e.ExpiresAt.After(horizon) {
				expiring += e.Points
			}
		}
		if expiring == 0 {
			continue
		}

		s.notify(ctx, userID, model.NotificationTypePointsExpiring,
			"Points expiring soon",
			fmt.Sprintf("%d loyalty points will expire soon. Use them on your next order!", expiring))
	}
	return nil
}

func (s *loyaltyService) Balance(ctx context.Context, userID uint) (*model.LoyaltyPoints, error) {
	return s.loyaltyRepo.GetOrCreateBalance(ctx, nil, userID)
}

func (s *loyaltyService) History(ctx context.Context, userID uint) ([]model.PointsHistory, error) {
	return s.loyaltyRepo.ListEntriesByUser(ctx, userID)
}

// notify is fire-and-forget: a failed notification never fails the
// ledger operation that triggered it.
func (s *loyaltyService) notify(ctx context.Context, userID uint, notifType model.NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(ctx, userID, notifType, title, message, ""); err != nil {
		logger.Error("Failed to enqueue loyalty notification", err, map[string]interface{}{
			"user_id": userID,
			"type":    notifType,
		})
	}
}
