package repository

import (
	"context"
	"time"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

type LoyaltyRepository interface {
	GetOrCreateBalance(ctx context.Context, tx *gorm.DB, userID uint) (*model.LoyaltyPoints, error)
	UpdateBalanceWithVersion(ctx context.Context, tx *gorm.DB, userID uint, version, newBalance int64) error
	AppendEntry(ctx context.Context, tx *gorm.DB, entry *model.PointsHistory) error
	FindEntryByOrderAction(ctx context.Context, tx *gorm.DB, orderID uint, action model.PointsAction) (*model.PointsHistory, error)
	ListEntriesByUser(ctx context.Context, userID uint) ([]model.PointsHistory, error)
	ListUserIDsWithEarnedBefore(ctx context.Context, cutoff time.Time) ([]uint, error)
}

type loyaltyRepository struct {
	db *gorm.DB
}

func NewLoyaltyRepository(db *gorm.DB) LoyaltyRepository {
	return &loyaltyRepository{db: db}
}

func (r *loyaltyRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// GetOrCreateBalance returns the user's balance row, creating a zero
// row on first touch.
func (r *loyaltyRepository) GetOrCreateBalance(ctx context.Context, tx *gorm.DB, userID uint) (*model.LoyaltyPoints, error) {
	db := r.conn(tx).WithContext(ctx)

	var lp model.LoyaltyPoints
	err := db.Where("user_id = ?", userID).First(&lp).Error
	if err == nil {
		return &lp, nil
	}
	if err != gorm.ErrRecordNotFound {
		logger.Error("Failed to load loyalty balance from database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	lp = model.LoyaltyPoints{UserID: userID, Balance: 0}
	if err := db.Create(&lp).Error; err != nil {
		logger.Error("Failed to create loyalty balance row in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return &lp, nil
}

// UpdateBalanceWithVersion is the only balance write path. The version
// predicate serializes concurrent ledger mutations per user.
func (r *loyaltyRepository) UpdateBalanceWithVersion(ctx context.Context, tx *gorm.DB, userID uint, version, newBalance int64) error {
	result := r.conn(tx).WithContext(ctx).Model(&model.LoyaltyPoints{}).
		Where("user_id = ? AND version = ?", userID, version).
		Updates(map[string]interface{}{
			"balance": newBalance,
			"version": version + 1,
		})
	if result.Error != nil {
		logger.Error("Failed to update loyalty balance in database", result.Error, map[string]interface{}{
			"user_id":     userID,
			"new_balance": newBalance,
		})
		return wrapTransient(result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Warn("Loyalty balance update lost optimistic concurrency race", map[string]interface{}{
			"user_id": userID,
			"version": version,
		})
		return ErrVersionConflict
	}
	return nil
}

func (r *loyaltyRepository) AppendEntry(ctx context.Context, tx *gorm.DB, entry *model.PointsHistory) error {
	if err := r.conn(tx).WithContext(ctx).Create(entry).Error; err != nil {
		logger.Error("Failed to append points ledger entry in database", err, map[string]interface{}{
			"user_id": entry.UserID,
			"action":  entry.Action,
			"points":  entry.Points,
		})
		return wrapTransient(err)
	}

	logger.Debug("Points ledger entry appended", map[string]interface{}{
		"user_id": entry.UserID,
		"action":  entry.Action,
		"points":  entry.Points,
	})
	return nil
}

func (r *loyaltyRepository) FindEntryByOrderAction(ctx context.Context, tx *gorm.DB, orderID uint, action model.PointsAction) (*model.PointsHistory, error) {
	var entry model.PointsHistory
	err := r.conn(tx).WithContext(ctx).
		Where("order_id = ? AND action = ?", orderID, action).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *loyaltyRepository) ListEntriesByUser(ctx context.Context, userID uint) ([]model.PointsHistory, error) {
	var entries []model.PointsHistory
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		logger.Error("Failed to list points ledger entries from database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return entries, nil
}

// ListUserIDsWithEarnedBefore returns users holding EARNED entries whose
// expiry has passed the cutoff. Input for the expiry sweep.
func (r *loyaltyRepository) ListUserIDsWithEarnedBefore(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var userIDs []uint
	if err := r.db.WithContext(ctx).Model(&model.PointsHistory{}).
		Where("action = ? AND expires_at IS NOT NULL AND expires_at <= ?", model.PointsActionEarned, cutoff).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		logger.Error("Failed to list users with expiring points from database", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, err
	}
	return userIDs, nil
}
