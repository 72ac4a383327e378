package repository

import (
	"context"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	FindByID(ctx context.Context, id uint) (*model.Review, error)
	FindByOrderAndProduct(ctx context.Context, orderID, productID uint) (*model.Review, error)
	ListApprovedByProduct(ctx context.Context, productID uint, limit, offset int) ([]model.Review, int64, error)
	ListPending(ctx context.Context) ([]model.Review, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Review, error)
	SaveDecision(ctx context.Context, review *model.Review) error
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		logger.Error("Failed to create review in database", err, map[string]interface{}{
			"user_id":    review.UserID,
			"order_id":   review.OrderID,
			"product_id": review.ProductID,
		})
		return err
	}
	return nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id uint) (*model.Review, error) {
	var review model.Review
	if err := r.db.WithContext(ctx).
		Preload("User").Preload("Product").
		First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByOrderAndProduct(ctx context.Context, orderID, productID uint) (*model.Review, error) {
	var review model.Review
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListApprovedByProduct returns only moderation-approved reviews; those
// are the ones prospective customers see.
func (r *reviewRepository) ListApprovedByProduct(ctx context.Context, productID uint, limit, offset int) ([]model.Review, int64, error) {
	var reviews []model.Review
	var total int64

	base := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("product_id = ? AND approved = ?", productID, true)

	if err := base.Count(&total).Error; err != nil {
		logger.Error("Failed to count approved reviews in database", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, 0, err
	}

	if err := base.Preload("User").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reviews).Error; err != nil {
		logger.Error("Failed to list approved reviews from database", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) ListPending(ctx context.Context) ([]model.Review, error) {
	var reviews []model.Review
	if err := r.db.WithContext(ctx).
		Preload("User").Preload("Product").
		Where("approved = ? AND rejected = ?", false, false).
		Order("created_at ASC").
		Find(&reviews).Error; err != nil {
		logger.Error("Failed to list pending reviews from database", err, nil)
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) ListByUser(ctx context.Context, userID uint) ([]model.Review, error) {
	var reviews []model.Review
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		logger.Error("Failed to list user reviews from database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return reviews, nil
}

// SaveDecision persists the moderation flags and reason. Only these
// columns are written; the submitted content stays untouched.
func (r *reviewRepository) SaveDecision(ctx context.Context, review *model.Review) error {
	if err := r.db.WithContext(ctx).Model(review).
		Select("approved", "rejected", "rejection_reason").
		Updates(map[string]interface{}{
			"approved":         review.Approved,
			"rejected":         review.Rejected,
			"rejection_reason": review.RejectionReason,
		}).Error; err != nil {
		logger.Error("Failed to save review moderation decision in database", err, map[string]interface{}{
			"review_id": review.ID,
		})
		return err
	}
	return nil
}
