package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrReviewNotFound         = errors.New("review not found")
	ErrOrderNotCompleted      = errors.New("reviews are only open for completed orders")
	ErrProductNotInOrder      = errors.New("product was not part of this order")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
	ErrReviewAlreadyExists    = errors.New("review already submitted for this order item")
	ErrReviewAlreadyModerated = errors.New("review already moderated")
	ErrRejectionReasonMissing = errors.New("rejection requires a reason")
)

type SubmitReviewInput struct {
	OrderID   uint
	ProductID uint
	Rating    int
	Comment   string
}

// ReviewService handles review submission and moderation. Completing an
// order unlocks one review per product it contained; every review sits
// in a moderation queue until staff approve or reject it, and only
// approved reviews surface to other customers.
type ReviewService interface {
	Submit(ctx context.Context, userID uint, input SubmitReviewInput) (*model.Review, error)
	Moderate(ctx context.Context, reviewID uint, approve bool, reason, actor string) (*model.Review, error)
	ListForProduct(ctx context.Context, productID uint, limit, offset int) ([]model.Review, int64, error)
	ListPending(ctx context.Context) ([]model.Review, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Review, error)
}

type reviewService struct {
	reviewRepo repository.ReviewRepository
	orderRepo  repository.OrderRepository
	userRepo   repository.UserRepository
	notifier   NotificationService
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
) ReviewService {
	return &reviewService{
		reviewRepo: reviewRepo,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

func (s *reviewService) Submit(ctx context.Context, userID uint, input SubmitReviewInput) (*model.Review, error) {
	logger.Info("Submitting review", map[string]interface{}{
		"user_id":    userID,
		"order_id":   input.OrderID,
		"product_id": input.ProductID,
		"rating":     input.Rating,
	})

	if input.Rating < 1 || input.Rating > 5 {
		return nil, ErrInvalidRating
	}

	order, err := s.orderRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.Status != model.OrderStatusCompleted {
		logger.Warn("Review refused: order not completed", map[string]interface{}{
			"order_id": input.OrderID,
			"status":   order.Status,
		})
		return nil, ErrOrderNotCompleted
	}

	inOrder := false
	for _, item := range order.OrderItems {
		if item.ProductID == input.ProductID {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return nil, ErrProductNotInOrder
	}

	if _, err := s.reviewRepo.FindByOrderAndProduct(ctx, input.OrderID, input.ProductID); err == nil {
		return nil, ErrReviewAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	review := &model.Review{
		UserID:    userID,
		OrderID:   input.OrderID,
		ProductID: input.ProductID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		// The unique (order_id, product_id) index backs the duplicate
		// check above against a concurrent double submit.
		return nil, err
	}

	s.notifyStaff(ctx, model.NotificationTypeNewReview,
		"New review awaiting moderation",
		fmt.Sprintf("A %d-star review for order %s is in the moderation queue.", review.Rating, order.ReferenceNo),
		fmt.Sprintf("/admin/reviews/%d", review.ID))

	logger.Info("Review submitted", map[string]interface{}{
		"review_id": review.ID,
		"user_id":   userID,
	})
	return review, nil
}

// Moderate records an approve or reject decision. Decisions are final;
// a second call on the same review fails regardless of direction.
func (s *reviewService) Moderate(ctx context.Context, reviewID uint, approve bool, reason, actor string) (*model.Review, error) {
	logger.Info("Moderating review", map[string]interface{}{
		"review_id": reviewID,
		"approve":   approve,
		"actor":     actor,
	})

	if !approve && reason == "" {
		return nil, ErrRejectionReasonMissing
	}

	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	if review.Moderated() {
		logger.Warn("Review already moderated", map[string]interface{}{
			"review_id": reviewID,
			"approved":  review.Approved,
			"rejected":  review.Rejected,
		})
		return nil, ErrReviewAlreadyModerated
	}

	if approve {
		review.Approved = true
	} else {
		review.Rejected = true
		review.RejectionReason = reason
	}
	if err := s.reviewRepo.SaveDecision(ctx, review); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		title, message := "Review approved", "Your review has been published. Maraming salamat!"
		if !approve {
			title, message = "Review rejected", fmt.Sprintf("Your review was not published: %s", reason)
		}
		if err := s.notifier.Enqueue(ctx, review.UserID, model.NotificationTypeReviewStatus,
			title, message, fmt.Sprintf("/reviews/%d", review.ID)); err != nil {
			logger.Error("Failed to enqueue review status notification", err, map[string]interface{}{
				"review_id": reviewID,
			})
		}
	}

	// Surface rough feedback to staff so low ratings don't go unnoticed
	// once published.
	if approve && review.Rating <= 2 {
		s.notifyStaff(ctx, model.NotificationTypeCustomerFeedback,
			"Negative review published",
			fmt.Sprintf("A %d-star review was approved. Consider following up with the customer.", review.Rating),
			fmt.Sprintf("/admin/reviews/%d", review.ID))
	}

	logger.Info("Review moderated", map[string]interface{}{
		"review_id": reviewID,
		"approved":  review.Approved,
		"rejected":  review.Rejected,
	})
	return review, nil
}

func (s *reviewService) ListForProduct(ctx context.Context, productID uint, limit, offset int) ([]model.Review, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reviewRepo.ListApprovedByProduct(ctx, productID, limit, offset)
}

func (s *reviewService) ListPending(ctx context.Context) ([]model.Review, error) {
	return s.reviewRepo.ListPending(ctx)
}

func (s *reviewService) ListByUser(ctx context.Context, userID uint) ([]model.Review, error) {
	return s.reviewRepo.ListByUser(ctx, userID)
}

func (s *reviewService) notifyStaff(ctx context.Context, notifType model.NotificationType, title, message, link string) {
	if s.notifier == nil || s.userRepo == nil {
		return
	}
	staffIDs, err := s.userRepo.FindIDsByRole(ctx, model.RoleStaff, model.RoleAdmin)
	if err != nil {
		logger.Error("Failed to resolve staff recipients", err, nil)
		return
	}
	s.notifier.EnqueueMany(ctx, staffIDs, notifType, title, message, link)
}
