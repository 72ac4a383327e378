package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kapehan/kapehan-backend/internal/app/service"
	"github.com/kapehan/kapehan-backend/internal/middleware"
)

type ReviewController struct {
	reviewService service.ReviewService
}

func NewReviewController(reviewService service.ReviewService) *ReviewController {
	return &ReviewController{
		reviewService: reviewService,
	}
}

type SubmitReviewRequest struct {
	OrderID   uint   `json:"order_id" binding:"required"`
	ProductID uint   `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}

type ModerateReviewRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Reason  string `json:"reason"`
}

// SubmitReview creates a review for a completed order's product
// POST /api/v1/reviews
func (ctrl *ReviewController) SubmitReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	review, err := ctrl.reviewService.Submit(c.Request.Context(), userID, service.SubmitReviewInput{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, service.ErrOrderNotCompleted):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Reviews open once the order is completed"})
		case errors.Is(err, service.ErrProductNotInOrder):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product was not part of this order"})
		case errors.Is(err, service.ErrInvalidRating):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be between 1 and 5"})
		case errors.Is(err, service.ErrReviewAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "You already reviewed this item"})
		default:
			log.Error("Failed to submit review", err, map[string]interface{}{
				"user_id":  userID,
				"order_id": req.OrderID,
			})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit review"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review submitted for moderation",
		"review":  review,
	})
}

// GetProductReviews returns approved reviews for a product
// GET /api/v1/products/:id/reviews
func (ctrl *ReviewController) GetProductReviews(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reviews, total, err := ctrl.reviewService.ListForProduct(c.Request.Context(), id, limit, offset)
	if err != nil {
		log.Error("Failed to list product reviews", err, map[string]interface{}{
			"product_id": id,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"total":   total,
	})
}

// GetMyReviews returns the authenticated user's reviews
// GET /api/v1/reviews/me
func (ctrl *ReviewController) GetMyReviews(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	reviews, err := ctrl.reviewService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		log.Error("Failed to list user reviews", err, map[string]interface{}{
			"user_id": userID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

// GetPendingReviews returns the moderation queue (staff/admin)
// GET /api/v1/admin/reviews/pending
func (ctrl *ReviewController) GetPendingReviews(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	reviews, err := ctrl.reviewService.ListPending(c.Request.Context())
	if err != nil {
		log.Error("Failed to list pending reviews", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pending reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

// ModerateReview approves or rejects a pending review (staff/admin)
// PUT /api/v1/admin/reviews/:id
func (ctrl *ReviewController) ModerateReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ModerateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	actor := "staff"
	if role, _ := middleware.GetUserRole(c); role != "" {
		actor = string(role)
	}

	review, err := ctrl.reviewService.Moderate(c.Request.Context(), id, *req.Approve, req.Reason, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReviewNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		case errors.Is(err, service.ErrReviewAlreadyModerated):
			c.JSON(http.StatusConflict, gin.H{"error": "Review already moderated"})
		case errors.Is(err, service.ErrRejectionReasonMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection requires a reason"})
		default:
			log.Error("Failed to moderate review", err, map[string]interface{}{
				"review_id": id,
			})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to moderate review"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review moderated",
		"review":  review,
	})
}
