package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapehan/kapehan-backend/internal/app/service"
	"github.com/kapehan/kapehan-backend/internal/middleware"
)

type PaymentController struct {
	paymentService service.PaymentService
}

func NewPaymentController(paymentService service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

type ProofUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required,min=1"`
}

type AttachProofRequest struct {
	FileURL string `json:"file_url" binding:"required"`
}

type PaymentDecisionRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// RequestProofUpload presigns an upload slot for a payment proof image
// POST /api/v1/orders/:id/payment/proof-upload
func (ctrl *PaymentController) RequestProofUpload(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ProofUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	slot, err := ctrl.paymentService.RequestProofUpload(c.Request.Context(), userID, id, req.Filename, req.ContentType, req.Size)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, service.ErrPaymentProofNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "This payment method does not take a proof upload"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Order is already closed"})
		default:
			log.Error("Failed to presign proof upload", err, map[string]interface{}{
				"order_id": id,
			})
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload": slot})
}

// AttachProof records an uploaded proof and resets verification
// POST /api/v1/orders/:id/payment/proof
func (ctrl *PaymentController) AttachProof(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AttachProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	order, err := ctrl.paymentService.AttachProof(c.Request.Context(), userID, id, req.FileURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, service.ErrPaymentProofNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "This payment method does not take a proof upload"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Order is already closed"})
		default:
			log.Error("Failed to attach payment proof", err, map[string]interface{}{
				"order_id": id,
			})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to attach payment proof"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment proof submitted for verification",
		"order":   order,
	})
}

// DecidePayment verifies or rejects a pending payment (staff/admin)
// PUT /api/v1/admin/orders/:id/payment
func (ctrl *PaymentController) DecidePayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req PaymentDecisionRequest
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

	order, err := ctrl.paymentService.Decide(c.Request.Context(), id, *req.Verified, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, service.ErrPaymentAlreadyDecided):
			c.JSON(http.StatusConflict, gin.H{"error": "Payment verification already decided"})
		case errors.Is(err, service.ErrNoProofSubmitted):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No payment proof has been submitted"})
		default:
			log.Error("Failed to decide payment verification", err, map[string]interface{}{
				"order_id": id,
			})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment verification updated",
		"order":   order,
	})
}
