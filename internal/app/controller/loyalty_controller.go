package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapehan/kapehan-backend/internal/app/service"
	"github.com/kapehan/kapehan-backend/internal/middleware"
)

type LoyaltyController struct {
	loyaltyService service.LoyaltyService
}

func NewLoyaltyController(loyaltyService service.LoyaltyService) *LoyaltyController {
	return &LoyaltyController{
		loyaltyService: loyaltyService,
	}
}

// GetBalance returns the user's current points balance
// GET /api/v1/loyalty/balance
func (ctrl *LoyaltyController) GetBalance(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	balance, err := ctrl.loyaltyService.Balance(c.Request.Context(), userID)
	if err != nil {
		log.Error("Failed to fetch loyalty balance", err, map[string]interface{}{
			"user_id": userID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance": balance.Balance,
	})
}

// GetHistory returns the user's full ledger, oldest first
// GET /api/v1/loyalty/history
func (ctrl *LoyaltyController) GetHistory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	history, err := ctrl.loyaltyService.History(c.Request.Context(), userID)
	if err != nil {
		log.Error("Failed to fetch loyalty history", err, map[string]interface{}{
			"user_id": userID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": history,
		"count":   len(history),
	})
}
