package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/controller"
	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/middleware"
)

type Router struct {
	authController         *controller.AuthController
	productController      *controller.ProductController
	orderController        *controller.OrderController
	paymentController      *controller.PaymentController
	loyaltyController      *controller.LoyaltyController
	reviewController       *controller.ReviewController
	notificationController *controller.NotificationController
	reportController       *controller.ReportController
	authMiddleware         *middleware.AuthMiddleware
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	orderController *controller.OrderController,
	paymentController *controller.PaymentController,
	loyaltyController *controller.LoyaltyController,
	reviewController *controller.ReviewController,
	notificationController *controller.NotificationController,
	reportController *controller.ReportController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		productController:      productController,
		orderController:        orderController,
		paymentController:      paymentController,
		loyaltyController:      loyaltyController,
		reviewController:       reviewController,
		notificationController: notificationController,
		reportController:       reportController,
		authMiddleware:         authMiddleware,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Kapehan API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.GetProducts)
			products.GET("/:id", r.productController.GetProductByID)
			products.GET("/:id/reviews", r.reviewController.GetProductReviews)
		}

		orders := v1.Group("/orders", r.authMiddleware.Authenticate())
		{
			orders.GET("", r.orderController.GetOrders)
			orders.POST("", r.orderController.CreateOrder)
			orders.GET("/:id", r.orderController.GetOrderByID)
			orders.GET("/:id/history", r.orderController.GetStatusHistory)
			orders.POST("/:id/cancel", r.orderController.CancelOrder)
			orders.POST("/:id/payment/proof-upload", r.paymentController.RequestProofUpload)
			orders.POST("/:id/payment/proof", r.paymentController.AttachProof)
		}

		loyalty := v1.Group("/loyalty", r.authMiddleware.Authenticate())
		{
			loyalty.GET("/balance", r.loyaltyController.GetBalance)
			loyalty.GET("/history", r.loyaltyController.GetHistory)
		}

		reviews := v1.Group("/reviews", r.authMiddleware.Authenticate())
		{
			reviews.POST("", r.reviewController.SubmitReview)
			reviews.GET("/me", r.reviewController.GetMyReviews)
		}

		notifications := v1.Group("/notifications", r.authMiddleware.Authenticate())
		{
			notifications.GET("", r.notificationController.GetNotifications)
			notifications.GET("/unread-count", r.notificationController.GetUnreadCount)
			notifications.GET("/ws", r.notificationController.WebSocketHandler)
			notifications.PUT("/read-all", r.notificationController.MarkAllAsRead)
			notifications.PUT("/:id/read", r.notificationController.MarkAsRead)
			notifications.DELETE("/:id", r.notificationController.DeleteNotification)
		}

		admin := v1.Group("/admin",
			r.authMiddleware.Authenticate(),
			r.authMiddleware.RequireRole(model.RoleStaff, model.RoleAdmin),
		)
		{
			admin.GET("/orders", r.orderController.ListOrders)
			admin.PUT("/orders/:id/status", r.orderController.UpdateOrderStatus)
			admin.PUT("/orders/:id/payment", r.paymentController.DecidePayment)
			admin.GET("/reviews/pending", r.reviewController.GetPendingReviews)
			admin.PUT("/reviews/:id", r.reviewController.ModerateReview)
			admin.POST("/notifications/promotions", r.notificationController.BroadcastPromotion)

			admin.GET("/reports/orders",
				r.authMiddleware.RequireRole(model.RoleAdmin),
				r.reportController.ExportOrders,
			)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
