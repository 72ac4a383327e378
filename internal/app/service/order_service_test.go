package service

import (
	"context"
	"testing"
	"time"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type orderTestEnv struct {
	orderService   OrderService
	loyaltyService LoyaltyService
	db             *gorm.DB
	user           *model.User
	product        *model.Product
	addOn          *model.ProductAddOn
}

func setupOrderServiceTest(t *testing.T) *orderTestEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	orderRepo := repository.NewOrderRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	userRepo := repository.NewUserRepository(testDB)
	loyaltyRepo := repository.NewLoyaltyRepository(testDB)
	notificationRepo := repository.NewNotificationRepository(testDB)

	notificationService := NewNotificationService(notificationRepo, userRepo, nil)
	loyaltyService := NewLoyaltyService(loyaltyRepo, notificationService, testLoyaltyConfig(), testRetryConfig(), testDB)
	orderService := NewOrderService(orderRepo, productRepo, userRepo, loyaltyService, notificationService, testLoyaltyConfig(), testRetryConfig(), testDB)

	user := &model.User{
		Email:        "juan@example.com",
		PasswordHash: "hash",
		Name:         "Juan dela Cruz",
		Role:         model.RoleCustomer,
	}
	require.NoError(t, testDB.Create(user).Error)

	product := &model.Product{
		Name:          "Kapeng Barako",
		Category:      model.CategoryCoffee,
		BasePrice:     15000, // 150.00 pesos
		StockQuantity: 10,
		Available:     true,
	}
	require.NoError(t, testDB.Create(product).Error)

	addOn := &model.ProductAddOn{
		ProductID: product.ID,
		Name:      "Extra Shot",
		Price:     2500,
	}
	require.NoError(t, testDB.Create(addOn).Error)

	return &orderTestEnv{
		orderService:   orderService,
		loyaltyService: loyaltyService,
		db:             testDB,
		user:           user,
		product:        product,
		addOn:          addOn,
	}
}

func (env *orderTestEnv) placeOrder(t *testing.T, input CreateOrderInput) *model.Order {
	t.Helper()
	order, err := env.orderService.CreateOrder(context.Background(), env.user.ID, input)
	require.NoError(t, err)
	return order
}

func codOrderInput(productID uint, quantity int) CreateOrderInput {
	return CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: productID, Quantity: quantity, Size: model.SizeMedium, Temperature: model.TemperatureIced},
		},
		DeliveryMethod: model.DeliveryMethodPickup,
		PaymentMethod:  model.PaymentMethodCashOnDelivery,
		ContactNumber:  "09171234567",
	}
}

func TestOrderService_CreateOrder(t *testing.T) {
	env := setupOrderServiceTest(t)

	input := codOrderInput(env.product.ID, 2)
	input.Items[0].AddOnIDs = []uint{env.addOn.ID}

	order := env.placeOrder(t, input)

	assert.NotEmpty(t, order.ReferenceNo)
	assert.Equal(t, model.OrderStatusReceived, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	// 2 x (150.00 + 25.00 add-on) = 350.00 pesos, pickup so no fee.
	assert.Equal(t, int64(35000), order.Total)
	assert.Equal(t, int64(0), order.DeliveryFee)
	require.Len(t, order.OrderItems, 1)
	assert.Equal(t, int64(17500), order.OrderItems[0].Price)
	assert.Equal(t, []string{"Extra Shot"}, order.OrderItems[0].AddOns)

	// Stock snapshot decremented atomically.
	var product model.Product
	require.NoError(t, env.db.First(&product, env.product.ID).Error)
	assert.Equal(t, 8, product.StockQuantity)

	// Initial history row written with the order.
	history, err := env.orderService.StatusHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.OrderStatusReceived, history[0].Status)
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	_, err := env.orderService.CreateOrder(ctx, env.user.ID, CreateOrderInput{
		PaymentMethod: model.PaymentMethodCashOnDelivery,
	})
	assert.ErrorIs(t, err, ErrEmptyOrder)

	input := codOrderInput(env.product.ID, 1)
	input.DeliveryMethod = model.DeliveryMethodDelivery
	_, err = env.orderService.CreateOrder(ctx, env.user.ID, input)
	assert.ErrorIs(t, err, ErrDeliveryAddress)

	_, err = env.orderService.CreateOrder(ctx, env.user.ID, codOrderInput(env.product.ID, 99))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Failed checkout leaves stock untouched.
	var product model.Product
	require.NoError(t, env.db.First(&product, env.product.ID).Error)
	assert.Equal(t, 10, product.StockQuantity)
}

func TestOrderService_CreateOrder_DeliveryFee(t *testing.T) {
	env := setupOrderServiceTest(t)

	input := codOrderInput(env.product.ID, 1)
	input.DeliveryMethod = model.DeliveryMethodDelivery
	input.DeliveryAddress = "123 Mabini St, Quezon City"

	order := env.placeOrder(t, input)
	assert.Equal(t, int64(5000), order.DeliveryFee)
	assert.Equal(t, int64(20000), order.Total)
}

func TestOrderService_CreateOrder_WithRedemption(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	// Seed a balance of 100 points via a completed prior order.
	prior := seedOrder(t, env.db, env.user.ID, 500000)
	require.NoError(t, env.loyaltyService.Earn(ctx, env.user.ID, prior.ID, 100))

	input := codOrderInput(env.product.ID, 2) // 300.00 pesos
	input.PointsToRedeem = 50                 // 50.00 pesos off

	order := env.placeOrder(t, input)
	assert.Equal(t, int64(25000), order.Total)
	assert.Equal(t, int64(50), order.PointsUsed)

	balance, err := env.loyaltyService.Balance(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.Balance)

	history, err := env.loyaltyService.History(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.PointsActionRedeemed, history[1].Action)
	assert.Equal(t, order.ID, *history[1].OrderID)
}

func TestOrderService_CreateOrder_InsufficientPoints(t *testing.T) {
	env := setupOrderServiceTest(t)

	input := codOrderInput(env.product.ID, 1)
	input.PointsToRedeem = 500

	_, err := env.orderService.CreateOrder(context.Background(), env.user.ID, input)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestOrderService_Transition_FullPickupWalk(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	// 500-peso order: 150.00 x 3 = 450.00 plus 50.00 delivery fee.
	input := codOrderInput(env.product.ID, 3)
	input.DeliveryMethod = model.DeliveryMethodDelivery
	input.DeliveryAddress = "456 Rizal Ave, Makati"
	order := env.placeOrder(t, input)
	require.Equal(t, int64(50000), order.Total)

	for _, status := range []model.OrderStatus{
		model.OrderStatusPreparing,
		model.OrderStatusOutForDelivery,
		model.OrderStatusDelivered,
		model.OrderStatusCompleted,
	} {
		order, err := env.orderService.Transition(ctx, order.ID, status, "staff")
		require.NoError(t, err)
		assert.Equal(t, status, order.Status)
	}

	final, err := env.orderService.GetOrderByID(ctx, env.user.ID, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, final.CompletedAt)
	// 500 pesos at 0.02 points per peso.
	assert.Equal(t, int64(10), final.PointsEarned)

	balance, err := env.loyaltyService.Balance(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Balance)

	history, err := env.orderService.StatusHistory(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestOrderService_Transition_Illegal(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()
	order := env.placeOrder(t, codOrderInput(env.product.ID, 1))

	// RECEIVED cannot jump straight to DELIVERED.
	_, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusDelivered, "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Unknown target is just another missing edge.
	_, err = env.orderService.Transition(ctx, order.ID, model.OrderStatus("SHIPPED"), "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderService_Transition_ReplayBackfillsAccrual(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	// 450-peso pickup order, walked to the step before completion.
	order := env.placeOrder(t, codOrderInput(env.product.ID, 3))
	for _, status := range []model.OrderStatus{
		model.OrderStatusPreparing,
		model.OrderStatusReadyForPickup,
	} {
		_, err := env.orderService.Transition(ctx, order.ID, status, "staff")
		require.NoError(t, err)
	}

	// Mimic a crash right after the COMPLETED write committed: state and
	// history carry the new status, but the accrual never ran.
	require.NoError(t, env.db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":        model.OrderStatusCompleted,
			"completed_at":  time.Now(),
			"points_earned": int64(9),
		}).Error)
	require.NoError(t, env.db.Create(&model.OrderStatusHistory{
		OrderID: order.ID,
		Status:  model.OrderStatusCompleted,
		Actor:   "staff",
	}).Error)

	// Re-invoking the same transition backfills the missing accrual.
	replayed, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusCompleted, "staff")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, replayed.Status)

	balance, err := env.loyaltyService.Balance(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), balance.Balance)

	// A second replay neither double-credits nor appends history.
	_, err = env.orderService.Transition(ctx, order.ID, model.OrderStatusCompleted, "staff")
	require.NoError(t, err)

	balance, err = env.loyaltyService.Balance(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), balance.Balance)

	history, err := env.orderService.StatusHistory(ctx, order.ID)
	require.NoError(t, err)
	completed := 0
	for _, h := range history {
		if h.Status == model.OrderStatusCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestOrderService_Transition_ReplayBackfillsRefund(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	// Seed a balance and place an order that redeems 50 points.
	prior := seedOrder(t, env.db, env.user.ID, 500000)
	require.NoError(t, env.loyaltyService.Earn(ctx, env.user.ID, prior.ID, 100))

	input := codOrderInput(env.product.ID, 2)
	input.PointsToRedeem = 50
	order := env.placeOrder(t, input)

	// Crash window after the CANCELLED write: the redemption was never
	// refunded.
	require.NoError(t, env.db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusCancelled,
			"cancelled_at": time.Now(),
		}).Error)
	require.NoError(t, env.db.Create(&model.OrderStatusHistory{
		OrderID: order.ID,
		Status:  model.OrderStatusCancelled,
		Actor:   "staff",
	}).Error)

	_, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusCancelled, "staff")
	require.NoError(t, err)

	balance, err := env.loyaltyService.Balance(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)
}

func TestOrderService_Transition_TerminalIsFinal(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()
	order := env.placeOrder(t, codOrderInput(env.product.ID, 1))

	_, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusCancelled, "staff")
	require.NoError(t, err)

	_, err = env.orderService.Transition(ctx, order.ID, model.OrderStatusPreparing, "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderService_Transition_PaymentGate(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	input := codOrderInput(env.product.ID, 1)
	input.PaymentMethod = model.PaymentMethodGCash
	order := env.placeOrder(t, input)

	// GCash orders hold at RECEIVED until verification.
	_, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusPreparing, "staff")
	assert.ErrorIs(t, err, ErrPaymentNotVerified)

	// Cancellation is never gated.
	cancelled, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusCancelled, "staff")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
}

func TestOrderService_Transition_PaymentGatePassesOnceVerified(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	input := codOrderInput(env.product.ID, 1)
	input.PaymentMethod = model.PaymentMethodGCash
	order := env.placeOrder(t, input)

	require.NoError(t, env.db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Update("payment_status", model.PaymentStatusVerified).Error)

	moved, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusPreparing, "staff")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, moved.Status)
}

func TestOrderService_Transition_CashOnDeliveryNeverGated(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()
	order := env.placeOrder(t, codOrderInput(env.product.ID, 1))

	moved, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusPreparing, "staff")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, moved.Status)
}

func TestOrderService_CancelRefundsRedeemedPoints(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	prior := seedOrder(t, env.db, env.user.ID, 500000)
	require.NoError(t, env.loyaltyService.Earn(ctx, env.user.ID, prior.ID, 100))

	input := codOrderInput(env.product.ID, 2)
	input.PointsToRedeem = 50
	order := env.placeOrder(t, input)

	_, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusPreparing, "staff")
	require.NoError(t, err)

	cancelled, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusCancelled, "staff")
	require.NoError(t, err)
	assert.NotNil(t, cancelled.CancelledAt)

	// The 50 redeemed points come back.
	balance, err := env.loyaltyService.Balance(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)

	history, err := env.loyaltyService.History(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.PointsActionRefunded, history[2].Action)
	assert.Equal(t, int64(50), history[2].Points)
}

func TestOrderService_CancelWaivesDeliveryFee(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()

	input := codOrderInput(env.product.ID, 1)
	input.DeliveryMethod = model.DeliveryMethodDelivery
	input.DeliveryAddress = "789 Bonifacio Dr, Pasig"
	order := env.placeOrder(t, input)
	require.Equal(t, int64(5000), order.DeliveryFee)

	cancelled, err := env.orderService.Transition(ctx, order.ID, model.OrderStatusCancelled, "staff")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cancelled.DeliveryFee)
}

func TestOrderService_CancelByCustomer(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()
	order := env.placeOrder(t, codOrderInput(env.product.ID, 1))

	cancelled, err := env.orderService.CancelByCustomer(ctx, env.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
}

func TestOrderService_CancelByCustomer_RefusedAfterHandoff(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()
	order := env.placeOrder(t, codOrderInput(env.product.ID, 1))

	for _, status := range []model.OrderStatus{
		model.OrderStatusPreparing,
		model.OrderStatusReadyForPickup,
	} {
		_, err := env.orderService.Transition(ctx, order.ID, status, "staff")
		require.NoError(t, err)
	}

	_, err := env.orderService.CancelByCustomer(ctx, env.user.ID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderService_GetOrderByID_OwnershipEnforced(t *testing.T) {
	env := setupOrderServiceTest(t)
	ctx := context.Background()
	order := env.placeOrder(t, codOrderInput(env.product.ID, 1))

	other := &model.User{
		Email:        "pedro@example.com",
		PasswordHash: "hash",
		Name:         "Pedro Reyes",
		Role:         model.RoleCustomer,
	}
	require.NoError(t, env.db.Create(other).Error)

	_, err := env.orderService.GetOrderByID(ctx, other.ID, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
