package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("illegal order status transition")
	ErrPaymentNotVerified = errors.New("payment must be verified before the order can progress")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrDeliveryAddress    = errors.New("delivery orders require an address")
	ErrProductUnavailable = errors.New("product not available")
	ErrInsufficientStock  = errors.New("insufficient product stock")
)

type OrderItemInput struct {
	ProductID   uint
	Quantity    int
	Size        model.ItemSize
	Temperature model.ItemTemperature
	AddOnIDs    []uint
}

type CreateOrderInput struct {
	Items           []OrderItemInput
	DeliveryMethod  model.DeliveryMethod
	DeliveryAddress string
	PaymentMethod   model.PaymentMethod
	ContactNumber   string
	PointsToRedeem  int64
}

// OrderService owns the order lifecycle: checkout, the status state
// machine, and the ledger/notification side effects hanging off
// terminal transitions.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uint, input CreateOrderInput) (*model.Order, error)
	GetUserOrders(ctx context.Context, userID uint) ([]model.Order, error)
	GetOrderByID(ctx context.Context, userID, orderID uint) (*model.Order, error)
	ListByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	Transition(ctx context.Context, orderID uint, target model.OrderStatus, actor string) (*model.Order, error)
	CancelByCustomer(ctx context.Context, userID, orderID uint) (*model.Order, error)
	StatusHistory(ctx context.Context, orderID uint) ([]model.OrderStatusHistory, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	loyalty     LoyaltyService
	notifier    NotificationService
	loyaltyCfg  config.LoyaltyConfig
	orderCfg    config.OrderConfig
	db          *gorm.DB
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	loyalty LoyaltyService,
	notifier NotificationService,
	loyaltyCfg config.LoyaltyConfig,
	orderCfg config.OrderConfig,
	db *gorm.DB,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		loyalty:     loyalty,
		notifier:    notifier,
		loyaltyCfg:  loyaltyCfg,
		orderCfg:    orderCfg,
		db:          db,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, userID uint, input CreateOrderInput) (*model.Order, error) {
	logger.Info("Creating order", map[string]interface{}{
		"user_id":         userID,
		"item_count":      len(input.Items),
		"delivery_method": input.DeliveryMethod,
		"payment_method":  input.PaymentMethod,
		"points":          input.PointsToRedeem,
	})

	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if input.DeliveryMethod == "" {
		input.DeliveryMethod = model.DeliveryMethodPickup
	}
	if input.DeliveryMethod == model.DeliveryMethodDelivery && input.DeliveryAddress == "" {
		logger.Warn("Delivery order without address", map[string]interface{}{
			"user_id": userID,
		})
		return nil, ErrDeliveryAddress
	}
	if input.PointsToRedeem < 0 {
		return nil, ErrInvalidPointsAmount
	}

	// Fail fast before touching any state. The authoritative check is
	// the redeem itself, below.
	if input.PointsToRedeem > 0 {
		lp, err := s.loyalty.Balance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if input.PointsToRedeem > lp.Balance {
			return nil, ErrInsufficientBalance
		}
	}

	var lowStock []string
	order := &model.Order{
		ReferenceNo:     uuid.NewString(),
		UserID:          userID,
		Status:          model.OrderStatusReceived,
		DeliveryMethod:  input.DeliveryMethod,
		DeliveryAddress: input.DeliveryAddress,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   model.PaymentStatusPending,
		PointsUsed:      input.PointsToRedeem,
		ContactNumber:   input.ContactNumber,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var itemsTotal int64
		var orderItems []model.OrderItem

		for _, in := range input.Items {
			if in.Quantity < 1 {
				return ErrEmptyOrder
			}

			product, err := s.productRepo.FindByID(ctx, in.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrProductUnavailable
				}
				return err
			}
			if !product.Available {
				return ErrProductUnavailable
			}

			unitPrice := product.BasePrice
			var addOnNames []string
			for _, addOnID := range in.AddOnIDs {
				found := false
				for _, addOn := range product.AddOns {
					if addOn.ID == addOnID {
						unitPrice += addOn.Price
						addOnNames = append(addOnNames, addOn.Name)
						found = true
						break
					}
				}
				if !found {
					return ErrProductUnavailable
				}
			}

			if err := s.productRepo.DecrementStock(ctx, tx, product.ID, in.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					logger.Warn("Order rejected: insufficient stock", map[string]interface{}{
						"user_id":    userID,
						"product_id": product.ID,
						"requested":  in.Quantity,
					})
					return ErrInsufficientStock
				}
				return err
			}
			if product.StockQuantity-in.Quantity < s.orderCfg.LowStockThreshold {
				lowStock = append(lowStock, product.Name)
			}

			orderItems = append(orderItems, model.OrderItem{
				ProductID:   product.ID,
				Size:        in.Size,
				Temperature: in.Temperature,
				Quantity:    in.Quantity,
				Price:       unitPrice,
				AddOns:      addOnNames,
			})
			itemsTotal += unitPrice * int64(in.Quantity)
		}

		if input.DeliveryMethod == model.DeliveryMethodDelivery {
			order.DeliveryFee = s.orderCfg.DeliveryFee
		}

		discount := input.PointsToRedeem * s.loyaltyCfg.CentavosPerPoint
		total := itemsTotal + order.DeliveryFee - discount
		if total < 0 {
			logger.Warn("Points exceed order value, rejecting", map[string]interface{}{
				"user_id":  userID,
				"subtotal": itemsTotal + order.DeliveryFee,
				"discount": discount,
			})
			return ErrInvalidPointsAmount
		}
		order.Total = total
		order.OrderItems = orderItems

		if err := tx.WithContext(ctx).Create(order).Error; err != nil {
			return err
		}
		return s.orderRepo.AppendStatusHistory(ctx, tx, order.ID, model.OrderStatusReceived, "customer")
	})
	if err != nil {
		return nil, err
	}

	// The order row is durable; the redemption is its own idempotent
	// ledger transaction keyed by the order ID. A lost race is
	// compensated by cancelling the just-created order.
	if input.PointsToRedeem > 0 {
		if err := s.loyalty.Redeem(ctx, userID, order.ID, input.PointsToRedeem); err != nil {
			logger.Warn("Redemption failed after order creation, cancelling order", map[string]interface{}{
				"user_id":  userID,
				"order_id": order.ID,
				"error":    err.Error(),
			})
			if _, cancelErr := s.Transition(ctx, order.ID, model.OrderStatusCancelled, "system"); cancelErr != nil {
				logger.Error("Failed to cancel order after redemption failure", cancelErr, map[string]interface{}{
					"order_id": order.ID,
				})
			}
			return nil, err
		}
	}

	s.notifyStaff(ctx, model.NotificationTypeNewOrder,
		"New order received",
		fmt.Sprintf("Order %s is waiting for processing.", order.ReferenceNo),
		fmt.Sprintf("/orders/%d", order.ID))

	for _, name := range lowStock {
		s.notifyStaff(ctx, model.NotificationTypeLowStock,
			"Low stock",
			fmt.Sprintf("%s is running low.", name), "")
	}

	logger.Info("Order created successfully", map[string]interface{}{
		"user_id":      userID,
		"order_id":     order.ID,
		"reference_no": order.ReferenceNo,
		"total":        order.Total,
		"points_used":  order.PointsUsed,
	})
	return s.orderRepo.FindByID(ctx, order.ID)
}

func (s *orderService) GetUserOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	return s.orderRepo.FindByUserID(ctx, userID)
}

func (s *orderService) GetOrderByID(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		logger.Warn("Order access denied: ownership mismatch", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
			"owner_id": order.UserID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	return s.orderRepo.FindByStatus(ctx, status)
}

func (s *orderService) StatusHistory(ctx context.Context, orderID uint) ([]model.OrderStatusHistory, error) {
	return s.orderRepo.GetStatusHistory(ctx, orderID)
}

// paymentBlocked reports whether the payment gate holds the order at
// RECEIVED. GCash always needs verification; in-store only once a proof
// was uploaded; cash on delivery never blocks.
func paymentBlocked(order *model.Order) bool {
	if order.PaymentStatus == model.PaymentStatusVerified {
		return false
	}
	switch order.PaymentMethod {
	case model.PaymentMethodGCash:
		return true
	case model.PaymentMethodInStore:
		return order.PaymentProof != ""
	default:
		return false
	}
}

// Transition moves an order along the status graph. The status update
// and history append commit together; ledger and notification effects
// run afterwards and are idempotent, so a crash in between is healed by
// a retry of the same call.
func (s *orderService) Transition(ctx context.Context, orderID uint, target model.OrderStatus, actor string) (*model.Order, error) {
	logger.Info("Transitioning order status", map[string]interface{}{
		"order_id": orderID,
		"target":   target,
		"actor":    actor,
	})

	var order *model.Order
	var replay bool
	err := withRetry(ctx, s.orderCfg.MaxRetryAttempts, s.orderCfg.RetryBaseDelay, "order.transition", func() error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		// Re-invoking with the current status replays the ledger effects
		// without touching the already-committed state. This is the
		// recovery path when a crash landed between the history commit
		// and the accrual or refund below.
		if order.Status == target {
			replay = true
			return nil
		}

		if order.Status.IsTerminal() || !model.CanTransition(order.Status, target) {
			logger.Warn("Illegal order status transition", map[string]interface{}{
				"order_id": orderID,
				"from":     order.Status,
				"to":       target,
			})
			return ErrInvalidTransition
		}
		if order.Status == model.OrderStatusReceived && target != model.OrderStatusCancelled && paymentBlocked(order) {
			logger.Warn("Transition blocked by payment gate", map[string]interface{}{
				"order_id":       orderID,
				"payment_method": order.PaymentMethod,
				"payment_status": order.PaymentStatus,
			})
			return ErrPaymentNotVerified
		}

		now := time.Now()
		updates := map[string]interface{}{"status": target}
		switch target {
		case model.OrderStatusCompleted:
			updates["completed_at"] = now
			updates["points_earned"] = s.loyalty.AccrualFor(order.Total)
		case model.OrderStatusCancelled:
			updates["cancelled_at"] = now
			updates["delivery_fee"] = 0 // fee waived on cancellation
		}

		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.orderRepo.UpdateWithVersion(ctx, tx, order.ID, order.Version, updates); err != nil {
				return err
			}
			return s.orderRepo.AppendStatusHistory(ctx, tx, order.ID, target, actor)
		})
	})
	if err != nil {
		return nil, err
	}

	// History row is durable past this point; the transition stands even
	// if a side effect below fails.
	s.runTransitionEffects(ctx, order, target, replay)

	if replay {
		logger.Info("Order transition replayed", map[string]interface{}{
			"order_id": orderID,
			"status":   target,
			"actor":    actor,
		})
	} else {
		logger.Info("Order status transitioned", map[string]interface{}{
			"order_id": orderID,
			"from":     order.Status,
			"to":       target,
			"actor":    actor,
		})
	}
	return s.orderRepo.FindByID(ctx, orderID)
}

// runTransitionEffects applies the post-commit side effects. The ledger
// calls are idempotent per order, so a replayed transition backfills a
// missing accrual or refund without double-crediting. Replays skip the
// customer notice; that went out with the original transition.
func (s *orderService) runTransitionEffects(ctx context.Context, order *model.Order, target model.OrderStatus, replay bool) {
	switch target {
	case model.OrderStatusCompleted:
		points := s.loyalty.AccrualFor(order.Total)
		if err := s.loyalty.Earn(ctx, order.UserID, order.ID, points); err != nil && !errors.Is(err, ErrDuplicateLedgerEntry) {
			logger.Error("Accrual failed after completion; replaying the transition retries it", err, map[string]interface{}{
				"order_id": order.ID,
				"user_id":  order.UserID,
				"points":   points,
			})
		}
	case model.OrderStatusCancelled:
		if _, err := s.loyalty.Refund(ctx, order.UserID, order.ID); err != nil && !errors.Is(err, ErrNothingToRefund) {
			logger.Error("Refund failed after cancellation; replaying the transition retries it", err, map[string]interface{}{
				"order_id": order.ID,
				"user_id":  order.UserID,
			})
		}
	}

	if s.notifier != nil && !replay {
		title, message := statusNotice(order.ReferenceNo, target)
		if err := s.notifier.Enqueue(ctx, order.UserID, model.NotificationTypeOrderStatus,
			title, message, fmt.Sprintf("/orders/%d", order.ID)); err != nil {
			logger.Error("Failed to enqueue order status notification", err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}
}

func statusNotice(referenceNo string, status model.OrderStatus) (string, string) {
	switch status {
	case model.OrderStatusPreparing:
		return "Order being prepared", fmt.Sprintf("Order %s is now being prepared.", referenceNo)
	case model.OrderStatusOutForDelivery:
		return "Order out for delivery", fmt.Sprintf("Order %s is on its way.", referenceNo)
	case model.OrderStatusReadyForPickup:
		return "Order ready for pickup", fmt.Sprintf("Order %s is ready at the counter.", referenceNo)
	case model.OrderStatusDelivered:
		return "Order delivered", fmt.Sprintf("Order %s has been delivered.", referenceNo)
	case model.OrderStatusCompleted:
		return "Order completed", fmt.Sprintf("Order %s is complete. Salamat! You can now review your items.", referenceNo)
	case model.OrderStatusCancelled:
		return "Order cancelled", fmt.Sprintf("Order %s has been cancelled.", referenceNo)
	default:
		return "Order updated", fmt.Sprintf("Order %s was updated.", referenceNo)
	}
}

// CancelByCustomer lets the owner cancel before the order is handed
// off. Staff cancel later stages through Transition directly.
func (s *orderService) CancelByCustomer(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusReceived && order.Status != model.OrderStatusPreparing {
		logger.Warn("Customer cancellation refused at current stage", map[string]interface{}{
			"order_id": orderID,
			"status":   order.Status,
		})
		return nil, ErrInvalidTransition
	}
	return s.Transition(ctx, orderID, model.OrderStatusCancelled, "customer")
}

func (s *orderService) notifyStaff(ctx context.Context, notifType model.NotificationType, title, message, link string) {
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
