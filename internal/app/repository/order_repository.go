package repository

import (
	"context"
	"time"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Order, error)
	FindByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	FindBetween(ctx context.Context, from, to time.Time) ([]model.Order, error)
	GetStatusHistory(ctx context.Context, orderID uint) ([]model.OrderStatusHistory, error)
	UpdateWithVersion(ctx context.Context, tx *gorm.DB, orderID uint, version int64, updates map[string]interface{}) error
	AppendStatusHistory(ctx context.Context, tx *gorm.DB, orderID uint, status model.OrderStatus, actor string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
			return db.Preload("Product")
		}).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("User")
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"user_id":         order.UserID,
		"total":           order.Total,
		"delivery_method": order.DeliveryMethod,
	})

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"user_id": order.UserID,
			"total":   order.Total,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"reference_no": order.ReferenceNo,
		"user_id":      order.UserID,
	})
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Order, error) {
	var orders []model.Order
	if err := r.preloadOrder(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	var orders []model.Order
	if err := r.preloadOrder(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by status in database", err, map[string]interface{}{
			"status": status,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindBetween(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	var orders []model.Order
	if err := r.preloadOrder(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by date range in database", err, map[string]interface{}{
			"from": from,
			"to":   to,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID uint) ([]model.OrderStatusHistory, error) {
	var history []model.OrderStatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&history).Error; err != nil {
		logger.Error("Failed to load order status history from database", err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}
	return history, nil
}

// UpdateWithVersion applies updates only when the stored version still
// matches, bumping the version in the same statement. Zero affected rows
// means another writer got there first.
func (r *orderRepository) UpdateWithVersion(ctx context.Context, tx *gorm.DB, orderID uint, version int64, updates map[string]interface{}) error {
	db := tx
	if db == nil {
		db = r.db
	}

	updates["version"] = version + 1
	result := db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", orderID, version).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update order in database", result.Error, map[string]interface{}{
			"order_id": orderID,
			"version":  version,
		})
		return wrapTransient(result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Warn("Order update lost optimistic concurrency race", map[string]interface{}{
			"order_id": orderID,
			"version":  version,
		})
		return ErrVersionConflict
	}
	return nil
}

// AppendStatusHistory inserts one history row. Retried appends of the
// same (order, status) pair hit the unique index and are dropped, which
// keeps the append idempotent.
func (r *orderRepository) AppendStatusHistory(ctx context.Context, tx *gorm.DB, orderID uint, status model.OrderStatus, actor string) error {
	db := tx
	if db == nil {
		db = r.db
	}

	entry := model.OrderStatusHistory{
		OrderID: orderID,
		Status:  status,
		Actor:   actor,
	}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error; err != nil {
		logger.Error("Failed to append order status history in database", err, map[string]interface{}{
			"order_id": orderID,
			"status":   status,
		})
		return wrapTransient(err)
	}

	logger.Debug("Order status history appended", map[string]interface{}{
		"order_id": orderID,
		"status":   status,
		"actor":    actor,
	})
	return nil
}
