package repository

import (
	"context"
	"testing"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOrderRepoTest(t *testing.T) (*gorm.DB, OrderRepository, *model.User, *model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	repo := NewOrderRepository(testDB)

	user := &model.User{
		Email:        "repo-test@example.com",
		PasswordHash: "hash",
		Name:         "Repo Tester",
		Role:         model.RoleCustomer,
	}
	require.NoError(t, testDB.Create(user).Error)

	product := &model.Product{
		Name:          "Cafe Mocha",
		Category:      model.CategoryCoffee,
		BasePrice:     16000,
		StockQuantity: 10,
		Available:     true,
	}
	require.NoError(t, testDB.Create(product).Error)

	return testDB, repo, user, product
}

func TestOrderRepository_CreateAndFindByID(t *testing.T) {
	_, repo, user, product := setupOrderRepoTest(t)
	ctx := context.Background()

	order := &model.Order{
		ReferenceNo:    "KPH-REPO-1",
		UserID:         user.ID,
		Status:         model.OrderStatusReceived,
		Total:          32000,
		DeliveryMethod: model.DeliveryMethodPickup,
		PaymentMethod:  model.PaymentMethodInStore,
		OrderItems: []model.OrderItem{
			{
				ProductID: product.ID,
				Quantity:  2,
				Price:     16000,
				Size:      model.SizeMedium,
			},
		},
	}

	err := repo.Create(ctx, order)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ReferenceNo, found.ReferenceNo)
	require.Len(t, found.OrderItems, 1)
	assert.Equal(t, product.Name, found.OrderItems[0].Product.Name)
}

func TestOrderRepository_UpdateWithVersion_Conflict(t *testing.T) {
	_, repo, user, _ := setupOrderRepoTest(t)
	ctx := context.Background()

	order := &model.Order{
		ReferenceNo:   "KPH-REPO-2",
		UserID:        user.ID,
		Status:        model.OrderStatusReceived,
		Total:         10000,
		PaymentMethod: model.PaymentMethodCashOnDelivery,
	}
	require.NoError(t, repo.Create(ctx, order))

	err := repo.UpdateWithVersion(ctx, nil, order.ID, order.Version, map[string]interface{}{
		"status": model.OrderStatusPreparing,
	})
	require.NoError(t, err)

	// Same stale version again: the row moved on, so the predicate
	// matches nothing.
	err = repo.UpdateWithVersion(ctx, nil, order.ID, order.Version, map[string]interface{}{
		"status": model.OrderStatusCancelled,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, found.Status)
	assert.Equal(t, order.Version+1, found.Version)
}

func TestOrderRepository_AppendStatusHistory_Idempotent(t *testing.T) {
	_, repo, user, _ := setupOrderRepoTest(t)
	ctx := context.Background()

	order := &model.Order{
		ReferenceNo:   "KPH-REPO-3",
		UserID:        user.ID,
		Status:        model.OrderStatusReceived,
		Total:         10000,
		PaymentMethod: model.PaymentMethodCashOnDelivery,
	}
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.AppendStatusHistory(ctx, nil, order.ID, model.OrderStatusReceived, "system"))
	require.NoError(t, repo.AppendStatusHistory(ctx, nil, order.ID, model.OrderStatusPreparing, "staff"))
	// Retried append of the same pair lands on the unique index and is dropped.
	require.NoError(t, repo.AppendStatusHistory(ctx, nil, order.ID, model.OrderStatusPreparing, "staff"))

	history, err := repo.GetStatusHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.OrderStatusReceived, history[0].Status)
	assert.Equal(t, model.OrderStatusPreparing, history[1].Status)
}

func TestOrderRepository_FindByStatus(t *testing.T) {
	_, repo, user, _ := setupOrderRepoTest(t)
	ctx := context.Background()

	for i, status := range []model.OrderStatus{
		model.OrderStatusReceived,
		model.OrderStatusReceived,
		model.OrderStatusPreparing,
	} {
		order := &model.Order{
			ReferenceNo:   "KPH-REPO-LIST-" + string(rune('A'+i)),
			UserID:        user.ID,
			Status:        status,
			Total:         10000,
			PaymentMethod: model.PaymentMethodCashOnDelivery,
		}
		require.NoError(t, repo.Create(ctx, order))
	}

	received, err := repo.FindByStatus(ctx, model.OrderStatusReceived)
	require.NoError(t, err)
	assert.Len(t, received, 2)

	preparing, err := repo.FindByStatus(ctx, model.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Len(t, preparing, 1)
}
