package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLoyaltyConfig() config.LoyaltyConfig {
	return config.LoyaltyConfig{
		AccrualPoints:    1,
		AccrualPesos:     50,
		CentavosPerPoint: 100,
		ExpiryWindow:     365 * 24 * time.Hour,
		ExpiryWarning:    7 * 24 * time.Hour,
	}
}

func testRetryConfig() config.OrderConfig {
	return config.OrderConfig{
		DeliveryFee:       5000,
		LowStockThreshold: 5,
		MaxRetryAttempts:  5,
		RetryBaseDelay:    time.Millisecond,
	}
}

func setupLoyaltyServiceTest(t *testing.T) (LoyaltyService, *gorm.DB, *model.User) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	loyaltyRepo := repository.NewLoyaltyRepository(testDB)
	loyaltyService := NewLoyaltyService(loyaltyRepo, nil, testLoyaltyConfig(), testRetryConfig(), testDB)

	user := &model.User{
		Email:        "maria@example.com",
		PasswordHash: "hash",
		Name:         "Maria Santos",
		Role:         model.RoleCustomer,
	}
	testDB.Create(user)

	return loyaltyService, testDB, user
}

// seedOrder creates a bare order row so ledger entries have a real
// order to reference.
func seedOrder(t *testing.T, testDB *gorm.DB, userID uint, total int64) *model.Order {
	t.Helper()
	order := &model.Order{
		ReferenceNo:   "ref-" + time.Now().Format("150405.000000000"),
		UserID:        userID,
		Status:        model.OrderStatusReceived,
		Total:         total,
		PaymentMethod: model.PaymentMethodCashOnDelivery,
		PaymentStatus: model.PaymentStatusPending,
	}
	require.NoError(t, testDB.Create(order).Error)
	return order
}

func TestLoyaltyService_AccrualFor(t *testing.T) {
	svc, _, _ := setupLoyaltyServiceTest(t)

	tests := []struct {
		name     string
		centavos int64
		want     int64
	}{
		{"500 peso order", 50000, 10},
		{"truncates fractional points", 7550, 1}, // 75.50 pesos -> 1.51 -> 1
		{"below one point", 4900, 0},
		{"zero total", 0, 0},
		{"negative total", -100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.AccrualFor(tt.centavos))
		})
	}
}

func TestLoyaltyService_AccrualFor_ExactRatio(t *testing.T) {
	cfg := testLoyaltyConfig()
	cfg.AccrualPoints = 29
	cfg.AccrualPesos = 100
	svc := NewLoyaltyService(nil, nil, cfg, testRetryConfig(), nil)

	// 29 per 100 pesos on a 1000-peso order is exactly 290, with no
	// drift from a fractional rate.
	assert.Equal(t, int64(290), svc.AccrualFor(100000))
	assert.Equal(t, int64(2), svc.AccrualFor(1000)) // 10 pesos -> 2.9 -> 2
}

func TestLoyaltyService_Earn(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()
	order := seedOrder(t, testDB, user.ID, 50000)

	err := svc.Earn(ctx, user.ID, order.ID, 10)
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Balance)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.PointsActionEarned, history[0].Action)
	assert.Equal(t, int64(10), history[0].Points)
	require.NotNil(t, history[0].OrderID)
	assert.Equal(t, order.ID, *history[0].OrderID)
	require.NotNil(t, history[0].ExpiresAt)
	assert.True(t, history[0].ExpiresAt.After(time.Now()))
}

func TestLoyaltyService_Earn_IdempotentPerOrder(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()
	order := seedOrder(t, testDB, user.ID, 50000)

	require.NoError(t, svc.Earn(ctx, user.ID, order.ID, 10))

	// A retried accrual for the same order must not double-credit.
	err := svc.Earn(ctx, user.ID, order.ID, 10)
	assert.ErrorIs(t, err, ErrDuplicateLedgerEntry)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Balance)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLoyaltyService_Earn_ZeroPointsIsNoOp(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()
	order := seedOrder(t, testDB, user.ID, 4900)

	require.NoError(t, svc.Earn(ctx, user.ID, order.ID, 0))

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLoyaltyService_Redeem_InsufficientBalance(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	earnOrder := seedOrder(t, testDB, user.ID, 50000)
	require.NoError(t, svc.Earn(ctx, user.ID, earnOrder.ID, 30))

	spendOrder := seedOrder(t, testDB, user.ID, 20000)
	err := svc.Redeem(ctx, user.ID, spendOrder.ID, 50)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// A refused redemption leaves no trace in the ledger.
	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance.Balance)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLoyaltyService_RefundRoundTrip(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	earnOrder := seedOrder(t, testDB, user.ID, 500000)
	require.NoError(t, svc.Earn(ctx, user.ID, earnOrder.ID, 100))

	spendOrder := seedOrder(t, testDB, user.ID, 30000)
	require.NoError(t, svc.Redeem(ctx, user.ID, spendOrder.ID, 50))

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.Balance)

	refunded, err := svc.Refund(ctx, user.ID, spendOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), refunded)

	balance, err = svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)

	// The redemption stays in the ledger; the refund is a compensating
	// entry, not an erasure.
	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.PointsActionEarned, history[0].Action)
	assert.Equal(t, model.PointsActionRedeemed, history[1].Action)
	assert.Equal(t, model.PointsActionRefunded, history[2].Action)
}

func TestLoyaltyService_Refund_WithoutRedemption(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()
	order := seedOrder(t, testDB, user.ID, 20000)

	_, err := svc.Refund(ctx, user.ID, order.ID)
	assert.ErrorIs(t, err, ErrNothingToRefund)
}

func TestLoyaltyService_Refund_Twice(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	earnOrder := seedOrder(t, testDB, user.ID, 500000)
	require.NoError(t, svc.Earn(ctx, user.ID, earnOrder.ID, 100))

	spendOrder := seedOrder(t, testDB, user.ID, 30000)
	require.NoError(t, svc.Redeem(ctx, user.ID, spendOrder.ID, 40))

	_, err := svc.Refund(ctx, user.ID, spendOrder.ID)
	require.NoError(t, err)

	_, err = svc.Refund(ctx, user.ID, spendOrder.ID)
	assert.ErrorIs(t, err, ErrNothingToRefund)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)
}

func TestLoyaltyService_ConcurrentRedeems(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	earnOrder := seedOrder(t, testDB, user.ID, 500000)
	require.NoError(t, svc.Earn(ctx, user.ID, earnOrder.ID, 100))

	orderA := seedOrder(t, testDB, user.ID, 10000)
	orderB := seedOrder(t, testDB, user.ID, 10000)

	// Both redemptions ask for 80 of 100. Exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, orderID := range []uint{orderA.ID, orderB.ID} {
		wg.Add(1)
		go func(i int, orderID uint) {
			defer wg.Done()
			errs[i] = svc.Redeem(ctx, user.ID, orderID, 80)
		}(i, orderID)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, successes)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance.Balance)

	// Balance must equal earned - redeemed - expired + refunded.
	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	var derived int64
	for _, e := range history {
		switch e.Action {
		case model.PointsActionEarned, model.PointsActionRefunded:
			derived += e.Points
		case model.PointsActionRedeemed, model.PointsActionExpired:
			derived -= e.Points
		}
	}
	assert.Equal(t, balance.Balance, derived)
}

func TestLoyaltyService_Expire(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	// Lapsed accrual of 100, partially consumed by a redemption of 30.
	earnOrder := seedOrder(t, testDB, user.ID, 500000)
	require.NoError(t, svc.Earn(ctx, user.ID, earnOrder.ID, 100))

	spendOrder := seedOrder(t, testDB, user.ID, 30000)
	require.NoError(t, svc.Redeem(ctx, user.ID, spendOrder.ID, 30))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, testDB.Model(&model.PointsHistory{}).
		Where("user_id = ? AND action = ?", user.ID, model.PointsActionEarned).
		Update("expires_at", past).Error)

	expired, err := svc.Expire(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), expired)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)

	// Second sweep finds nothing left to lapse.
	expired, err = svc.Expire(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), expired)

	balance, err = svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)
}

func TestLoyaltyService_Expire_AfterRefundReexposesPoints(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	// A lapsed accrual of 100 is partially consumed, swept, and then a
	// refund hands 30 of it back. The next sweep must lapse those too,
	// writing a second EXPIRED slice against the same earning order.
	earnOrder := seedOrder(t, testDB, user.ID, 500000)
	require.NoError(t, svc.Earn(ctx, user.ID, earnOrder.ID, 100))

	spendOrder := seedOrder(t, testDB, user.ID, 30000)
	require.NoError(t, svc.Redeem(ctx, user.ID, spendOrder.ID, 30))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, testDB.Model(&model.PointsHistory{}).
		Where("user_id = ? AND action = ?", user.ID, model.PointsActionEarned).
		Update("expires_at", past).Error)

	expired, err := svc.Expire(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), expired)

	refunded, err := svc.Refund(ctx, user.ID, spendOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), refunded)

	expired, err = svc.Expire(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), expired)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	var slices []int64
	for _, e := range history {
		if e.Action == model.PointsActionExpired {
			require.NotNil(t, e.OrderID)
			assert.Equal(t, earnOrder.ID, *e.OrderID)
			slices = append(slices, e.Points)
		}
	}
	assert.Equal(t, []int64{70, 30}, slices)

	// A further sweep finds nothing left.
	expired, err = svc.Expire(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), expired)
}

func TestLoyaltyService_Expire_ConsumesOldestFirst(t *testing.T) {
	svc, testDB, user := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	// Two accruals; only the older one has lapsed. The redemption of 40
	// is allocated to the oldest accrual first, leaving 60 to expire.
	oldOrder := seedOrder(t, testDB, user.ID, 500000)
	require.NoError(t, svc.Earn(ctx, user.ID, oldOrder.ID, 100))

	newOrder := seedOrder(t, testDB, user.ID, 250000)
	require.NoError(t, svc.Earn(ctx, user.ID, newOrder.ID, 50))

	spendOrder := seedOrder(t, testDB, user.ID, 30000)
	require.NoError(t, svc.Redeem(ctx, user.ID, spendOrder.ID, 40))

	past := time.Now().Add(-time.Hour)
	oid := oldOrder.ID
	require.NoError(t, testDB.Model(&model.PointsHistory{}).
		Where("order_id = ? AND action = ?", oid, model.PointsActionEarned).
		Update("expires_at", past).Error)

	expired, err := svc.Expire(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), expired)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.Balance)
}
