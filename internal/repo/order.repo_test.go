package repo_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"shopbot/internal/config"
	"shopbot/internal/database"
	"shopbot/internal/domain"
	"shopbot/internal/repo"
)

func setupDB(t *testing.T) database.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shopbot"),
		postgres.WithUsername("shopbot"),
		postgres.WithPassword("shopbot"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(ctr)
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgres(ctx, config.Database{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.RunMigrations())
	// second run is a no-op
	require.NoError(t, db.RunMigrations())
	return db
}

func newOrder() *domain.Order {
	return &domain.Order{
		ExternalID:        uuid.NewString(),
		UserID:            100,
		ChatID:            42,
		ProductID:         3,
		ProductName:       "Hoodie",
		Amount:            5000,
		Currency:          "usd",
		CheckoutSessionID: "cs_test_" + uuid.NewString(),
		Status:            domain.OrderPending,
	}
}

func TestOrderRepo(t *testing.T) {
	db := setupDB(t)
	orders := repo.NewOrderRepo(db.DB())
	ctx := context.Background()

	t.Run("schema present", func(t *testing.T) {
		ok, err := db.HasTable(ctx, "orders")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "up", db.Health(ctx)["status"])
	})

	t.Run("create and find", func(t *testing.T) {
		order := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, order))
		require.NotZero(t, order.ID)
		assert.False(t, order.CreatedAt.IsZero())

		byID, err := orders.FindById(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, order.ExternalID, byID.ExternalID)
		assert.Equal(t, domain.OrderPending, byID.Status)
		assert.Empty(t, byID.PaymentIntentID)
		assert.Empty(t, byID.RefundID)

		byExt, err := orders.FindByExternalId(ctx, order.ExternalID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, byExt.ID)

		bySession, err := orders.FindByCheckoutSession(ctx, order.CheckoutSessionID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, bySession.ID)
	})

	t.Run("not found is nil", func(t *testing.T) {
		o, err := orders.FindById(ctx, 999999)
		assert.NoError(t, err)
		assert.Nil(t, o)

		o, err = orders.FindByPaymentIntent(ctx, "")
		assert.NoError(t, err)
		assert.Nil(t, o)

		o, err = orders.FindByCheckoutSession(ctx, "cs_missing")
		assert.NoError(t, err)
		assert.Nil(t, o)
	})

	t.Run("duplicate session conflicts", func(t *testing.T) {
		first := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, first))

		dup := newOrder()
		dup.CheckoutSessionID = first.CheckoutSessionID
		assert.ErrorIs(t, orders.CreateOrder(ctx, dup), domain.ErrConflictingData)
	})

	t.Run("paid then refunded", func(t *testing.T) {
		order := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, order))

		won, err := orders.MarkPaid(ctx, order.ID, "pi_"+order.ExternalID)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = orders.MarkPaid(ctx, order.ID, "pi_"+order.ExternalID)
		require.NoError(t, err)
		assert.False(t, won, "second MarkPaid must lose")

		byIntent, err := orders.FindByPaymentIntent(ctx, "pi_"+order.ExternalID)
		require.NoError(t, err)
		require.NotNil(t, byIntent)
		assert.Equal(t, domain.OrderPaid, byIntent.Status)
		assert.False(t, byIntent.UpdatedAt.Before(byIntent.CreatedAt))

		won, err = orders.MarkFailed(ctx, order.ID)
		require.NoError(t, err)
		assert.False(t, won, "paid order cannot fail")

		won, err = orders.MarkRefunded(ctx, order.ID, "re_1")
		require.NoError(t, err)
		assert.True(t, won)

		refunded, err := orders.FindById(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderRefunded, refunded.Status)
		assert.Equal(t, "re_1", refunded.RefundID)

		won, err = orders.MarkRefunded(ctx, order.ID, "re_2")
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("pending order cannot be refunded", func(t *testing.T) {
		order := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, order))

		won, err := orders.MarkRefunded(ctx, order.ID, "re_x")
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("refund id requires refunded status", func(t *testing.T) {
		order := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, order))

		_, err := db.DB().ExecContext(ctx, "UPDATE orders SET refund_id = 're_bad' WHERE id = $1", order.ID)
		assert.Error(t, err)
	})

	t.Run("concurrent MarkPaid has one winner", func(t *testing.T) {
		order := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, order))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				won, err := orders.MarkPaid(ctx, order.ID, "pi_race_"+order.ExternalID)
				assert.NoError(t, err)
				if won {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("stuck orders", func(t *testing.T) {
		stale := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, stale))
		_, err := db.DB().ExecContext(ctx, "UPDATE orders SET updated_at = now() - interval '2 hours' WHERE id = $1", stale.ID)
		require.NoError(t, err)

		fresh := newOrder()
		require.NoError(t, orders.CreateOrder(ctx, fresh))

		stuck, err := orders.FindStuckOrders(ctx, time.Hour, 0, 100)
		require.NoError(t, err)

		ids := make([]int64, 0, len(stuck))
		for _, o := range stuck {
			assert.Equal(t, domain.OrderPending, o.Status)
			ids = append(ids, o.ID)
		}
		assert.Contains(t, ids, stale.ID)
		assert.NotContains(t, ids, fresh.ID)
		assert.IsIncreasing(t, ids)

		after, err := orders.FindStuckOrders(ctx, time.Hour, stale.ID, 100)
		require.NoError(t, err)
		for _, o := range after {
			assert.Greater(t, o.ID, stale.ID)
		}

		_, err = orders.FindStuckOrders(ctx, time.Hour, 0, 0)
		assert.Error(t, err)
	})
}
