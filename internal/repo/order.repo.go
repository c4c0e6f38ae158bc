package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"shopbot/internal/domain"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:generate mockgen -source=order.repo.go -destination=mock/order_repo.go -package=mock

// OrderRepo is the single source of truth for order payment state.
// Find* methods return (nil, nil) when nothing matches. Mark* methods are
// conditional updates and report false when the order was not in the
// expected pre-state, so concurrent callers never both win.
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	FindById(ctx context.Context, id int64) (*domain.Order, error)
	FindByExternalId(ctx context.Context, externalID string) (*domain.Order, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (*domain.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, id int64, paymentIntentID string) (bool, error)
	MarkFailed(ctx context.Context, id int64) (bool, error)
	MarkRefunded(ctx context.Context, id int64, refundID string) (bool, error)
	// FindStuckOrders pages through pending orders idle for longer than
	// olderThan in id order, starting after afterID.
	FindStuckOrders(ctx context.Context, olderThan time.Duration, afterID int64, limit int) ([]domain.Order, error)
}

var orderColumns = []string{
	"id", "external_id", "user_id", "chat_id", "product_id", "product_name",
	"amount", "currency", "checkout_session_id", "payment_intent_id", "status",
	"refund_id", "created_at", "updated_at",
}

type orderRepo struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order         domain.Order
		paymentIntent sql.NullString
		refundID      sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.ExternalID,
		&order.UserID,
		&order.ChatID,
		&order.ProductID,
		&order.ProductName,
		&order.Amount,
		&order.Currency,
		&order.CheckoutSessionID,
		&paymentIntent,
		&order.Status,
		&refundID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.PaymentIntentID = paymentIntent.String
	order.RefundID = refundID.String
	return &order, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	statement := r.qb.Insert("orders").
		Columns("external_id", "user_id", "chat_id", "product_id", "product_name",
			"amount", "currency", "status", "checkout_session_id").
		Values(order.ExternalID, order.UserID, order.ChatID, order.ProductID, order.ProductName,
			order.Amount, order.Currency, string(order.Status), order.CheckoutSessionID).
		Suffix("RETURNING id, created_at, updated_at")

	query, args, err := statement.ToSql()
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query, args...).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrConflictingData
		}
		return err
	}
	return nil
}

func (r *orderRepo) findOne(ctx context.Context, where sq.Eq) (*domain.Order, error) {
	query, args, err := r.qb.Select(orderColumns...).From("orders").Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	return order, nil
}

func (r *orderRepo) FindById(ctx context.Context, id int64) (*domain.Order, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *orderRepo) FindByExternalId(ctx context.Context, externalID string) (*domain.Order, error) {
	return r.findOne(ctx, sq.Eq{"external_id": externalID})
}

func (r *orderRepo) FindByCheckoutSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.findOne(ctx, sq.Eq{"checkout_session_id": sessionID})
}

func (r *orderRepo) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	if paymentIntentID == "" {
		return nil, nil
	}
	return r.findOne(ctx, sq.Eq{"payment_intent_id": paymentIntentID})
}

// transition moves order id from one status to another only if it is still
// in the expected status.
func (r *orderRepo) transition(ctx context.Context, id int64, from, to domain.OrderStatus, set map[string]any) (bool, error) {
	statement := r.qb.Update("orders").
		Set("status", string(to)).
		Set("updated_at", sq.Expr("now()")).
		SetMap(set).
		Where(sq.Eq{"id": id, "status": string(from)})

	query, args, err := statement.ToSql()
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) MarkPaid(ctx context.Context, id int64, paymentIntentID string) (bool, error) {
	return r.transition(ctx, id, domain.OrderPending, domain.OrderPaid, map[string]any{
		"payment_intent_id": nullable(paymentIntentID),
	})
}

func (r *orderRepo) MarkFailed(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, id, domain.OrderPending, domain.OrderFailed, nil)
}

func (r *orderRepo) MarkRefunded(ctx context.Context, id int64, refundID string) (bool, error) {
	return r.transition(ctx, id, domain.OrderPaid, domain.OrderRefunded, map[string]any{
		"refund_id": refundID,
	})
}

func (r *orderRepo) FindStuckOrders(ctx context.Context, olderThan time.Duration, afterID int64, limit int) ([]domain.Order, error) {
	if limit < 1 {
		return nil, fmt.Errorf("find stuck orders: limit must be positive, got %d", limit)
	}
	statement := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"status": string(domain.OrderPending)}).
		Where(sq.Lt{"updated_at": time.Now().Add(-olderThan)}).
		Where(sq.Gt{"id": afterID}).
		OrderBy("id").
		Limit(uint64(limit))

	query, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}
