package order_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/order"
)

func setup(t *testing.T) (order.Repository, pgxmock.PgxPoolIface) {
	t.Helper()

	db, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create pgx mock pool")

	t.Cleanup(func() {
		assert.NoError(t, db.ExpectationsWereMet(), "unmet database expectations")
		db.Close()
	})

	return order.NewRepository(db), db
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, db := setup(t)

	o := newOrder("order1", order.StatusPending)

	db.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.ShopID, o.UserID, o.Status, pgxmock.AnyArg(), o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), o)
	assert.NoError(t, err, "Create should not return an error")
}

func TestPostgresRepository_Create_Duplicate(t *testing.T) {
	repo, db := setup(t)

	db.ExpectExec("INSERT INTO orders").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.Create(context.Background(), newOrder("order1", order.StatusPending))
	require.ErrorIs(t, err, order.ErrDuplicateOrderID)
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	repo, db := setup(t)

	db.ExpectQuery("SELECT id, shop_id, user_id, status, amount").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.Nil(t, got)
}

func TestPostgresRepository_GetByID_Failure(t *testing.T) {
	repo, db := setup(t)

	db.ExpectQuery("SELECT id, shop_id, user_id, status, amount").
		WithArgs("order1").
		WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.GetByID(context.Background(), "order1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, order.ErrOrderNotFound)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestPostgresRepository_Update_Columns(t *testing.T) {
	repo, db := setup(t)

	fields, ok := order.BuildUpdate(order.ActionShip, fixedNow, newOrder("order1", order.StatusProcessing), order.ShipPayload{TrackingNumber: "TRACK123"})
	require.True(t, ok)

	db.ExpectExec(regexp.QuoteMeta("UPDATE orders SET shipped_at = $1, status = $2, tracking_number = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(fixedNow, order.StatusShipped, "TRACK123", fixedNow, "order1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), "order1", fields)
	assert.NoError(t, err)
}

func TestPostgresRepository_Update_MergesUnknownKeysIntoMetadata(t *testing.T) {
	repo, db := setup(t)

	fields := order.Fields{
		"tracking_number": "T-1",
		"gift_note":       "wrap it",
		"updated_at":      fixedNow,
	}

	db.ExpectExec(regexp.QuoteMeta("UPDATE orders SET tracking_number = $1, updated_at = $2, metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb WHERE id = $4")).
		WithArgs("T-1", fixedNow, `{"gift_note":"wrap it"}`, "order1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), "order1", fields)
	assert.NoError(t, err)
}

func TestPostgresRepository_Update_RefundAmount(t *testing.T) {
	repo, db := setup(t)

	fields := order.Fields{
		"refund_amount": decimal.NewFromInt(1000),
		"updated_at":    fixedNow,
	}

	db.ExpectExec(regexp.QuoteMeta("UPDATE orders SET refund_amount = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(pgxmock.AnyArg(), fixedNow, "order1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), "order1", fields))
}

func TestPostgresRepository_Update_NotFound(t *testing.T) {
	repo, db := setup(t)

	db.ExpectExec("UPDATE orders SET").
		WithArgs(fixedNow, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), "ghost", order.Fields{"updated_at": fixedNow})
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPostgresRepository_Update_Empty(t *testing.T) {
	repo, _ := setup(t)

	err := repo.Update(context.Background(), "order1", order.Fields{})
	require.Error(t, err)
}

func TestPostgresRepository_Delete(t *testing.T) {
	repo, db := setup(t)

	db.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WithArgs("order1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	db.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WithArgs("order1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "order1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "order1"), order.ErrOrderNotFound)
}
