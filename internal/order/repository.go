package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Repository is the order store. Writes are last-write-wins.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, id string, fields Fields) error
	Delete(ctx context.Context, id string) error
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

// columns that Update may write directly; any other key goes to metadata.
var updatableColumns = map[string]struct{}{
	FieldStatus:             {},
	FieldUpdatedAt:          {},
	FieldConfirmedAt:        {},
	FieldProcessingAt:       {},
	FieldShippedAt:          {},
	FieldTrackingNumber:     {},
	FieldDeliveredAt:        {},
	FieldCancelledAt:        {},
	FieldCancellationReason: {},
	FieldRefundedAt:         {},
	FieldRefundAmount:       {},
	FieldRefundReason:       {},
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (id, shop_id, user_id, status, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		o.ID,
		o.ShopID,
		o.UserID,
		o.Status,
		o.Amount,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateOrderID
		}
		return fmt.Errorf("repository: failed to insert order %s: %w", o.ID, err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	query := `
		SELECT id, shop_id, user_id, status, amount,
			tracking_number, cancellation_reason, refund_amount, refund_reason,
			confirmed_at, processing_at, shipped_at, delivered_at, cancelled_at, refunded_at,
			metadata, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var (
		o            Order
		refundAmount decimal.NullDecimal
		metadata     []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.ShopID,
		&o.UserID,
		&o.Status,
		&o.Amount,
		&o.TrackingNumber,
		&o.CancellationReason,
		&refundAmount,
		&o.RefundReason,
		&o.ConfirmedAt,
		&o.ProcessingAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
		&o.RefundedAt,
		&metadata,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	if refundAmount.Valid {
		o.RefundAmount = &refundAmount.Decimal
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
			return nil, fmt.Errorf("repository: failed to decode metadata of order %s: %w", id, err)
		}
	}

	return &o, nil
}

func (r *postgresRepository) Update(ctx context.Context, id string, fields Fields) error {
	query, args, err := buildUpdateQuery(id, fields)
	if err != nil {
		return err
	}

	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("order_id", id).Msg("repository: failed to update order")
		return fmt.Errorf("repository: failed to update order %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Str("order_id", id).Msg("repository: order not found for update")
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		log.Error().Err(err).Str("order_id", id).Msg("repository: failed to delete order")
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// buildUpdateQuery renders fields as a single UPDATE. Column assignments are
// sorted by name; unknown keys are merged into metadata as one JSON object.
func buildUpdateQuery(id string, fields Fields) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, errors.New("repository: nothing to update")
	}

	keys := make([]string, 0, len(fields))
	extra := make(map[string]any)
	for k, v := range fields {
		if _, ok := updatableColumns[k]; ok {
			keys = append(keys, k)
			continue
		}
		extra[k] = v
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		args = append(args, fields[k])
		sets = append(sets, k+" = $"+strconv.Itoa(len(args)))
	}

	if len(extra) > 0 {
		doc, err := json.Marshal(extra)
		if err != nil {
			return "", nil, fmt.Errorf("repository: failed to encode metadata for order %s: %w", id, err)
		}
		args = append(args, string(doc))
		sets = append(sets, "metadata = COALESCE(metadata, '{}'::jsonb) || $"+strconv.Itoa(len(args))+"::jsonb")
	}

	args = append(args, id)
	query := "UPDATE orders SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))

	return query, args, nil
}
