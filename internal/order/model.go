package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	default:
		return false
	}
}

// Column names, shared by the payload builder and the repository.
const (
	FieldID                 = "id"
	FieldShopID             = "shop_id"
	FieldUserID             = "user_id"
	FieldStatus             = "status"
	FieldAmount             = "amount"
	FieldCreatedAt          = "created_at"
	FieldUpdatedAt          = "updated_at"
	FieldConfirmedAt        = "confirmed_at"
	FieldProcessingAt       = "processing_at"
	FieldShippedAt          = "shipped_at"
	FieldTrackingNumber     = "tracking_number"
	FieldDeliveredAt        = "delivered_at"
	FieldCancelledAt        = "cancelled_at"
	FieldCancellationReason = "cancellation_reason"
	FieldRefundedAt         = "refunded_at"
	FieldRefundAmount       = "refund_amount"
	FieldRefundReason       = "refund_reason"
)

// Fields is a partial update keyed by column name. Keys that are not
// columns are merged into Order.Metadata.
type Fields map[string]any

type Order struct {
	ID                 string           `json:"id" db:"id"`
	ShopID             string           `json:"shop_id" db:"shop_id"`
	UserID             string           `json:"user_id" db:"user_id"`
	Status             Status           `json:"status" db:"status"`
	Amount             decimal.Decimal  `json:"amount" db:"amount"`
	TrackingNumber     string           `json:"tracking_number,omitempty" db:"tracking_number"`
	CancellationReason string           `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundAmount       *decimal.Decimal `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundReason       string           `json:"refund_reason,omitempty" db:"refund_reason"`
	ConfirmedAt        *time.Time       `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ProcessingAt       *time.Time       `json:"processing_at,omitempty" db:"processing_at"`
	ShippedAt          *time.Time       `json:"shipped_at,omitempty" db:"shipped_at"`
	DeliveredAt        *time.Time       `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RefundedAt         *time.Time       `json:"refunded_at,omitempty" db:"refunded_at"`
	Metadata           map[string]any   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
}

// OrderEvent is emitted after every committed transition.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	ShopID         string    `json:"shop_id"`
	Action         Action    `json:"action"`
	PreviousStatus Status    `json:"previous_status"`
	Status         Status    `json:"status,omitempty"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}
