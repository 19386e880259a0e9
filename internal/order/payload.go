package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultCancellationReason = "Cancelled by seller/admin"
	defaultRefundReason       = "Refund processed"
)

// Payload carries the optional, action specific part of a bulk request.
// Only ShipPayload, CancelPayload, RefundPayload and UpdatePayload implement it.
type Payload interface {
	payloadAction() Action
}

type ShipPayload struct {
	TrackingNumber string `json:"trackingNumber"`
}

type CancelPayload struct {
	Reason string `json:"reason"`
}

type RefundPayload struct {
	RefundAmount *decimal.Decimal `json:"refundAmount"`
	Reason       string           `json:"reason"`
}

type UpdatePayload struct {
	Fields Fields
}

func (ShipPayload) payloadAction() Action   { return ActionShip }
func (CancelPayload) payloadAction() Action { return ActionCancel }
func (RefundPayload) payloadAction() Action { return ActionRefund }
func (UpdatePayload) payloadAction() Action { return ActionUpdate }

// DecodePayload turns the raw "data" member of a bulk request into the
// payload type for action. Absent or null data yields a nil Payload.
// Actions without a payload ignore data.
func DecodePayload(action Action, raw json.RawMessage) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var (
		p   Payload
		err error
	)

	switch action {
	case ActionShip:
		var ship ShipPayload
		err = json.Unmarshal(raw, &ship)
		p = ship
	case ActionCancel:
		var cancel CancelPayload
		err = json.Unmarshal(raw, &cancel)
		p = cancel
	case ActionRefund:
		var refund RefundPayload
		err = json.Unmarshal(raw, &refund)
		p = refund
	case ActionUpdate:
		fields := Fields{}
		err = json.Unmarshal(raw, &fields)
		p = UpdatePayload{Fields: fields}
	default:
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w for action %s: %v", ErrInvalidPayload, action, err)
	}

	return p, nil
}

// protectedFields are write-once and never taken from an update payload.
var protectedFields = map[string]struct{}{
	FieldID:        {},
	FieldUserID:    {},
	FieldCreatedAt: {},
}

// ownedFields only change through a dedicated action or the updated_at stamp.
var ownedFields = map[string]struct{}{
	FieldStatus:    {},
	FieldAmount:    {},
	FieldShopID:    {},
	FieldUpdatedAt: {},
}

// BuildUpdate returns the fields written by action on current. It reports
// false when there is nothing to write: always for delete, and for update
// without a payload.
func BuildUpdate(action Action, now time.Time, current *Order, p Payload) (Fields, bool) {
	now = now.UTC()

	switch action {
	case ActionConfirm:
		return Fields{
			FieldStatus:      StatusConfirmed,
			FieldConfirmedAt: now,
			FieldUpdatedAt:   now,
		}, true

	case ActionProcess:
		return Fields{
			FieldStatus:       StatusProcessing,
			FieldProcessingAt: now,
			FieldUpdatedAt:    now,
		}, true

	case ActionShip:
		ship, _ := p.(ShipPayload)
		return Fields{
			FieldStatus:         StatusShipped,
			FieldTrackingNumber: ship.TrackingNumber,
			FieldShippedAt:      now,
			FieldUpdatedAt:      now,
		}, true

	case ActionDeliver:
		return Fields{
			FieldStatus:      StatusDelivered,
			FieldDeliveredAt: now,
			FieldUpdatedAt:   now,
		}, true

	case ActionCancel:
		cancel, _ := p.(CancelPayload)
		reason := cancel.Reason
		if reason == "" {
			reason = defaultCancellationReason
		}
		return Fields{
			FieldStatus:             StatusCancelled,
			FieldCancellationReason: reason,
			FieldCancelledAt:        now,
			FieldUpdatedAt:          now,
		}, true

	case ActionRefund:
		refund, _ := p.(RefundPayload)
		amount := current.Amount
		if refund.RefundAmount != nil {
			amount = *refund.RefundAmount
		}
		reason := refund.Reason
		if reason == "" {
			reason = defaultRefundReason
		}
		return Fields{
			FieldStatus:       StatusRefunded,
			FieldRefundAmount: amount,
			FieldRefundReason: reason,
			FieldRefundedAt:   now,
			FieldUpdatedAt:    now,
		}, true

	case ActionUpdate:
		update, ok := p.(UpdatePayload)
		if !ok || update.Fields == nil {
			return nil, false
		}
		fields := make(Fields, len(update.Fields)+1)
		for k, v := range update.Fields {
			if _, blocked := protectedFields[k]; blocked {
				continue
			}
			if _, owned := ownedFields[k]; owned {
				continue
			}
			fields[k] = v
		}
		fields[FieldUpdatedAt] = now
		return fields, true

	default:
		return nil, false
	}
}
