package order

import (
	"context"
	"fmt"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
)

// ShopChecker reports whether userID owns shopID.
type ShopChecker interface {
	UserOwnsShop(ctx context.Context, shopID, userID string) (bool, error)
}

// CanBulkAct is the role policy: only admins and sellers may run bulk actions.
func CanBulkAct(role auth.Role) bool {
	return role == auth.RoleAdmin || role == auth.RoleSeller
}

// OwnershipPolicy decides whether a caller may mutate a specific order.
type OwnershipPolicy struct {
	shops ShopChecker
}

func NewOwnershipPolicy(shops ShopChecker) OwnershipPolicy {
	return OwnershipPolicy{shops: shops}
}

func (p OwnershipPolicy) CanActOn(ctx context.Context, caller auth.Caller, o *Order) (bool, error) {
	switch caller.Role {
	case auth.RoleAdmin:
		return true, nil
	case auth.RoleSeller:
		owns, err := p.shops.UserOwnsShop(ctx, o.ShopID, caller.UID)
		if err != nil {
			return false, fmt.Errorf("failed to verify shop ownership: %w", err)
		}
		return owns, nil
	default:
		return false, nil
	}
}
