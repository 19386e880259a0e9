package shop

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Checker answers shop ownership questions for seller-scoped operations.
type Checker interface {
	UserOwnsShop(ctx context.Context, shopID, userID string) (bool, error)
}

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresChecker struct {
	db DB
}

func NewChecker(db DB) Checker {
	return &postgresChecker{db: db}
}

func (c *postgresChecker) UserOwnsShop(ctx context.Context, shopID, userID string) (bool, error) {
	if shopID == "" || userID == "" {
		return false, nil
	}

	query := `SELECT EXISTS (SELECT 1 FROM shops WHERE id = $1 AND owner_id = $2)`

	var owns bool
	if err := c.db.QueryRow(ctx, query, shopID, userID).Scan(&owns); err != nil {
		return false, fmt.Errorf("shop: failed to check ownership of shop %s: %w", shopID, err)
	}

	return owns, nil
}
