package postgres

import (
	"context"
	"fmt"
	"time"

	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

const couponColumns = `id, shop_id, title, description, discount_type, discount_value, uses_left, expires_at, validity_days,
	commission_amount, reward_points, active, approved, clicks, version, created_at, updated_at`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	if err := row.Scan(
		&c.ID, &c.ShopID, &c.Title, &c.Description, &c.DiscountType, &c.DiscountValue, &c.UsesLeft,
		&c.ExpiresAt, &c.ValidityDays, &c.CommissionAmount, &c.RewardPoints, &c.Active, &c.Approved,
		&c.Clicks, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return c, nil
}

func (q *queries) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	query := `
		INSERT INTO coupons (id, shop_id, title, description, discount_type, discount_value, uses_left, expires_at, validity_days,
			commission_amount, reward_points, active, approved, clicks, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, 0, $14, $15)
	`
	_, err := q.q.ExecContext(ctx, query, c.ID, c.ShopID, c.Title, c.Description, c.DiscountType, c.DiscountValue, c.UsesLeft,
		c.ExpiresAt, c.ValidityDays, c.CommissionAmount, c.RewardPoints, c.Active, c.Approved, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create coupon: %w", mapError(err))
	}
	return nil
}

func (q *queries) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	c, err := scanCoupon(q.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", mapError(err))
	}
	return c, nil
}

func (q *queries) GetCouponForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 FOR UPDATE`
	c, err := scanCoupon(q.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock coupon: %w", mapError(err))
	}
	return c, nil
}

func (q *queries) ListCoupons(ctx context.Context, shopID *uuid.UUID, onlyRedeemable bool, limit, offset int) ([]*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if shopID != nil {
		query += fmt.Sprintf(" AND shop_id = $%d", argIndex)
		args = append(args, *shopID)
		argIndex++
	}
	if onlyRedeemable {
		query += " AND active AND approved AND uses_left > 0"
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, nil
}

func (q *queries) UpdateCouponUses(ctx context.Context, id uuid.UUID, usesLeft int, version int64) error {
	query := `
		UPDATE coupons
		SET uses_left = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	result, err := q.q.ExecContext(ctx, query, usesLeft, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update coupon uses: %w", mapError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("coupon %s version %d: %w", id, version, store.ErrConflict)
	}
	return nil
}

func (q *queries) SetCouponApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	result, err := q.q.ExecContext(ctx, "UPDATE coupons SET approved = $1, updated_at = $2 WHERE id = $3", approved, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update coupon approval: %w", err)
	}
	return expectOneRow(result)
}

func (q *queries) IncrementCouponClicks(ctx context.Context, id uuid.UUID) error {
	result, err := q.q.ExecContext(ctx, "UPDATE coupons SET clicks = clicks + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment coupon clicks: %w", err)
	}
	return expectOneRow(result)
}
