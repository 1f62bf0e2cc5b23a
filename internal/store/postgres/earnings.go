package postgres

import (
	"context"
	"fmt"
	"time"

	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

const earningColumns = `id, affiliate_id, coupon_id, redemption_id, amount, status, created_at, released_at`

func scanEarning(row rowScanner) (*models.Earning, error) {
	e := &models.Earning{}
	if err := row.Scan(&e.ID, &e.AffiliateID, &e.CouponID, &e.RedemptionID, &e.Amount, &e.Status, &e.CreatedAt, &e.ReleasedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func (q *queries) CreateEarning(ctx context.Context, e *models.Earning) error {
	query := `
		INSERT INTO earnings (id, affiliate_id, coupon_id, redemption_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := q.q.ExecContext(ctx, query, e.ID, e.AffiliateID, e.CouponID, e.RedemptionID, e.Amount, e.Status, e.CreatedAt); err != nil {
		return fmt.Errorf("failed to create earning: %w", mapError(err))
	}
	return nil
}

func (q *queries) ListReleasableEarnings(ctx context.Context, cutoff time.Time, after *store.EarningCursor, limit int) ([]*models.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM earnings WHERE status = 'pending' AND created_at <= $1`
	args := []interface{}{cutoff}
	if after != nil {
		query += " AND (created_at, id) > ($2, $3)"
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list releasable earnings: %w", err)
	}
	defer rows.Close()

	var earnings []*models.Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate earnings: %w", err)
	}
	return earnings, nil
}

func (q *queries) ReleaseEarning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE earnings
		SET status = 'available', released_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	result, err := q.q.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to release earning: %w", mapError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (q *queries) ListEarnings(ctx context.Context, affiliateID uuid.UUID, limit, offset int) ([]*models.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM earnings WHERE affiliate_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := q.q.QueryContext(ctx, query, affiliateID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	var earnings []*models.Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate earnings: %w", err)
	}
	return earnings, nil
}
