package postgres

import (
	"context"
	"fmt"

	"kobonz/internal/models"

	"github.com/google/uuid"
)

const linkColumns = `id, affiliate_id, coupon_id, tracking_code, clicks, conversions, active, created_at`

func scanLink(row rowScanner) (*models.AffiliateLink, error) {
	l := &models.AffiliateLink{}
	if err := row.Scan(&l.ID, &l.AffiliateID, &l.CouponID, &l.TrackingCode, &l.Clicks, &l.Conversions, &l.Active, &l.CreatedAt); err != nil {
		return nil, err
	}
	return l, nil
}

func (q *queries) CreateAffiliateLink(ctx context.Context, l *models.AffiliateLink) error {
	query := `
		INSERT INTO affiliate_links (id, affiliate_id, coupon_id, tracking_code, clicks, conversions, active, created_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, $6)
	`
	if _, err := q.q.ExecContext(ctx, query, l.ID, l.AffiliateID, l.CouponID, l.TrackingCode, l.Active, l.CreatedAt); err != nil {
		return fmt.Errorf("failed to create affiliate link: %w", mapError(err))
	}
	return nil
}

func (q *queries) GetAffiliateLinkByCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	query := `SELECT ` + linkColumns + ` FROM affiliate_links WHERE tracking_code = $1`
	l, err := scanLink(q.q.QueryRowContext(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate link: %w", mapError(err))
	}
	return l, nil
}

func (q *queries) GetAffiliateLinkFor(ctx context.Context, affiliateID, couponID uuid.UUID) (*models.AffiliateLink, error) {
	query := `SELECT ` + linkColumns + ` FROM affiliate_links WHERE affiliate_id = $1 AND coupon_id = $2`
	l, err := scanLink(q.q.QueryRowContext(ctx, query, affiliateID, couponID))
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate link: %w", mapError(err))
	}
	return l, nil
}

func (q *queries) ListAffiliateLinks(ctx context.Context, affiliateID uuid.UUID) ([]*models.AffiliateLink, error) {
	query := `SELECT ` + linkColumns + ` FROM affiliate_links WHERE affiliate_id = $1 ORDER BY created_at DESC`
	rows, err := q.q.QueryContext(ctx, query, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliate links: %w", err)
	}
	defer rows.Close()

	var links []*models.AffiliateLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affiliate link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate affiliate links: %w", err)
	}
	return links, nil
}

func (q *queries) IncrementLinkClicks(ctx context.Context, id uuid.UUID) error {
	result, err := q.q.ExecContext(ctx, "UPDATE affiliate_links SET clicks = clicks + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment link clicks: %w", err)
	}
	return expectOneRow(result)
}

func (q *queries) IncrementLinkConversions(ctx context.Context, id uuid.UUID) error {
	result, err := q.q.ExecContext(ctx, "UPDATE affiliate_links SET conversions = conversions + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment link conversions: %w", err)
	}
	return expectOneRow(result)
}
