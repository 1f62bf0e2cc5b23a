package postgres

import (
	"context"
	"fmt"
	"time"

	"kobonz/internal/models"

	"github.com/google/uuid"
)

const accountColumns = `id, email, display_name, password_hash, role, referral_code, referred_by, credits,
	pending_balance, available_balance, has_redeemed_first_coupon, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	if err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Role, &a.ReferralCode, &a.ReferredBy, &a.Credits,
		&a.PendingBalance, &a.AvailableBalance, &a.HasRedeemedFirstCoupon, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return a, nil
}

func (q *queries) CreateAccount(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, display_name, password_hash, role, referral_code, referred_by, credits,
			pending_balance, available_balance, has_redeemed_first_coupon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.q.ExecContext(ctx, query, a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Role, a.ReferralCode, a.ReferredBy,
		a.Credits, a.PendingBalance, a.AvailableBalance, a.HasRedeemedFirstCoupon, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", mapError(err))
	}
	return nil
}

func (q *queries) getAccount(ctx context.Context, where string, arg interface{}) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where
	a, err := scanAccount(q.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", mapError(err))
	}
	return a, nil
}

func (q *queries) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.getAccount(ctx, "id = $1", id)
}

func (q *queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.getAccount(ctx, "id = $1 FOR UPDATE", id)
}

func (q *queries) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return q.getAccount(ctx, "lower(email) = lower($1)", email)
}

func (q *queries) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return q.getAccount(ctx, "referral_code = $1", code)
}

func (q *queries) AddCredits(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	query := `
		UPDATE accounts
		SET credits = credits + $1, updated_at = $2
		WHERE id = $3
		RETURNING credits
	`
	var balance int64
	if err := q.q.QueryRowContext(ctx, query, delta, time.Now(), id).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", mapError(err))
	}
	return balance, nil
}

func (q *queries) AddAffiliateBalances(ctx context.Context, id uuid.UUID, pendingDelta, availableDelta float64) (float64, float64, error) {
	query := `
		UPDATE accounts
		SET pending_balance = pending_balance + $1, available_balance = available_balance + $2, updated_at = $3
		WHERE id = $4
		RETURNING pending_balance, available_balance
	`
	var pending, available float64
	if err := q.q.QueryRowContext(ctx, query, pendingDelta, availableDelta, time.Now(), id).Scan(&pending, &available); err != nil {
		return 0, 0, fmt.Errorf("failed to adjust affiliate balances: %w", mapError(err))
	}
	return pending, available, nil
}

func (q *queries) MarkFirstRedemption(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE accounts
		SET has_redeemed_first_coupon = TRUE, updated_at = $1
		WHERE id = $2 AND has_redeemed_first_coupon = FALSE
	`
	result, err := q.q.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark first redemption: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
