package models

import (
	"time"

	"github.com/google/uuid"
)

// Role роль аккаунта, хранится в записи аккаунта и в claim токена.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAffiliate Role = "affiliate"
	RoleShopOwner Role = "shop_owner"
	RoleAdmin     Role = "admin"
)

// Account представляет пользователя платформы.
type Account struct {
	ID                     uuid.UUID  `json:"id" db:"id"`
	Email                  string     `json:"email" db:"email"`
	DisplayName            string     `json:"display_name" db:"display_name"`
	PasswordHash           string     `json:"-" db:"password_hash"`
	Role                   Role       `json:"role" db:"role"`
	ReferralCode           string     `json:"referral_code" db:"referral_code"`
	ReferredBy             *uuid.UUID `json:"referred_by,omitempty" db:"referred_by"`
	Credits                int64      `json:"credits" db:"credits"`
	PendingBalance         float64    `json:"pending_balance" db:"pending_balance"`
	AvailableBalance       float64    `json:"available_balance" db:"available_balance"`
	HasRedeemedFirstCoupon bool       `json:"has_redeemed_first_coupon" db:"has_redeemed_first_coupon"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

// RegisterRequest описывает регистрацию аккаунта.
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	DisplayName  string `json:"display_name" validate:"required,max=100"`
	Role         Role   `json:"role,omitempty" validate:"omitempty,oneof=customer affiliate shop_owner"`
	ReferralCode string `json:"referral_code,omitempty" validate:"omitempty,alphanum,max=32"`
}

// LoginRequest описывает вход по email и паролю.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse возвращается после регистрации и входа.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   *Account  `json:"account"`
}
