package auth

import (
	"kobonz/internal/models"

	"github.com/google/uuid"
)

func (p *Principal) hasRole(roles ...models.Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin сообщает, администратор ли вызывающий.
func (p *Principal) IsAdmin() bool {
	return p.hasRole(models.RoleAdmin)
}

// CanCreateCoupons магазины и администраторы.
func CanCreateCoupons(p *Principal) bool {
	return p.hasRole(models.RoleShopOwner, models.RoleAdmin)
}

// CanManageCoupon владелец магазина купона или администратор.
func CanManageCoupon(p *Principal, shopID uuid.UUID) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || (p.Role == models.RoleShopOwner && p.AccountID == shopID)
}

// CanApproveCoupons только администраторы.
func CanApproveCoupons(p *Principal) bool {
	return p.IsAdmin()
}

// CanCreateAffiliateLinks аффилиаты и администраторы.
func CanCreateAffiliateLinks(p *Principal) bool {
	return p.hasRole(models.RoleAffiliate, models.RoleAdmin)
}

// CanViewAccount сам аккаунт или администратор.
func CanViewAccount(p *Principal, accountID uuid.UUID) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || p.AccountID == accountID
}
