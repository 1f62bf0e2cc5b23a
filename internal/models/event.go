package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType тип доменного события в Kafka.
type EventType string

const (
	EventTypeCouponRedeemed    EventType = "coupon.redeemed"
	EventTypeCouponClicked     EventType = "coupon.clicked"
	EventTypeReferralRewarded  EventType = "referral.rewarded"
	EventTypeEarningReleased   EventType = "earning.released"
	EventTypeAccountRegistered EventType = "account.registered"
)

// Event конверт события.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// StringField достаёт строковое поле из Data.
func (e *Event) StringField(key string) (string, bool) {
	if e == nil || e.Data == nil {
		return "", false
	}
	v, ok := e.Data[key].(string)
	return v, ok
}
