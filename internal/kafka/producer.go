package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создаёт синхронного продюсера
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Idempotent = true
	saramaCfg.Net.MaxOpenRequests = 1
	saramaCfg.Metadata.Retry.Max = 1
	saramaCfg.Metadata.Retry.Backoff = 100 * time.Millisecond

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// publishEvent сериализует событие; ключ сообщения определяет партицию
func (p *Producer) publishEvent(topic string, event models.Event, key ...string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if len(key) > 0 && key[0] != "" {
		msg.Key = sarama.StringEncoder(key[0])
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

func newEvent(eventType models.EventType, data map[string]interface{}) models.Event {
	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func optionalID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

// PublishCouponRedeemed публикует факт погашения купона
func (p *Producer) PublishCouponRedeemed(r *models.Redemption, usesLeft int) error {
	event := newEvent(models.EventTypeCouponRedeemed, map[string]interface{}{
		"redemption_id":     r.ID.String(),
		"coupon_id":         r.CouponID.String(),
		"account_id":        optionalID(r.AccountID),
		"affiliate_id":      optionalID(r.AffiliateID),
		"commission_amount": r.CommissionAmount,
		"reward_points":     r.RewardPoints,
		"uses_left":         usesLeft,
	})
	return p.publishEvent(p.topics.Redemptions, event, r.CouponID.String())
}

// PublishCouponClicked публикует клик по купону или партнёрской ссылке
func (p *Producer) PublishCouponClicked(couponID uuid.UUID, linkID *uuid.UUID) error {
	event := newEvent(models.EventTypeCouponClicked, map[string]interface{}{
		"coupon_id": couponID.String(),
		"link_id":   optionalID(linkID),
	})
	return p.publishEvent(p.topics.Clicks, event, couponID.String())
}

// PublishReferralRewarded публикует выплату реферального бонуса
func (p *Producer) PublishReferralRewarded(ref *models.Referral) error {
	event := newEvent(models.EventTypeReferralRewarded, map[string]interface{}{
		"referral_id": ref.ID.String(),
		"referrer_id": ref.ReferrerID.String(),
		"referred_id": ref.ReferredID.String(),
		"bonus":       ref.BonusAmount,
	})
	return p.publishEvent(p.topics.Accounts, event, ref.ReferrerID.String())
}

// PublishEarningReleased публикует перевод комиссии в available
func (p *Producer) PublishEarningReleased(e *models.Earning) error {
	event := newEvent(models.EventTypeEarningReleased, map[string]interface{}{
		"earning_id":   e.ID.String(),
		"affiliate_id": e.AffiliateID.String(),
		"amount":       e.Amount,
	})
	return p.publishEvent(p.topics.Earnings, event, e.AffiliateID.String())
}

// PublishAccountRegistered публикует регистрацию аккаунта
func (p *Producer) PublishAccountRegistered(a *models.Account) error {
	event := newEvent(models.EventTypeAccountRegistered, map[string]interface{}{
		"account_id":  a.ID.String(),
		"role":        string(a.Role),
		"referred_by": optionalID(a.ReferredBy),
	})
	return p.publishEvent(p.topics.Accounts, event, a.ID.String())
}
