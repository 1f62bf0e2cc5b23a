// Package memory хранилище в памяти процесса для локального запуска и тестов.
// Транзакции сериализуются: WithinTx работает над копией состояния и
// подменяет его только при успешном завершении fn.
package memory

import (
	"context"
	"sync"

	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

type state struct {
	coupons     map[uuid.UUID]models.Coupon
	accounts    map[uuid.UUID]models.Account
	links       map[uuid.UUID]models.AffiliateLink
	earnings    map[uuid.UUID]models.Earning
	referrals   map[uuid.UUID]models.Referral
	redemptions map[uuid.UUID]models.Redemption
	ledger      []models.LedgerEntry
}

func newState() *state {
	return &state{
		coupons:     make(map[uuid.UUID]models.Coupon),
		accounts:    make(map[uuid.UUID]models.Account),
		links:       make(map[uuid.UUID]models.AffiliateLink),
		earnings:    make(map[uuid.UUID]models.Earning),
		referrals:   make(map[uuid.UUID]models.Referral),
		redemptions: make(map[uuid.UUID]models.Redemption),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.earnings {
		c.earnings[k] = v
	}
	for k, v := range s.referrals {
		c.referrals[k] = v
	}
	for k, v := range s.redemptions {
		c.redemptions[k] = v
	}
	c.ledger = append(make([]models.LedgerEntry, 0, len(s.ledger)), s.ledger...)
	return c
}

// Store реализация store.Store в памяти.
type Store struct {
	mu sync.Mutex
	st *state
	*queries
}

var _ store.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	s := &Store{st: newState()}
	s.queries = &queries{s: s}
	return s
}

// WithinTx выполняет fn над копией состояния под эксклюзивной блокировкой.
// Внутри fn нельзя обращаться к методам самого Store, только к q.
func (s *Store) WithinTx(ctx context.Context, fn func(q store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	if err := fn(&queries{s: s, tx: tx}); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// queries вне транзакции берёт блокировку на каждую операцию,
// внутри работает с копией без блокировки.
type queries struct {
	s  *Store
	tx *state
}

func (q *queries) state() (*state, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.s.mu.Lock()
	return q.s.st, q.s.mu.Unlock
}
