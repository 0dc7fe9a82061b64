package idempotency

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

const processedScope = "evt:processed"

// Manager отмечает обработанные внешние события (вебхуки) по их ID.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency: store is required")
	}
	if ttl < 0 {
		return nil, errors.New("idempotency: ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed возвращает true, если событие уже было обработано этим потребителем.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	if consumer == "" || eventID == "" {
		return false, errors.New("idempotency: consumer and event id are required")
	}
	set, err := m.store.SetNX(ctx, m.key(consumer, eventID), "1", m.ttl)
	if err != nil {
		return false, fmt.Errorf("idempotency: set processed key: %w", err)
	}
	return !set, nil
}

// Forget снимает отметку, чтобы провайдер мог повторить доставку после ошибки.
func (m *Manager) Forget(ctx context.Context, consumer, eventID string) error {
	return m.store.Del(ctx, m.key(consumer, eventID))
}

func (m *Manager) key(consumer, eventID string) string {
	return m.store.Key(processedScope+":"+consumer, eventID)
}

// Fingerprint blake2b-256 тела запроса в hex.
func Fingerprint(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}
