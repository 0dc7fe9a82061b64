package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

const keyNamespace = "fp:idempotency"

// ErrMiss ключа нет в хранилище.
var ErrMiss = errors.New("idempotency: key not found")

// Store минимальный набор операций для ключей идемпотентности.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Key(scope, id string) string
}

func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
