package cache

import (
	"context"
	"time"
)

// BytesCache: минимальный контракт кэша, которым пользуются сервисы.
// ok=false означает промах, err означает недоступность самого кэша.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
