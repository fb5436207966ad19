package loads

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/cache"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

// CachedSource кэширует карточки грузов поверх любого DataSource.
// Списки не кэшируются: FetchLoads всегда полная пересинхронизация.
type CachedSource struct {
	src   DataSource
	cache cache.BytesCache
	ttl   time.Duration
}

func NewCachedSource(src DataSource, c cache.BytesCache, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, cache: c, ttl: ttl}
}

func (s *CachedSource) FetchAll(ctx context.Context) ([]*models.Load, error) {
	return s.src.FetchAll(ctx)
}

func (s *CachedSource) FetchDetail(ctx context.Context, loadID string) (*models.Load, error) {
	if !s.enabled() {
		return s.src.FetchDetail(ctx, loadID)
	}

	// Кэш best-effort: любая ошибка или битый JSON считается промахом.
	if b, ok, err := s.cache.Get(ctx, detailKey(loadID)); err == nil && ok {
		var l models.Load
		if json.Unmarshal(b, &l) == nil && l.ID != "" {
			return &l, nil
		}
	}

	l, err := s.src.FetchDetail(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if l != nil {
		if b, err := json.Marshal(l); err == nil {
			if err := s.cache.Set(ctx, detailKey(loadID), b, s.ttl); err != nil {
				slog.Warn("cache load detail", "load_id", loadID, "error", err.Error())
			}
		}
	}
	return l, nil
}

func (s *CachedSource) InvalidateDetail(ctx context.Context, loadID string) error {
	if !s.enabled() {
		return nil
	}
	return s.cache.Del(ctx, detailKey(loadID))
}

func (s *CachedSource) enabled() bool {
	return s.cache != nil && s.ttl > 0
}

func detailKey(loadID string) string {
	return fmt.Sprintf("load:%s:detail", loadID)
}
