package pinguard

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
	Reset(ctx context.Context, key string) error
}

// Static сверяет PIN с кодом из конфига.
type Static struct {
	code string
}

func NewStatic(code string) *Static { return &Static{code: code} }

func (s *Static) CheckPin(_ context.Context, pin string) (bool, error) {
	if s.code == "" {
		return false, errors.New("PIN code is not configured")
	}
	return subtle.ConstantTimeCompare([]byte(pin), []byte(s.code)) == 1, nil
}

// Guard ограничивает число попыток ввода PIN в окне.
// Счётчик сбрасывается после первого верного PIN, так что фактически считаются ошибки.
type Guard struct {
	next  loads.PinValidator
	rl    RateLimiter
	scope string

	limit  int64
	window time.Duration
}

func New(next loads.PinValidator, rl RateLimiter, scope string) *Guard {
	return &Guard{
		next:   next,
		rl:     rl,
		scope:  scope,
		limit:  5,
		window: 15 * time.Minute,
	}
}

func (g *Guard) WithSettings(limit int64, window time.Duration) *Guard {
	if limit > 0 {
		g.limit = limit
	}
	if window > 0 {
		g.window = window
	}
	return g
}

func (g *Guard) CheckPin(ctx context.Context, pin string) (bool, error) {
	if g.rl == nil {
		return g.next.CheckPin(ctx, pin)
	}

	key := g.key()
	allowed, n, err := g.rl.Allow(ctx, key, g.limit, g.window)
	if err != nil {
		return false, err
	}
	if !allowed {
		slog.Warn("PIN attempts exceeded", "scope", g.scope, "count", n)
		return false, errors.Wrapf(loads.ErrTooManyAttempts, "%d attempts within %s", n, g.window)
	}

	ok, err := g.next.CheckPin(ctx, pin)
	if err != nil {
		return false, err
	}
	if ok {
		if err := g.rl.Reset(ctx, key); err != nil {
			slog.Warn("reset PIN attempts", "scope", g.scope, "error", err.Error())
		}
	}
	return ok, nil
}

func (g *Guard) key() string {
	return fmt.Sprintf("pin:attempts:%s", g.scope)
}
