package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// cachedBalances collapses concurrent identical reads and, when a cache is
// configured, serves them from the entity's current cache version.
func (s *Service) cachedBalances(ctx context.Context, scope Scope, parts []string, load func(context.Context) (Balances, error)) (Balances, error) {
	if scope.EntityID == 0 {
		return nil, ErrEntityRequired
	}
	key := fmt.Sprintf("%d:%s", scope.EntityID, strings.Join(parts, ":"))
	ch := s.reads.DoChan(key, func() (any, error) {
		if s.cache == nil {
			return load(ctx)
		}
		cacheKey, err := s.cache.BuildKey(ctx, scope.EntityID, parts...)
		if err != nil {
			s.log().Warn("balance cache key", slog.String("key", key), slog.Any("error", err))
			return load(ctx)
		}
		var out Balances
		err = s.cache.FetchJSON(ctx, cacheKey, &out, func(ctx context.Context) (any, error) {
			return load(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.(Balances)
		out := make(Balances, len(shared))
		for k, v := range shared {
			out[k] = v
		}
		return out, nil
	}
}
