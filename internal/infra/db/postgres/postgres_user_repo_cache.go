package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
	"finedu-reconciliation/internal/infra/metrics"
	red "finedu-reconciliation/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches identity lookups: order-list enrichment hits
// the same handful of users over and over.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient) repository.UserRepository {
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	key := fmt.Sprintf("user:id:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("user", "hit")
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			return &user, nil
		}
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(user); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return user, nil
}

func (d *userRepoCacheDecorator) FindByIDs(ctx context.Context, tx repository.Tx, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	var missing []string
	for _, id := range ids {
		val, err := d.cache.Get(ctx, fmt.Sprintf("user:id:%s", id))
		if err != nil {
			missing = append(missing, id)
			continue
		}
		var user model.User
		if json.Unmarshal([]byte(val), &user) != nil {
			missing = append(missing, id)
			continue
		}
		metrics.IncCacheRequest("user", "hit")
		out[id] = &user
	}
	if len(missing) == 0 {
		return out, nil
	}

	metrics.IncCacheRequest("user", "miss")
	fetched, err := d.inner.FindByIDs(ctx, tx, missing)
	if err != nil {
		return nil, err
	}
	for id, u := range fetched {
		out[id] = u
		if bytes, err := json.Marshal(u); err == nil {
			_ = d.cache.Set(ctx, fmt.Sprintf("user:id:%s", id), bytes, d.ttl)
		}
	}
	return out, nil
}

// List is paginated admin browsing; not worth caching.
func (d *userRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	return d.inner.List(ctx, tx, offset, limit)
}
