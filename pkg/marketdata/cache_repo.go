// 文件: pkg/marketdata/cache_repo.go
// 行情序列 Redis 缓存层
//
// 装饰器:
// - 读: 先查 Redis，miss 则查底层并异步回填
// - 写: 先写底层，成功后删除缓存
//
// 缓存的是完整序列，limit 在读出后截取

package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// 确保实现了接口
var _ Repository = (*CachedRepository)(nil)

const (
	// 缓存 Key: marketdata:series:{pair}
	cacheKeySeries = "marketdata:series:"

	// 日频数据，缓存一小时足够
	cacheTTL = time.Hour
)

// CachedRepository Redis 缓存装饰器
type CachedRepository struct {
	repo  Repository
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedRepository 创建带缓存的 Repository
//
//	mysqlRepo := NewMySQLRepository(db)
//	repo := NewCachedRepository(mysqlRepo, redisClient)
func NewCachedRepository(repo Repository, rds *redis.Client) *CachedRepository {
	return &CachedRepository{repo: repo, redis: rds, ttl: cacheTTL}
}

// Get 带缓存读取
func (r *CachedRepository) Get(ctx context.Context, pair string, limit int) (*Series, error) {
	key := cacheKeySeries + pair

	// 1. 查缓存
	data, err := r.redis.Get(ctx, key).Bytes()
	if err == nil {
		var s Series
		if json.Unmarshal(data, &s) == nil {
			return s.Head(limit), nil // Cache hit
		}
	}

	// 2. Cache miss, 查底层 (全量，便于缓存)
	s, err := r.repo.Get(ctx, pair, 0)
	if err != nil {
		return nil, err
	}

	// 3. 回填缓存 (异步)
	go r.setCache(context.Background(), key, s)

	return s.Head(limit), nil
}

// Save 写底层后删缓存
func (r *CachedRepository) Save(ctx context.Context, s *Series) error {
	if err := r.repo.Save(ctx, s); err != nil {
		return err
	}
	r.redis.Del(ctx, cacheKeySeries+s.Pair)
	return nil
}

func (r *CachedRepository) setCache(ctx context.Context, key string, s *Series) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	r.redis.Set(ctx, key, data, r.ttl)
}
