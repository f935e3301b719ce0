package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testDSN       = "root:123456@tcp(127.0.0.1:3307)/riskcalc?charset=utf8mb4&parseTime=True&loc=Local"
	testRedisAddr = "localhost:6379"
)

func sampleSeries(pair string) *Series {
	return &Series{
		Pair: pair,
		Ccy1: []float64{1.1050, 1.1012, 1.0987, 1.1031, 1.0944},
		Ccy2: []float64{0.8571, 0.8602, 0.8590, 0.8555, 0.8611},
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Get(ctx, "EURUSD/GBPUSD", 0)
	assert.ErrorIs(t, err, ErrSeriesNotFound)

	require.NoError(t, repo.Save(ctx, sampleSeries("EURUSD/GBPUSD")))

	s, err := repo.Get(ctx, "EURUSD/GBPUSD", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.1050, 1.1012, 1.0987}, s.Ccy1)

	assert.Error(t, repo.Save(ctx, &Series{}))
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(mysql.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("skipping test; mysql not available: %v", err)
	}
	return db
}

func setupTestRedis(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping test; redis not available: %v", err)
	}
	return rdb
}

func TestMySQLRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMySQLRepository(db)
	require.NoError(t, repo.AutoMigrate())

	ctx := context.Background()
	pair := "TEST/MYSQL"
	t.Cleanup(func() { db.Exec("DELETE FROM market_rate_observations WHERE pair = ?", pair) })

	require.NoError(t, repo.Save(ctx, sampleSeries(pair)))

	s, err := repo.Get(ctx, pair, 0)
	require.NoError(t, err)
	assert.Equal(t, sampleSeries(pair).Ccy1, s.Ccy1)
	assert.Equal(t, sampleSeries(pair).Ccy2, s.Ccy2)

	// 整体替换
	require.NoError(t, repo.Save(ctx, &Series{Pair: pair, Ccy1: []float64{1}, Ccy2: []float64{2}}))
	s, err = repo.Get(ctx, pair, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	_, err = repo.Get(ctx, "TEST/NONE", 0)
	assert.ErrorIs(t, err, ErrSeriesNotFound)

	// 两列长度不一致
	assert.Error(t, repo.Save(ctx, &Series{Pair: pair, Ccy1: []float64{1}, Ccy2: nil}))
}

func TestCachedRepository(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()

	pair := "TEST/CACHE"
	key := cacheKeySeries + pair
	rdb.Del(ctx, key)
	t.Cleanup(func() { rdb.Del(ctx, key) })

	base := NewMemoryRepository()
	repo := NewCachedRepository(base, rdb)
	require.NoError(t, repo.Save(ctx, sampleSeries(pair)))

	// 第一次读 miss，异步回填
	s, err := repo.Get(ctx, pair, 2)
	require.NoError(t, err)
	assert.Len(t, s.Ccy1, 2)

	require.Eventually(t, func() bool {
		return rdb.Exists(ctx, key).Val() == 1
	}, time.Second, 10*time.Millisecond)

	// 缓存命中: 即使底层被替换，读到的仍是缓存
	require.NoError(t, base.Save(ctx, &Series{Pair: pair, Ccy1: []float64{9}, Ccy2: []float64{9}}))
	s, err = repo.Get(ctx, pair, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	// 通过装饰器写会删缓存
	require.NoError(t, repo.Save(ctx, &Series{Pair: pair, Ccy1: []float64{7}, Ccy2: []float64{7}}))
	assert.Equal(t, int64(0), rdb.Exists(ctx, key).Val())
	s, err = repo.Get(ctx, pair, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, s.Ccy1)

	_, err = repo.Get(ctx, "TEST/NONE", 0)
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}
