package alert

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// setupRedis 连接本地 Redis 的 15 号库并清空
func setupRedis(t testing.TB, cooldown time.Duration) *RedisLimitManager {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping test; redis not available: %v", err)
	}

	client.FlushDB(context.Background())
	return NewRedisLimitManager(client, cooldown)
}

func TestRedisLimitManager_Subscribe_Unsubscribe(t *testing.T) {
	m := setupRedis(t, time.Minute)
	ctx := context.Background()

	rule := LimitRule{RuleID: "1001", Book: "fx-desk", Limit: -5000, Type: AlertOnce}
	require.NoError(t, m.Subscribe(ctx, rule))

	exists, err := m.client.Exists(ctx, keyDetail+"1001").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), exists)

	score, err := m.client.ZScore(ctx, keyIndex+"fx-desk", "1001:once").Result()
	require.NoError(t, err)
	require.Equal(t, -5000.0, score)

	// 覆盖: 换账簿后旧索引应被清掉
	rule.Book = "rates-desk"
	require.NoError(t, m.Subscribe(ctx, rule))
	count, err := m.client.ZCard(ctx, keyIndex+"fx-desk").Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	require.NoError(t, m.Unsubscribe(ctx, "1001"))
	exists, _ = m.client.Exists(ctx, keyDetail+"1001").Result()
	require.Equal(t, int64(0), exists)
	count, _ = m.client.ZCard(ctx, keyIndex+"rates-desk").Result()
	require.Equal(t, int64(0), count)

	// 不存在的规则
	require.NoError(t, m.Unsubscribe(ctx, "missing"))
}

func TestRedisLimitManager_Triggered(t *testing.T) {
	m := setupRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Subscribe(ctx, LimitRule{RuleID: "soft", Book: "fx", Limit: -5000, Type: AlertOnce}))
	require.NoError(t, m.Subscribe(ctx, LimitRule{RuleID: "hard", Book: "fx", Limit: -20000, Type: AlertOnce}))

	// VaR -8000: 只越过 soft
	triggered, err := m.Triggered(ctx, "fx", -8000)
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	require.Equal(t, "soft", triggered[0].RuleID)
	require.Equal(t, -5000.0, triggered[0].Limit)

	// once 触发后索引和详情都删除
	exists, _ := m.client.Exists(ctx, keyDetail+"soft").Result()
	require.Equal(t, int64(0), exists)

	triggered, err = m.Triggered(ctx, "fx", -8000)
	require.NoError(t, err)
	require.Len(t, triggered, 0)

	// 边界: 等于阈值
	triggered, err = m.Triggered(ctx, "fx", -20000)
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	require.Equal(t, "hard", triggered[0].RuleID)
}

func TestRedisLimitManager_AlwaysCooldown(t *testing.T) {
	m := setupRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Subscribe(ctx, LimitRule{RuleID: "desk:always", Book: "fx", Limit: -100, Type: AlertAlways}))

	triggered, err := m.Triggered(ctx, "fx", -150)
	require.NoError(t, err)
	require.Len(t, triggered, 1, "should trigger first time")
	require.Equal(t, "desk:always", triggered[0].RuleID)

	triggered, err = m.Triggered(ctx, "fx", -150)
	require.NoError(t, err)
	require.Len(t, triggered, 0, "should be cooling down")

	// always 规则不会被删除
	exists, _ := m.client.Exists(ctx, keyDetail+"desk:always").Result()
	require.Equal(t, int64(1), exists)
}
