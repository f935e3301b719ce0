package alert

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ LimitManager = (*RedisLimitManager)(nil)

// Key 设计:
//
//	risk:limit:detail:{rule_id}  STRING  规则 JSON
//	risk:limits:{book}           ZSET    member="{rule_id}:{type}"  score=limit
//	risk:limit:cooldown:{rule_id} STRING always 类型的冷却标记
const (
	keyDetail   = "risk:limit:detail:"
	keyIndex    = "risk:limits:"
	keyCooldown = "risk:limit:cooldown:"
)

// RedisLimitManager Redis 版限额管理器
type RedisLimitManager struct {
	client   *redis.Client
	cooldown time.Duration
}

func NewRedisLimitManager(client *redis.Client, cooldown time.Duration) *RedisLimitManager {
	return &RedisLimitManager{client: client, cooldown: cooldown}
}

// luaSubscribe 写详情 + 建索引；覆盖旧规则时先把旧索引删掉
// KEYS[1]: detailKey
// KEYS[2]: indexKey
// ARGV[1]: ruleID
// ARGV[2]: score (limit)
// ARGV[3]: ruleJSON
// ARGV[4]: type
const luaSubscribe = `
	local old = redis.call('GET', KEYS[1])
	if old then
		local r = cjson.decode(old)
		redis.call('ZREM', 'risk:limits:' .. r["book"], ARGV[1] .. ":" .. r["type"])
	end
	redis.call('SET', KEYS[1], ARGV[3])
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1] .. ":" .. ARGV[4])
	return 1
`

func (m *RedisLimitManager) Subscribe(ctx context.Context, rule LimitRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.CreatedAt == 0 {
		rule.CreatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	return m.client.Eval(ctx, luaSubscribe,
		[]string{keyDetail + rule.RuleID, keyIndex + rule.Book},
		rule.RuleID, rule.Limit, data, string(rule.Type)).Err()
}

// luaUnsubscribe
// KEYS[1]: detailKey
// ARGV[1]: ruleID
const luaUnsubscribe = `
	local data = redis.call('GET', KEYS[1])
	if not data then return 0 end
	local r = cjson.decode(data)
	redis.call('ZREM', 'risk:limits:' .. r["book"], ARGV[1] .. ":" .. r["type"])
	redis.call('DEL', KEYS[1])
	return 1
`

func (m *RedisLimitManager) Unsubscribe(ctx context.Context, ruleID string) error {
	return m.client.Eval(ctx, luaUnsubscribe, []string{keyDetail + ruleID}, ruleID).Err()
}

// Triggered 越限的规则: limit >= var1d，即 ZSET 中 score ∈ [var1d, +inf]
func (m *RedisLimitManager) Triggered(ctx context.Context, book string, var1d float64) ([]LimitRule, error) {
	indexKey := keyIndex + book
	members, err := m.client.ZRangeByScoreWithScores(ctx, indexKey, &redis.ZRangeBy{
		Min: strconv.FormatFloat(var1d, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	triggered := make([]LimitRule, 0, len(members))
	var onceMembers []any
	var onceDetails []string
	now := time.Now().Unix()

	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		// rule_id 里可能有冒号，从最后一个冒号切
		i := strings.LastIndexByte(member, ':')
		if i < 0 {
			continue
		}
		ruleID, t := member[:i], AlertType(member[i+1:])

		switch t {
		case AlertAlways:
			if m.cooldown <= 0 {
				break
			}
			// SetNX 成功才触发，冷却期内跳过
			allowed, err := m.client.SetNX(ctx, keyCooldown+ruleID, "1", m.cooldown).Result()
			if err != nil {
				return nil, err
			}
			if !allowed {
				continue
			}
		case AlertOnce:
			onceMembers = append(onceMembers, member)
			onceDetails = append(onceDetails, keyDetail+ruleID)
		}

		triggered = append(triggered, LimitRule{
			RuleID:          ruleID,
			Book:            book,
			Limit:           z.Score,
			Type:            t,
			LastTriggeredAt: now,
		})
	}

	// once 类型批量删除
	if len(onceMembers) > 0 {
		pipe := m.client.TxPipeline()
		pipe.ZRem(ctx, indexKey, onceMembers...)
		pipe.Del(ctx, onceDetails...)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}
	return triggered, nil
}
