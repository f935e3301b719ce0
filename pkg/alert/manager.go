package alert

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ LimitManager = (*MemoryLimitManager)(nil)

// MemoryLimitManager 内存版限额管理器
type MemoryLimitManager struct {
	mu       sync.Mutex
	rules    map[string]LimitRule // key: RuleID
	cooldown time.Duration
	now      func() time.Time
}

func NewMemoryLimitManager(cooldown time.Duration) *MemoryLimitManager {
	return &MemoryLimitManager{
		rules:    make(map[string]LimitRule),
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (m *MemoryLimitManager) Subscribe(_ context.Context, rule LimitRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.CreatedAt == 0 {
		rule.CreatedAt = m.now().Unix()
	}

	m.mu.Lock()
	m.rules[rule.RuleID] = rule
	m.mu.Unlock()
	return nil
}

func (m *MemoryLimitManager) Unsubscribe(_ context.Context, ruleID string) error {
	m.mu.Lock()
	delete(m.rules, ruleID)
	m.mu.Unlock()
	return nil
}

// Triggered 要更新 LastTriggeredAt，所以用写锁
func (m *MemoryLimitManager) Triggered(_ context.Context, book string, var1d float64) ([]LimitRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var triggered []LimitRule
	for id, rule := range m.rules {
		if rule.Book != book || !rule.Breached(var1d) {
			continue
		}

		switch rule.Type {
		case AlertOnce:
			delete(m.rules, id)
		case AlertAlways:
			last := time.Unix(rule.LastTriggeredAt, 0)
			if rule.LastTriggeredAt != 0 && now.Sub(last) < m.cooldown {
				continue // 冷却中
			}
			rule.LastTriggeredAt = now.Unix()
			m.rules[id] = rule
		}
		triggered = append(triggered, rule)
	}

	// 与 Redis 版一致: 按阈值升序
	sort.Slice(triggered, func(i, j int) bool {
		if triggered[i].Limit != triggered[j].Limit {
			return triggered[i].Limit < triggered[j].Limit
		}
		return triggered[i].RuleID < triggered[j].RuleID
	})
	return triggered, nil
}
