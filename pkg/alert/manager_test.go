package alert

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLimitManager_Triggered(t *testing.T) {
	m := NewMemoryLimitManager(time.Minute)
	ctx := context.Background()

	rules := []LimitRule{
		{RuleID: "1", Book: "fx-desk", Limit: -5000, Type: AlertOnce},
		{RuleID: "2", Book: "fx-desk", Limit: -20000, Type: AlertAlways},
		{RuleID: "3", Book: "rates-desk", Limit: -1000, Type: AlertOnce}, // 不同账簿
	}
	for _, r := range rules {
		if err := m.Subscribe(ctx, r); err != nil {
			t.Fatalf("subscribe %s: %v", r.RuleID, err)
		}
	}

	// 场景 A: VaR = -8000，只越过 -5000
	triggered, err := m.Triggered(ctx, "fx-desk", -8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(triggered) != 1 || triggered[0].RuleID != "1" {
		t.Fatalf("expected rule 1, got %+v", triggered)
	}

	// 场景 B: once 已删除
	triggered, _ = m.Triggered(ctx, "fx-desk", -8000)
	if len(triggered) != 0 {
		t.Errorf("expected 0 (once rule should be deleted), got %d", len(triggered))
	}

	// 场景 C: 恰好等于阈值也算越限
	triggered, _ = m.Triggered(ctx, "fx-desk", -20000)
	if len(triggered) != 1 || triggered[0].RuleID != "2" {
		t.Fatalf("expected rule 2 at boundary, got %+v", triggered)
	}
}

func TestMemoryLimitManager_Cooldown(t *testing.T) {
	m := NewMemoryLimitManager(time.Minute)
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Subscribe(ctx, LimitRule{RuleID: "a", Book: "b", Limit: -1, Type: AlertAlways})

	if got, _ := m.Triggered(ctx, "b", -2); len(got) != 1 {
		t.Fatal("first trigger failed")
	}
	if got, _ := m.Triggered(ctx, "b", -2); len(got) != 0 {
		t.Fatal("should be cooling down")
	}

	now = now.Add(2 * time.Minute)
	if got, _ := m.Triggered(ctx, "b", -2); len(got) != 1 {
		t.Fatal("should trigger after cooldown")
	}
}

func TestMemoryLimitManager_Unsubscribe(t *testing.T) {
	m := NewMemoryLimitManager(0)
	ctx := context.Background()

	_ = m.Subscribe(ctx, LimitRule{RuleID: "x", Book: "b", Limit: -1})
	_ = m.Unsubscribe(ctx, "x")
	_ = m.Unsubscribe(ctx, "missing")

	if got, _ := m.Triggered(ctx, "b", -100); len(got) != 0 {
		t.Errorf("expected no rules, got %+v", got)
	}
}

func TestLimitRule_Validate(t *testing.T) {
	cases := []struct {
		rule LimitRule
		want error
	}{
		{LimitRule{Book: "b"}, ErrRuleIDRequired},
		{LimitRule{RuleID: "1"}, ErrBookRequired},
		{LimitRule{RuleID: "1", Book: "b", Limit: nan()}, ErrInvalidLimit},
		{LimitRule{RuleID: "1", Book: "b", Limit: -1, Type: "daily"}, ErrInvalidType},
	}
	for _, c := range cases {
		if err := c.rule.Validate(); !errors.Is(err, c.want) {
			t.Errorf("%+v: expected %v, got %v", c.rule, c.want, err)
		}
	}

	r := LimitRule{RuleID: "1", Book: "b", Limit: -1}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Type != AlertOnce {
		t.Errorf("expected default type once, got %s", r.Type)
	}
}

func TestMemoryLimitManager_RejectsUnknownType(t *testing.T) {
	m := NewMemoryLimitManager(time.Minute)
	ctx := context.Background()

	err := m.Subscribe(ctx, LimitRule{RuleID: "r1", Book: "b", Limit: -1, Type: "daily"})
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	got, err := m.Triggered(ctx, "b", -10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rejected rule must not trigger, got %+v", got)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
