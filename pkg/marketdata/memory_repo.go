package marketdata

import (
	"context"
	"fmt"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository 内存实现，用于测试和未配置数据库的单机模式
type MemoryRepository struct {
	mu     sync.RWMutex
	series map[string]*Series
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{series: make(map[string]*Series)}
}

func (r *MemoryRepository) Save(_ context.Context, s *Series) error {
	if s.Pair == "" {
		return fmt.Errorf("save series: empty pair")
	}
	r.mu.Lock()
	r.series[s.Pair] = s.Head(0)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, pair string, limit int) (*Series, error) {
	r.mu.RLock()
	s, ok := r.series[pair]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, pair)
	}
	return s.Head(limit), nil
}
