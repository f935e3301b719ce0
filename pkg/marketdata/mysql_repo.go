// 文件: pkg/marketdata/mysql_repo.go
// 行情序列 MySQL 存储实现
//
// 一行一个观测值，seq=0 为最近一天

package marketdata

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 确保实现了接口
var _ Repository = (*MySQLRepository)(nil)

// RateObservation 单日观测值
type RateObservation struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	Pair      string  `gorm:"column:pair;type:varchar(32);uniqueIndex:uk_pair_seq;not null"`
	Seq       int     `gorm:"column:seq;uniqueIndex:uk_pair_seq;not null"` // 0=最近一天
	RateCcy1  float64 `gorm:"column:market_rate_ccy1;not null"`
	RateCcy2  float64 `gorm:"column:market_rate_ccy2;not null"`
	CreatedAt int64   `gorm:"column:created_at"` // 毫秒时间戳
}

// TableName GORM 表名
func (RateObservation) TableName() string {
	return "market_rate_observations"
}

// MySQLRepository MySQL 实现
type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// AutoMigrate 建表
func (r *MySQLRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&RateObservation{})
}

// Save 先删后插，放在一个事务里
func (r *MySQLRepository) Save(ctx context.Context, s *Series) error {
	if s.Pair == "" {
		return fmt.Errorf("save series: empty pair")
	}
	if len(s.Ccy1) != len(s.Ccy2) {
		return fmt.Errorf("save series %s: ccy1 has %d rows, ccy2 has %d", s.Pair, len(s.Ccy1), len(s.Ccy2))
	}

	now := time.Now().UnixMilli()
	rows := make([]RateObservation, len(s.Ccy1))
	for i := range rows {
		rows[i] = RateObservation{
			Pair:      s.Pair,
			Seq:       i,
			RateCcy1:  s.Ccy1[i],
			RateCcy2:  s.Ccy2[i],
			CreatedAt: now,
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pair = ?", s.Pair).Delete(&RateObservation{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

// Get 按 seq 升序读取
func (r *MySQLRepository) Get(ctx context.Context, pair string, limit int) (*Series, error) {
	var rows []RateObservation
	q := r.db.WithContext(ctx).
		Where("pair = ?", pair).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, pair)
	}

	s := &Series{
		Pair: pair,
		Ccy1: make([]float64, len(rows)),
		Ccy2: make([]float64, len(rows)),
	}
	for i, o := range rows {
		s.Ccy1[i] = o.RateCcy1
		s.Ccy2[i] = o.RateCcy2
	}
	return s, nil
}
