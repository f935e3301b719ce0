// 文件: pkg/report/repository.go
// 风险报告存储

package report

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound 报告不存在
var ErrNotFound = errors.New("report not found")

// Repository 报告存储接口
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	GetByReportID(ctx context.Context, reportID int64) (*Record, error)
	// ListByBook 最近的 limit 条，按时间倒序
	ListByBook(ctx context.Context, book string, limit int) ([]*Record, error)
}

// 确保实现了接口
var _ Repository = (*MySQLRepository)(nil)

// MySQLRepository MySQL 实现
type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// AutoMigrate 建表
func (r *MySQLRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

func (r *MySQLRepository) Save(ctx context.Context, rec *Record) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save report %d: %w", rec.ReportID, err)
	}
	return nil
}

func (r *MySQLRepository) GetByReportID(ctx context.Context, reportID int64) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *MySQLRepository) ListByBook(ctx context.Context, book string, limit int) ([]*Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var recs []*Record
	err := r.db.WithContext(ctx).
		Where("book = ?", book).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
