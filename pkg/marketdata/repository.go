// 文件: pkg/marketdata/repository.go
// 行情序列存储接口

package marketdata

import "context"

// Repository 行情序列存储
type Repository interface {
	// Save 整体替换 pair 的序列
	Save(ctx context.Context, s *Series) error

	// Get 读取 pair 最近 limit 天 (limit<=0 表示全部)
	// 不存在返回 ErrSeriesNotFound
	Get(ctx context.Context, pair string, limit int) (*Series, error)
}
