// 雪花算法 ID 生成器
// 使用开源库: github.com/bwmarrin/snowflake

package risk

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
	initErr  error
)

// InitSnowflake 初始化雪花算法
// nodeID: 节点ID (0-1023)，多实例部署时每个实例要不同
func InitSnowflake(nodeID int64) error {
	initOnce.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// GenerateReportID 生成报告ID
// 未初始化则使用默认节点0；node 只在 initOnce 之后读取
func GenerateReportID() int64 {
	if err := InitSnowflake(0); err != nil || node == nil {
		return 0
	}
	return node.Generate().Int64()
}
