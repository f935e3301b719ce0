// 文件: pkg/kafka/consumer.go
// Kafka 消费者: 批量风险计算请求
//
// - 消费者组
// - 处理失败只记日志，不阻塞后续消息 (失败的请求由上游按报告缺失重发)
// - 优雅关闭

package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"max.com/riskcalc/pkg/logger"
)

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers       []string // Kafka broker 地址列表
	GroupID       string   // 消费者组 ID
	Topics        []string // 订阅的 topics
	OffsetInitial int64    // 初始 offset: -1=newest, -2=oldest
	AutoCommit    bool     // 是否自动提交 offset
}

// DefaultConsumerConfig 默认配置
func DefaultConsumerConfig(brokers []string, groupID string, topics []string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		GroupID:       groupID,
		Topics:        topics,
		OffsetInitial: sarama.OffsetNewest,
		AutoCommit:    true,
	}
}

// Record 消费到的一条消息
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, rec Record) error

// Consumer Kafka 消费者
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer 创建消费者
func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = cfg.OffsetInitial
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return NewConsumerFrom(group, cfg.Topics, handler), nil
}

// NewConsumerFrom 包装已有的消费者组
func NewConsumerFrom(group sarama.ConsumerGroup, topics []string, handler MessageHandler) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		group:   group,
		topics:  topics,
		handler: handler,
		log:     logger.Component("kafka"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动消费
func (c *Consumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		h := &groupHandler{handler: c.handler, log: c.log}
		for {
			// rebalance 后 Consume 会返回，需要重新加入
			if err := c.group.Consume(c.ctx, c.topics, h); err != nil {
				c.log.Error("consume failed", "topics", c.topics, "error", err)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
}

// Stop 停止消费
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

// =============================================================================
// sarama.ConsumerGroupHandler 实现
// =============================================================================

type groupHandler struct {
	handler MessageHandler
	log     *slog.Logger
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		rec := Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
		}
		if err := h.handler(session.Context(), rec); err != nil {
			h.log.Warn("handle failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
