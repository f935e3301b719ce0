// 文件: pkg/kafka/producer.go
// Kafka 生产者: 风险报告事件
//
// - 异步发送，错误在后台 goroutine 里统计并记录日志
// - 优雅关闭: Close 会等待所有错误处理完
// - 任意消息类型 (通过 Message 接口)

package kafka

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"max.com/riskcalc/pkg/logger"
)

// ErrProducerClosed 生产者已关闭
var ErrProducerClosed = errors.New("kafka producer is closed")

// =============================================================================
// Message 接口
// =============================================================================

// Message 通用消息接口
type Message interface {
	Topic() string          // 目标 topic
	Key() string            // 分区 key (相同 key 保证顺序)
	Value() ([]byte, error) // 消息体
}

// =============================================================================
// Producer 配置
// =============================================================================

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers        []string      // Kafka broker 地址列表
	RequiredAcks   int           // 0=不等待, 1=leader确认, -1=全部确认
	Compression    string        // none, gzip, snappy, lz4, zstd
	FlushFrequency time.Duration // 刷新间隔
	FlushMessages  int           // 批量消息数
	MaxRetries     int           // 最大重试次数
}

// DefaultProducerConfig 默认配置
// 报告量不大，acks 用 -1 换可靠性
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:        brokers,
		RequiredAcks:   -1,
		Compression:    "snappy",
		FlushFrequency: 100 * time.Millisecond,
		FlushMessages:  50,
		MaxRetries:     3,
	}
}

// saramaConfig 转成 sarama 配置
func (cfg ProducerConfig) saramaConfig() *sarama.Config {
	sc := sarama.NewConfig()

	switch cfg.RequiredAcks {
	case 0:
		sc.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	default:
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch cfg.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	sc.Producer.Flush.Frequency = cfg.FlushFrequency
	sc.Producer.Flush.Messages = cfg.FlushMessages
	sc.Producer.Retry.Max = cfg.MaxRetries

	// 异步模式: 只关心失败
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	return sc
}

// =============================================================================
// Producer 生产者
// =============================================================================

// Producer Kafka 生产者
type Producer struct {
	producer sarama.AsyncProducer
	log      *slog.Logger

	// 统计
	sentCount  atomic.Int64
	errorCount atomic.Int64

	// 生命周期
	mu     sync.RWMutex // 保护 closed 与 Input() 之间的竞争
	closed bool
	wg     sync.WaitGroup
}

// NewProducer 连接 broker 并创建生产者
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	ap, err := sarama.NewAsyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerFrom(ap), nil
}

// NewProducerFrom 包装已有的 AsyncProducer (测试时传 sarama/mocks)
func NewProducerFrom(ap sarama.AsyncProducer) *Producer {
	p := &Producer{
		producer: ap,
		log:      logger.Component("kafka"),
	}
	p.wg.Add(1)
	go p.handleErrors()
	return p
}

// Send 发送消息 (异步)
func (p *Producer) Send(msg Message) error {
	data, err := msg.Value()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	return p.SendRaw(msg.Topic(), msg.Key(), data)
}

// SendRaw 发送原始消息
func (p *Producer) SendRaw(topic, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	p.sentCount.Add(1)
	return nil
}

func (p *Producer) handleErrors() {
	defer p.wg.Done()

	for err := range p.producer.Errors() {
		p.errorCount.Add(1)
		p.log.Error("send failed", "topic", err.Msg.Topic, "error", err.Err)
	}
}

// ProducerStats 统计信息
type ProducerStats struct {
	SentCount  int64
	ErrorCount int64
}

// Stats 获取统计信息
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		SentCount:  p.sentCount.Load(),
		ErrorCount: p.errorCount.Load(),
	}
}

// Close 关闭生产者，重复调用无副作用
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	p.wg.Wait() // 等待错误处理完成
	return err
}
