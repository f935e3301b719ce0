// 文件: pkg/nats/subscriber.go
// NATS 订阅者，支持 request/reply

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"max.com/riskcalc/pkg/logger"
)

// RequestHandler 处理一条消息，返回的字节在有 Reply 主题时作为应答发回
// 返回 error 只记录日志，应答内容由 handler 自己决定 (比如把错误编码进去)
type RequestHandler func(ctx context.Context, subject string, data []byte) ([]byte, error)

// Subscriber NATS 订阅者
type Subscriber struct {
	conn    *nats.Conn
	handler RequestHandler
	timeout time.Duration // 单条消息的处理超时
	log     *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber 在已有连接上创建订阅者
func NewSubscriber(conn *nats.Conn, handler RequestHandler, timeout time.Duration) *Subscriber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Subscriber{
		conn:    conn,
		handler: handler,
		timeout: timeout,
		log:     logger.Component("nats"),
	}
}

// Subscribe 订阅主题 (每个实例都会收到)
func (s *Subscriber) Subscribe(subjects ...string) error {
	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, s.onMessage)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.track(sub)
	}
	return nil
}

// SubscribeQueue 队列订阅 (同一队列组内负载均衡)
func (s *Subscriber) SubscribeQueue(subject, queue string) error {
	sub, err := s.conn.QueueSubscribe(subject, queue, s.onMessage)
	if err != nil {
		return fmt.Errorf("queue subscribe %s: %w", subject, err)
	}
	s.track(sub)
	return nil
}

func (s *Subscriber) track(sub *nats.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

func (s *Subscriber) onMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	reply, err := s.handler(ctx, msg.Subject, msg.Data)
	if err != nil {
		s.log.Warn("handle failed", "subject", msg.Subject, "error", err)
	}
	if msg.Reply == "" || reply == nil {
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.log.Error("respond failed", "subject", msg.Subject, "error", err)
	}
}

// Close 取消所有订阅，连接由调用方关闭
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	return nil
}

// =============================================================================
// 便捷方法
// =============================================================================

// UnmarshalJSON 反序列化 JSON
func UnmarshalJSON[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
