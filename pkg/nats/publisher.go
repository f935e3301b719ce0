// 文件: pkg/nats/publisher.go
// NATS 连接与发布
// 用于 VaR 限额预警广播和 request/reply 调用

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"max.com/riskcalc/pkg/logger"
)

// Connect 建立连接，断线自动重连
func Connect(url, name string) (*nats.Conn, error) {
	log := logger.Component("nats")
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// Publisher NATS 发布者
type Publisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

// NewPublisher 在已有连接上创建发布者，连接由调用方关闭
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn, log: logger.Component("nats")}
}

// Publish JSON 编码后发布
func (p *Publisher) Publish(subject string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.conn.Publish(subject, b)
}

// Request 发送请求并把应答 JSON 解码到 out
func (p *Publisher) Request(ctx context.Context, subject string, data []byte, out any) error {
	msg, err := p.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply from %s: %w", subject, err)
	}
	return nil
}
