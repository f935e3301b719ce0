// 文件: pkg/service/handlers.go
// 消息入口: NATS request/reply 与 Kafka 批量请求

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"max.com/riskcalc/pkg/kafka"
	"max.com/riskcalc/pkg/report"
	"max.com/riskcalc/pkg/risk"
)

// Reply NATS 应答
type Reply struct {
	Report *risk.Report `json:"report,omitempty"`
	Error  *ErrorBody   `json:"error,omitempty"`
}

// DecodeRequest 解析请求体
// 数字保留为 json.Number，交给参数校验统一转换
func DecodeRequest(data []byte) (risk.Request, error) {
	var req risk.Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return req, nil
}

// HandleNATS 处理 risk.evaluate 请求，始终返回应答
func (s *RiskService) HandleNATS(ctx context.Context, subject string, data []byte) ([]byte, error) {
	var reply Reply

	req, err := DecodeRequest(data)
	if err == nil {
		reply.Report, err = s.Evaluate(ctx, req)
	}
	if err == nil && !reply.Report.Finite() {
		err = fmt.Errorf("report %d: %w", reply.Report.ID, report.ErrNonFinite)
		reply.Report = nil
	}
	if err != nil {
		reply.Error = NewErrorBody(err)
	}

	out, mErr := json.Marshal(reply)
	if mErr != nil {
		return nil, mErr
	}
	return out, err
}

// HandleKafka 处理 risk.requests 上的一条请求，结果经报告 topic 投递
func (s *RiskService) HandleKafka(ctx context.Context, rec kafka.Record) error {
	req, err := DecodeRequest(rec.Value)
	if err != nil {
		return fmt.Errorf("offset %d: %w", rec.Offset, err)
	}
	if _, err := s.Evaluate(ctx, req); err != nil {
		return fmt.Errorf("offset %d: %w", rec.Offset, err)
	}
	return nil
}
