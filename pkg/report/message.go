package report

import (
	"encoding/json"
	"strconv"

	"max.com/riskcalc/pkg/risk"
)

// Message 报告事件，实现 kafka.Message
// key 用 book，同一账簿的报告落到同一分区，保证顺序
type Message struct {
	topic  string
	report *risk.Report
}

func NewMessage(topic string, rep *risk.Report) *Message {
	return &Message{topic: topic, report: rep}
}

func (m *Message) Topic() string { return m.topic }

func (m *Message) Key() string {
	if m.report.VaR != nil && m.report.VaR.Book != "" {
		return m.report.VaR.Book
	}
	return strconv.FormatInt(m.report.ID, 10)
}

func (m *Message) Value() ([]byte, error) {
	return json.Marshal(m.report)
}
