package tradeapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/betbot/botdash/internal/domain"
	"github.com/shopspring/decimal"
)

// 服务端写入的时间是无时区的本地时间（例如 2024-05-01T12:34:56.789123），
// 也兼容 RFC3339 与空格分隔的写法。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp 解析成交时间；全部格式失败时 ok=false
func ParseTimestamp(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// wireTrade GET /trades 的单条记录
type wireTrade struct {
	Timestamp string          `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Quantity  json.RawMessage `json:"quantity"`
	Price     *float64        `json:"price"`
	USDT      *float64        `json:"usdt"`
	BTC       *float64        `json:"btc"`
}

func (w wireTrade) toDomain() domain.TradeRecord {
	rec := domain.TradeRecord{
		RawTimestamp: w.Timestamp,
		Symbol:       w.Symbol,
		Side:         domain.Side(w.Side),
		Quantity:     parseQuantity(w.Quantity),
		Price:        w.Price,
		USDT:         w.USDT,
		BTC:          w.BTC,
	}
	if t, ok := ParseTimestamp(w.Timestamp); ok {
		rec.Time = t
	}
	return rec
}

// parseQuantity 数量既可能是字符串也可能是数字；无法解析时记为 0
func parseQuantity(raw json.RawMessage) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero
	}
	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero
		}
		text = strings.TrimSpace(s)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// strategyReply GET/POST /strategy 的响应；POST 额外带 status 字段
type strategyReply struct {
	Status string `json:"status,omitempty"`
	Name   string `json:"name"`
}

// strategyRequest POST /strategy 请求体
type strategyRequest struct {
	Strategy  string `json:"strategy"`
	Decorator string `json:"decorator"`
}
