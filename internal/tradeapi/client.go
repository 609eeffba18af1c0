// Package tradeapi 远端交易服务的 HTTP 客户端（/trades, /strategy）。
package tradeapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/betbot/botdash/internal/domain"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "tradeapi")

const (
	OpListTrades  = "list_trades"
	OpGetStrategy = "get_strategy"
	OpSetStrategy = "set_strategy"
)

// Error 一次失败的调用。StatusCode 为 0 表示传输层失败（连不上/超时/被取消）。
type Error struct {
	Op         string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tradeapi %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tradeapi %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport 是否为传输层失败
func IsTransport(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 0
}

// Client 远端交易服务客户端
type Client struct {
	http *sdkhttp.Client
}

// New 创建客户端，baseURL 形如 http://localhost:8081/api
func New(baseURL string, opts sdkhttp.Options) *Client {
	return &Client{http: sdkhttp.NewClient(baseURL, opts)}
}

// BaseURL 服务地址
func (c *Client) BaseURL() string {
	return c.http.HostURL()
}

// ListTrades GET /trades，返回按执行顺序排列（旧 -> 新）的完整记录
func (c *Client) ListTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	var wire []wireTrade
	if err := c.do(ctx, OpListTrades, http.MethodGet, "/trades", nil, &wire); err != nil {
		return nil, err
	}

	out := make([]domain.TradeRecord, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// GetStrategy GET /strategy
func (c *Client) GetStrategy(ctx context.Context) (domain.StrategyDescriptor, error) {
	var reply strategyReply
	if err := c.do(ctx, OpGetStrategy, http.MethodGet, "/strategy", nil, &reply); err != nil {
		return domain.StrategyDescriptor{}, err
	}
	return domain.StrategyDescriptor{Name: reply.Name}, nil
}

// SetStrategy POST /strategy，只发送一次，不重试
func (c *Client) SetStrategy(ctx context.Context, sel domain.Selection) (domain.StrategyDescriptor, error) {
	body := strategyRequest{Strategy: string(sel.Strategy), Decorator: string(sel.Decorator)}
	var reply strategyReply
	if err := c.do(ctx, OpSetStrategy, http.MethodPost, "/strategy", &sdkhttp.RequestOptions{Data: body}, &reply); err != nil {
		return domain.StrategyDescriptor{}, err
	}
	return domain.StrategyDescriptor{Name: reply.Name}, nil
}

// do 发请求并把 2xx 响应解码进 out
func (c *Client) do(ctx context.Context, op, method, endpoint string, opt *sdkhttp.RequestOptions, out any) error {
	resp, err := c.http.DoRequest(ctx, method, endpoint, opt, out)
	if err != nil && sdkhttp.Received(resp) && resp.IsSuccess() {
		return c.decodeError(op, resp, err)
	}
	return c.check(op, resp, err)
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if perr := sdkhttp.ParseHTTPError(resp, err); perr != nil {
		apiErr := &Error{Op: op, RequestID: sdkhttp.RequestID(resp), Err: perr}
		if err == nil && resp != nil {
			apiErr.StatusCode = resp.StatusCode()
		}
		log.WithFields(logrus.Fields{
			"op":         op,
			"status":     apiErr.StatusCode,
			"request_id": apiErr.RequestID,
		}).Debugf("请求失败: %v", perr)
		return apiErr
	}
	return nil
}

func (c *Client) decodeError(op string, resp *resty.Response, err error) error {
	return &Error{
		Op:         op,
		StatusCode: resp.StatusCode(),
		RequestID:  sdkhttp.RequestID(resp),
		Err:        errors.Wrap(err, "decode response"),
	}
}
