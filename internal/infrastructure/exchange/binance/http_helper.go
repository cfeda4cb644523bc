package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coinfolio/internal/domain"
	"coinfolio/internal/infrastructure/exchange"
)

// Binance 错误码：无效交易对
const codeInvalidSymbol = -1121

// apiError Binance REST 错误响应体
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// StatusError 非 200 响应
type StatusError struct {
	Status int
	Code   int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("binance http %d: %s (code %d)", e.Status, e.Msg, e.Code)
	}
	return fmt.Sprintf("binance http %d", e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Code == codeInvalidSymbol {
		return domain.ErrUnknownSymbol
	}
	return nil
}

type httpResult struct {
	status int
	body   []byte
}

// publicRequest 公共行情接口（无需签名）的 GET 请求
// 先过限速器，再经熔断器；只有传输错误、5xx 与 429 计入熔断失败
func (c *RestClient) publicRequest(ctx context.Context, endpoint, path string, params url.Values) (body []byte, err error) {
	start := time.Now()
	defer func() { c.observe(endpoint, time.Since(start), err) }()

	query := ""
	if params != nil {
		query = params.Encode()
	}
	target, err := exchange.BuildQueryURL(c.baseURL, path, query)
	if err != nil {
		return nil, err
	}

	c.limiter.Take()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusError(resp.StatusCode, b)
		}
		return httpResult{status: resp.StatusCode, body: b}, nil
	})
	if err != nil {
		// 熔断打开时直接拒绝，调用方按"本轮无数据"处理
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}

	r := res.(httpResult)
	if r.status != http.StatusOK {
		return nil, fmt.Errorf("%s: %w", endpoint, statusError(r.status, r.body))
	}
	return r.body, nil
}

func statusError(status int, body []byte) *StatusError {
	e := &StatusError{Status: status}
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && (ae.Code != 0 || ae.Msg != "") {
		e.Code, e.Msg = ae.Code, ae.Msg
	} else if len(body) > 0 {
		e.Msg = truncate(string(body), 200)
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
