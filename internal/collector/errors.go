package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// NetworkError 传输层失败。超时与非 2xx 状态码都包在 NetworkError 里，
// 因此 errors.As(err, &*NetworkError) 可以统一识别，再按需细分。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError 请求超时或整轮采集的截止时间已到
type TimeoutError struct {
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("timeout after %s", e.After)
	}
	return "timeout: " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// StatusError 上游返回了非 2xx 的 HTTP 状态码
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// UpstreamError 上游接口在 {code,message,data} 信封中明确返回了失败
type UpstreamError struct {
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error code %d", e.Code)
	}
	return fmt.Sprintf("upstream error code %d: %s", e.Code, e.Message)
}

// ParseError 响应内容无法解析（非法 JSON、无法识别的信封等）
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTimeout 判断错误链中是否包含超时
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// networkError 把 http.Client / colly 返回的错误归类为 NetworkError（必要时带 TimeoutError）
func networkError(rawURL string, err error, timeout time.Duration) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &NetworkError{URL: rawURL, Err: &TimeoutError{Err: err}}
	case errors.As(err, &ne) && ne.Timeout():
		return &NetworkError{URL: rawURL, Err: &TimeoutError{After: timeout, Err: err}}
	default:
		return &NetworkError{URL: rawURL, Err: err}
	}
}
