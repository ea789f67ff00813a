package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
	"github.com/dustin/go-humanize"
)

const (
	maxResponseBytes = 4 << 20 // 4MB，RSS 全量历史也足够
)

// ErrResponseTooLarge 响应体超过 maxResponseBytes
var ErrResponseTooLarge = errors.New("response too large")

// Transport 普通 HTTP GET，用于 RSS 与 JSON API。
// 不做自动重试：失败交给编排层决定是否隔离，下一轮定时任务自然会重试。
type Transport struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBytes  int64
}

func NewTransport(timeout time.Duration, userAgent string) *Transport {
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &Transport{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		userAgent: userAgent,
		maxBytes:  maxResponseBytes,
	}
}

func (t *Transport) Fetch(ctx context.Context, src config.Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, &NetworkError{URL: src.URL, Err: err}
	}
	req.Header.Set("User-Agent", t.userAgent)
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, networkError(src.URL, err, t.timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉少量 body 以便连接复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &NetworkError{URL: src.URL, Err: &StatusError{Code: resp.StatusCode}}
	}

	// 多读 1 字节判断是否超限，截断的 body 交给解析只会得到难以排查的 ParseError
	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, networkError(src.URL, err, t.timeout)
	}
	if int64(len(body)) > t.maxBytes {
		log.Printf("transport: %s: response exceeds %s", src.ID, humanize.IBytes(uint64(t.maxBytes)))
		return nil, &NetworkError{URL: src.URL, Err: fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, t.maxBytes)}
	}
	return body, nil
}
