package collector

import (
	"context"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
	"github.com/gocolly/colly/v2"
)

// PageFetcher 使用 colly 抓取 HTML 热榜页面（GitHub Trending 等），
// 只负责拿到页面字节，解析交给 HTMLNormalizer。
type PageFetcher struct {
	timeout   time.Duration
	userAgent string
}

func NewPageFetcher(timeout time.Duration, userAgent string) *PageFetcher {
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &PageFetcher{timeout: timeout, userAgent: userAgent}
}

type pageResult struct {
	body []byte
	err  error
}

func (p *PageFetcher) Fetch(ctx context.Context, src config.Source) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, networkError(src.URL, err, p.timeout)
	}

	c := colly.NewCollector(
		colly.UserAgent(p.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(p.timeout)
	c.MaxBodySize = maxResponseBytes
	// 自己判断状态码，colly 默认把 >=203 都当成错误
	c.ParseHTTPErrorResponse = true

	c.OnRequest(func(r *colly.Request) {
		for k, v := range src.Headers {
			r.Headers.Set(k, v)
		}
	})

	var res pageResult
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			res.err = &NetworkError{URL: src.URL, Err: &StatusError{Code: r.StatusCode}}
			return
		}
		res.body = append([]byte(nil), r.Body...)
	})

	// colly 不接受 context，单独起 goroutine 以便整轮超时时能提前返回；
	// 请求本身受 SetRequestTimeout 约束，不会无限挂起。
	done := make(chan pageResult, 1)
	go func() {
		if err := c.Visit(src.URL); err != nil && res.err == nil {
			res.err = networkError(src.URL, err, p.timeout)
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		return nil, networkError(src.URL, ctx.Err(), p.timeout)
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.body, nil
	}
}
