package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
)

// DefaultCrossRefURL CrossRef接口地址
const DefaultCrossRefURL = "https://api.crossref.org"

// CrossRef 按标题查询DOI
type CrossRef struct {
	client  *http.Client
	baseURL string
	mailto  string
	limiter *rate.Limiter
}

// NewCrossRef 创建CrossRef客户端
// mailto非空时进入CrossRef的礼貌请求池
func NewCrossRef(baseURL, mailto string, timeout time.Duration, requestsPerSecond float64) *CrossRef {
	if baseURL == "" {
		baseURL = DefaultCrossRefURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &CrossRef{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		mailto:  mailto,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// crossRefResponse works接口响应中用到的部分
type crossRefResponse struct {
	Status  string `json:"status"`
	Message struct {
		Items []struct {
			DOI   string   `json:"DOI"`
			Title []string `json:"title"`
		} `json:"items"`
	} `json:"message"`
}

// DOIByTitle 返回标题检索的第一条结果的DOI
func (c *CrossRef) DOIByTitle(ctx context.Context, title string) (string, bool, error) {
	title = extract.Clean(title)
	if title == "" {
		return "", false, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	q := url.Values{}
	q.Set("query.title", title)
	q.Set("rows", "1")
	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/works?"+q.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("创建CrossRef请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.mailto != "" {
		req.Header.Set("User-Agent", "ScholarFuse (mailto:"+c.mailto+")")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("CrossRef请求失败: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", false, fmt.Errorf("%w: CrossRef HTTP %d", retry.ErrTransientLoad, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("CrossRef HTTP %d", resp.StatusCode)
	}

	var body crossRefResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("解析CrossRef响应失败: %w", err)
	}
	if len(body.Message.Items) == 0 {
		return "", false, nil
	}
	doi, ok := extract.DOI(body.Message.Items[0].DOI)
	return doi, ok, nil
}
