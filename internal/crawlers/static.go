package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// StaticSession 静态会话(使用Colly抓取HTML,goquery查询)
// 不执行JavaScript: 点击链接会跟随href,其余点击与滚动不改变页面
type StaticSession struct {
	cfg        models.BrowserConfig
	collector  *colly.Collector
	httpClient *http.Client
	limiter    *rate.Limiter

	mu     sync.Mutex
	doc    *goquery.Document
	html   string
	url    *url.URL
	status int
	inputs map[string]string // 选择器 -> 已输入的值
}

// NewStaticSession 创建静态会话
func NewStaticSession(cfg models.BrowserConfig) (*StaticSession, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 机构代理常用自签名证书
			},
		},
		Timeout: cfg.Timeout(),
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("创建Cookie容器失败: %w", err)
	}

	// 会话需要多次访问同一页面(刷新、分页重试)
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetClient(httpClient)
	c.SetCookieJar(jar)
	c.SetRequestTimeout(cfg.Timeout())
	c.WithTransport(httpClient.Transport)
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	utils.Debugf("静态会话: HTTP超时设置为 %d 秒", cfg.TimeoutSeconds)

	s := &StaticSession{
		cfg:        cfg,
		collector:  c,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		inputs:     make(map[string]string),
	}
	s.setupCallbacks()
	return s, nil
}

// setupCallbacks 设置Colly回调
func (s *StaticSession) setupCallbacks() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	// 回调在持有s.mu的Visit调用内同步执行
	s.collector.OnResponse(func(r *colly.Response) {
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressResponse(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, encoding, err)
			} else {
				body = decompressed
			}
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			utils.Warnf("解析HTML失败 [%s]: %v", r.Request.URL, err)
			return
		}
		s.doc = doc
		s.html = string(body)
		s.url = r.Request.URL
		s.status = r.StatusCode
	})
}

// visit 在持有锁的情况下抓取页面
func (s *StaticSession) visit(ctx context.Context, target string, post map[string]string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	utils.Debugf("访问页面: %s", target)

	s.status = 0
	var err error
	if post != nil {
		err = s.collector.Post(target, post)
	} else {
		err = s.collector.Visit(target)
	}
	return s.classify(ctx, target, err)
}

// classify 限流与服务端错误视为暂时性错误,网络失败视为会话失败
func (s *StaticSession) classify(ctx context.Context, target string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.status == http.StatusTooManyRequests || s.status >= 500 {
		return fmt.Errorf("%w: HTTP %d [%s]", retry.ErrTransientLoad, s.status, target)
	}
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: 请求超时 [%s]", retry.ErrTransientLoad, target)
	}
	if s.status > 0 {
		// 4xx页面已经保存,元素缺失由调用方处理
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrSessionFailure, target, err)
}

// Navigate 抓取页面
func (s *StaticSession) Navigate(ctx context.Context, target string) error {
	return s.visit(ctx, target, nil)
}

// Reload 重新抓取当前页面
func (s *StaticSession) Reload(ctx context.Context) error {
	current, _ := s.CurrentURL(ctx)
	if current == "" {
		return nil
	}
	return s.visit(ctx, current, nil)
}

// CurrentURL 当前页面地址(重定向后)
func (s *StaticSession) CurrentURL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.url == nil {
		return "", nil
	}
	return s.url.String(), nil
}

// find 在当前文档中查询
func (s *StaticSession) find(selector string) *goquery.Selection {
	if s.doc == nil {
		return &goquery.Selection{}
	}
	return s.doc.Find(selector)
}

// resolve 链接转换为绝对地址
func (s *StaticSession) resolve(href string) string {
	if s.url == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return s.url.ResolveReference(ref).String()
}

// Text 第一个匹配元素的文本
func (s *StaticSession) Text(_ context.Context, selector string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(sel.Text()), true, nil
}

// Texts 全部匹配元素的文本
func (s *StaticSession) Texts(_ context.Context, selector string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var texts []string
	s.find(selector).Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(sel.Text()))
	})
	return texts, nil
}

// Attr 第一个匹配元素的属性
func (s *StaticSession) Attr(_ context.Context, selector, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.find(selector).First().Attr(name)
	if ok && name == "href" {
		v = s.resolve(v)
	}
	return v, ok, nil
}

// Attrs 全部匹配元素的属性
func (s *StaticSession) Attrs(_ context.Context, selector, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var values []string
	s.find(selector).Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr(name); ok {
			if name == "href" {
				v = s.resolve(v)
			}
			values = append(values, v)
		}
	})
	return values, nil
}

// Count 匹配元素数量
func (s *StaticSession) Count(_ context.Context, selector string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(selector).Length(), nil
}

// Exists 是否存在匹配元素
func (s *StaticSession) Exists(ctx context.Context, selector string) (bool, error) {
	n, err := s.Count(ctx, selector)
	return n > 0, err
}

// HTML 当前页面HTML
func (s *StaticSession) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, nil
}

// Click 链接跟随href,其他元素不产生任何变化
func (s *StaticSession) Click(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	sel := s.find(selector).First()
	if sel.Length() == 0 {
		s.mu.Unlock()
		return false, nil
	}
	href, isLink := sel.Attr("href")
	if !isLink {
		// 也接受点击链接内部的元素
		href, isLink = sel.Closest("a[href]").Attr("href")
	}
	if isLink {
		href = s.resolve(href)
	}
	s.mu.Unlock()

	if !isLink || strings.HasPrefix(href, "javascript:") {
		return true, nil
	}
	return true, s.visit(ctx, href, nil)
}

// ScrollBy 静态页面没有滚动
func (s *StaticSession) ScrollBy(context.Context, int) error { return nil }

// ScrollOffset 始终为0
func (s *StaticSession) ScrollOffset(context.Context) (int, error) { return 0, nil }

// ScrollHeight 始终为0,分页立即到达不动点
func (s *StaticSession) ScrollHeight(context.Context) (int, error) { return 0, nil }

// Type 记录输入值,Submit时随表单提交
func (s *StaticSession) Type(_ context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(selector).Length() == 0 {
		return fmt.Errorf("%w: 输入框不存在 %s", retry.ErrTransientLoad, selector)
	}
	s.inputs[selector] = text
	return nil
}

// Submit 提交元素所在表单
func (s *StaticSession) Submit(ctx context.Context, selector string) error {
	s.mu.Lock()
	form := s.find(selector).First().Closest("form")
	if form.Length() == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: 静态模式下找不到表单 %s", ErrUnsupported, selector)
	}

	values := make(map[string]string)
	form.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		v, _ := in.Attr("value")
		values[name] = v
	})
	for sel, v := range s.inputs {
		if name, ok := s.find(sel).First().Attr("name"); ok {
			values[name] = v
		}
	}
	s.inputs = make(map[string]string)

	action, _ := form.Attr("action")
	target := s.resolve(action)
	if action == "" && s.url != nil {
		target = s.url.String()
	}
	method, _ := form.Attr("method")
	s.mu.Unlock()

	if strings.EqualFold(method, http.MethodPost) {
		return s.visit(ctx, target, values)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("表单地址无效: %w", err)
	}
	q := u.Query()
	for k, v := range values {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return s.visit(ctx, u.String(), nil)
}

// Restarts 静态会话不会重启
func (s *StaticSession) Restarts() int { return 0 }

// Close 关闭空闲连接
func (s *StaticSession) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// HTTP库已经透明解压过的gzip内容原样返回
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		// 未知编码,返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
