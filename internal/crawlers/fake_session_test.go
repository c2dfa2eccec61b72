package crawlers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
)

// fakeSession 以预置HTML模拟页面会话
type fakeSession struct {
	pages     map[string]string // 地址 -> HTML
	redirects map[string]string // 地址 -> 重定向后的地址
	onClick   map[string]func(f *fakeSession)
	// hidden 选择器在前N次查询中不可见(模拟延迟渲染)
	hidden map[string]int
	// offsets 每次滚动后的位置,用尽后保持最后一个值
	offsets []int

	current string
	doc     *goquery.Document
	html    string

	visits   map[string]int
	reloads  int
	scrolls  int
	clicks   map[string]int
	typed    map[string]string
	submits  int
	navErr   error
	closed   bool
	restarts int
}

func newFakeSession(pages map[string]string) *fakeSession {
	return &fakeSession{
		pages:     pages,
		redirects: map[string]string{},
		onClick:   map[string]func(f *fakeSession){},
		hidden:    map[string]int{},
		visits:    map[string]int{},
		clicks:    map[string]int{},
		typed:     map[string]string{},
	}
}

// setHTML 替换当前页面内容(点击回调中使用)
func (f *fakeSession) setHTML(html string) {
	f.html = html
	f.doc, _ = goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (f *fakeSession) Navigate(_ context.Context, target string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.visits[target]++
	if to, ok := f.redirects[target]; ok {
		target = to
	}
	f.current = target
	f.setHTML(f.pages[target])
	return nil
}

func (f *fakeSession) Reload(ctx context.Context) error {
	f.reloads++
	f.setHTML(f.pages[f.current])
	return nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) { return f.current, nil }

// find 隐藏计数未用尽时返回空选择
func (f *fakeSession) find(selector string) *goquery.Selection {
	if n := f.hidden[selector]; n > 0 {
		f.hidden[selector] = n - 1
		return &goquery.Selection{}
	}
	if f.doc == nil {
		return &goquery.Selection{}
	}
	return f.doc.Find(selector)
}

func (f *fakeSession) resolve(href string) string {
	base, err := url.Parse(f.current)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (f *fakeSession) Text(_ context.Context, selector string) (string, bool, error) {
	sel := f.find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(sel.Text()), true, nil
}

func (f *fakeSession) Texts(_ context.Context, selector string) ([]string, error) {
	var texts []string
	f.find(selector).Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(sel.Text()))
	})
	return texts, nil
}

func (f *fakeSession) Attr(_ context.Context, selector, name string) (string, bool, error) {
	v, ok := f.find(selector).First().Attr(name)
	if ok && name == "href" {
		v = f.resolve(v)
	}
	return v, ok, nil
}

func (f *fakeSession) Attrs(_ context.Context, selector, name string) ([]string, error) {
	var values []string
	f.find(selector).Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr(name); ok {
			if name == "href" {
				v = f.resolve(v)
			}
			values = append(values, v)
		}
	})
	return values, nil
}

func (f *fakeSession) Count(_ context.Context, selector string) (int, error) {
	return f.find(selector).Length(), nil
}

func (f *fakeSession) Exists(ctx context.Context, selector string) (bool, error) {
	n, err := f.Count(ctx, selector)
	return n > 0, err
}

func (f *fakeSession) HTML(context.Context) (string, error) { return f.html, nil }

func (f *fakeSession) Click(_ context.Context, selector string) (bool, error) {
	if f.doc == nil || f.doc.Find(selector).Length() == 0 {
		return false, nil
	}
	f.clicks[selector]++
	if handler, ok := f.onClick[selector]; ok {
		handler(f)
	}
	return true, nil
}

func (f *fakeSession) ScrollBy(context.Context, int) error {
	f.scrolls++
	return nil
}

func (f *fakeSession) ScrollOffset(context.Context) (int, error) {
	if len(f.offsets) == 0 {
		return 0, nil
	}
	i := f.scrolls
	if i >= len(f.offsets) {
		i = len(f.offsets) - 1
	}
	return f.offsets[i], nil
}

func (f *fakeSession) ScrollHeight(context.Context) (int, error) { return 1000, nil }

func (f *fakeSession) Type(_ context.Context, selector, text string) error {
	f.typed[selector] = text
	return nil
}

func (f *fakeSession) Submit(context.Context, string) error {
	f.submits++
	return nil
}

func (f *fakeSession) Restarts() int { return f.restarts }

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// fastPolicy 不产生真实等待的重试策略
func fastPolicy() retry.Policy {
	return retry.Policy{
		Attempts:      3,
		MaxIterations: 20,
		SettleDelay:   time.Millisecond,
		Sleep:         func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
}

func testOptions(baseURL string) Options {
	return Options{
		BaseURL:    baseURL,
		SJRBaseURL: "https://sjr.test",
		Policy:     fastPolicy(),
	}
}
