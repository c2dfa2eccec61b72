package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// RodSession 动态会话(使用Rod驱动真实浏览器)
// 浏览器在第一次使用时启动,崩溃后在下一次操作前重启
type RodSession struct {
	cfg     models.BrowserConfig
	limiter *rate.Limiter

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	// 浏览器会话管理
	broken      bool // 上一次操作导致浏览器失效
	restarts    int  // 已重启次数
	maxRestarts int  // 最大重启次数

	mu sync.Mutex
}

// NewRodSession 创建动态会话
func NewRodSession(cfg models.BrowserConfig) *RodSession {
	return &RodSession{
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRestarts: cfg.MaxRestarts,
	}
}

// ensure 确保浏览器可用,失效时按次数上限重启
func (s *RodSession) ensure() error {
	if s.page != nil && !s.broken {
		return nil
	}

	if s.broken {
		s.closeBrowser()
		if s.restarts >= s.maxRestarts {
			return fmt.Errorf("%w: %w", ErrSessionFailure, ErrMaxRestartsReached)
		}
		s.restarts++
		utils.Warnf("🔁 浏览器失效,准备重启(重试%d/%d)", s.restarts, s.maxRestarts)
	}

	if err := s.launchBrowser(); err != nil {
		s.broken = true
		return fmt.Errorf("%w: %v", ErrSessionFailure, err)
	}
	s.broken = false
	return nil
}

// launchBrowser 启动浏览器并打开一个标签页
func (s *RodSession) launchBrowser() error {
	l := launcher.New().Headless(s.cfg.Headless)
	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}

	// 允许访问自签名证书的机构代理站点
	l = l.Set("ignore-certificate-errors")
	utils.Debugf("浏览器启动参数: --ignore-certificate-errors (跳过TLS证书验证)")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("创建标签页失败: %w", err)
	}

	if s.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
			utils.Warnf("设置User-Agent失败: %v", err)
		}
	}

	s.launcher = l
	s.browser = browser
	s.page = page
	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// closeBrowser 关闭浏览器
func (s *RodSession) closeBrowser() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			utils.Debugf("关闭浏览器失败: %v", err)
		}
		utils.Debugf("浏览器已关闭")
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	s.launcher = nil
	s.browser = nil
	s.page = nil
}

// do 在受控页面上执行操作
// 浏览器panic与连接错误转换为ErrSessionFailure,单次等待超时转换为ErrTransientLoad
func (s *RodSession) do(ctx context.Context, op string, fn func(p *rod.Page) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensure(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic [%s]: %v", op, r)
			s.broken = true
			err = fmt.Errorf("%w: %v", ErrSessionFailure, r)
		}
	}()

	page := s.page.Context(ctx).Timeout(s.cfg.Timeout())
	defer page.CancelTimeout()
	err = fn(page)
	return s.classify(ctx, op, err)
}

// classify 区分加载超时、页面失败与会话失效
// 只有连接断开、目标页丢失等浏览器级错误才标记会话失效并计入重启次数
func (s *RodSession) classify(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s超时", retry.ErrTransientLoad, op)
	case isPageError(err):
		return fmt.Errorf("%w: %w: %s: %v", ErrPageFailure, retry.ErrTransientLoad, op, err)
	default:
		s.broken = true
		return fmt.Errorf("%w: %s: %v", ErrSessionFailure, op, err)
	}
}

// isPageError 单个页面的失败(导航失败、元素失效、脚本异常、协议返回的页面级错误)
func isPageError(err error) bool {
	var (
		navErr     *rod.NavigationError
		evalErr    *rod.EvalError
		objErr     *rod.ObjectNotFoundError
		elErr      *rod.ElementNotFoundError
		interErr   *rod.NotInteractableError
		shapeErr   *rod.InvisibleShapeError
		coveredErr *rod.CoveredError
		pointerErr *rod.NoPointerEventsError
		cdpErr     *cdp.Error
	)
	switch {
	case errors.As(err, &navErr), errors.As(err, &evalErr), errors.As(err, &objErr),
		errors.As(err, &elErr), errors.As(err, &interErr), errors.As(err, &shapeErr),
		errors.As(err, &coveredErr), errors.As(err, &pointerErr):
		return true
	case errors.As(err, &cdpErr):
		// 会话或目标页已不存在时需要重启
		return cdpErr.Code != cdp.ErrSessionNotFound.Code &&
			cdpErr.Message != cdp.ErrNotAttachedToActivePage.Message
	}
	return false
}

// Navigate 打开页面并等待加载
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	utils.Debugf("访问页面: %s", url)
	return s.do(ctx, "导航", func(p *rod.Page) error {
		if err := p.Navigate(url); err != nil {
			return err
		}
		return p.WaitLoad()
	})
}

// Reload 刷新当前页面
func (s *RodSession) Reload(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.do(ctx, "刷新", func(p *rod.Page) error {
		if err := p.Reload(); err != nil {
			return err
		}
		return p.WaitLoad()
	})
}

// CurrentURL 当前页面地址
func (s *RodSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.do(ctx, "读取地址", func(p *rod.Page) error {
		info, err := p.Info()
		if err != nil {
			return err
		}
		url = info.URL
		return nil
	})
	return url, err
}

// Text 第一个匹配元素的文本
func (s *RodSession) Text(ctx context.Context, selector string) (string, bool, error) {
	var text string
	var found bool
	err := s.do(ctx, "读取文本", func(p *rod.Page) error {
		has, el, err := p.Has(selector)
		if err != nil || !has {
			return err
		}
		found = true
		text, err = el.Text()
		return err
	})
	return text, found, err
}

// Texts 全部匹配元素的文本
func (s *RodSession) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	err := s.do(ctx, "读取文本", func(p *rod.Page) error {
		els, err := p.Elements(selector)
		if err != nil {
			return err
		}
		for _, el := range els {
			t, err := el.Text()
			if err != nil {
				return err
			}
			texts = append(texts, t)
		}
		return nil
	})
	return texts, err
}

// Attr 第一个匹配元素的属性
func (s *RodSession) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var found bool
	err := s.do(ctx, "读取属性", func(p *rod.Page) error {
		has, el, err := p.Has(selector)
		if err != nil || !has {
			return err
		}
		v, err := attribute(el, name)
		if err != nil || v == nil {
			return err
		}
		value, found = *v, true
		return nil
	})
	return value, found, err
}

// Attrs 全部匹配元素的属性
func (s *RodSession) Attrs(ctx context.Context, selector, name string) ([]string, error) {
	var values []string
	err := s.do(ctx, "读取属性", func(p *rod.Page) error {
		els, err := p.Elements(selector)
		if err != nil {
			return err
		}
		for _, el := range els {
			v, err := attribute(el, name)
			if err != nil {
				return err
			}
			if v != nil {
				values = append(values, *v)
			}
		}
		return nil
	})
	return values, err
}

// attribute 链接使用解析后的绝对地址
func attribute(el *rod.Element, name string) (*string, error) {
	if name == "href" {
		prop, err := el.Property("href")
		if err == nil && prop.Str() != "" {
			v := prop.Str()
			return &v, nil
		}
	}
	return el.Attribute(name)
}

// Count 匹配元素数量
func (s *RodSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := s.do(ctx, "计数", func(p *rod.Page) error {
		els, err := p.Elements(selector)
		n = len(els)
		return err
	})
	return n, err
}

// Exists 是否存在匹配元素
func (s *RodSession) Exists(ctx context.Context, selector string) (bool, error) {
	var has bool
	err := s.do(ctx, "查找元素", func(p *rod.Page) error {
		var err error
		has, _, err = p.Has(selector)
		return err
	})
	return has, err
}

// HTML 当前页面HTML
func (s *RodSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.do(ctx, "读取HTML", func(p *rod.Page) error {
		var err error
		html, err = p.HTML()
		return err
	})
	return html, err
}

// Click 点击第一个匹配元素
func (s *RodSession) Click(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	err := s.do(ctx, "点击", func(p *rod.Page) error {
		has, el, err := p.Has(selector)
		if err != nil || !has {
			return err
		}
		if err := el.ScrollIntoView(); err != nil {
			return err
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		clicked = true
		return nil
	})
	return clicked, err
}

// ScrollBy 纵向滚动
func (s *RodSession) ScrollBy(ctx context.Context, dy int) error {
	return s.do(ctx, "滚动", func(p *rod.Page) error {
		_, err := p.Eval(`(dy) => window.scrollBy(0, dy)`, dy)
		return err
	})
}

// ScrollOffset 当前滚动位置
func (s *RodSession) ScrollOffset(ctx context.Context) (int, error) {
	return s.evalInt(ctx, `() => Math.round(window.pageYOffset)`)
}

// ScrollHeight 页面总高度
func (s *RodSession) ScrollHeight(ctx context.Context) (int, error) {
	return s.evalInt(ctx, `() => document.body ? document.body.scrollHeight : 0`)
}

func (s *RodSession) evalInt(ctx context.Context, js string) (int, error) {
	var n int
	err := s.do(ctx, "执行脚本", func(p *rod.Page) error {
		res, err := p.Eval(js)
		if err != nil {
			return err
		}
		n = res.Value.Int()
		return nil
	})
	return n, err
}

// Type 在输入框中输入文本
func (s *RodSession) Type(ctx context.Context, selector, text string) error {
	return s.do(ctx, "输入", func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(text)
	})
}

// Submit 在元素上按回车
func (s *RodSession) Submit(ctx context.Context, selector string) error {
	return s.do(ctx, "提交", func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		if err := el.Type(input.Enter); err != nil {
			return err
		}
		return p.WaitLoad()
	})
}

// Restarts 浏览器重启次数
func (s *RodSession) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Close 关闭浏览器
func (s *RodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeBrowser()
	return nil
}

