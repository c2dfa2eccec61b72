package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// 错误类型定义
var (
	// ErrNotFound 入口标识在数据源上无法解析
	ErrNotFound = errors.New("作者不存在")
	// ErrSessionFailure 浏览器或HTTP会话丢失,当前标识无法继续处理
	ErrSessionFailure = errors.New("会话失败")
	// ErrPageFailure 单个页面失败(导航失败、元素失效),会话仍可继续使用
	// 同时包装retry.ErrTransientLoad,读取类操作由有界重试吸收
	ErrPageFailure = errors.New("页面失败")
	// ErrMaxRestartsReached 浏览器重启次数耗尽
	ErrMaxRestartsReached = errors.New("已达最大重启次数")
	// ErrUnsupported 当前会话模式不支持的操作
	ErrUnsupported = errors.New("当前模式不支持该操作")
)

// Session 适配器使用的页面操作能力
// 查询类方法不等待元素出现,等待由retry包的有界重试完成
type Session interface {
	// Navigate 打开页面并等待加载
	Navigate(ctx context.Context, url string) error
	// Reload 刷新当前页面
	Reload(ctx context.Context) error
	// CurrentURL 当前页面地址(含重定向)
	CurrentURL(ctx context.Context) (string, error)

	// Text 第一个匹配元素的文本,元素不存在时ok为false
	Text(ctx context.Context, selector string) (text string, ok bool, err error)
	// Texts 全部匹配元素的文本
	Texts(ctx context.Context, selector string) ([]string, error)
	// Attr 第一个匹配元素的属性
	Attr(ctx context.Context, selector, name string) (value string, ok bool, err error)
	// Attrs 全部匹配元素的属性(缺少属性的元素跳过)
	Attrs(ctx context.Context, selector, name string) ([]string, error)
	// Count 匹配元素数量
	Count(ctx context.Context, selector string) (int, error)
	// Exists 是否存在匹配元素
	Exists(ctx context.Context, selector string) (bool, error)
	// HTML 当前页面完整HTML
	HTML(ctx context.Context) (string, error)

	// Click 点击第一个匹配元素,元素不存在时返回false
	Click(ctx context.Context, selector string) (bool, error)
	// ScrollBy 纵向滚动
	ScrollBy(ctx context.Context, dy int) error
	// ScrollOffset 当前纵向滚动位置
	ScrollOffset(ctx context.Context) (int, error)
	// ScrollHeight 页面总高度
	ScrollHeight(ctx context.Context) (int, error)
	// Type 在输入框中输入文本
	Type(ctx context.Context, selector, text string) error
	// Submit 在元素上按回车提交
	Submit(ctx context.Context, selector string) error

	// Restarts 会话重启次数
	Restarts() int
	// Close 释放浏览器或连接资源
	Close() error
}

// NewSession 按配置的模式创建会话
func NewSession(cfg models.BrowserConfig) (Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("浏览器配置无效: %w", err)
	}
	switch cfg.Mode {
	case models.ModeDynamic:
		return NewRodSession(cfg), nil
	case models.ModeStatic:
		return NewStaticSession(cfg)
	default:
		return nil, fmt.Errorf("无效的会话模式: %s", cfg.Mode)
	}
}

// firstText 按顺序尝试多个选择器,返回第一个有内容的文本
func firstText(ctx context.Context, s Session, selectors ...string) (string, bool, error) {
	for _, sel := range selectors {
		text, ok, err := s.Text(ctx, sel)
		if err != nil {
			return "", false, err
		}
		if ok && text != "" {
			return text, true, nil
		}
	}
	return "", false, nil
}

// firstTexts 按顺序尝试多个选择器,返回第一个非空的结果
func firstTexts(ctx context.Context, s Session, selectors ...string) ([]string, error) {
	for _, sel := range selectors {
		texts, err := s.Texts(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(texts) > 0 {
			return texts, nil
		}
	}
	return nil, nil
}

// open 打开页面,加载超时不算失败,由后续的有界重试处理
// 导航本身失败(如域名无法解析)时返回ErrPageFailure
func open(ctx context.Context, s Session, target string) error {
	err := s.Navigate(ctx, target)
	if errors.Is(err, retry.ErrTransientLoad) && !errors.Is(err, ErrPageFailure) {
		utils.Debugf("页面加载超时,继续尝试读取: %s", target)
		return nil
	}
	return err
}
