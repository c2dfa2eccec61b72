// Package retry 为异步加载的页面内容提供有界重试与分页不动点检测
//
// 页面没有可靠的"加载完成"事件,这里只依赖可测量的信号(元素是否出现,
// 条目数或滚动高度)判断何时停止。等待通过可注入的Sleeper完成,
// 测试中不产生真实延迟。
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// ErrTransientLoad 目标内容尚未渲染
// 只在重试控制器内部处理,不会返回给调用方
var ErrTransientLoad = errors.New("内容尚未加载完成")

// 默认值
const (
	DefaultAttempts      = 3
	DefaultMaxIterations = 50
)

// Sleeper 可取消的等待
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper 基于定时器的等待,ctx取消时提前返回
func ContextSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy 重试策略
type Policy struct {
	// Attempts 字段最多尝试次数(含第一次)
	Attempts int
	// MaxIterations 分页最多触发次数
	MaxIterations int
	// SettleDelay 每次触发加载后的等待
	SettleDelay time.Duration
	// Recheck 接受不动点前等待SettleDelay再测量一次
	Recheck bool
	// Sleep 为空时使用ContextSleeper
	Sleep Sleeper
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		Attempts:      DefaultAttempts,
		MaxIterations: DefaultMaxIterations,
		SettleDelay:   500 * time.Millisecond,
	}
}

// PolicyFromConfig 由配置构造策略
func PolicyFromConfig(cfg models.RetryConfig) Policy {
	p := Policy{
		Attempts:      cfg.DetailAttempts,
		MaxIterations: cfg.MaxPaginationIterations,
		SettleDelay:   time.Duration(cfg.SettleDelayMs) * time.Millisecond,
		Recheck:       cfg.Recheck,
	}
	if p.Attempts < 1 {
		p.Attempts = DefaultAttempts
	}
	if p.MaxIterations < 1 {
		p.MaxIterations = DefaultMaxIterations
	}
	return p
}

// WithSleeper 返回替换了Sleeper的副本
func (p Policy) WithSleeper(s Sleeper) Policy {
	p.Sleep = s
	return p
}

func (p Policy) settle(ctx context.Context) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleeper
	}
	return sleep(ctx, p.SettleDelay)
}

// transient 是否为可以吸收的加载错误
func transient(err error) bool {
	return errors.Is(err, ErrTransientLoad)
}
