package retry

import (
	"context"

	"github.com/rs/zerolog"
)

// Pager 可分页加载的列表
type Pager interface {
	// Measure 返回当前加载程度(条目数或滚动高度)
	Measure(ctx context.Context) (int, error)
	// HasMore "加载更多"控件是否存在且可用
	HasMore(ctx context.Context) (bool, error)
	// LoadMore 触发一次加载
	LoadMore(ctx context.Context) error
}

// PagerFuncs 用函数组装Pager
// HasMoreFunc为空时认为控件始终可用(如无限滚动)
type PagerFuncs struct {
	MeasureFunc  func(ctx context.Context) (int, error)
	HasMoreFunc  func(ctx context.Context) (bool, error)
	LoadMoreFunc func(ctx context.Context) error
}

func (f PagerFuncs) Measure(ctx context.Context) (int, error) {
	return f.MeasureFunc(ctx)
}

func (f PagerFuncs) HasMore(ctx context.Context) (bool, error) {
	if f.HasMoreFunc == nil {
		return true, nil
	}
	return f.HasMoreFunc(ctx)
}

func (f PagerFuncs) LoadMore(ctx context.Context) error {
	return f.LoadMoreFunc(ctx)
}

// StopReason 分页停止原因
type StopReason string

const (
	StopFixedPoint    StopReason = "fixed_point"    // 连续两次测量相同
	StopNoMore        StopReason = "no_more"        // 控件不存在或已禁用
	StopMaxIterations StopReason = "max_iterations" // 达到最大次数
)

// PageResult 分页结果
type PageResult struct {
	Triggers int        // 触发加载的次数
	Signal   int        // 最后一次测量值
	Reason   StopReason // 停止原因
	Samples  []int      // 全部测量值
}

// Paginate 重复触发加载直到测量值不再变化
// 控件消失或达到MaxIterations时也会停止
func Paginate(ctx context.Context, p Policy, pager Pager) (PageResult, error) {
	logger := zerolog.Ctx(ctx)
	maxIterations := p.MaxIterations
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}

	var res PageResult
	prev, err := measure(ctx, pager, 0)
	if err != nil {
		return res, err
	}
	res.Signal = prev
	res.Samples = append(res.Samples, prev)

	for res.Triggers < maxIterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		more, err := pager.HasMore(ctx)
		if err != nil && !transient(err) {
			return res, err
		}
		if !more || err != nil {
			res.Reason = StopNoMore
			logger.Debug().Int("signal", prev).Int("triggers", res.Triggers).Msg("📄 没有更多内容")
			return res, nil
		}

		if err := pager.LoadMore(ctx); err != nil && !transient(err) {
			return res, err
		}
		res.Triggers++

		if err := p.settle(ctx); err != nil {
			return res, err
		}
		cur, err := measure(ctx, pager, prev)
		if err != nil {
			return res, err
		}
		res.Samples = append(res.Samples, cur)

		if cur == prev && p.Recheck {
			if err := p.settle(ctx); err != nil {
				return res, err
			}
			if cur, err = measure(ctx, pager, prev); err != nil {
				return res, err
			}
			res.Samples = append(res.Samples, cur)
		}

		res.Signal = cur
		if cur == prev {
			res.Reason = StopFixedPoint
			logger.Debug().Int("signal", cur).Int("triggers", res.Triggers).Msg("📄 分页达到不动点")
			return res, nil
		}
		prev = cur
	}

	res.Reason = StopMaxIterations
	logger.Warn().Int("signal", res.Signal).Int("max", maxIterations).Msg("⚠️ 分页达到最大次数,停止加载")
	return res, nil
}

// measure 测量失败时沿用上一次的值
func measure(ctx context.Context, pager Pager, fallback int) (int, error) {
	n, err := pager.Measure(ctx)
	if err != nil {
		if transient(err) {
			return fallback, nil
		}
		return fallback, err
	}
	return n, nil
}
