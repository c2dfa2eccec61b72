package retry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// Probe 尝试读取一次字段
// ok为false或返回ErrTransientLoad表示内容尚未出现;其他错误视为会话级错误
type Probe[T any] func(ctx context.Context) (value T, ok bool, err error)

// Reload 重新触发加载(滚动、点击"更多"、刷新)
type Reload func(ctx context.Context) error

// Field 有界字段重试
// 达到最大次数后返回NotFound且不返回错误;只有会话级错误和ctx取消会返回
func Field[T any](ctx context.Context, p Policy, probe Probe[T], reload Reload) (models.Field[T], error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	logger := zerolog.Ctx(ctx)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.Missing[T](), err
		}

		value, ok, err := probe(ctx)
		if err != nil && !transient(err) {
			return models.Missing[T](), err
		}
		if ok && err == nil {
			return models.Found(value), nil
		}

		if attempt == attempts {
			break
		}
		logger.Debug().Int("attempt", attempt).Msg("🔄 字段尚未出现,重新加载")

		if reload != nil {
			if err := reload(ctx); err != nil && !transient(err) {
				return models.Missing[T](), err
			}
		}
		if err := p.settle(ctx); err != nil {
			return models.Missing[T](), err
		}
	}

	return models.Missing[T](), nil
}

// Do 有界重试一个动作,成功返回true
// 与Field相同的错误规则:加载类错误被吸收,其他错误直接返回
func Do(ctx context.Context, p Policy, action func(ctx context.Context) (bool, error), reload Reload) (bool, error) {
	f, err := Field(ctx, p, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := action(ctx)
		return struct{}{}, ok, err
	}, reload)
	return f.IsFound(), err
}
