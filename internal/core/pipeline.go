package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/store"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// SourceFactory 创建数据源适配器
type SourceFactory func(ctx context.Context, name models.SourceName) (crawlers.Source, error)

// BrowserSourceFactory 按配置创建会话并构造适配器
func BrowserSourceFactory(cfg *Config) SourceFactory {
	return func(ctx context.Context, name models.SourceName) (crawlers.Source, error) {
		session, err := crawlers.NewSession(cfg.Browser)
		if err != nil {
			return nil, fmt.Errorf("创建会话失败: %w", err)
		}
		src, err := crawlers.NewSource(name, session, cfg.SourceOptions(name))
		if err != nil {
			_ = session.Close()
			return nil, err
		}
		return src, nil
	}
}

// Pipeline 单个数据源的完整流程
// 遍历作者 → 关联期刊 → 合并写入数据集 → 生成运行报告
type Pipeline struct {
	cfg      *Config
	factory  SourceFactory
	store    store.Store
	reporter *utils.Reporter
	progress bool
}

// NewPipeline 创建流程
// store与reporter可在多个数据源之间共享
func NewPipeline(cfg *Config, factory SourceFactory, st store.Store, reporter *utils.Reporter) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		factory:  factory,
		store:    st,
		reporter: reporter,
	}
}

// WithProgress 显示详情抓取进度条
func (p *Pipeline) WithProgress(enabled bool) *Pipeline {
	p.progress = enabled
	return p
}

// SourceResult 单个数据源的运行结果
type SourceResult struct {
	Source     models.SourceName
	Report     *models.RunReport
	ReportPath string
	Merge      store.MergeStats
	Pending    int
	Err        error
}

// Run 执行单个数据源的抓取
// ctx取消时已完成作者的记录仍会写入数据集
func (p *Pipeline) Run(ctx context.Context, source models.SourceName, seeds []string) *SourceResult {
	result := &SourceResult{Source: source}

	task, err := models.NewScrapeTask(source, seeds, p.cfg.Traversal, p.cfg.Retry)
	if err != nil {
		result.Err = err
		return result
	}
	started := time.Now()
	task.StartedAt = &started

	ctx = utils.WithFields(ctx, map[string]interface{}{
		"source": string(source),
		"run_id": task.ID,
	})
	logger := zerolog.Ctx(ctx)
	logger.Info().Msgf("🚀 开始抓取 %s: %d 个入口标识", source, len(seeds))

	src, err := p.factory(ctx, source)
	if err != nil {
		result.Err = fmt.Errorf("创建 %s 适配器失败: %w", source, err)
		return result
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭会话失败")
		}
	}()

	checkpointPath := ""
	if p.cfg.Output.CheckpointDir != "" {
		checkpointPath = p.cfg.CheckpointPath(source)
	}
	resume := p.loadCheckpoint(ctx, checkpointPath, source)

	resolver := NewResolver(src, p.cfg.Resolver.NameFallback)
	orch := NewOrchestrator(src, resolver, OrchestratorOptions{
		Traversal:      p.cfg.Traversal,
		RunID:          task.ID,
		CheckpointPath: checkpointPath,
		Progress:       p.progress,
	})
	traversal := orch.Run(ctx, seeds, resume)
	task.Stats = traversal.Stats
	result.Pending = len(traversal.Pending)

	rows := make([]models.DatasetRow, 0, len(traversal.Records))
	for i := range traversal.Records {
		rows = append(rows, traversal.Records[i].Row())
	}

	// 取消后仍需落盘
	mergeCtx := context.WithoutCancel(ctx)
	merge, err := p.store.Merge(mergeCtx, rows)
	if err != nil {
		result.Err = fmt.Errorf("写入数据集失败: %w", err)
	} else {
		result.Merge = merge
		task.Stats.RecordsWritten = merge.Incoming
		logger.Info().
			Int("existing", merge.Existing).
			Int("incoming", merge.Incoming).
			Int("duplicates", merge.Duplicates).
			Int("total", merge.Total).
			Msgf("💾 数据集已更新: %s", p.store.Path())
		if !traversal.Interrupted && checkpointPath != "" {
			if err := os.Remove(checkpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn().Err(err).Msg("删除检查点失败")
			}
		}
	}

	completed := time.Now()
	task.CompletedAt = &completed
	task.Stats.Duration = completed.Sub(started).Seconds()
	if result.Err != nil {
		task.ErrorMessage = result.Err.Error()
	}

	report := &models.RunReport{
		RunID:      task.ID,
		Source:     source,
		Mode:       p.cfg.Browser.Mode,
		Seeds:      task.Seeds,
		StartTime:  started,
		EndTime:    completed,
		Duration:   task.Stats.Duration,
		Stats:      task.Stats,
		Outcomes:   traversal.Outcomes,
		OutputPath: p.store.Path(),
		Traversal:  task.Traversal,
		Retry:      task.Retry,
	}
	result.Report = report

	if p.reporter != nil {
		path, err := p.reporter.GenerateReport(report)
		if err != nil {
			logger.Warn().Err(err).Msg("生成报告失败")
		} else {
			result.ReportPath = path
		}
	}

	if result.Err == nil && traversal.Interrupted {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
		} else {
			result.Err = crawlers.ErrMaxRestartsReached
		}
	}

	logger.Info().Msgf("✅ %s 完成: 作者 %d (失败 %d), 出版物 %d, 期刊匹配 %d/%d, 耗时 %.2f秒",
		source,
		task.Stats.AuthorsDone,
		task.Stats.AuthorsFailed,
		task.Stats.PublicationsFetched,
		task.Stats.JournalsMatched,
		task.Stats.JournalsMatched+task.Stats.JournalsUnmatched,
		task.Stats.Duration,
	)
	return result
}

// loadCheckpoint 读取可恢复的检查点,不存在或不匹配时返回nil
func (p *Pipeline) loadCheckpoint(ctx context.Context, path string, source models.SourceName) *models.Checkpoint {
	if !p.cfg.Run.Resume || path == "" {
		return nil
	}
	logger := zerolog.Ctx(ctx)

	cp, err := models.LoadCheckpointFromFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("⚠️  检查点无法读取,从头开始")
		}
		return nil
	}
	if cp.Source != source {
		logger.Warn().Str("path", path).Msgf("⚠️  检查点属于 %s,忽略", cp.Source)
		return nil
	}
	return cp
}
