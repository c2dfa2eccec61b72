package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// MultiRunner 多数据源运行器
// 每个数据源独立的会话与遍历状态,共享数据集存储与报告器
type MultiRunner struct {
	pipeline *Pipeline
	parallel int
	budget   *crawlers.BrowserBudget
	mode     models.BrowserMode
}

// RunSummary 多数据源运行摘要
type RunSummary struct {
	TotalSources  int
	SuccessCount  int
	FailCount     int
	TotalAuthors  int
	TotalRecords  int
	TotalDuration float64
	Results       []*SourceResult
}

// NewMultiRunner 创建多数据源运行器
// budget为空时只受parallel约束
func NewMultiRunner(pipeline *Pipeline, parallel int, budget *crawlers.BrowserBudget, mode models.BrowserMode) *MultiRunner {
	if parallel < 1 {
		parallel = 1
	}
	return &MultiRunner{
		pipeline: pipeline,
		parallel: parallel,
		budget:   budget,
		mode:     mode,
	}
}

// limit 实际并行数
func (m *MultiRunner) limit() int {
	limit := m.parallel
	if m.budget != nil {
		if n := m.budget.MaxSessions(m.mode); n < limit {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Run 按数据源顺序运行,某个数据源失败不影响其他数据源
func (m *MultiRunner) Run(ctx context.Context, sources []models.SourceName, seeds map[models.SourceName][]string) *RunSummary {
	summary := &RunSummary{
		TotalSources: len(sources),
		Results:      make([]*SourceResult, len(sources)),
	}
	startTime := time.Now()

	limit := m.limit()
	utils.Infof("🚀 开始抓取: %d 个数据源, 并行 %d", len(sources), limit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			list := seeds[source]
			if len(list) == 0 {
				summary.Results[i] = &SourceResult{
					Source: source,
					Err:    errors.New("没有有效的入口标识"),
				}
				return nil
			}
			summary.Results[i] = m.pipeline.Run(gctx, source, list)
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range summary.Results {
		if result.Report != nil {
			summary.TotalAuthors += result.Report.Stats.AuthorsDone
		}
		summary.TotalRecords += result.Merge.Incoming
		if result.Err != nil {
			summary.FailCount++
		} else {
			summary.SuccessCount++
		}
	}
	summary.TotalDuration = time.Since(startTime).Seconds()

	m.printSummary(summary)
	return summary
}

// Failed 是否有数据源失败
func (s *RunSummary) Failed() bool {
	return s.FailCount > 0
}

// printSummary 打印运行摘要
func (m *MultiRunner) printSummary(summary *RunSummary) {
	utils.Info("\n==================================================")
	utils.Info("📊 抓取摘要")
	utils.Info("==================================================")
	utils.Infof("数据源数: %d", summary.TotalSources)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("👤 完成作者: %d", summary.TotalAuthors)
	utils.Infof("📦 写入记录: %d", summary.TotalRecords)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("\n失败的数据源:")
		for _, result := range summary.Results {
			if result.Err != nil {
				utils.Warnf("  - %s: %v", result.Source, result.Err)
			}
		}
	}
}
