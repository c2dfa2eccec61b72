package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// OrchestratorOptions 遍历选项
type OrchestratorOptions struct {
	Traversal models.TraversalConfig
	RunID     string
	// CheckpointPath 非空时每处理完一个作者写一次检查点
	CheckpointPath string
	// Progress 是否显示详情抓取进度条
	Progress bool
	// Now 为空时使用time.Now
	Now func() time.Time
}

// Orchestrator 作者遍历协调器
// 从入口标识出发按广度优先处理作者,并按合作者关系扩展至多MaxDepth跳
type Orchestrator struct {
	source   crawlers.Source
	resolver *Resolver
	opts     OrchestratorOptions
}

// NewOrchestrator 创建遍历协调器
func NewOrchestrator(source crawlers.Source, resolver *Resolver, opts OrchestratorOptions) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		source:   source,
		resolver: resolver,
		opts:     opts,
	}
}

// TraversalContext 单次遍历的状态,不在运行之间共享
type TraversalContext struct {
	Queue    *SeedQueue
	Outcomes []models.IdentifierOutcome
	Records  []models.EnrichedPublication
	Stats    models.RunStats

	createdAt   time.Time
	interrupted *models.SeedItem
}

func newTraversalContext(maxDepth int, now time.Time) *TraversalContext {
	return &TraversalContext{
		Queue:     NewSeedQueue(maxDepth),
		Outcomes:  make([]models.IdentifierOutcome, 0),
		Records:   make([]models.EnrichedPublication, 0),
		createdAt: now,
	}
}

// TraversalResult 遍历结果
type TraversalResult struct {
	Records  []models.EnrichedPublication
	Outcomes []models.IdentifierOutcome
	Stats    models.RunStats
	// Pending 未处理的标识(中断或重启耗尽时非空)
	Pending []models.SeedItem
	// Interrupted ctx取消或浏览器重启耗尽导致提前结束
	Interrupted bool
}

// Run 执行遍历
// resume非空时恢复其中的已完成/失败状态与待处理标识
func (o *Orchestrator) Run(ctx context.Context, seeds []string, resume *models.Checkpoint) *TraversalResult {
	tc := newTraversalContext(o.opts.Traversal.MaxDepth, o.opts.Now())
	logger := zerolog.Ctx(ctx)

	if resume != nil {
		o.restore(ctx, tc, resume)
	}

	for _, seed := range seeds {
		if resume != nil && resume.IsDone(seed) {
			logger.Info().Msgf("⏭️  入口标识 %s 已在上次运行中完成", seed)
			continue
		}
		if err := tc.Queue.Push(models.SeedItem{ID: seed, Depth: 0}); err != nil {
			logger.Debug().Err(err).Str("seed", seed).Msg("入口标识跳过")
			continue
		}
		tc.Stats.SeedsTotal++
	}

	interrupted := false
	for {
		item, ok := tc.Queue.Pop(ctx)
		if !ok {
			break
		}

		logger.Info().Msgf("👤 处理作者 %s (深度 %d, 待处理 %d)", item.ID, item.Depth, tc.Queue.PendingCount())
		author, err := o.processAuthor(ctx, tc, item)
		if err == nil && author != nil {
			o.expand(ctx, tc, item, author)
		}

		if ctx.Err() != nil {
			tc.interrupted = &item
		}
		o.saveCheckpoint(ctx, tc)

		if ctx.Err() != nil {
			logger.Warn().Msg("⚠️  遍历被取消,保存已完成的作者")
			interrupted = true
			break
		}
		if errors.Is(err, crawlers.ErrMaxRestartsReached) {
			logger.Error().Err(err).Msg("❌ 浏览器重启次数耗尽,停止遍历")
			interrupted = true
			break
		}
	}
	tc.Queue.Close()

	if stats, ok := o.source.(crawlers.SessionStats); ok {
		tc.Stats.SessionRestarts = stats.Restarts()
	}

	pending := tc.Queue.Pending()
	if tc.interrupted != nil {
		pending = append([]models.SeedItem{*tc.interrupted}, pending...)
	}
	return &TraversalResult{
		Records:     tc.Records,
		Outcomes:    tc.Outcomes,
		Stats:       tc.Stats,
		Pending:     pending,
		Interrupted: interrupted,
	}
}

// restore 从检查点恢复状态
func (o *Orchestrator) restore(ctx context.Context, tc *TraversalContext, cp *models.Checkpoint) {
	for _, id := range cp.Done {
		tc.Queue.SetState(id, models.StateDone)
	}
	for _, id := range cp.Failed {
		tc.Queue.SetState(id, models.StateFailed)
	}
	for _, p := range cp.Pending {
		_ = tc.Queue.Push(models.SeedItem{ID: p.ID, Depth: p.Depth})
	}
	if !cp.CreatedAt.IsZero() {
		tc.createdAt = cp.CreatedAt
	}
	zerolog.Ctx(ctx).Info().
		Int("done", len(cp.Done)).
		Int("failed", len(cp.Failed)).
		Int("pending", len(cp.Pending)).
		Msg("🔄 从检查点恢复")
}

// processAuthor 处理单个作者: 解析 → 列出出版物 → 逐条抓取详情并关联期刊
// 任何一步失败都将作者标记为FAILED并丢弃已抓取的部分出版物
// 返回成功处理的作者(与已处理作者重复时为nil)
func (o *Orchestrator) processAuthor(ctx context.Context, tc *TraversalContext, item models.SeedItem) (*models.AuthorRecord, error) {
	start := o.opts.Now()
	outcome := models.IdentifierOutcome{
		ID:     item.ID,
		Depth:  item.Depth,
		Parent: item.Parent,
	}
	ids := []string{item.ID}
	tc.Queue.SetState(item.ID, models.StateInProgress)
	tc.Stats.AuthorsVisited++

	ctx = utils.WithFields(ctx, map[string]interface{}{
		"author": item.ID,
		"depth":  item.Depth,
	})
	logger := zerolog.Ctx(ctx)

	finish := func(state models.VisitState, err error) {
		for _, id := range ids {
			tc.Queue.SetState(id, state)
		}
		outcome.State = state
		outcome.Duration = o.opts.Now().Sub(start).Seconds()
		if err != nil {
			outcome.Reason = err.Error()
			tc.Stats.AuthorsFailed++
			logger.Warn().Err(err).Msg("❌ 作者处理失败")
		} else {
			tc.Stats.AuthorsDone++
		}
		tc.Outcomes = append(tc.Outcomes, outcome)
	}

	author, err := o.source.ResolveAuthor(ctx, item.ID)
	if err != nil {
		err = fmt.Errorf("解析作者失败: %w", err)
		finish(models.StateFailed, err)
		return nil, err
	}
	author.Seal()
	outcome.Name = author.DisplayName()

	// 按姓名入口解析出的标识可能已经处理过
	if author.ID != "" && author.ID != item.ID {
		if tc.Queue.IsVisited(author.ID) {
			outcome.Reason = fmt.Sprintf("与已处理作者 %s 相同", author.ID)
			finish(models.StateDone, nil)
			logger.Info().Str("resolved", author.ID).Msg("作者已处理,跳过")
			return nil, nil
		}
		tc.Queue.SetState(author.ID, models.StateInProgress)
		ids = append(ids, author.ID)
	}

	handles, err := o.source.ListPublications(ctx, author.ID)
	if err != nil {
		err = fmt.Errorf("获取出版物列表失败: %w", err)
		finish(models.StateFailed, err)
		return nil, err
	}
	tc.Stats.PublicationsListed += len(handles)
	if limit := o.opts.Traversal.MaxPublications; limit > 0 && len(handles) > limit {
		handles = handles[:limit]
	}
	logger.Info().Msgf("📚 %s: 发现 %d 篇出版物", outcome.Name, len(handles))

	records, stats, err := o.fetchAll(ctx, author, handles)
	if err != nil {
		err = fmt.Errorf("抓取出版物详情失败: %w", err)
		finish(models.StateFailed, err)
		return nil, err
	}

	tc.Records = append(tc.Records, records...)
	tc.Stats.PublicationsFetched += stats.PublicationsFetched
	tc.Stats.MissingFields += stats.MissingFields
	tc.Stats.JournalsMatched += stats.JournalsMatched
	tc.Stats.JournalsUnmatched += stats.JournalsUnmatched
	outcome.Publications = len(records)
	finish(models.StateDone, nil)

	logger.Info().Msgf("✅ %s: 完成 %d 篇出版物", outcome.Name, len(records))
	return author, nil
}

// fetchAll 按发现顺序抓取详情并关联期刊
func (o *Orchestrator) fetchAll(ctx context.Context, author *models.AuthorRecord, handles []models.PublicationHandle) ([]models.EnrichedPublication, models.RunStats, error) {
	var stats models.RunStats
	records := make([]models.EnrichedPublication, 0, len(handles))
	meta := EnrichMeta{
		Source: o.source.Name(),
		RunID:  o.opts.RunID,
	}

	var bar interface{ Add(int) error }
	if o.opts.Progress && len(handles) > 0 {
		pb := utils.NewProgressBar(len(handles), fmt.Sprintf("📄 %s", author.DisplayName()))
		defer pb.Finish()
		bar = pb
	}

	for _, h := range handles {
		pub, err := o.source.FetchPublicationDetail(ctx, h)
		if err != nil {
			return nil, stats, err
		}
		pub.Seal()

		meta.ExtractedAt = o.opts.Now().UTC()
		enriched := o.resolver.Enrich(ctx, author, pub, meta)
		records = append(records, enriched)

		stats.PublicationsFetched++
		stats.MissingFields += pub.MissingCount()
		if enriched.Matched {
			stats.JournalsMatched++
		} else {
			stats.JournalsUnmatched++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return records, stats, nil
}

// expand 将合作者加入队列,最多FanOut个
func (o *Orchestrator) expand(ctx context.Context, tc *TraversalContext, item models.SeedItem, author *models.AuthorRecord) {
	next := item.Depth + 1
	if next > o.opts.Traversal.MaxDepth || o.opts.Traversal.FanOut <= 0 {
		return
	}

	added := 0
	for _, co := range author.CoAuthorIDs {
		if added >= o.opts.Traversal.FanOut {
			break
		}
		if err := tc.Queue.Push(models.SeedItem{ID: co, Depth: next, Parent: author.ID}); err != nil {
			continue
		}
		added++
	}
	if added > 0 {
		zerolog.Ctx(ctx).Debug().
			Str("author", author.ID).
			Int("added", added).
			Int("depth", next).
			Msg("合作者已入队")
	}
}

// saveCheckpoint 写入检查点
func (o *Orchestrator) saveCheckpoint(ctx context.Context, tc *TraversalContext) {
	if o.opts.CheckpointPath == "" {
		return
	}

	pending := make([]models.SeedCheckpoint, 0, tc.Queue.PendingCount()+1)
	if tc.interrupted != nil {
		pending = append(pending, models.SeedCheckpoint{ID: tc.interrupted.ID, Depth: tc.interrupted.Depth})
	}
	for _, p := range tc.Queue.Pending() {
		pending = append(pending, models.SeedCheckpoint{ID: p.ID, Depth: p.Depth})
	}

	failed := tc.Queue.Identifiers(models.StateFailed)
	if tc.interrupted != nil {
		failed = removeID(failed, tc.interrupted.ID)
	}

	cp := &models.Checkpoint{
		RunID:     o.opts.RunID,
		Source:    o.source.Name(),
		Done:      tc.Queue.Identifiers(models.StateDone),
		Failed:    failed,
		Pending:   pending,
		Stats:     tc.Stats,
		CreatedAt: tc.createdAt,
		UpdatedAt: o.opts.Now(),
		Traversal: o.opts.Traversal,
	}
	if err := cp.SaveToFile(o.opts.CheckpointPath); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", o.opts.CheckpointPath).Msg("⚠️  保存检查点失败")
	}
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
