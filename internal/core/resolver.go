package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// JournalLookup 按ISSN查询期刊指标
type JournalLookup interface {
	LookupJournalMetrics(ctx context.Context, issn string) models.JournalMetrics
}

// ResolverStats 关联统计
type ResolverStats struct {
	Lookups   int // 实际发起的查询
	CacheHits int // 命中缓存
	Matched   int // 找到期刊指标
	Unmatched int // 未找到期刊指标
	Failures  int // 查询失败(不缓存,下次重新查询)
}

// Resolver 出版物与期刊指标的关联器
// 以规范化ISSN为键缓存查询结果;只缓存成功结果与确认未收录,查询失败的ISSN下次重新查询
type Resolver struct {
	lookup       JournalLookup
	byName       crawlers.JournalNameLookup
	nameFallback bool

	cache map[string]models.JournalMetrics // ISSN -> 指标
	names map[string]models.JournalMetrics // 规范化期刊名 -> 指标
	stats ResolverStats
	mu    sync.Mutex
}

// NewResolver 创建关联器
// lookup实现了JournalNameLookup且nameFallback为true时,无ISSN的出版物按期刊名称查询
func NewResolver(lookup JournalLookup, nameFallback bool) *Resolver {
	r := &Resolver{
		lookup:       lookup,
		nameFallback: nameFallback,
		cache:        make(map[string]models.JournalMetrics),
		names:        make(map[string]models.JournalMetrics),
	}
	if byName, ok := lookup.(crawlers.JournalNameLookup); ok {
		r.byName = byName
	}
	return r
}

// EnrichMeta 合并记录的运行信息
type EnrichMeta struct {
	Source      models.SourceName
	RunID       string
	ExtractedAt time.Time
}

// Enrich 将作者、出版物与期刊指标合并为一条记录
// 永远不会失败: 查询不到时使用占位指标,Matched为false
func (r *Resolver) Enrich(ctx context.Context, author *models.AuthorRecord, pub *models.PublicationRecord, meta EnrichMeta) models.EnrichedPublication {
	rawISSN, _ := pub.ISSN.Get()
	metrics := r.Resolve(ctx, rawISSN, pub.JournalName)

	matched := metrics.HasAny()
	r.mu.Lock()
	if matched {
		r.stats.Matched++
	} else {
		r.stats.Unmatched++
	}
	r.mu.Unlock()

	return models.EnrichedPublication{
		Author:      *author,
		Publication: *pub,
		Journal:     metrics,
		JoinISSN:    rawISSN,
		Matched:     matched,
		Source:      meta.Source,
		RunID:       meta.RunID,
		ExtractedAt: meta.ExtractedAt,
	}
}

// Resolve 按ISSN查询期刊指标,ISSN无效时视配置按期刊名称查询
func (r *Resolver) Resolve(ctx context.Context, rawISSN string, journalName models.Field[string]) models.JournalMetrics {
	if issn, ok := extract.ISSN(rawISSN); ok {
		return r.resolveISSN(ctx, issn)
	}

	name, ok := journalName.Get()
	if ok && r.nameFallback && r.byName != nil {
		if key := normalizeJournalName(name); key != "" {
			return r.resolveName(ctx, key, name)
		}
	}
	return models.PlaceholderMetrics(strings.TrimSpace(rawISSN))
}

func (r *Resolver) resolveISSN(ctx context.Context, issn string) models.JournalMetrics {
	r.mu.Lock()
	if m, ok := r.cache[issn]; ok {
		r.stats.CacheHits++
		r.mu.Unlock()
		return m
	}
	r.mu.Unlock()

	m, ok := r.fetchISSN(ctx, issn)
	m.ISSN = issn

	r.mu.Lock()
	r.stats.Lookups++
	if ok {
		r.cache[issn] = m
	} else {
		r.stats.Failures++
	}
	r.mu.Unlock()

	zerolog.Ctx(ctx).Debug().
		Str("issn", issn).
		Bool("matched", m.HasAny()).
		Msg("期刊指标查询完成")
	return m
}

func (r *Resolver) resolveName(ctx context.Context, key, name string) models.JournalMetrics {
	r.mu.Lock()
	if m, ok := r.names[key]; ok {
		r.stats.CacheHits++
		r.mu.Unlock()
		return m
	}
	r.mu.Unlock()

	m, ok := r.fetchName(ctx, name)

	r.mu.Lock()
	r.stats.Lookups++
	if !ok {
		r.stats.Failures++
	} else {
		r.names[key] = m
		// 结果仍以页面报告的ISSN为键
		if issn, ok := extract.ISSN(m.ISSN); ok && m.HasAny() {
			if _, exists := r.cache[issn]; !exists {
				r.cache[issn] = m
			}
		}
	}
	r.mu.Unlock()

	zerolog.Ctx(ctx).Debug().
		Str("journal", name).
		Str("issn", m.ISSN).
		Bool("matched", m.HasAny()).
		Msg("按期刊名称查询完成")
	return m
}

// fetchISSN 查询期刊指标,第二个返回值表示结果可以缓存
func (r *Resolver) fetchISSN(ctx context.Context, issn string) (models.JournalMetrics, bool) {
	fetcher, ok := r.lookup.(crawlers.JournalFetcher)
	if !ok {
		m := r.lookup.LookupJournalMetrics(ctx, issn)
		return m, ctx.Err() == nil
	}
	m, err := fetcher.FetchJournalMetrics(ctx, issn)
	if !cacheable(ctx, err) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("issn", issn).Msg("⚠️  期刊查询失败,本次按未匹配处理")
		return models.PlaceholderMetrics(issn), false
	}
	return m, true
}

func (r *Resolver) fetchName(ctx context.Context, name string) (models.JournalMetrics, bool) {
	fetcher, ok := r.byName.(crawlers.JournalNameFetcher)
	if !ok {
		m := r.byName.LookupJournalByName(ctx, name)
		return m, ctx.Err() == nil
	}
	m, err := fetcher.FetchJournalByName(ctx, name)
	if !cacheable(ctx, err) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("journal", name).Msg("⚠️  按名称查询期刊失败,本次按未匹配处理")
		return models.PlaceholderMetrics(""), false
	}
	return m, true
}

// cacheable 成功或确认未收录的结果可以缓存;取消与会话、加载失败不缓存
func cacheable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return err == nil || errors.Is(err, crawlers.ErrNotFound)
}

// Stats 返回关联统计
func (r *Resolver) Stats() ResolverStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func normalizeJournalName(name string) string {
	return strings.ToLower(extract.Clean(name))
}
