package crawlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
)

// Source 单个学术数据源的适配器
// 字段缺失在记录内以NotFound表示;只有会话失效与标识无法解析作为错误返回
type Source interface {
	// Name 数据源名称
	Name() models.SourceName
	// ResolveAuthor 按标识或姓名解析作者,返回ErrNotFound或ErrSessionFailure
	ResolveAuthor(ctx context.Context, identifier string) (*models.AuthorRecord, error)
	// ListPublications 返回作者全部出版物引用(分页已完全加载)
	ListPublications(ctx context.Context, authorID string) ([]models.PublicationHandle, error)
	// FetchPublicationDetail 抓取出版物详情,返回的记录每个字段都已尝试
	FetchPublicationDetail(ctx context.Context, handle models.PublicationHandle) (*models.PublicationRecord, error)
	// LookupJournalMetrics 按ISSN查询期刊指标,失败时返回占位记录
	LookupJournalMetrics(ctx context.Context, issn string) models.JournalMetrics
	// Close 释放会话
	Close() error
}

// JournalNameLookup 支持按期刊名称查询的数据源
type JournalNameLookup interface {
	LookupJournalByName(ctx context.Context, name string) models.JournalMetrics
}

// JournalFetcher 区分"未收录"与查询失败的期刊查询
// 站点未收录时错误为ErrNotFound,其他错误表示本次查询失败
type JournalFetcher interface {
	FetchJournalMetrics(ctx context.Context, issn string) (models.JournalMetrics, error)
}

// JournalNameFetcher 按期刊名称查询,错误语义同JournalFetcher
type JournalNameFetcher interface {
	FetchJournalByName(ctx context.Context, name string) (models.JournalMetrics, error)
}

// SessionStats 报告会话重启次数
type SessionStats interface {
	Restarts() int
}

// Credentials 登录凭据
type Credentials struct {
	Email    string
	Password string
}

// Configured 是否配置了凭据
func (c Credentials) Configured() bool {
	return c.Email != "" && c.Password != ""
}

// Options 适配器选项
type Options struct {
	// BaseURL 数据源地址,为空时使用默认地址(机构代理时需要覆盖)
	BaseURL string
	// SJRBaseURL 期刊排名站点地址
	SJRBaseURL string
	// Policy 字段重试与分页策略
	Policy retry.Policy
	// Credentials 登录凭据(仅wos使用)
	Credentials Credentials
	// CrossRef DOI查询(仅scholar使用,为空时不查询)
	CrossRef *CrossRef
}

// NewSource 创建指定数据源的适配器
// 适配器持有会话,Close时释放
func NewSource(name models.SourceName, session Session, opts Options) (Source, error) {
	if session == nil {
		return nil, fmt.Errorf("会话为空")
	}
	journals := NewSJR(session, opts.SJRBaseURL, opts.Policy)

	switch name {
	case models.SourceScholar:
		return NewScholar(session, journals, opts), nil
	case models.SourceScopus:
		return NewScopus(session, journals, opts), nil
	case models.SourceWoS:
		return NewWoS(session, journals, opts), nil
	default:
		return nil, fmt.Errorf("不支持的数据源: %s", name)
	}
}

// base 各适配器共用的会话与期刊查询
type base struct {
	*SJR
	session Session
	policy  retry.Policy
	baseURL string
}

func newBase(session Session, journals *SJR, opts Options, defaultURL string) base {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultURL
	}
	return base{
		SJR:     journals,
		session: session,
		policy:  opts.Policy,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Restarts 会话重启次数
func (b *base) Restarts() int {
	return b.session.Restarts()
}

// Close 释放会话
func (b *base) Close() error {
	return b.session.Close()
}

// waitText 有界重试读取文本,多个选择器依次尝试
func (b *base) waitText(ctx context.Context, reload retry.Reload, selectors ...string) (string, bool, error) {
	f, err := retry.Field(ctx, b.policy, func(ctx context.Context) (string, bool, error) {
		return firstText(ctx, b.session, selectors...)
	}, reload)
	if err != nil {
		return "", false, err
	}
	v, ok := f.Get()
	return v, ok, nil
}

// waitExists 有界重试等待元素出现
func (b *base) waitExists(ctx context.Context, reload retry.Reload, selector string) (bool, error) {
	return retry.Do(ctx, b.policy, func(ctx context.Context) (bool, error) {
		return b.session.Exists(ctx, selector)
	}, reload)
}

// collect 读取可选字段到原始记录,元素不存在时不写入
func (b *base) collect(ctx context.Context, raw map[string]string, key string, selectors ...string) error {
	text, ok, err := firstText(ctx, b.session, selectors...)
	if err != nil {
		return err
	}
	if ok {
		raw[key] = text
	}
	return nil
}

// scrollToEnd 逐步滚动直到滚动位置不再变化
func (b *base) scrollToEnd(ctx context.Context, step int) error {
	_, err := retry.Paginate(ctx, b.policy, retry.PagerFuncs{
		MeasureFunc: b.session.ScrollOffset,
		LoadMoreFunc: func(ctx context.Context) error {
			return b.session.ScrollBy(ctx, step)
		},
	})
	return err
}

// coAuthorList 过滤合作者标识并按同一结果配对姓名
// 返回的两个切片等长;姓名与链接数量不一致时无法按位置配对,姓名留空
func coAuthorList(self string, links, names []string, parseID func(string) string) ([]string, []string) {
	paired := len(names) == len(links)
	seen := make(map[string]bool)
	var ids, outNames []string
	for i, link := range links {
		id := parseID(link)
		if id == "" || id == self || seen[id] {
			continue
		}
		seen[id] = true
		name := ""
		if paired {
			name = extract.Clean(names[i])
		}
		ids = append(ids, id)
		outNames = append(outNames, name)
	}
	return ids, outNames
}
