package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// DefaultSJRBaseURL 期刊排名站点
const DefaultSJRBaseURL = "https://www.scimagojr.com"

// SJR 期刊排名查询,与作者数据源共用同一个会话
type SJR struct {
	session Session
	baseURL string
	policy  retry.Policy
}

// NewSJR 创建期刊查询
func NewSJR(session Session, baseURL string, policy retry.Policy) *SJR {
	if baseURL == "" {
		baseURL = DefaultSJRBaseURL
	}
	return &SJR{session: session, baseURL: strings.TrimRight(baseURL, "/"), policy: policy}
}

// LookupJournalMetrics 按ISSN查询期刊指标
// 任何失败都返回占位记录,不返回错误
func (j *SJR) LookupJournalMetrics(ctx context.Context, issn string) models.JournalMetrics {
	m, err := j.FetchJournalMetrics(ctx, issn)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.Debugf("期刊未收录: %s", issn)
		} else {
			utils.Warnf("⚠️ 期刊查询失败 [%s]: %v", issn, err)
		}
	}
	return m
}

// FetchJournalMetrics 按ISSN查询期刊指标
// 失败时同时返回占位记录与错误,站点未收录时错误为ErrNotFound
func (j *SJR) FetchJournalMetrics(ctx context.Context, issn string) (models.JournalMetrics, error) {
	norm, ok := extract.ISSN(issn)
	if !ok {
		return models.PlaceholderMetrics(issn), fmt.Errorf("%w: 无效的ISSN %q", ErrNotFound, issn)
	}

	m, err := j.lookup(ctx, norm, norm)
	if err != nil {
		return models.PlaceholderMetrics(norm), err
	}
	return m, nil
}

// LookupJournalByName 按期刊名称查询,关联键为页面上的ISSN
func (j *SJR) LookupJournalByName(ctx context.Context, name string) models.JournalMetrics {
	m, err := j.FetchJournalByName(ctx, name)
	if err != nil {
		utils.Debugf("按名称查询期刊失败 [%s]: %v", name, err)
	}
	return m
}

// FetchJournalByName 按期刊名称查询,错误语义同FetchJournalMetrics
func (j *SJR) FetchJournalByName(ctx context.Context, name string) (models.JournalMetrics, error) {
	name = extract.Clean(name)
	if name == "" {
		return models.PlaceholderMetrics(""), fmt.Errorf("%w: 期刊名为空", ErrNotFound)
	}

	m, err := j.lookup(ctx, name, "")
	if err != nil {
		return models.PlaceholderMetrics(""), err
	}
	return m, nil
}

// lookup 搜索并解析第一个结果
func (j *SJR) lookup(ctx context.Context, query, issn string) (models.JournalMetrics, error) {
	searchURL := fmt.Sprintf("%s/journalsearch.php?q=%s", j.baseURL, url.QueryEscape(query))

	if err := open(ctx, j.session, searchURL); err != nil {
		return models.JournalMetrics{}, err
	}

	var results []extract.JournalSearchResult
	found, err := retry.Do(ctx, j.policy, func(ctx context.Context) (bool, error) {
		html, err := j.session.HTML(ctx)
		if err != nil {
			return false, err
		}
		results, err = extract.ParseJournalSearch(html)
		if err != nil {
			return false, err
		}
		return len(results) > 0, nil
	}, j.session.Reload)
	if err != nil {
		return models.JournalMetrics{}, err
	}
	if !found {
		return models.JournalMetrics{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	}

	first := results[0]
	if err := open(ctx, j.session, j.absolute(first.Href)); err != nil {
		return models.JournalMetrics{}, err
	}

	var m models.JournalMetrics
	_, err = retry.Do(ctx, j.policy, func(ctx context.Context) (bool, error) {
		html, err := j.session.HTML(ctx)
		if err != nil {
			return false, err
		}
		m, err = extract.ParseJournalPage(issn, html)
		if err != nil {
			return false, err
		}
		return m.HIndex.IsFound() || m.Quartile.IsFound(), nil
	}, j.session.Reload)
	if err != nil {
		return models.JournalMetrics{}, err
	}

	if !m.Name.IsFound() && first.Name != "" {
		m.Name = models.Found(first.Name)
	}
	return m, nil
}

// absolute 搜索结果中的相对链接转换为绝对地址
func (j *SJR) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(j.baseURL + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
