package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// DefaultScholarURL 学者档案站点
const DefaultScholarURL = "https://scholar.google.com"

// 学者档案页选择器
const (
	scholarSearchResult = "h4.gs_rt2 a"
	scholarName         = "#gsc_prf_in"
	scholarAffiliation  = ".gsc_prf_il"
	scholarInterests    = "a.gsc_prf_inta"
	scholarStatLabels   = "#gsc_rsb_st tbody tr td.gsc_rsb_sc1"
	scholarStatValues   = "#gsc_rsb_st tbody tr td.gsc_rsb_std"
	scholarCoAuthors    = "ul.gsc_rsb_a li .gsc_rsb_a_desc a"
	scholarCoAuthorsAlt = "ul.gsc_rsb_a li a"
	scholarRows         = "tr.gsc_a_tr"
	scholarRowTitle     = "tr.gsc_a_tr a.gsc_a_at"
	scholarMore         = "#gsc_bpf_more"
	scholarMoreDisabled = "#gsc_bpf_more[disabled]"
	scholarDetailTitle  = "#gsc_oci_title"
	scholarDetailFields = "#gsc_oci_table .gsc_oci_field"
	scholarDetailValues = "#gsc_oci_table .gsc_oci_value"
)

// scholarUserID 档案标识(12位),其他输入按姓名搜索
var scholarUserID = regexp.MustCompile(`^[A-Za-z0-9_-]{12}$`)

// Scholar 学者档案站点适配器
// 详情页没有ISSN,DOI通过CrossRef按标题查询
type Scholar struct {
	base
	crossref *CrossRef
}

// NewScholar 创建适配器
func NewScholar(session Session, journals *SJR, opts Options) *Scholar {
	return &Scholar{
		base:     newBase(session, journals, opts, DefaultScholarURL),
		crossref: opts.CrossRef,
	}
}

// Name 数据源名称
func (s *Scholar) Name() models.SourceName { return models.SourceScholar }

func (s *Scholar) profileURL(id string) string {
	return fmt.Sprintf("%s/citations?user=%s&hl=en", s.baseURL, url.QueryEscape(id))
}

// ResolveAuthor 档案标识直接打开,姓名先搜索再打开第一个档案
func (s *Scholar) ResolveAuthor(ctx context.Context, identifier string) (*models.AuthorRecord, error) {
	identifier = strings.TrimSpace(identifier)

	target := s.profileURL(identifier)
	if !scholarUserID.MatchString(identifier) {
		search := fmt.Sprintf("%s/scholar?q=%s&hl=en", s.baseURL, url.QueryEscape(identifier))
		if err := open(ctx, s.session, search); err != nil {
			return nil, err
		}
		link, err := retry.Field(ctx, s.policy, func(ctx context.Context) (string, bool, error) {
			return s.session.Attr(ctx, scholarSearchResult, "href")
		}, s.session.Reload)
		if err != nil {
			return nil, err
		}
		href, ok := link.Get()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
		}
		target = href
	}

	if err := open(ctx, s.session, target); err != nil {
		return nil, err
	}
	name, ok, err := s.waitText(ctx, s.session.Reload, scholarName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}

	id := identifier
	if current, err := s.session.CurrentURL(ctx); err == nil {
		if user := extract.QueryParam(current, "user"); user != "" {
			id = user
		}
	}

	raw := extract.RawRecord{extract.KeyName: name}
	if err := s.collect(ctx, raw, extract.KeyAffiliation, scholarAffiliation); err != nil {
		return nil, err
	}
	interests, err := s.session.Texts(ctx, scholarInterests)
	if err != nil {
		return nil, err
	}
	if len(interests) > 0 {
		raw.Set(extract.KeyInterests, strings.Join(interests, "; "))
	}
	if err := s.citationTable(ctx, raw); err != nil {
		return nil, err
	}

	author := extract.BuildAuthor(id, models.SourceScholar, raw)
	author.URL = s.profileURL(id)
	if err := s.coAuthors(ctx, &author); err != nil {
		return nil, err
	}

	utils.Debugf("学者档案: %s (%s), 合作者%d位", author.DisplayName(), id, len(author.CoAuthorIDs))
	return &author, nil
}

// citationTable 引用统计表: 每行一个指标,第一列为全部年份
func (s *Scholar) citationTable(ctx context.Context, raw extract.RawRecord) error {
	labels, err := s.session.Texts(ctx, scholarStatLabels)
	if err != nil {
		return err
	}
	values, err := s.session.Texts(ctx, scholarStatValues)
	if err != nil {
		return err
	}

	for i, label := range labels {
		idx := i * 2
		if idx >= len(values) {
			break
		}
		l := strings.ToLower(extract.Clean(label))
		switch {
		case strings.Contains(l, "citation"):
			raw.Set(extract.KeyCitations, values[idx])
		case strings.Contains(l, "h-index"), strings.Contains(l, "indice h"):
			raw.Set(extract.KeyHIndex, values[idx])
		}
	}
	return nil
}

// coAuthors 合作者列表,标识取自档案链接的user参数
func (s *Scholar) coAuthors(ctx context.Context, author *models.AuthorRecord) error {
	selector := scholarCoAuthors
	n, err := s.session.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		selector = scholarCoAuthorsAlt
	}

	hrefs, err := s.session.Attrs(ctx, selector, "href")
	if err != nil {
		return err
	}
	names, err := s.session.Texts(ctx, selector)
	if err != nil {
		return err
	}

	author.CoAuthorIDs, author.CoAuthorNames = coAuthorList(author.ID, hrefs, names, func(href string) string {
		return extract.QueryParam(href, "user")
	})
	return nil
}

// ListPublications 点击"显示更多"直到行数不再增加
func (s *Scholar) ListPublications(ctx context.Context, authorID string) ([]models.PublicationHandle, error) {
	if err := open(ctx, s.session, s.profileURL(authorID)+"&cstart=0&pagesize=100"); err != nil {
		return nil, err
	}
	if _, err := s.waitExists(ctx, s.session.Reload, scholarRows); err != nil {
		return nil, err
	}

	res, err := retry.Paginate(ctx, s.policy, retry.PagerFuncs{
		MeasureFunc: func(ctx context.Context) (int, error) {
			return s.session.Count(ctx, scholarRows)
		},
		HasMoreFunc: func(ctx context.Context) (bool, error) {
			has, err := s.session.Exists(ctx, scholarMore)
			if err != nil || !has {
				return false, err
			}
			disabled, err := s.session.Exists(ctx, scholarMoreDisabled)
			return !disabled, err
		},
		LoadMoreFunc: func(ctx context.Context) error {
			_, err := s.session.Click(ctx, scholarMore)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	utils.Debugf("出版物列表分页结束: %d行, 触发%d次 (%s)", res.Signal, res.Triggers, res.Reason)

	hrefs, err := s.session.Attrs(ctx, scholarRowTitle, "href")
	if err != nil {
		return nil, err
	}
	titles, err := s.session.Texts(ctx, scholarRowTitle)
	if err != nil {
		return nil, err
	}
	return buildHandles(models.SourceScholar, hrefs, titles), nil
}

// FetchPublicationDetail 详情页标签/值表格,DOI由CrossRef补全
func (s *Scholar) FetchPublicationDetail(ctx context.Context, handle models.PublicationHandle) (*models.PublicationRecord, error) {
	if err := open(ctx, s.session, handle.URL); err != nil {
		return nil, err
	}

	title, ok, err := s.waitText(ctx, s.session.Reload, scholarDetailTitle)
	if err != nil {
		return nil, err
	}
	if !ok && handle.Title != "" {
		title, ok = handle.Title, true
	}

	fields, err := s.session.Texts(ctx, scholarDetailFields)
	if err != nil {
		return nil, err
	}
	values, err := s.session.Texts(ctx, scholarDetailValues)
	if err != nil {
		return nil, err
	}
	raw := extract.FromLabels(models.SourceScholar, zipPairs(fields, values))
	if ok {
		raw.Set(extract.KeyTitle, title)
	}

	if ok && s.crossref != nil {
		doi, found, err := s.crossref.DOIByTitle(ctx, title)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			utils.Warnf("⚠️ CrossRef查询失败 [%s]: %v", title, err)
		case found:
			raw.Set(extract.KeyDOI, doi)
		}
	}

	rec := extract.BuildPublication(handle.URL, raw)
	return &rec, nil
}

// zipPairs 标签与值按位置配对
func zipPairs(labels, values []string) [][2]string {
	n := len(labels)
	if len(values) < n {
		n = len(values)
	}
	pairs := make([][2]string, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, [2]string{labels[i], values[i]})
	}
	return pairs
}

// buildHandles 按页面顺序构造出版物引用,重复链接只保留第一次
func buildHandles(source models.SourceName, hrefs, titles []string) []models.PublicationHandle {
	seen := make(map[string]bool)
	handles := make([]models.PublicationHandle, 0, len(hrefs))
	for i, href := range hrefs {
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		h := models.PublicationHandle{Source: source, URL: href, Index: len(handles)}
		if i < len(titles) {
			h.Title = extract.Clean(titles[i])
		}
		handles = append(handles, h)
	}
	return handles
}
