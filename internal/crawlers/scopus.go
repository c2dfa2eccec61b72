package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// DefaultScopusURL 文献计量数据库站点
const DefaultScopusURL = "https://www.scopus.com"

// ScopusScrollStep 文档列表每次滚动的像素
const ScopusScrollStep = 800

// 作者档案与文档详情选择器
var (
	scopusName = []string{
		".Typography-module__lVnit.Typography-module__oFCaL",
		".author-name",
		".Typography-module__oFCaL",
	}
	scopusDocTitle = []string{
		".Typography-module__lVnit.Typography-module__o9yMJ.Typography-module__JqXS9.Typography-module__ETlt8",
		"[data-testid='document-title']",
		".document-title",
		"h1",
	}
	scopusAbstract = []string{
		".Typography-module__lVnit.Typography-module__ETlt8.Typography-module__GK8Sg",
		"[data-testid='abstract']",
		".abstract-content",
		".abstract-text",
		".document-abstract",
	}
	scopusJournal = []string{
		"[data-testid='publication-source-title']",
		"[data-testid='source-title']",
	}
	scopusKeywords = []string{
		"[data-testid='author-keywords'] span",
		"[data-testid='keywords'] span",
	}
)

const (
	scopusAffiliation = ".AuthorHeader-module__DRxsE .Typography-module__lVnit.Typography-module__Nfgvc"
	scopusMetrics     = ".MetricSection-module__s8lWB"
	scopusFWCI        = "#metrics-panel"
	scopusCoAuthorBox = "tr.searchArea input[type='checkbox'][id^='auid_']"
	scopusCoAuthorRow = "tr.searchArea"
	scopusCoAuthorNm  = "tr.searchArea td.authorResultsNamesCol a"
	scopusResultItem  = "li[data-testid='results-list-item']"
	scopusResultLink  = "li[data-testid='results-list-item'] a[href^='/record/display.uri']"
	scopusHeader      = ".DocumentHeader-module__LpsWx"
	scopusAuthorList  = "[data-testid='author-list'] span"
)

// scopusSourceInfo 来源信息列表中dl的data-testid后缀与规范字段
var scopusSourceInfo = []struct {
	slug string
	key  string
}{
	{"document-type", extract.KeyDocumentType},
	{"source-type", extract.KeySourceType},
	{"issn", extract.KeyISSN},
	{"doi", extract.KeyDOI},
	{"publisher", extract.KeyPublisher},
}

// scopusAuthorID 作者标识为纯数字
var scopusAuthorID = regexp.MustCompile(`^\d{5,}$`)

// Scopus 文献计量数据库适配器
type Scopus struct {
	base
}

// NewScopus 创建适配器
func NewScopus(session Session, journals *SJR, opts Options) *Scopus {
	return &Scopus{base: newBase(session, journals, opts, DefaultScopusURL)}
}

// Name 数据源名称
func (s *Scopus) Name() models.SourceName { return models.SourceScopus }

func (s *Scopus) profileURL(id string) string {
	return fmt.Sprintf("%s/authid/detail.uri?authorId=%s", s.baseURL, url.QueryEscape(id))
}

func (s *Scopus) coAuthorURL(id string) string {
	return fmt.Sprintf("%s/search/submit/coAuthorSearch.uri?authorId=%s&origin=AuthorProfile&sot=al&sdt=coaut&zone=coAuthorsTab",
		s.baseURL, url.QueryEscape(id))
}

// ResolveAuthor 读取作者指标页,再打开合作者检索页
func (s *Scopus) ResolveAuthor(ctx context.Context, identifier string) (*models.AuthorRecord, error) {
	id := strings.TrimSpace(identifier)
	if !scopusAuthorID.MatchString(id) {
		return nil, fmt.Errorf("%w: 无效的作者标识 %q", ErrNotFound, identifier)
	}

	if err := open(ctx, s.session, s.profileURL(id)+"#tab=metrics"); err != nil {
		return nil, err
	}
	name, ok, err := s.waitText(ctx, s.session.Reload, scopusName...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	raw := extract.RawRecord{extract.KeyName: name}

	// 机构取头部最后一个文本块
	affiliations, err := s.session.Texts(ctx, scopusAffiliation)
	if err != nil {
		return nil, err
	}
	if len(affiliations) > 0 {
		raw.Set(extract.KeyAffiliation, affiliations[len(affiliations)-1])
	}

	blocks, err := s.session.Texts(ctx, scopusMetrics)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		raw.Set(extract.KeyMetricsBlock, strings.Join(blocks, "\n"))
	}
	if err := s.collect(ctx, raw, extract.KeyFWCI, scopusFWCI); err != nil {
		return nil, err
	}

	author := extract.BuildAuthor(id, models.SourceScopus, raw)
	author.URL = s.profileURL(id)

	if err := s.coAuthors(ctx, &author); err != nil {
		return nil, err
	}

	utils.Debugf("Scopus作者: %s (%s), 合作者%d位", author.DisplayName(), id, len(author.CoAuthorIDs))
	return &author, nil
}

// coAuthors 合作者检索页,标识取自复选框的value
func (s *Scopus) coAuthors(ctx context.Context, author *models.AuthorRecord) error {
	if err := open(ctx, s.session, s.coAuthorURL(author.ID)); err != nil {
		return err
	}
	found, err := s.waitExists(ctx, s.session.Reload, scopusCoAuthorRow)
	if err != nil {
		return err
	}
	if !found {
		utils.Debugf("作者 %s 没有合作者", author.ID)
		return nil
	}

	ids, err := s.session.Attrs(ctx, scopusCoAuthorBox, "value")
	if err != nil {
		return err
	}
	names, err := s.session.Texts(ctx, scopusCoAuthorNm)
	if err != nil {
		return err
	}

	author.CoAuthorIDs, author.CoAuthorNames = coAuthorList(author.ID, ids, names, strings.TrimSpace)
	return nil
}

// ListPublications 滚动档案页直到位置不再变化,再收集文档链接
func (s *Scopus) ListPublications(ctx context.Context, authorID string) ([]models.PublicationHandle, error) {
	if err := open(ctx, s.session, s.profileURL(authorID)); err != nil {
		return nil, err
	}
	if err := s.scrollToEnd(ctx, ScopusScrollStep); err != nil {
		return nil, err
	}

	found, err := s.waitExists(ctx, s.session.Reload, scopusResultItem)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	hrefs, err := s.session.Attrs(ctx, scopusResultLink, "href")
	if err != nil {
		return nil, err
	}
	titles, err := s.session.Texts(ctx, scopusResultLink)
	if err != nil {
		return nil, err
	}
	utils.Debugf("Scopus文档列表: %d条", len(hrefs))
	return buildHandles(models.SourceScopus, hrefs, titles), nil
}

// FetchPublicationDetail 读取文档详情页
func (s *Scopus) FetchPublicationDetail(ctx context.Context, handle models.PublicationHandle) (*models.PublicationRecord, error) {
	if err := open(ctx, s.session, handle.URL); err != nil {
		return nil, err
	}

	raw := extract.RawRecord{}
	title, ok, err := s.waitText(ctx, s.session.Reload, scopusDocTitle...)
	if err != nil {
		return nil, err
	}
	if ok {
		raw.Set(extract.KeyTitle, title)
	}

	for _, info := range scopusSourceInfo {
		sel := fmt.Sprintf("dl[data-testid='source-info-entry-%s'] dd", info.slug)
		if err := s.collect(ctx, raw, info.key, sel); err != nil {
			return nil, err
		}
	}
	if err := s.collect(ctx, raw, extract.KeyAbstract, scopusAbstract...); err != nil {
		return nil, err
	}
	if err := s.collect(ctx, raw, extract.KeyJournalName, scopusJournal...); err != nil {
		return nil, err
	}
	keywords, err := firstTexts(ctx, s.session, scopusKeywords...)
	if err != nil {
		return nil, err
	}
	if len(keywords) > 0 {
		raw.Set(extract.KeyKeywords, strings.Join(keywords, "; "))
	}

	html, err := s.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析文档页失败: %w", err)
	}
	scopusHeaderFields(doc, raw)

	rec := extract.BuildPublication(handle.URL, raw)
	return &rec, nil
}

// scopusHeaderFields 年份、被引次数与作者只能按文本内容定位
func scopusHeaderFields(doc *goquery.Document, raw extract.RawRecord) {
	doc.Find("span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := extract.Clean(sel.Text())
		if _, ok := extract.Year(text); ok && strings.Contains(text, "20") {
			raw.Set(extract.KeyYear, text)
			return false
		}
		return true
	})

	if span := doc.Find("span:contains('Citations')").First(); span.Length() > 0 {
		if n, ok := extract.FirstInt(span.Text()); ok {
			raw.Set(extract.KeyCitations, fmt.Sprint(n))
		}
	}

	var authors []string
	headers := doc.Find(scopusHeader)
	if headers.Length() > 1 {
		headers.Eq(1).Find("li").Each(func(_ int, li *goquery.Selection) {
			if name := extract.Clean(li.Find("span").First().Text()); name != "" {
				authors = append(authors, name)
			}
		})
	} else {
		doc.Find(scopusAuthorList).Each(func(_ int, span *goquery.Selection) {
			if name := extract.Clean(span.Text()); name != "" {
				authors = append(authors, name)
			}
		})
	}
	if len(authors) > 0 {
		raw.Set(extract.KeyAuthors, strings.Join(authors, "; "))
	}
}
