package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// DefaultWoSURL 引文索引站点
const DefaultWoSURL = "https://www.webofscience.com"

// 作者档案选择器
const (
	wosEmail          = "#email"
	wosPassword       = "#password"
	wosNotFoundMarker = "authorNotFound"
	wosName           = ".wat-author-name"
	wosMoreDetails    = ".more-details"
	wosCoAuthors      = ".authors-list-link"
	wosMetricLabel    = ".wat-author-metric-descriptor"
	wosArticleLink    = "a.title"
	wosNextPage       = "button[data-ta='next-page-button']"
	wosNextDisabled   = "button[data-ta='next-page-button'].mat-button-disabled"
)

// 文档详情选择器
const (
	wosTitle      = ".title"
	wosAuthors    = "a[id^='SumAuthTa-DisplayName-author-en-']"
	wosKeywords   = "a[id^='FRkeywordsTa-keyWordsPlusLink-']"
	wosAuthorKW   = "a[id^='FRkeywordsTa-authorKeywordLink-']"
	wosCitations  = ".citation-count"
	wosDOI        = "#FullRTa-DOI"
	wosAbstract   = "#FullRTa-abstract-basic"
	wosDocType    = "#FullRTa-doctype-0"
	wosISSNValues = ".value.section-label-data.text-color"
	wosVolume     = "#FullRTa-volume"
	wosIssue      = "#FullRTa-issue"
	wosPages      = "#FullRTa-pageNo"
	wosPublisher  = "#FullRTa-publisher"
)

var (
	wosDate    = []string{"#FullRTa-pubdate", "#FullRTa-earlyAccess"}
	wosJournal = []string{".summary-source-title-link", ".summary-source-title"}
)

// WoS 引文索引适配器,配置凭据时首次访问前登录
type WoS struct {
	base
	credentials Credentials

	loginOnce sync.Once
	loginErr  error
}

// NewWoS 创建适配器
func NewWoS(session Session, journals *SJR, opts Options) *WoS {
	return &WoS{
		base:        newBase(session, journals, opts, DefaultWoSURL),
		credentials: opts.Credentials,
	}
}

// Name 数据源名称
func (w *WoS) Name() models.SourceName { return models.SourceWoS }

func (w *WoS) recordURL(id string) string {
	return fmt.Sprintf("%s/wos/author/record/%s", w.baseURL, url.PathEscape(id))
}

// ensureLogin 只登录一次,未配置凭据时跳过
func (w *WoS) ensureLogin(ctx context.Context) error {
	w.loginOnce.Do(func() {
		if !w.credentials.Configured() {
			utils.Debugf("未配置WoS凭据,以匿名方式访问")
			return
		}
		w.loginErr = w.login(ctx)
	})
	return w.loginErr
}

func (w *WoS) login(ctx context.Context) error {
	if err := open(ctx, w.session, w.baseURL+"/"); err != nil {
		return err
	}
	found, err := w.waitExists(ctx, w.session.Reload, wosEmail)
	if err != nil {
		return err
	}
	if !found {
		utils.Warnf("⚠️ 未找到登录表单,以匿名方式继续")
		return nil
	}

	if err := w.session.Type(ctx, wosEmail, w.credentials.Email); err != nil {
		return fmt.Errorf("输入邮箱失败: %w", err)
	}
	if err := w.session.Type(ctx, wosPassword, w.credentials.Password); err != nil {
		return fmt.Errorf("输入密码失败: %w", err)
	}
	err = w.session.Submit(ctx, wosPassword)
	if errors.Is(err, ErrUnsupported) {
		utils.Warnf("⚠️ 当前会话模式不支持登录,以匿名方式继续")
		return nil
	}
	if err != nil && !errors.Is(err, retry.ErrTransientLoad) {
		return fmt.Errorf("提交登录表单失败: %w", err)
	}
	utils.Infof("🔑 WoS登录完成")
	return nil
}

// openRecord 打开作者档案,重定向到authorNotFound时返回ErrNotFound
func (w *WoS) openRecord(ctx context.Context, id string) error {
	if err := w.ensureLogin(ctx); err != nil {
		return err
	}
	if err := open(ctx, w.session, w.recordURL(id)); err != nil {
		return err
	}
	current, err := w.session.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(current, wosNotFoundMarker) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ResolveAuthor 读取作者档案页
func (w *WoS) ResolveAuthor(ctx context.Context, identifier string) (*models.AuthorRecord, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return nil, fmt.Errorf("%w: 空标识", ErrNotFound)
	}
	if err := w.openRecord(ctx, id); err != nil {
		return nil, err
	}

	name, ok, err := w.waitText(ctx, w.session.Reload, wosName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	raw := extract.RawRecord{extract.KeyName: name}
	if err := w.collect(ctx, raw, extract.KeyAffiliation, wosMoreDetails); err != nil {
		return nil, err
	}

	html, err := w.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if err := wosMetrics(html, raw); err != nil {
		return nil, err
	}

	author := extract.BuildAuthor(id, models.SourceWoS, raw)
	author.URL = w.recordURL(id)

	hrefs, err := w.session.Attrs(ctx, wosCoAuthors, "href")
	if err != nil {
		return nil, err
	}
	names, err := w.session.Texts(ctx, wosCoAuthors)
	if err != nil {
		return nil, err
	}
	author.CoAuthorIDs, author.CoAuthorNames = coAuthorList(id, hrefs, names, extract.LastPathSegment)

	utils.Debugf("WoS作者: %s (%s), 合作者%d位", author.DisplayName(), id, len(author.CoAuthorIDs))
	return &author, nil
}

// wosMetrics 指标值位于描述元素前面的兄弟节点
func wosMetrics(html string, raw extract.RawRecord) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("解析作者页失败: %w", err)
	}
	doc.Find(wosMetricLabel).Each(func(_ int, sel *goquery.Selection) {
		value := extract.Clean(sel.PrevAll().Filter("div").First().Text())
		switch extract.Clean(sel.Text()) {
		case "H-Index":
			raw.Set(extract.KeyHIndex, value)
		case "Sum of Times Cited":
			raw.Set(extract.KeyCitations, value)
		}
	})
	return nil
}

// ListPublications 逐页点击"下一页"收集文档链接
// 测量值为已收集的不重复链接数,翻页后不再增加时停止
func (w *WoS) ListPublications(ctx context.Context, authorID string) ([]models.PublicationHandle, error) {
	if err := w.openRecord(ctx, authorID); err != nil {
		return nil, err
	}
	found, err := w.waitExists(ctx, w.session.Reload, wosArticleLink)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var hrefs, titles []string
	seen := make(map[string]bool)
	collectPage := func(ctx context.Context) error {
		links, err := w.session.Attrs(ctx, wosArticleLink, "href")
		if err != nil {
			return err
		}
		texts, err := w.session.Texts(ctx, wosArticleLink)
		if err != nil {
			return err
		}
		for i, href := range links {
			if href == "" || seen[href] {
				continue
			}
			seen[href] = true
			hrefs = append(hrefs, href)
			title := ""
			if i < len(texts) {
				title = texts[i]
			}
			titles = append(titles, title)
		}
		return nil
	}
	if err := collectPage(ctx); err != nil {
		return nil, err
	}

	res, err := retry.Paginate(ctx, w.policy, retry.PagerFuncs{
		MeasureFunc: func(ctx context.Context) (int, error) {
			if err := collectPage(ctx); err != nil {
				return len(hrefs), err
			}
			return len(hrefs), nil
		},
		HasMoreFunc: func(ctx context.Context) (bool, error) {
			has, err := w.session.Exists(ctx, wosNextPage)
			if err != nil || !has {
				return false, err
			}
			disabled, err := w.session.Exists(ctx, wosNextDisabled)
			return !disabled, err
		},
		LoadMoreFunc: func(ctx context.Context) error {
			_, err := w.session.Click(ctx, wosNextPage)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	utils.Debugf("WoS文档列表分页结束: %d条, 翻页%d次 (%s)", res.Signal, res.Triggers, res.Reason)

	return buildHandles(models.SourceWoS, hrefs, titles), nil
}

// FetchPublicationDetail 读取全记录页
func (w *WoS) FetchPublicationDetail(ctx context.Context, handle models.PublicationHandle) (*models.PublicationRecord, error) {
	if err := w.ensureLogin(ctx); err != nil {
		return nil, err
	}
	if err := open(ctx, w.session, handle.URL); err != nil {
		return nil, err
	}

	raw := extract.RawRecord{}
	title, ok, err := w.waitText(ctx, w.session.Reload, wosTitle)
	if err != nil {
		return nil, err
	}
	if ok {
		raw.Set(extract.KeyTitle, title)
	}

	authors, err := w.session.Texts(ctx, wosAuthors)
	if err != nil {
		return nil, err
	}
	if len(authors) > 0 {
		raw.Set(extract.KeyAuthors, strings.Join(authors, " ; "))
	}

	if err := w.collect(ctx, raw, extract.KeyYear, wosDate...); err != nil {
		return nil, err
	}
	journal, ok, err := firstText(ctx, w.session, wosJournal...)
	if err != nil {
		return nil, err
	}
	if ok {
		raw.Set(extract.KeyJournalName, strings.ReplaceAll(journal, "arrow_drop_down", ""))
	}

	var keywords []string
	for _, sel := range []string{wosKeywords, wosAuthorKW} {
		texts, err := w.session.Texts(ctx, sel)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, texts...)
	}
	if len(keywords) > 0 {
		raw.Set(extract.KeyKeywords, strings.Join(keywords, " ; "))
	}

	optional := []struct {
		key string
		sel string
	}{
		{extract.KeyCitations, wosCitations},
		{extract.KeyDOI, wosDOI},
		{extract.KeyAbstract, wosAbstract},
		{extract.KeyDocumentType, wosDocType},
		{extract.KeyVolume, wosVolume},
		{extract.KeyIssue, wosIssue},
		{extract.KeyPages, wosPages},
		{extract.KeyPublisher, wosPublisher},
	}
	for _, o := range optional {
		if err := w.collect(ctx, raw, o.key, o.sel); err != nil {
			return nil, err
		}
	}

	issn, err := w.issn(ctx)
	if err != nil {
		return nil, err
	}
	if issn != "" {
		raw.Set(extract.KeyISSN, issn)
	}

	rec := extract.BuildPublication(handle.URL, raw)
	return &rec, nil
}

// issn ISSN在页面底部延迟渲染,滚动后重试
func (w *WoS) issn(ctx context.Context) (string, error) {
	f, err := retry.Field(ctx, w.policy, func(ctx context.Context) (string, bool, error) {
		values, err := w.session.Texts(ctx, wosISSNValues)
		if err != nil {
			return "", false, err
		}
		for _, v := range values {
			if issn, ok := extract.ISSN(v); ok {
				return issn, true, nil
			}
		}
		return "", false, nil
	}, func(ctx context.Context) error {
		height, err := w.session.ScrollHeight(ctx)
		if err != nil {
			return err
		}
		return w.session.ScrollBy(ctx, height)
	})
	if err != nil {
		return "", err
	}
	return f.OrElse(""), nil
}
