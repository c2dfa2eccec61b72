package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// JournalSearchResult 期刊排名站点搜索结果中的一项
type JournalSearchResult struct {
	Name string
	Href string
}

// ParseJournalSearch 解析期刊搜索结果页,按页面顺序返回
func ParseJournalSearch(html string) ([]JournalSearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析搜索结果失败: %w", err)
	}

	var results []JournalSearchResult
	doc.Find(".search_results a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		name := Clean(a.Find(".jrnlname").First().Text())
		if name == "" {
			name = Clean(a.Text())
		}
		results = append(results, JournalSearchResult{Name: name, Href: href})
	})
	return results, nil
}

// ParseJournalPage 解析期刊详情页
// issn为关联键;页面缺失的指标标记为缺失,不会返回部分未尝试的记录
func ParseJournalPage(issn, html string) (models.JournalMetrics, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.PlaceholderMetrics(issn), fmt.Errorf("解析期刊页面失败: %w", err)
	}

	m := models.JournalMetrics{ISSN: issn}
	m.Name = Text(firstText(doc.Find("h1")))
	m.HIndex = Int(firstText(doc.Find(".hindexnumber")))
	m.Publisher = Text(sectionText(doc, "Publisher"))
	m.Country = Text(sectionText(doc, "Country"))
	m.Scope = Text(scopeText(doc))

	if ul := sectionNext(doc, "Subject Area and Category", "ul"); ul.Length() > 0 {
		var areas []string
		ul.Children().Each(func(_ int, li *goquery.Selection) {
			label := li.Clone()
			label.Find("ul").Remove()
			if t := Clean(label.Text()); t != "" {
				areas = append(areas, t)
			}
		})
		m.SubjectAreas = models.FoundIf(areas, len(areas) > 0)
	}

	// 页面上的ISSN优先作为关联键(按名称查找时调用方不知道ISSN)
	if issn == "" {
		if text, ok := sectionText(doc, "ISSN"); ok {
			if found, ok := ISSN(text); ok {
				m.ISSN = found
			}
		}
	}

	dashboards := doc.Find("div.dashboard")
	m.Quartile = datedString(lastRow(dashboards.Eq(0).Find("div.cellslide").Eq(1)), 3)
	m.SJR = datedFloat(lastRow(dashboards.Eq(1).Find("div.cellslide").Eq(1)), 2)
	m.ImpactFactor = datedFloat(lastRow(dashboards.Eq(1).Find("div.cellslide").Eq(5)), 3)

	if !m.Quartile.IsFound() {
		m.Quartile = quartileFromTables(doc)
	}
	if !m.SJR.IsFound() {
		m.SJR = sjrFromTables(doc)
	}

	m.Seal()
	return m, nil
}

// firstText 返回第一个匹配元素的文本
func firstText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	return sel.First().Text(), true
}

// sectionHeading 查找文本等于title的h2
func sectionHeading(doc *goquery.Document, title string) *goquery.Selection {
	return doc.Find("h2").FilterFunction(func(_ int, h *goquery.Selection) bool {
		return strings.EqualFold(Clean(h.Text()), title)
	}).First()
}

// sectionNext 返回标题之后第一个指定标签的兄弟元素
func sectionNext(doc *goquery.Document, title, tag string) *goquery.Selection {
	h := sectionHeading(doc, title)
	if h.Length() == 0 {
		return h
	}
	return h.NextAllFiltered(tag).First()
}

// sectionText 标题后第一个段落的文本,段落内有链接时取第一个链接
func sectionText(doc *goquery.Document, title string) (string, bool) {
	p := sectionNext(doc, title, "p")
	if p.Length() == 0 {
		return "", false
	}
	if a := p.Find("a").First(); a.Length() > 0 && Clean(a.Text()) != "" {
		return a.Text(), true
	}
	return p.Text(), true
}

// scopeText 范围说明位于标题所在容器内
func scopeText(doc *goquery.Document) (string, bool) {
	h := sectionHeading(doc, "Scope")
	if h.Length() == 0 {
		return "", false
	}
	if div := h.NextAllFiltered("div").First(); div.Length() > 0 {
		return div.Text(), true
	}
	container := h.Parent().Clone()
	container.Find("h2").Remove()
	return container.Text(), true
}

// lastRow 返回表格最后一行的单元格文本
func lastRow(cell *goquery.Selection) []string {
	row := cell.Find("tbody tr").Last()
	var cols []string
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		cols = append(cols, Clean(td.Text()))
	})
	return cols
}

// datedString 三列表格(类别, 年份, 值)或两列表格(年份, 值)
func datedString(cols []string, width int) models.Field[models.Dated[string]] {
	year, value, ok := splitDated(cols, width)
	if !ok || value == "" {
		return models.Missing[models.Dated[string]]()
	}
	return models.Found(models.Dated[string]{Year: year, Value: value})
}

func datedFloat(cols []string, width int) models.Field[models.Dated[float64]] {
	year, value, ok := splitDated(cols, width)
	if !ok {
		return models.Missing[models.Dated[float64]]()
	}
	f, ok := FirstFloat(value)
	if !ok {
		return models.Missing[models.Dated[float64]]()
	}
	return models.Found(models.Dated[float64]{Year: year, Value: f})
}

func splitDated(cols []string, width int) (int, string, bool) {
	if len(cols) != width || width < 2 {
		return 0, "", false
	}
	year, ok := Year(cols[width-2])
	if !ok {
		return 0, "", false
	}
	return year, cols[width-1], true
}

// quartileFromTables 在所有表格中查找年份最新的Q值
func quartileFromTables(doc *goquery.Document) models.Field[models.Dated[string]] {
	best := models.Missing[models.Dated[string]]()
	bestYear := 0
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		var cols []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cols = append(cols, Clean(td.Text()))
		})
		if len(cols) < 3 || !strings.HasPrefix(cols[2], "Q") {
			return
		}
		year, ok := Year(cols[1])
		if ok && year > bestYear {
			bestYear = year
			best = models.Found(models.Dated[string]{Year: year, Value: cols[2]})
		}
	})
	return best
}

// sjrFromTables 在含"SJR"与"Year"的表格中取最新年份
func sjrFromTables(doc *goquery.Document) models.Field[models.Dated[float64]] {
	best := models.Missing[models.Dated[float64]]()
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		text := table.Text()
		if !strings.Contains(text, "SJR") || !strings.Contains(text, "Year") {
			return true
		}
		bestYear := 0
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			tds := tr.Find("td")
			if tds.Length() < 2 {
				return
			}
			year, ok := Year(tds.Eq(0).Text())
			if !ok || year <= bestYear {
				return
			}
			if v, ok := FirstFloat(tds.Eq(1).Text()); ok {
				bestYear = year
				best = models.Found(models.Dated[float64]{Year: year, Value: v})
			}
		})
		return false
	})
	return best
}
