package models

import "sort"

// PublicationHandle 出版物列表中的一条引用
type PublicationHandle struct {
	Source SourceName `json:"source"`
	URL    string     `json:"url"`
	// Title 列表页显示的标题,仅用于日志
	Title string `json:"title,omitempty"`
	// Index 发现顺序
	Index int `json:"index"`
}

// PublicationRecord 出版物详情
// 详情抓取结束后每个字段都处于Found或NotFound状态
type PublicationRecord struct {
	URL          string          `json:"url,omitempty"`
	Title        Field[string]   `json:"title"`
	Year         Field[int]      `json:"year"`
	Authors      Field[[]string] `json:"authors"`
	Citations    Field[int]      `json:"citations"`
	DOI          Field[string]   `json:"doi"`
	ISSN         Field[string]   `json:"issn"`
	Abstract     Field[string]   `json:"abstract"`
	Keywords     Field[[]string] `json:"keywords"`
	DocumentType Field[string]   `json:"document_type"`
	SourceType   Field[string]   `json:"source_type"`
	JournalName  Field[string]   `json:"journal_name"`
	Publisher    Field[string]   `json:"publisher"`
	Volume       Field[string]   `json:"volume"`
	Issue        Field[string]   `json:"issue"`
	Pages        Field[string]   `json:"pages"`
}

// fieldStates 字段名到状态的映射
func (p *PublicationRecord) fieldStates() map[string]FieldState {
	return map[string]FieldState{
		"title":         p.Title.State(),
		"year":          p.Year.State(),
		"authors":       p.Authors.State(),
		"citations":     p.Citations.State(),
		"doi":           p.DOI.State(),
		"issn":          p.ISSN.State(),
		"abstract":      p.Abstract.State(),
		"keywords":      p.Keywords.State(),
		"document_type": p.DocumentType.State(),
		"source_type":   p.SourceType.State(),
		"journal_name":  p.JournalName.State(),
		"publisher":     p.Publisher.State(),
		"volume":        p.Volume.State(),
		"issue":         p.Issue.State(),
		"pages":         p.Pages.State(),
	}
}

// Unattempted 返回尚未尝试提取的字段名
func (p *PublicationRecord) Unattempted() []string {
	var names []string
	for name, state := range p.fieldStates() {
		if state == FieldUnset {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Complete 所有字段都已尝试
func (p *PublicationRecord) Complete() bool {
	return len(p.Unattempted()) == 0
}

// MissingCount 缺失字段数量
func (p *PublicationRecord) MissingCount() int {
	count := 0
	for _, state := range p.fieldStates() {
		if state == FieldNotFound {
			count++
		}
	}
	return count
}

// Seal 未尝试的字段全部标记为缺失
func (p *PublicationRecord) Seal() {
	p.Title.Seal()
	p.Year.Seal()
	p.Authors.Seal()
	p.Citations.Seal()
	p.DOI.Seal()
	p.ISSN.Seal()
	p.Abstract.Seal()
	p.Keywords.Seal()
	p.DocumentType.Seal()
	p.SourceType.Seal()
	p.JournalName.Seal()
	p.Publisher.Seal()
	p.Volume.Seal()
	p.Issue.Seal()
	p.Pages.Seal()
}
