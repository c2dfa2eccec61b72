package models

import (
	"strings"
	"time"
)

// EnrichedPublication 作者+出版物+期刊指标的合并记录
type EnrichedPublication struct {
	Author      AuthorRecord      `json:"author"`
	Publication PublicationRecord `json:"publication"`
	Journal     JournalMetrics    `json:"journal"`

	// JoinISSN 关联时使用的原始ISSN,便于审计
	JoinISSN string `json:"join_issn"`
	// Matched 是否找到期刊指标
	Matched bool `json:"matched"`

	Source      SourceName `json:"source"`
	RunID       string     `json:"run_id"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// Key 返回去重键
func (e *EnrichedPublication) Key() string {
	title, _ := e.Publication.Title.Get()
	doi, _ := e.Publication.DOI.Get()
	return CompositeKey(title, e.Author.DisplayName(), doi, e.Publication.URL)
}

// CompositeKey 由(标题, 作者)组成的去重键
// 标题缺失时依次退回DOI和详情链接,避免无标题记录互相覆盖
func CompositeKey(title, author, doi, link string) string {
	author = normalizeKeyPart(author)
	if t := normalizeKeyPart(title); t != "" && !IsSentinelText(title) {
		return t + "\x1f" + author
	}
	if d := normalizeKeyPart(doi); d != "" && !IsSentinelText(doi) {
		return "doi:" + d + "\x1f" + author
	}
	return "link:" + strings.TrimSpace(link) + "\x1f" + author
}

// normalizeKeyPart 折叠空白并转小写
func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
