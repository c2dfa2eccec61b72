package extract

import (
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// 规范字段名
const (
	KeyTitle        = "title"
	KeyYear         = "year"
	KeyAuthors      = "authors"
	KeyCitations    = "citations"
	KeyDOI          = "doi"
	KeyISSN         = "issn"
	KeyAbstract     = "abstract"
	KeyKeywords     = "keywords"
	KeyDocumentType = "document_type"
	KeySourceType   = "source_type"
	KeyJournalName  = "journal_name"
	KeyPublisher    = "publisher"
	KeyVolume       = "volume"
	KeyIssue        = "issue"
	KeyPages        = "pages"

	KeyName        = "name"
	KeyAffiliation = "affiliation"
	KeyCountry     = "country"
	KeyHIndex      = "h_index"
	KeyDocuments   = "documents"
	KeyFWCI        = "fwci"
	KeyInterests   = "interests"

	// KeyMetricsBlock 作者指标区块原文(引用/文档/h指数混排)
	KeyMetricsBlock = "metrics_block"
)

// RawRecord 页面上抓到的原始文本,键为规范字段名
// 不存在的键表示页面上没有对应元素
type RawRecord map[string]string

// Get 返回原始文本以及元素是否存在
func (r RawRecord) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

// Set 记录一个字段
func (r RawRecord) Set(key, value string) {
	r[key] = value
}

// labelMaps 各数据源详情页标签到规范字段名的映射
var labelMaps = map[models.SourceName]map[string]string{
	models.SourceScholar: {
		"authors":             KeyAuthors,
		"auteurs":             KeyAuthors,
		"inventors":           KeyAuthors,
		"publication date":    KeyYear,
		"date de publication": KeyYear,
		"journal":             KeyJournalName,
		"revue":               KeyJournalName,
		"conference":          KeyJournalName,
		"conférence":          KeyJournalName,
		"source":              KeyJournalName,
		"book":                KeyJournalName,
		"volume":              KeyVolume,
		"issue":               KeyIssue,
		"numéro":              KeyIssue,
		"pages":               KeyPages,
		"publisher":           KeyPublisher,
		"éditeur":             KeyPublisher,
		"description":         KeyAbstract,
		"total citations":     KeyCitations,
		"citations totales":   KeyCitations,
	},
	models.SourceScopus: {
		"document type":     KeyDocumentType,
		"source type":       KeySourceType,
		"issn":              KeyISSN,
		"doi":               KeyDOI,
		"publisher":         KeyPublisher,
		"original language": "",
	},
	models.SourceWoS: {
		"published":       KeyYear,
		"early access":    KeyYear,
		"document type":   KeyDocumentType,
		"doi":             KeyDOI,
		"issn":            KeyISSN,
		"eissn":           KeyISSN,
		"publisher":       KeyPublisher,
		"volume":          KeyVolume,
		"issue":           KeyIssue,
		"page":            KeyPages,
		"pages":           KeyPages,
		"author keywords": KeyKeywords,
		"keywords plus":   KeyKeywords,
	},
}

// CanonicalLabel 将详情页标签映射为规范字段名
func CanonicalLabel(source models.SourceName, label string) (string, bool) {
	key := strings.ToLower(strings.TrimSuffix(Clean(label), ":"))
	canonical, ok := labelMaps[source][key]
	if !ok || canonical == "" {
		return "", false
	}
	return canonical, true
}

// FromLabels 按标签映射构造原始记录
// 同一规范字段出现多次时以"; "拼接(如两类关键词)
func FromLabels(source models.SourceName, pairs [][2]string) RawRecord {
	raw := RawRecord{}
	for _, p := range pairs {
		key, ok := CanonicalLabel(source, p[0])
		if !ok {
			continue
		}
		if prev, exists := raw[key]; exists && key == KeyKeywords {
			raw[key] = prev + "; " + p[1]
			continue
		}
		if _, exists := raw[key]; !exists {
			raw[key] = p[1]
		}
	}
	return raw
}

// BuildPublication 原始记录转换为出版物详情
// 所有字段都会被尝试,返回的记录满足Complete()
func BuildPublication(url string, raw RawRecord) models.PublicationRecord {
	get := raw.Get

	rec := models.PublicationRecord{URL: url}
	rec.Title = Text(get(KeyTitle))
	rec.Year = YearField(get(KeyYear))
	rec.Authors = List(get(KeyAuthors))
	rec.Citations = CitationsField(get(KeyCitations))
	rec.DOI = DOIField(get(KeyDOI))
	rec.ISSN = ISSNField(get(KeyISSN))
	rec.Abstract = Text(get(KeyAbstract))
	keywords, hasKeywords := get(KeyKeywords)
	rec.Keywords = List(keywords, hasKeywords, ";")
	rec.DocumentType = Text(get(KeyDocumentType))
	rec.SourceType = Text(get(KeySourceType))
	rec.JournalName = Text(get(KeyJournalName))
	rec.Publisher = Text(get(KeyPublisher))
	rec.Volume = Text(get(KeyVolume))
	rec.Issue = Text(get(KeyIssue))
	rec.Pages = Text(get(KeyPages))
	rec.Seal()
	return rec
}

// BuildAuthor 原始记录转换为作者档案
func BuildAuthor(id string, source models.SourceName, raw RawRecord) models.AuthorRecord {
	get := raw.Get

	a := models.AuthorRecord{ID: id, Source: source}
	a.Name = Text(get(KeyName))

	affiliation, hasAffiliation := get(KeyAffiliation)
	if source == models.SourceScopus && hasAffiliation {
		affiliation = Affiliation(affiliation)
	}
	a.Affiliation = Text(affiliation, hasAffiliation)

	if country, ok := get(KeyCountry); ok {
		a.Country = Text(country, true)
	} else if hasAffiliation && source == models.SourceWoS {
		country, ok := CountryFromAffiliation(affiliation)
		a.Country = models.FoundIf(country, ok)
	}

	a.HIndex = Int(get(KeyHIndex))
	a.Citations = Int(get(KeyCitations))
	a.Documents = Int(get(KeyDocuments))

	if block, ok := get(KeyMetricsBlock); ok {
		m := ParseMetricsBlock(block)
		if !a.Citations.IsFound() {
			a.Citations = m.Citations
		}
		if !a.Documents.IsFound() {
			a.Documents = m.Documents
		}
		if !a.HIndex.IsFound() {
			a.HIndex = m.HIndex
		}
	}

	if fwci, ok := get(KeyFWCI); ok {
		if v, found := FWCI(fwci); found {
			a.FWCI = models.Found(v)
		} else {
			a.FWCI = Float(fwci, true)
		}
	}
	a.Interests = List(get(KeyInterests))

	a.Seal()
	return a
}
