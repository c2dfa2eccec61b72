package models

import "time"

// DatasetRow 聚合数据集中的一行(扁平结构)
// JSON键名与CSV列名一致,供下游推荐服务读取
type DatasetRow struct {
	AuthorID       string          `json:"author_id"`
	AuthorName     Field[string]   `json:"author_name"`
	Affiliation    Field[string]   `json:"affiliation"`
	Country        Field[string]   `json:"country"`
	CoAuthors      []string        `json:"co_authors"`
	AuthorHIndex   Field[int]      `json:"author_h_index"`
	TotalCitations Field[int]      `json:"total_citations"`
	FWCI           Field[float64]  `json:"fwci"`
	Title          Field[string]   `json:"title"`
	Year           Field[int]      `json:"year"`
	Authors        Field[[]string] `json:"authors"`
	Citations      Field[int]      `json:"citations"`
	DOI            Field[string]   `json:"doi"`
	ISSN           Field[string]   `json:"issn"`
	Abstract       Field[string]   `json:"abstract"`
	Keywords       Field[[]string] `json:"keywords"`
	DocumentType   Field[string]   `json:"document_type"`
	SourceType     Field[string]   `json:"source_type"`
	JournalName    Field[string]   `json:"journal_name"`
	Publisher      Field[string]   `json:"publisher"`
	Volume         Field[string]   `json:"volume"`
	Issue          Field[string]   `json:"issue"`
	Pages          Field[string]   `json:"pages"`

	JournalISSN      string         `json:"journal_issn"`
	JournalPublisher Field[string]  `json:"journal_publisher"`
	JournalHIndex    Field[int]     `json:"journal_h_index"`
	Scope            Field[string]  `json:"scope"`
	QuartileYear     Field[int]     `json:"quartile_year"`
	Quartile         Field[string]  `json:"quartile"`
	SJRYear          Field[int]     `json:"sjr_year"`
	SJR              Field[float64] `json:"sjr"`
	ImpactFactorYear Field[int]     `json:"impact_factor_year"`
	ImpactFactor     Field[float64] `json:"impact_factor"`

	Matched     bool       `json:"matched"`
	Source      SourceName `json:"source"`
	Link        string     `json:"link"`
	RunID       string     `json:"run_id"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// Key 返回去重键
func (r *DatasetRow) Key() string {
	author := r.AuthorName.OrElse("")
	if author == "" {
		author = r.AuthorID
	}
	return CompositeKey(r.Title.OrElse(""), author, r.DOI.OrElse(""), r.Link)
}

// Row 展平为数据集行
func (e *EnrichedPublication) Row() DatasetRow {
	a, p, j := &e.Author, &e.Publication, &e.Journal

	row := DatasetRow{
		AuthorID:       a.ID,
		AuthorName:     a.Name,
		Affiliation:    a.Affiliation,
		Country:        a.Country,
		CoAuthors:      a.CoAuthorIDs,
		AuthorHIndex:   a.HIndex,
		TotalCitations: a.Citations,
		FWCI:           a.FWCI,

		Title:        p.Title,
		Year:         p.Year,
		Authors:      p.Authors,
		Citations:    p.Citations,
		DOI:          p.DOI,
		ISSN:         p.ISSN,
		Abstract:     p.Abstract,
		Keywords:     p.Keywords,
		DocumentType: p.DocumentType,
		SourceType:   p.SourceType,
		JournalName:  p.JournalName,
		Publisher:    p.Publisher,
		Volume:       p.Volume,
		Issue:        p.Issue,
		Pages:        p.Pages,

		JournalISSN:      e.JoinISSN,
		JournalPublisher: j.Publisher,
		JournalHIndex:    j.HIndex,
		Scope:            j.Scope,
		QuartileYear:     splitYear(j.Quartile),
		Quartile:         splitValue(j.Quartile),
		SJRYear:          splitYear(j.SJR),
		SJR:              splitValue(j.SJR),
		ImpactFactorYear: splitYear(j.ImpactFactor),
		ImpactFactor:     splitValue(j.ImpactFactor),

		Matched:     e.Matched,
		Source:      e.Source,
		Link:        p.URL,
		RunID:       e.RunID,
		ExtractedAt: e.ExtractedAt,
	}

	// 出版物页面缺少期刊名时使用排名站点的名称
	if !row.JournalName.IsFound() && j.Name.IsFound() {
		row.JournalName = j.Name
	}
	if row.CoAuthors == nil {
		row.CoAuthors = []string{}
	}
	return row
}

func splitYear[T any](f Field[Dated[T]]) Field[int] {
	d, ok := f.Get()
	if !ok || d.Year == 0 {
		if f.Attempted() {
			return Missing[int]()
		}
		return Field[int]{}
	}
	return Found(d.Year)
}

func splitValue[T any](f Field[Dated[T]]) Field[T] {
	d, ok := f.Get()
	if !ok {
		if f.Attempted() {
			return Missing[T]()
		}
		return Field[T]{}
	}
	return Found(d.Value)
}
