package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// 扁平化数据集的列定义,CSV表头与JSON键名一致
//
//	author_id, author_name, affiliation, country, co_authors,
//	author_h_index, total_citations, fwci,
//	title, year, authors, citations, doi, issn, abstract, keywords,
//	document_type, source_type, journal_name, publisher, volume, issue, pages,
//	journal_issn, journal_publisher, journal_h_index, scope,
//	quartile_year, quartile, sjr_year, sjr, impact_factor_year, impact_factor,
//	matched, source, link, run_id, extracted_at
//
// 字段取值: 提取成功输出值,已尝试但缺失输出"not found",未尝试输出空串。
// 列表列以"; "连接。
type column struct {
	name string
	get  func(r *models.DatasetRow) string
	set  func(r *models.DatasetRow, v string) error
}

// listSeparator 列表列的连接符
const listSeparator = "; "

var columns = []column{
	plainColumn("author_id", func(r *models.DatasetRow) *string { return &r.AuthorID }),
	stringColumn("author_name", func(r *models.DatasetRow) *models.Field[string] { return &r.AuthorName }),
	stringColumn("affiliation", func(r *models.DatasetRow) *models.Field[string] { return &r.Affiliation }),
	stringColumn("country", func(r *models.DatasetRow) *models.Field[string] { return &r.Country }),
	{
		name: "co_authors",
		get:  func(r *models.DatasetRow) string { return strings.Join(r.CoAuthors, listSeparator) },
		set: func(r *models.DatasetRow, v string) error {
			r.CoAuthors = splitList(v)
			return nil
		},
	},
	intColumn("author_h_index", func(r *models.DatasetRow) *models.Field[int] { return &r.AuthorHIndex }),
	intColumn("total_citations", func(r *models.DatasetRow) *models.Field[int] { return &r.TotalCitations }),
	floatColumn("fwci", func(r *models.DatasetRow) *models.Field[float64] { return &r.FWCI }),

	stringColumn("title", func(r *models.DatasetRow) *models.Field[string] { return &r.Title }),
	intColumn("year", func(r *models.DatasetRow) *models.Field[int] { return &r.Year }),
	listColumn("authors", func(r *models.DatasetRow) *models.Field[[]string] { return &r.Authors }),
	intColumn("citations", func(r *models.DatasetRow) *models.Field[int] { return &r.Citations }),
	stringColumn("doi", func(r *models.DatasetRow) *models.Field[string] { return &r.DOI }),
	stringColumn("issn", func(r *models.DatasetRow) *models.Field[string] { return &r.ISSN }),
	stringColumn("abstract", func(r *models.DatasetRow) *models.Field[string] { return &r.Abstract }),
	listColumn("keywords", func(r *models.DatasetRow) *models.Field[[]string] { return &r.Keywords }),
	stringColumn("document_type", func(r *models.DatasetRow) *models.Field[string] { return &r.DocumentType }),
	stringColumn("source_type", func(r *models.DatasetRow) *models.Field[string] { return &r.SourceType }),
	stringColumn("journal_name", func(r *models.DatasetRow) *models.Field[string] { return &r.JournalName }),
	stringColumn("publisher", func(r *models.DatasetRow) *models.Field[string] { return &r.Publisher }),
	stringColumn("volume", func(r *models.DatasetRow) *models.Field[string] { return &r.Volume }),
	stringColumn("issue", func(r *models.DatasetRow) *models.Field[string] { return &r.Issue }),
	stringColumn("pages", func(r *models.DatasetRow) *models.Field[string] { return &r.Pages }),

	plainColumn("journal_issn", func(r *models.DatasetRow) *string { return &r.JournalISSN }),
	stringColumn("journal_publisher", func(r *models.DatasetRow) *models.Field[string] { return &r.JournalPublisher }),
	intColumn("journal_h_index", func(r *models.DatasetRow) *models.Field[int] { return &r.JournalHIndex }),
	stringColumn("scope", func(r *models.DatasetRow) *models.Field[string] { return &r.Scope }),
	intColumn("quartile_year", func(r *models.DatasetRow) *models.Field[int] { return &r.QuartileYear }),
	stringColumn("quartile", func(r *models.DatasetRow) *models.Field[string] { return &r.Quartile }),
	intColumn("sjr_year", func(r *models.DatasetRow) *models.Field[int] { return &r.SJRYear }),
	floatColumn("sjr", func(r *models.DatasetRow) *models.Field[float64] { return &r.SJR }),
	intColumn("impact_factor_year", func(r *models.DatasetRow) *models.Field[int] { return &r.ImpactFactorYear }),
	floatColumn("impact_factor", func(r *models.DatasetRow) *models.Field[float64] { return &r.ImpactFactor }),

	{
		name: "matched",
		get:  func(r *models.DatasetRow) string { return strconv.FormatBool(r.Matched) },
		set: func(r *models.DatasetRow, v string) (err error) {
			if v == "" {
				r.Matched = false
				return nil
			}
			r.Matched, err = strconv.ParseBool(v)
			return err
		},
	},
	{
		name: "source",
		get:  func(r *models.DatasetRow) string { return string(r.Source) },
		set: func(r *models.DatasetRow, v string) error {
			r.Source = models.SourceName(v)
			return nil
		},
	},
	plainColumn("link", func(r *models.DatasetRow) *string { return &r.Link }),
	plainColumn("run_id", func(r *models.DatasetRow) *string { return &r.RunID }),
	{
		name: "extracted_at",
		get: func(r *models.DatasetRow) string {
			if r.ExtractedAt.IsZero() {
				return ""
			}
			return r.ExtractedAt.Format(time.RFC3339Nano)
		},
		set: func(r *models.DatasetRow, v string) (err error) {
			if v == "" {
				r.ExtractedAt = time.Time{}
				return nil
			}
			r.ExtractedAt, err = time.Parse(time.RFC3339Nano, v)
			return err
		},
	},
}

// Columns 返回列名(表头顺序)
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// rowValues 按列顺序展开一行
func rowValues(r *models.DatasetRow) []string {
	values := make([]string, len(columns))
	for i, c := range columns {
		values[i] = c.get(r)
	}
	return values
}

func plainColumn(name string, ptr func(r *models.DatasetRow) *string) column {
	return column{
		name: name,
		get:  func(r *models.DatasetRow) string { return *ptr(r) },
		set: func(r *models.DatasetRow, v string) error {
			*ptr(r) = v
			return nil
		},
	}
}

func stringColumn(name string, ptr func(r *models.DatasetRow) *models.Field[string]) column {
	return fieldColumn(name, ptr, func(s string) (string, error) { return s, nil })
}

func intColumn(name string, ptr func(r *models.DatasetRow) *models.Field[int]) column {
	return fieldColumn(name, ptr, strconv.Atoi)
}

func floatColumn(name string, ptr func(r *models.DatasetRow) *models.Field[float64]) column {
	return fieldColumn(name, ptr, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// emptyListMarker 已找到但为空的列表,与表示未尝试的空单元格区分
const emptyListMarker = "[]"

func listColumn(name string, ptr func(r *models.DatasetRow) *models.Field[[]string]) column {
	c := fieldColumn(name, ptr, func(s string) ([]string, error) {
		if s == emptyListMarker {
			return []string{}, nil
		}
		return splitList(s), nil
	})
	get := c.get
	c.get = func(r *models.DatasetRow) string {
		if v, ok := ptr(r).Get(); ok && len(v) == 0 {
			return emptyListMarker
		}
		return get(r)
	}
	return c
}

// fieldColumn 三态字段列: 空串为未尝试,哨兵为缺失,其余按类型解析
func fieldColumn[T any](name string, ptr func(r *models.DatasetRow) *models.Field[T], parse func(string) (T, error)) column {
	return column{
		name: name,
		get: func(r *models.DatasetRow) string {
			f := ptr(r)
			if v, ok := f.Get(); ok {
				if fv, isFloat := any(v).(float64); isFloat {
					return strconv.FormatFloat(fv, 'f', -1, 64)
				}
			}
			return f.String()
		},
		set: func(r *models.DatasetRow, v string) error {
			switch {
			case v == "":
				*ptr(r) = models.Field[T]{}
			case models.IsSentinelText(v):
				*ptr(r) = models.Missing[T]()
			default:
				parsed, err := parse(v)
				if err != nil {
					return fmt.Errorf("列 %s: %w", name, err)
				}
				*ptr(r) = models.Found(parsed)
			}
			return nil
		},
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
