package extract

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

var (
	issnPattern = regexp.MustCompile(`(?i)\b(\d{4})[-\x{2010}\x{2013} ]?(\d{3}[\dX])\b`)
	doiPattern  = regexp.MustCompile(`10\.\d{4,9}/\S+`)
)

// ISSN 规范化ISSN为"1234-567X"形式
// 多个ISSN时取第一个
func ISSN(raw string) (string, bool) {
	m := issnPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + strings.ToUpper(m[2]), true
}

// ISSNs 返回文本中全部ISSN(去重,保持顺序)
func ISSNs(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range issnPattern.FindAllStringSubmatch(raw, -1) {
		issn := m[1] + "-" + strings.ToUpper(m[2])
		if !seen[issn] {
			seen[issn] = true
			out = append(out, issn)
		}
	}
	return out
}

// ISSNChecksumOK 校验ISSN校验位
func ISSNChecksumOK(issn string) bool {
	digits := strings.ReplaceAll(strings.ToUpper(issn), "-", "")
	if len(digits) != 8 {
		return false
	}
	sum := 0
	for i := 0; i < 7; i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * (8 - i)
	}
	check := (11 - sum%11) % 11
	last := digits[7]
	if check == 10 {
		return last == 'X'
	}
	return last == byte('0'+check)
}

// ISSNField ISSN字段
func ISSNField(raw string, present bool) models.Field[string] {
	if !present {
		return models.Missing[string]()
	}
	issn, ok := ISSN(raw)
	return models.FoundIf(issn, ok)
}

// DOI 规范化DOI,去掉解析器前缀
func DOI(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	m := doiPattern.FindString(s)
	if m == "" {
		return "", false
	}
	m = strings.TrimRight(m, ".,;)")
	return m, true
}

// DOIField DOI字段
func DOIField(raw string, present bool) models.Field[string] {
	if !present {
		return models.Missing[string]()
	}
	doi, ok := DOI(raw)
	return models.FoundIf(doi, ok)
}

// LastPathSegment 取链接路径最后一段(去掉查询参数)
func LastPathSegment(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}

// QueryParam 取链接中的查询参数
func QueryParam(href, key string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}
