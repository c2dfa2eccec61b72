package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

var (
	intPattern   = regexp.MustCompile(`\d+`)
	floatPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	fwciPattern  = regexp.MustCompile(`field-weighted citation impact[\s\S]*?(\d+\.?\d*)`)
)

// stripThousands 去除千位分隔符
func stripThousands(s string) string {
	return strings.NewReplacer(",", "", "\u00a0", "", "\u202f", "").Replace(s)
}

// FirstInt 返回文本中第一个整数
func FirstInt(s string) (int, bool) {
	m := intPattern.FindString(stripThousands(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// LastInt 返回文本中最后一个整数
func LastInt(s string) (int, bool) {
	all := intPattern.FindAllString(stripThousands(s), -1)
	if len(all) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(all[len(all)-1])
	return n, err == nil
}

// FirstFloat 返回文本中第一个数字(支持小数,小数点为"."或",")
func FirstFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	// "1,234" 与 "0,87" 的区分: 仅有一个逗号且后面不足三位时视为小数点
	if i := strings.LastIndex(s, ","); i >= 0 && strings.Count(s, ",") == 1 && len(s)-i-1 < 3 && !strings.Contains(s, ".") {
		s = s[:i] + "." + s[i+1:]
	}
	m := floatPattern.FindString(stripThousands(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

// Int 整数字段
func Int(raw string, present bool) models.Field[int] {
	if !present {
		return models.Missing[int]()
	}
	n, ok := FirstInt(raw)
	return models.FoundIf(n, ok)
}

// Float 浮点字段
func Float(raw string, present bool) models.Field[float64] {
	if !present {
		return models.Missing[float64]()
	}
	f, ok := FirstFloat(raw)
	return models.FoundIf(f, ok)
}

// Year 提取四位年份
func Year(s string) (int, bool) {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// YearField 年份字段
func YearField(raw string, present bool) models.Field[int] {
	if !present {
		return models.Missing[int]()
	}
	y, ok := Year(raw)
	return models.FoundIf(y, ok)
}

// Citations 解析被引次数
// 第二行为"Cited References"时表示没有被引计数,只有参考文献数
func Citations(raw string) (int, bool) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) > 1 && strings.TrimSpace(lines[1]) == "Cited References" {
		return 0, true
	}
	return FirstInt(lines[0])
}

// CitationsField 被引次数字段
func CitationsField(raw string, present bool) models.Field[int] {
	if !present {
		return models.Missing[int]()
	}
	n, ok := Citations(raw)
	return models.FoundIf(n, ok)
}

// MetricsBlock 作者指标区块中的三个计数
type MetricsBlock struct {
	Citations models.Field[int]
	Documents models.Field[int]
	HIndex    models.Field[int]
}

// ParseMetricsBlock 解析"1,234 Citations by ... 56 Documents 12 h-index"形式的指标文本
func ParseMetricsBlock(text string) MetricsBlock {
	lower := strings.ToLower(stripThousands(text))

	block := MetricsBlock{
		Citations: models.Missing[int](),
		Documents: models.Missing[int](),
		HIndex:    models.Missing[int](),
	}

	if before, _, found := strings.Cut(lower, "citations"); found {
		if n, ok := LastInt(before); ok {
			block.Citations = models.Found(n)
		}
	}
	// 出现两次时第一次属于"Citations by N documents",计数位于两次之间
	parts := strings.Split(lower, "documents")
	segment := ""
	switch {
	case len(parts) > 2:
		segment = parts[1]
	case len(parts) == 2:
		segment = parts[0]
	}
	if n, ok := LastInt(segment); ok {
		block.Documents = models.Found(n)
	}
	if before, _, found := strings.Cut(lower, "h-index"); found {
		if n, ok := LastInt(before); ok {
			block.HIndex = models.Found(n)
		}
	}
	return block
}

// FWCI 提取领域加权引文影响指数
func FWCI(text string) (float64, bool) {
	m := fwciPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}
