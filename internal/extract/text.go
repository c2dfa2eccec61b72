// Package extract 将页面上的原始文本转换为规范化字段
// 包内函数均为纯函数,不做任何I/O
package extract

import (
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// boilerplate 页面控件混入字段文本的固定片段
var boilerplate = []string{
	"arrow_drop_down",
	"arrow_drop_up",
	"open_in_new",
	"View full text",
}

// Clean 折叠连续空白并去除首尾空白
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripBoilerplate 去除控件文本后再Clean
func StripBoilerplate(s string) string {
	for _, b := range boilerplate {
		s = strings.ReplaceAll(s, b, " ")
	}
	return Clean(s)
}

// Text 文本字段: 清洗后为空或为缺失标记时视为缺失
func Text(raw string, present bool) models.Field[string] {
	if !present {
		return models.Missing[string]()
	}
	s := StripBoilerplate(raw)
	if s == "" || models.IsSentinelText(s) {
		return models.Missing[string]()
	}
	return models.Found(s)
}

// SplitList 按分隔符拆分列表,去掉空项并保持顺序
// 未指定分隔符时优先使用";",其次","
func SplitList(s string, seps ...string) []string {
	if len(seps) == 0 {
		if strings.Contains(s, ";") {
			seps = []string{";"}
		} else {
			seps = []string{","}
		}
	}

	parts := []string{s}
	for _, sep := range seps {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}

	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if item := Clean(p); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// List 列表字段: 拆分后为空视为缺失
func List(raw string, present bool, seps ...string) models.Field[[]string] {
	if !present || models.IsSentinelText(raw) {
		return models.Missing[[]string]()
	}
	items := SplitList(StripBoilerplate(raw), seps...)
	return models.FoundIf(items, len(items) > 0)
}

// Affiliation 清洗机构文本: 去掉前导分隔符,逗号分段改为" - "
func Affiliation(raw string) string {
	s := strings.TrimLeft(Clean(raw), ", ")
	return strings.ReplaceAll(s, ", ", " - ")
}

// CountryFromAffiliation 取机构文本最后一个逗号后的部分作为国家
func CountryFromAffiliation(raw string) (string, bool) {
	parts := strings.Split(raw, ",")
	country := Clean(parts[len(parts)-1])
	return country, country != ""
}
