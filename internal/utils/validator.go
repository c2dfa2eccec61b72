package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

const (
	// MaxSeedLength 入口标识最大长度
	MaxSeedLength = 200
)

// SeedValidator 按数据源验证入口标识
type SeedValidator struct {
	// scopusID Scopus作者标识 (纯数字)
	scopusID *regexp.Regexp

	// wosID WoS作者记录标识 (字母数字连字符)
	wosID *regexp.Regexp

	// maxLength 标识最大长度
	maxLength int
}

// NewSeedValidator 创建验证器
func NewSeedValidator() *SeedValidator {
	return &SeedValidator{
		scopusID:  regexp.MustCompile(`^\d{5,}$`),
		wosID:     regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`),
		maxLength: MaxSeedLength,
	}
}

// Validate 验证单个入口标识
// scholar接受档案标识或作者姓名;scopus只接受数字标识;wos只接受记录标识
func (v *SeedValidator) Validate(source models.SourceName, seed string) error {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return &models.ValidationError{
			Source: source,
			Value:  seed,
			Reason: "标识不能为空",
		}
	}

	if len(seed) > v.maxLength {
		return &models.ValidationError{
			Source:     source,
			Value:      seed[:20] + "...",
			Reason:     fmt.Sprintf("标识过长: %d 字节 (最大 %d)", len(seed), v.maxLength),
			Suggestion: "检查种子文件是否缺少换行",
		}
	}

	for _, r := range seed {
		if unicode.IsControl(r) {
			return &models.ValidationError{
				Source:     source,
				Value:      seed,
				Reason:     "标识包含控制字符",
				Suggestion: "移除制表符等不可见字符",
			}
		}
	}

	switch source {
	case models.SourceScholar:
		return nil
	case models.SourceScopus:
		if !v.scopusID.MatchString(seed) {
			return &models.ValidationError{
				Source:     source,
				Value:      seed,
				Reason:     "Scopus作者标识必须是至少5位数字",
				Suggestion: "使用作者档案URL中的authorId参数 (如 '57190000001')",
			}
		}
	case models.SourceWoS:
		if !v.wosID.MatchString(seed) {
			return &models.ValidationError{
				Source:     source,
				Value:      seed,
				Reason:     "WoS作者记录标识只能包含字母、数字和连字符",
				Suggestion: "使用作者记录URL的最后一段 (如 'AAB-1234-2020')",
			}
		}
	default:
		return &models.ValidationError{
			Source: source,
			Value:  seed,
			Reason: "数据源不支持作者遍历",
		}
	}
	return nil
}

// ValidateAll 验证全部标识,返回第一个错误
func (v *SeedValidator) ValidateAll(source models.SourceName, seeds []string) error {
	for _, s := range seeds {
		if err := v.Validate(source, s); err != nil {
			return err
		}
	}
	return nil
}
