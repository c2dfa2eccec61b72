package utils

import (
	"strings"
)

var (
	// SensitiveKeywords 敏感配置键关键字 (用于脱敏)
	SensitiveKeywords = []string{
		"authorization",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"email",
		"mailto",
	}
)

// Redactor 配置脱敏器
// 负责识别并脱敏凭据类配置项
type Redactor struct {
	sensitiveKeywords []string
}

// NewRedactor 创建脱敏器
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitive 检查配置键是否敏感
func (r *Redactor) IsSensitive(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range r.sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个值
// 根据值的格式选择不同的脱敏策略
func (r *Redactor) RedactValue(key, value string) string {
	if value == "" || !r.IsSensitive(key) {
		return value
	}

	// 策略1: 邮箱 - 保留首字母和域名
	if at := strings.LastIndex(value, "@"); at > 0 {
		return value[:1] + "***" + value[at:]
	}

	// 策略2: 长密钥 - 显示前4位+后4位
	if len(value) > 12 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	// 策略3: 短密码 - 完全隐藏
	return "***"
}

// RedactMap 递归脱敏配置树 (用于config show)
// 原map不被修改
func (r *Redactor) RedactMap(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		switch v := value.(type) {
		case map[string]interface{}:
			out[key] = r.RedactMap(v)
		case string:
			out[key] = r.RedactValue(key, v)
		default:
			out[key] = v
		}
	}
	return out
}
