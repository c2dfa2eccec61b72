package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// NotFoundSentinel 字段已尝试提取但源页面缺失时的输出值
const NotFoundSentinel = "not found"

// FieldState 字段提取状态
type FieldState uint8

const (
	FieldUnset    FieldState = iota // 尚未尝试
	FieldFound                      // 提取成功
	FieldNotFound                   // 已尝试,源页面缺失
)

// String 返回状态名称
func (s FieldState) String() string {
	switch s {
	case FieldFound:
		return "found"
	case FieldNotFound:
		return "not_found"
	default:
		return "unset"
	}
}

// Field 单个字段的提取结果
// 值只能通过Get读取,哨兵值永远不会被当作真实数据参与计算
type Field[T any] struct {
	value T
	state FieldState
}

// Found 构造提取成功的字段
func Found[T any](v T) Field[T] {
	return Field[T]{value: v, state: FieldFound}
}

// Missing 构造已尝试但缺失的字段
func Missing[T any]() Field[T] {
	return Field[T]{state: FieldNotFound}
}

// FoundIf ok为true时返回Found,否则返回Missing
func FoundIf[T any](v T, ok bool) Field[T] {
	if ok {
		return Found(v)
	}
	return Missing[T]()
}

// Get 返回值以及是否提取成功
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == FieldFound
}

// OrElse 提取成功时返回值,否则返回def
func (f Field[T]) OrElse(def T) T {
	if f.state == FieldFound {
		return f.value
	}
	return def
}

// State 返回字段状态
func (f Field[T]) State() FieldState {
	return f.state
}

// IsFound 是否提取成功
func (f Field[T]) IsFound() bool {
	return f.state == FieldFound
}

// Attempted 是否已经尝试过提取
func (f Field[T]) Attempted() bool {
	return f.state != FieldUnset
}

// Seal 未尝试的字段标记为缺失
func (f *Field[T]) Seal() {
	if f.state == FieldUnset {
		f.state = FieldNotFound
	}
}

// String 返回文本形式,列表以"; "连接
func (f Field[T]) String() string {
	switch f.state {
	case FieldNotFound:
		return NotFoundSentinel
	case FieldUnset:
		return ""
	}
	switch v := any(f.value).(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "; ")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON 缺失字段输出哨兵字符串,未尝试字段输出null
func (f Field[T]) MarshalJSON() ([]byte, error) {
	switch f.state {
	case FieldFound:
		return json.Marshal(f.value)
	case FieldNotFound:
		return json.Marshal(NotFoundSentinel)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 识别哨兵字符串和旧数据中的"N/A"
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = Field[T]{}
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil && IsSentinelText(s) {
		*f = Missing[T]()
		return nil
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("字段解析失败: %w", err)
	}
	*f = Found(v)
	return nil
}

// IsSentinelText 判断文本是否为缺失标记
func IsSentinelText(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, NotFoundSentinel) || s == "N/A"
}

// Dated 带年份的指标值
type Dated[T any] struct {
	Year  int `json:"year"`
	Value T   `json:"value"`
}

// String 返回"值 (年份)"形式
func (d Dated[T]) String() string {
	if d.Year == 0 {
		return fmt.Sprint(d.Value)
	}
	return fmt.Sprintf("%v (%d)", d.Value, d.Year)
}
