package models

import (
	"encoding/json"
	"time"
)

// RunReport 单个数据源的运行报告
type RunReport struct {
	// 任务信息
	RunID  string      `json:"run_id"`
	Source SourceName  `json:"source"`
	Mode   BrowserMode `json:"mode"`
	Seeds  []string    `json:"seeds"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats RunStats `json:"stats"`

	// 每个标识的处理结果(按处理顺序)
	Outcomes []IdentifierOutcome `json:"outcomes"`

	// 输出路径
	OutputPath string `json:"output_path"`

	// 配置快照
	Traversal TraversalConfig `json:"traversal"`
	Retry     RetryConfig     `json:"retry"`
}

// IdentifierOutcome 单个作者标识的处理结果
type IdentifierOutcome struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Depth        int        `json:"depth"`
	Parent       string     `json:"parent,omitempty"`
	State        VisitState `json:"state"`
	Reason       string     `json:"reason,omitempty"` // 失败原因
	Publications int        `json:"publications"`
	Duration     float64    `json:"duration"` // 秒
}

// Failed 返回失败的标识
func (r *RunReport) Failed() []IdentifierOutcome {
	failed := make([]IdentifierOutcome, 0)
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
