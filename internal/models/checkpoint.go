package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint 遍历检查点
// 每处理完一个作者后更新,--resume时跳过已完成的标识
type Checkpoint struct {
	// 任务信息
	RunID  string     `json:"run_id"` // 写入检查点的运行ID
	Source SourceName `json:"source"` // 数据源

	// 进度信息
	Done    []string         `json:"done"`    // 已完成的标识
	Failed  []string         `json:"failed"`  // 失败的标识
	Pending []SeedCheckpoint `json:"pending"` // 尚未处理的标识

	// 统计信息
	Stats RunStats `json:"stats"` // 当前统计

	// 时间戳
	CreatedAt time.Time `json:"created_at"` // 检查点创建时间
	UpdatedAt time.Time `json:"updated_at"` // 最后更新时间

	// 配置快照
	Traversal TraversalConfig `json:"traversal"`
}

// SeedCheckpoint 待处理标识快照
type SeedCheckpoint struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

// CheckpointFilename 生成检查点文件名
func CheckpointFilename(source SourceName) string {
	return fmt.Sprintf("checkpoint_%s.json", source)
}

// IsDone 标识是否已完成
func (c *Checkpoint) IsDone(id string) bool {
	for _, d := range c.Done {
		if d == id {
			return true
		}
	}
	return false
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *Checkpoint) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

// SaveToFile 保存到文件(先写临时文件再重命名)
func (c *Checkpoint) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpointFromFile 从文件加载
func LoadCheckpointFromFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := cp.FromJSON(data); err != nil {
		return nil, err
	}

	return &cp, nil
}
