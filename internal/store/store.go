// Package store 负责数据集的去重合并与持久化
//
// 所有格式共享同一条规则: 读取已有数据 → 拼接新批次 → 同一复合键只保留最后一条,
// 位置取其最后一次出现处 → 写回。
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// ErrUnsupportedFormat 输出路径扩展名无法识别
var ErrUnsupportedFormat = errors.New("不支持的输出格式")

// Store 数据集存储
type Store interface {
	// Merge 将一批记录合并进数据集
	Merge(ctx context.Context, batch []models.DatasetRow) (MergeStats, error)
	// Load 返回当前数据集
	Load(ctx context.Context) ([]models.DatasetRow, error)
	// Path 返回存储位置
	Path() string
	// Close 释放资源
	Close() error
}

// MergeStats 单次合并统计
type MergeStats struct {
	Existing   int `json:"existing"`   // 合并前已有记录数
	Incoming   int `json:"incoming"`   // 本批次记录数
	Duplicates int `json:"duplicates"` // 被覆盖的记录数
	Total      int `json:"total"`      // 合并后记录数
}

// Format 输出格式
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// FormatOf 根据扩展名判断格式,无扩展名时默认JSON
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(stripQuery(path)))
	switch ext {
	case ".json", "":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Open 根据输出路径打开对应的存储
func Open(path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("输出路径不能为空")
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return newFileStore(path, csvCodec{}), nil
	case FormatSQLite:
		return OpenSQLite(path)
	default:
		return newFileStore(path, jsonCodec{}), nil
	}
}

// Dedup 同一复合键只保留最后一条记录,位置取最后一次出现处
// 返回去重后的记录与被覆盖的条数
func Dedup(rows []models.DatasetRow) ([]models.DatasetRow, int) {
	last := make(map[string]int, len(rows))
	for i := range rows {
		last[rows[i].Key()] = i
	}

	out := make([]models.DatasetRow, 0, len(last))
	for i := range rows {
		if last[rows[i].Key()] == i {
			out = append(out, rows[i])
		}
	}
	return out, len(rows) - len(out)
}

// merge 拼接已有数据与新批次后去重
func merge(existing, batch []models.DatasetRow) ([]models.DatasetRow, MergeStats) {
	all := make([]models.DatasetRow, 0, len(existing)+len(batch))
	all = append(all, existing...)
	all = append(all, batch...)

	merged, dups := Dedup(all)
	return merged, MergeStats{
		Existing:   len(existing),
		Incoming:   len(batch),
		Duplicates: dups,
		Total:      len(merged),
	}
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
