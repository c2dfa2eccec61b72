package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/schollz/progressbar/v3"
)

// FailedIdentifiersFile 失败标识汇总文件名
const FailedIdentifiersFile = "failed_identifiers.json"

// FailedIdentifier 失败标识汇总条目
type FailedIdentifier struct {
	Source models.SourceName `json:"source"`
	RunID  string            `json:"run_id"`
	ID     string            `json:"id"`
	Depth  int               `json:"depth"`
	Parent string            `json:"parent,omitempty"`
	Reason string            `json:"reason"`
}

// Reporter 报告生成器
// 多个数据源并行运行时共用同一个实例
type Reporter struct {
	reportDir string
	failed    []FailedIdentifier
	mu        sync.Mutex
}

// NewReporter 创建报告生成器
func NewReporter(reportDir string) *Reporter {
	return &Reporter{reportDir: reportDir}
}

// ReportFilename 运行报告文件名
func ReportFilename(source models.SourceName, runID string) string {
	return fmt.Sprintf("run_%s_%s.json", source, runID)
}

// GenerateReport 保存运行报告,并刷新失败标识汇总
// 返回报告文件路径
func (r *Reporter) GenerateReport(report *models.RunReport) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.reportDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := filepath.Join(r.reportDir, ReportFilename(report.Source, report.RunID))
	if err := r.saveJSONReport(path, report); err != nil {
		return "", err
	}

	for _, o := range report.Failed() {
		r.failed = append(r.failed, FailedIdentifier{
			Source: report.Source,
			RunID:  report.RunID,
			ID:     o.ID,
			Depth:  o.Depth,
			Parent: o.Parent,
			Reason: o.Reason,
		})
	}
	failed := r.failed
	if failed == nil {
		failed = []FailedIdentifier{}
	}
	if err := r.saveJSONReport(filepath.Join(r.reportDir, FailedIdentifiersFile), failed); err != nil {
		return "", err
	}

	Infof("✅ 报告已生成: %s", path)
	return path, nil
}

// Failed 返回目前汇总的失败标识
func (r *Reporter) Failed() []FailedIdentifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FailedIdentifier, len(r.failed))
	copy(out, r.failed)
	return out
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
