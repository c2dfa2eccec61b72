package crawlers

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

const mb = 1024 * 1024

// BudgetConfig 并行会话预算配置
type BudgetConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SessionMemory       int64 // 单个浏览器会话平均内存消耗(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200时不检查
	MaxSessions         int   // 绝对上限
}

// DefaultBudgetConfig 默认预算: 每个浏览器按300MB估算
func DefaultBudgetConfig(maxSessions int) BudgetConfig {
	return BudgetConfig{
		SafetyReserveMemory: 512 * mb,
		SessionMemory:       300 * mb,
		CPULoadThreshold:    90,
		MaxSessions:         maxSessions,
	}
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory int64  // 扣除保留后的可用内存(字节)
	MemoryPressure  string // 内存压力等级
}

// BrowserBudget 根据可用内存与CPU负载计算可同时运行的数据源会话数
type BrowserBudget struct {
	config BudgetConfig

	virtualMemory func() (*mem.VirtualMemoryStat, error)
	cpuPercent    func() (float64, error)
}

// NewBrowserBudget 创建预算计算器
func NewBrowserBudget(config BudgetConfig) *BrowserBudget {
	if config.SessionMemory <= 0 {
		config.SessionMemory = 300 * mb
	}
	if config.MaxSessions < 1 {
		config.MaxSessions = 1
	}
	return &BrowserBudget{
		config:        config,
		virtualMemory: mem.VirtualMemory,
		cpuPercent:    sampleCPU,
	}
}

// sampleCPU 100毫秒采样的全部核心平均使用率
func sampleCPU() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// Status 当前内存状态
func (b *BrowserBudget) Status() MemoryStatus {
	vm, err := b.virtualMemory()
	if err != nil {
		utils.Warnf("⚠️ 获取系统内存失败,按4GB估算: %v", err)
		vm = &mem.VirtualMemoryStat{Total: 4 * 1024 * mb, Available: 4 * 1024 * mb}
	}

	available := int64(vm.Available) - b.config.SafetyReserveMemory
	var pressure string
	switch availableMB := available / mb; {
	case availableMB < 200:
		pressure = "emergency"
	case availableMB < 500:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     vm.Total,
		AvailableMemory: available,
		MemoryPressure:  pressure,
	}
}

// MaxSessions 允许同时运行的会话数,至少为1
// 静态模式不启动浏览器,只受绝对上限约束
func (b *BrowserBudget) MaxSessions(mode models.BrowserMode) int {
	limit := b.config.MaxSessions
	if mode == models.ModeStatic {
		return limit
	}

	status := b.Status()
	byMemory := int(status.AvailableMemory / b.config.SessionMemory)
	if byMemory < limit {
		limit = byMemory
	}
	if n := runtime.NumCPU(); n < limit {
		limit = n
	}

	if b.config.CPULoadThreshold < 200 {
		usage, err := b.cpuPercent()
		if err != nil {
			utils.Debugf("获取CPU使用率失败: %v", err)
		} else if usage > float64(b.config.CPULoadThreshold) {
			utils.Warnf("⚠️ CPU负载过高(当前%.1f%%),并行会话减半", usage)
			limit /= 2
		}
	}

	if limit < 1 {
		utils.Warnf("⚠️ 可用内存不足(当前%dMB),数据源将串行运行", status.AvailableMemory/mb)
		limit = 1
	}
	return limit
}
