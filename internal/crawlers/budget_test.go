package crawlers

import (
	"errors"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

func TestBrowserBudget_MaxSessions(t *testing.T) {
	cpus := runtime.NumCPU()
	capped := 3
	if cpus < capped {
		capped = cpus
	}
	halved := capped / 2
	if halved < 1 {
		halved = 1
	}

	testCases := []struct {
		description string
		mode        models.BrowserMode
		available   uint64
		memErr      error
		cpuUsage    float64
		expected    int
	}{
		{description: "静态模式只受绝对上限约束", mode: models.ModeStatic, available: 100 * mb, expected: 3},
		{description: "内存充足", mode: models.ModeDynamic, available: 16 * 1024 * mb, expected: capped},
		{description: "内存不足时至少为1", mode: models.ModeDynamic, available: 600 * mb, expected: 1},
		{description: "CPU负载过高时减半", mode: models.ModeDynamic, available: 16 * 1024 * mb, cpuUsage: 99, expected: halved},
		{description: "读取内存失败按4GB估算", mode: models.ModeDynamic, memErr: errors.New("不可用"), expected: capped},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b := NewBrowserBudget(DefaultBudgetConfig(3))
			b.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
				if tc.memErr != nil {
					return nil, tc.memErr
				}
				return &mem.VirtualMemoryStat{Total: 32 * 1024 * mb, Available: tc.available}, nil
			}
			b.cpuPercent = func() (float64, error) { return tc.cpuUsage, nil }

			assert.Equal(t, tc.expected, b.MaxSessions(tc.mode))
		})
	}
}

func TestBrowserBudget_Status(t *testing.T) {
	testCases := []struct {
		description string
		available   uint64
		pressure    string
	}{
		{description: "正常", available: 4096 * mb, pressure: "normal"},
		{description: "警告", available: 900 * mb, pressure: "warning"},
		{description: "紧急", available: 600 * mb, pressure: "emergency"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b := NewBrowserBudget(DefaultBudgetConfig(2))
			b.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
				return &mem.VirtualMemoryStat{Total: 8192 * mb, Available: tc.available}, nil
			}
			status := b.Status()
			assert.Equal(t, tc.pressure, status.MemoryPressure)
			assert.Equal(t, int64(tc.available)-512*mb, status.AvailableMemory)
		})
	}
}
