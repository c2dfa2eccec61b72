package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/core"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// ValidateRunFlags 验证命令行标志
// 配置项范围由Config.Validate检查,这里只检查命令行特有的约束
func ValidateRunFlags(flags core.RunFlags, seeds []string, seedFile string) error {
	if len(seeds) == 0 && seedFile == "" {
		return fmt.Errorf("需要 --seed 或 --seed-file 指定入口作者")
	}
	if seedFile != "" {
		if err := ValidateSeedFile(seedFile); err != nil {
			return err
		}
	}

	if flags.Depth != nil && (*flags.Depth < 0 || *flags.Depth > 2) {
		return fmt.Errorf("遍历深度必须在0-2之间,当前值: %d", *flags.Depth)
	}
	if flags.FanOut != nil && *flags.FanOut < 0 {
		return fmt.Errorf("合作者扩展数不能为负数,当前值: %d", *flags.FanOut)
	}
	if flags.MaxPublications != nil && *flags.MaxPublications < 0 {
		return fmt.Errorf("出版物上限不能为负数,当前值: %d", *flags.MaxPublications)
	}
	if flags.Parallel < 0 || flags.Parallel > core.MaxParallelSources {
		return fmt.Errorf("并行数据源数必须在1-%d之间,当前值: %d", core.MaxParallelSources, flags.Parallel)
	}

	// 验证模式
	if flags.Mode != "" {
		validModes := map[models.BrowserMode]bool{
			models.ModeDynamic: true,
			models.ModeStatic:  true,
		}
		if !validModes[models.BrowserMode(flags.Mode)] {
			return fmt.Errorf("无效的会话模式: %s (有效值: dynamic, static)", flags.Mode)
		}
	}

	for _, s := range flags.Sources {
		if err := models.ValidateSourceName(models.SourceName(strings.ToLower(strings.TrimSpace(s)))); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSeedFile 验证种子文件路径
func ValidateSeedFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("种子文件不可读: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("种子文件是目录: %s", path)
	}
	return nil
}

// CollectSeeds 为每个数据源汇总命令行与文件中的入口标识
func CollectSeeds(sources []models.SourceName, raw []string, seedFile string) (map[models.SourceName][]string, error) {
	seeds := make(map[models.SourceName][]string, len(sources))
	total := 0

	for _, source := range sources {
		list := utils.SeedsForSource(raw, source)
		if seedFile != "" {
			fromFile, err := utils.ReadSeedsFromFile(seedFile, source)
			if err != nil {
				utils.Warnf("⚠️  %v", err)
			}
			list = appendUnique(list, fromFile)
		}
		if len(list) == 0 {
			utils.Warnf("⚠️  %s 没有有效的入口标识", source)
		}
		seeds[source] = list
		total += len(list)
	}

	if total == 0 {
		return nil, fmt.Errorf("没有有效的入口标识")
	}
	return seeds, nil
}

func appendUnique(list, more []string) []string {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s] = true
	}
	for _, s := range more {
		if !seen[s] {
			seen[s] = true
			list = append(list, s)
		}
	}
	return list
}
