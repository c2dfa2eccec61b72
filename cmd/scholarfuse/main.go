package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/ScholarFuse/internal/core"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// skipConfigAnnotation 不需要加载配置与日志的命令
const skipConfigAnnotation = "skip-config"

// 全局参数
var (
	configFile string
	verbose    bool
	logLevel   string

	// 由PersistentPreRunE加载
	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "scholarfuse",
	Short: "多数据源学术元数据聚合工具",
	Long: `ScholarFuse - 多数据源学术元数据聚合工具

从入口作者出发,沿合作者关系在学术数据源上抓取作者与出版物元数据,
按ISSN关联期刊排名指标,合并写入去重后的数据集:
  • 数据源: scholar, scopus, wos (期刊指标来自sjr)
  • 合作者扩展: 最多2跳, 每个作者扩展数可配置
  • 字段缺失以 "not found" 标记, 不中断抓取
  • 输出: JSON / CSV / SQLite, 同一(标题, 作者)保留最后一次
  • 断点续抓 (--resume)

示例:
  scholarfuse run --source scopus --seed 57190000001
  scholarfuse run --source scholar --source wos --seed-file seeds.txt --depth 1
  scholarfuse journal 0028-0836
  scholarfuse show --unmatched

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return nil
		}

		// 加载配置
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		} else if verbose {
			cfg.Logging.Level = "debug"
		}

		// 初始化日志系统
		if err := utils.InitLogger(cfg.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}
		if cfg.File() != "" {
			utils.Debugf("使用配置文件: %s", cfg.File())
		}

		appConfig = cfg
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "显示版本信息",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ScholarFuse %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 添加子命令
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	_ = utils.CloseLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
