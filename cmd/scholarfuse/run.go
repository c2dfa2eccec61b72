package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/ScholarFuse/internal/core"
	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/store"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// 抓取参数
var (
	runSources         []string
	runSeeds           []string
	runSeedFile        string
	runDepth           int
	runFanOut          int
	runMaxPublications int
	runOutput          string
	runMode            string
	runHeadless        bool
	runParallel        int
	runResume          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "从入口作者开始抓取",
	Long: `从入口作者开始抓取作者与出版物元数据,关联期刊指标后写入数据集

入口标识可写 "数据源:标识" 限定数据源, 如 scopus:57190000001;
无前缀的标识对每个启用的数据源分别校验, 不合法的跳过。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := core.RunFlags{
			Sources:  runSources,
			Output:   runOutput,
			Mode:     runMode,
			Parallel: runParallel,
			Resume:   runResume,
			LogLevel: logLevel,
		}
		if cmd.Flags().Changed("depth") {
			flags.Depth = &runDepth
		}
		if cmd.Flags().Changed("fan-out") {
			flags.FanOut = &runFanOut
		}
		if cmd.Flags().Changed("max-publications") {
			flags.MaxPublications = &runMaxPublications
		}
		if cmd.Flags().Changed("headless") {
			flags.Headless = &runHeadless
		}

		// 验证参数
		if err := ValidateRunFlags(flags, runSeeds, runSeedFile); err != nil {
			return err
		}
		appConfig.MergeCLIFlags(flags)
		if err := appConfig.Validate(); err != nil {
			return err
		}

		sources, err := appConfig.SourceNames()
		if err != nil {
			return err
		}
		seeds, err := CollectSeeds(sources, runSeeds, runSeedFile)
		if err != nil {
			return err
		}

		// 设置信号处理(Ctrl+C保存已完成的作者后退出)
		ctx, cancel := context.WithCancel(utils.Logger.WithContext(context.Background()))
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case sig := <-sigChan:
				utils.Warnf("\n收到中断信号: %v, 正在保存已完成的作者...", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		st, err := store.Open(appConfig.Output.Path)
		if err != nil {
			return fmt.Errorf("打开数据集失败: %w", err)
		}
		defer st.Close()

		reporter := utils.NewReporter(appConfig.Output.ReportDir)
		budget := crawlers.NewBrowserBudget(crawlers.DefaultBudgetConfig(core.MaxParallelSources))
		pipeline := core.NewPipeline(appConfig, core.BrowserSourceFactory(appConfig), st, reporter).
			WithProgress(len(sources) == 1 || appConfig.Run.ParallelSources == 1)
		runner := core.NewMultiRunner(pipeline, appConfig.Run.ParallelSources, budget, appConfig.Browser.Mode)

		summary := runner.Run(ctx, sources, seeds)

		if failed := reporter.Failed(); len(failed) > 0 {
			utils.Warnf("⚠️  %d 个标识处理失败, 详见 %s", len(failed), appConfig.Output.ReportDir)
		}
		if summary.SuccessCount == 0 {
			return fmt.Errorf("全部数据源抓取失败")
		}

		utils.Infof("✨ 抓取任务完成! 数据集: %s", st.Path())
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runSources, "source", "s", nil, "数据源 (scholar|scopus|wos),可多次指定")
	runCmd.Flags().StringSliceVar(&runSeeds, "seed", nil, "入口作者标识或姓名,可多次指定")
	runCmd.Flags().StringVarP(&runSeedFile, "seed-file", "f", "", "入口标识文件,每行一个")
	runCmd.Flags().IntVarP(&runDepth, "depth", "d", 2, "合作者扩展最大跳数 (0-2)")
	runCmd.Flags().IntVar(&runFanOut, "fan-out", 2, "每个作者扩展的合作者数")
	runCmd.Flags().IntVar(&runMaxPublications, "max-publications", 0, "每个作者抓取的出版物上限,0为不限")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "数据集路径 (.json|.csv|.db)")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "会话模式 (dynamic|static)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "无头浏览器模式")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 0, "同时运行的数据源数")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "从检查点恢复")
}
