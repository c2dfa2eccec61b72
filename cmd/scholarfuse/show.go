package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/store"
)

var (
	showPath      string
	showUnmatched bool
)

// datasetSummary 数据集按数据源的统计
type datasetSummary struct {
	Source    models.SourceName
	Records   int
	Authors   int
	Matched   int
	Unmatched int
}

// summarize 按数据源汇总,结果按数据源名排序
func summarize(rows []models.DatasetRow) []datasetSummary {
	bySource := make(map[models.SourceName]*datasetSummary)
	authors := make(map[models.SourceName]map[string]bool)
	for i := range rows {
		r := &rows[i]
		s, ok := bySource[r.Source]
		if !ok {
			s = &datasetSummary{Source: r.Source}
			bySource[r.Source] = s
			authors[r.Source] = make(map[string]bool)
		}
		s.Records++
		if r.Matched {
			s.Matched++
		} else {
			s.Unmatched++
		}
		authors[r.Source][r.AuthorID] = true
	}

	out := make([]datasetSummary, 0, len(bySource))
	for source, s := range bySource {
		s.Authors = len(authors[source])
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "显示数据集统计",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := showPath
		if path == "" {
			path = appConfig.Output.Path
		}

		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("打开数据集失败: %w", err)
		}
		defer st.Close()

		rows, err := st.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("读取数据集失败: %w", err)
		}

		fmt.Println("==================================================")
		fmt.Printf("📊 数据集: %s\n", st.Path())
		fmt.Println("==================================================")
		fmt.Printf("%-10s %8s %8s %8s %8s\n", "数据源", "记录", "作者", "已匹配", "未匹配")
		total := datasetSummary{}
		for _, s := range summarize(rows) {
			fmt.Printf("%-10s %8d %8d %8d %8d\n", s.Source, s.Records, s.Authors, s.Matched, s.Unmatched)
			total.Records += s.Records
			total.Matched += s.Matched
			total.Unmatched += s.Unmatched
		}
		fmt.Printf("%-10s %8d %8s %8d %8d\n", "合计", total.Records, "-", total.Matched, total.Unmatched)
		fmt.Println("==================================================")

		if showUnmatched {
			fmt.Println("\n未匹配期刊的出版物:")
			for i := range rows {
				r := &rows[i]
				if r.Matched {
					continue
				}
				fmt.Printf("  - [%s] %s | %s | ISSN: %s\n", r.Source, r.Title.String(), r.JournalName.String(), r.ISSN.String())
			}
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showPath, "output", "o", "", "数据集路径 (默认使用配置中的输出路径)")
	showCmd.Flags().BoolVar(&showUnmatched, "unmatched", false, "列出未匹配期刊的出版物")
}
