package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/extract"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

var journalByName bool

// journalView 期刊指标的展示形式
type journalView struct {
	Query        string `yaml:"query"`
	ISSN         string `yaml:"issn"`
	Matched      bool   `yaml:"matched"`
	Name         string `yaml:"name,omitempty"`
	Publisher    string `yaml:"publisher,omitempty"`
	HIndex       string `yaml:"h_index,omitempty"`
	Country      string `yaml:"country,omitempty"`
	Scope        string `yaml:"scope,omitempty"`
	SubjectAreas string `yaml:"subject_areas,omitempty"`
	Quartile     string `yaml:"quartile,omitempty"`
	SJR          string `yaml:"sjr,omitempty"`
	ImpactFactor string `yaml:"impact_factor,omitempty"`
}

func newJournalView(query string, m models.JournalMetrics) journalView {
	return journalView{
		Query:        query,
		ISSN:         m.ISSN,
		Matched:      m.HasAny(),
		Name:         m.Name.String(),
		Publisher:    m.Publisher.String(),
		HIndex:       m.HIndex.String(),
		Country:      m.Country.String(),
		Scope:        m.Scope.String(),
		SubjectAreas: m.SubjectAreas.String(),
		Quartile:     m.Quartile.String(),
		SJR:          m.SJR.String(),
		ImpactFactor: m.ImpactFactor.String(),
	}
}

var journalCmd = &cobra.Command{
	Use:   "journal <issn>...",
	Short: "查询期刊排名指标",
	Long: `按ISSN查询期刊排名指标,以YAML输出

  scholarfuse journal 0028-0836 1476-4687
  scholarfuse journal --name "Nature Communications"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := utils.Logger.WithContext(cmd.Context())

		session, err := crawlers.NewSession(appConfig.Browser)
		if err != nil {
			return fmt.Errorf("创建会话失败: %w", err)
		}
		defer session.Close()
		sjr := crawlers.NewSJR(session, appConfig.Sources.SJR.BaseURL, appConfig.Policy())

		views := make([]journalView, 0, len(args))
		for _, arg := range args {
			if journalByName {
				views = append(views, newJournalView(arg, sjr.LookupJournalByName(ctx, arg)))
				continue
			}
			issn, ok := extract.ISSN(arg)
			if !ok {
				utils.Warnf("⚠️  无效的ISSN: %s", arg)
				continue
			}
			views = append(views, newJournalView(arg, sjr.LookupJournalMetrics(ctx, issn)))
		}
		if len(views) == 0 {
			return fmt.Errorf("没有有效的查询")
		}

		out, err := yaml.Marshal(views)
		if err != nil {
			return fmt.Errorf("序列化失败: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	journalCmd.Flags().BoolVar(&journalByName, "name", false, "按期刊名称查询")
}
