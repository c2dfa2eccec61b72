package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RecoveryAshes/ScholarFuse/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置文件管理",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "生成配置文件模板",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = config.DefaultConfigFile
		}
		if err := config.WriteTemplate(path, configForce); err != nil {
			return err
		}
		fmt.Printf("✅ 配置文件已生成: %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示合并后的配置(凭据已脱敏)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(appConfig.Settings())
		if err != nil {
			return fmt.Errorf("序列化配置失败: %w", err)
		}
		if file := appConfig.File(); file != "" {
			fmt.Printf("# 配置文件: %s\n", file)
		} else {
			fmt.Println("# 未找到配置文件,使用默认值")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "覆盖已存在的配置文件")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
