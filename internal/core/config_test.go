package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/ScholarFuse/internal/config"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Template(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteTemplate(path, false))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, path, cfg.File())
	assert.Equal(t, 2, cfg.Traversal.MaxDepth)
	assert.Equal(t, 2, cfg.Traversal.FanOut)
	assert.Equal(t, 3, cfg.Retry.DetailAttempts)
	assert.Equal(t, models.ModeDynamic, cfg.Browser.Mode)
	assert.True(t, cfg.Resolver.NameFallback)
	assert.Equal(t, []string{"scholar"}, cfg.Sources.Enabled)
	assert.Equal(t, 1, cfg.Run.ParallelSources)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeTestConfig(t, `
traversal:
  max_depth: 1
  fan_out: 3
browser:
  mode: static
sources:
  enabled: [scopus, wos]
output:
  path: out/data.csv
`)
	t.Setenv("SCHOLARFUSE_TRAVERSAL_FAN_OUT", "4")
	t.Setenv("SCHOLARFUSE_WOS_EMAIL", "ada@example.org")
	t.Setenv("SCHOLARFUSE_WOS_PASSWORD", "hunter2")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Traversal.MaxDepth)
	assert.Equal(t, 4, cfg.Traversal.FanOut, "环境变量优先于配置文件")
	assert.Equal(t, models.ModeStatic, cfg.Browser.Mode)
	assert.Equal(t, "out/data.csv", cfg.Output.Path)
	// 未写的项使用默认值
	assert.Equal(t, 50, cfg.Retry.MaxPaginationIterations)

	names, err := cfg.SourceNames()
	require.NoError(t, err)
	assert.Equal(t, []models.SourceName{models.SourceScopus, models.SourceWoS}, names)

	opts := cfg.SourceOptions(models.SourceWoS)
	assert.Equal(t, "ada@example.org", opts.Credentials.Email)
	assert.Equal(t, "hunter2", opts.Credentials.Password)
	assert.Nil(t, opts.CrossRef)

	settings := cfg.Settings()
	wos := settings["sources"].(map[string]interface{})["wos"].(map[string]interface{})
	assert.Equal(t, "***", wos["password"])
	assert.Equal(t, "a***@example.org", wos["email"])
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeTestConfig(t, "traversal: [unclosed")
	_, err = LoadConfig(path)
	var cfgErr *models.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t, "traversal:\n  max_depth: 2\n"))
	require.NoError(t, err)

	depth, fanOut, headless := 0, 5, false
	cfg.MergeCLIFlags(RunFlags{
		Sources:  []string{"scopus"},
		Depth:    &depth,
		FanOut:   &fanOut,
		Headless: &headless,
		Output:   "out/data.db",
		Mode:     "static",
		Parallel: 2,
		Resume:   true,
		LogLevel: "debug",
	})

	assert.Equal(t, 0, cfg.Traversal.MaxDepth, "显式传入0也应生效")
	assert.Equal(t, 5, cfg.Traversal.FanOut)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "out/data.db", cfg.Output.Path)
	assert.Equal(t, models.ModeStatic, cfg.Browser.Mode)
	assert.Equal(t, 2, cfg.Run.ParallelSources)
	assert.True(t, cfg.Run.Resume)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"scopus"}, cfg.Settings()["sources"].(map[string]interface{})["enabled"])
	require.NoError(t, cfg.Validate())

	// 未指定的参数不覆盖
	cfg.MergeCLIFlags(RunFlags{})
	assert.Equal(t, 5, cfg.Traversal.FanOut)
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
	}{
		{description: "深度超限", mutate: func(c *Config) { c.Traversal.MaxDepth = 3 }},
		{description: "无效数据源", mutate: func(c *Config) { c.Sources.Enabled = []string{"arxiv"} }},
		{description: "期刊站点不能作为数据源", mutate: func(c *Config) { c.Sources.Enabled = []string{"sjr"} }},
		{description: "未启用数据源", mutate: func(c *Config) { c.Sources.Enabled = nil }},
		{description: "不支持的输出格式", mutate: func(c *Config) { c.Output.Path = "out/data.xml" }},
		{description: "输出路径为空", mutate: func(c *Config) { c.Output.Path = " " }},
		{description: "并行数超限", mutate: func(c *Config) { c.Run.ParallelSources = MaxParallelSources + 1 }},
		{description: "无效模式", mutate: func(c *Config) { c.Browser.Mode = "headful" }},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			cfg, err := LoadConfig(writeTestConfig(t, "logging:\n  level: info\n"))
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tc.mutate(cfg)
			err = cfg.Validate()
			var cfgErr *models.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "期望ConfigError, 得到 %v", err)
		})
	}
}

func TestConfig_SourceOptionsAndPaths(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t, `
sources:
  scholar:
    base_url: https://scholar.proxy.example.edu
  crossref:
    enabled: true
output:
  checkpoint_dir: state
`))
	require.NoError(t, err)

	opts := cfg.SourceOptions(models.SourceScholar)
	assert.Equal(t, "https://scholar.proxy.example.edu", opts.BaseURL)
	assert.NotNil(t, opts.CrossRef)
	assert.Equal(t, 3, opts.Policy.Attempts)

	assert.Equal(t, filepath.Join("state", models.CheckpointFilename(models.SourceScopus)), cfg.CheckpointPath(models.SourceScopus))
}
