package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/RecoveryAshes/ScholarFuse/internal/config"
	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
	"github.com/RecoveryAshes/ScholarFuse/internal/retry"
	"github.com/RecoveryAshes/ScholarFuse/internal/store"
	"github.com/RecoveryAshes/ScholarFuse/internal/utils"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "SCHOLARFUSE"

// MaxParallelSources 同时运行的数据源上限
const MaxParallelSources = 3

// Config 应用程序配置
type Config struct {
	Traversal models.TraversalConfig `mapstructure:"traversal"`
	Retry     models.RetryConfig     `mapstructure:"retry"`
	Browser   models.BrowserConfig   `mapstructure:"browser"`
	Sources   SourcesConfig          `mapstructure:"sources"`
	Resolver  ResolverConfig         `mapstructure:"resolver"`
	Output    OutputConfig           `mapstructure:"output"`
	Logging   LoggingConfig          `mapstructure:"logging"`
	Run       RunConfig              `mapstructure:"run"`

	// 配置文件路径(使用默认值时为空)
	file string
	v    *viper.Viper
}

// SourcesConfig 数据源配置
type SourcesConfig struct {
	Enabled  []string       `mapstructure:"enabled"`
	Scholar  EndpointConfig `mapstructure:"scholar"`
	Scopus   EndpointConfig `mapstructure:"scopus"`
	WoS      WoSConfig      `mapstructure:"wos"`
	SJR      EndpointConfig `mapstructure:"sjr"`
	CrossRef CrossRefConfig `mapstructure:"crossref"`
}

// EndpointConfig 数据源地址(机构代理时覆盖)
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// WoSConfig 引文索引配置
type WoSConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// CrossRefConfig DOI查询配置
type CrossRefConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	BaseURL           string  `mapstructure:"base_url"`
	Mailto            string  `mapstructure:"mailto"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// ResolverConfig 期刊关联配置
type ResolverConfig struct {
	NameFallback bool `mapstructure:"name_fallback"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Path          string `mapstructure:"path"`
	ReportDir     string `mapstructure:"report_dir"`
	CheckpointDir string `mapstructure:"checkpoint_dir"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Quiet    bool           `mapstructure:"quiet"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// RunConfig 运行配置
type RunConfig struct {
	ParallelSources int  `mapstructure:"parallel_sources"`
	Resume          bool `mapstructure:"resume"`
}

// LoadConfig 加载配置文件
// 优先级: 命令行(MergeCLIFlags) > 环境变量 > 配置文件 > 默认值
func LoadConfig(configPath string) (*Config, error) {
	// .env中的凭据先进入环境变量,文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		if err := config.ValidateFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scholarfuse"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("sources.wos.email", EnvPrefix+"_WOS_EMAIL")
	_ = v.BindEnv("sources.wos.password", EnvPrefix+"_WOS_PASSWORD")
	_ = v.BindEnv("sources.crossref.mailto", EnvPrefix+"_CROSSREF_MAILTO")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		// 配置文件不存在,使用默认值
		utils.Debugf("未找到配置文件,使用默认配置")
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{
			FilePath: v.ConfigFileUsed(),
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	cfg.file = v.ConfigFileUsed()
	cfg.v = v

	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 遍历配置默认值
	v.SetDefault("traversal.max_depth", 2)
	v.SetDefault("traversal.fan_out", 2)
	v.SetDefault("traversal.max_publications", 0)

	// 重试配置默认值
	v.SetDefault("retry.detail_attempts", retry.DefaultAttempts)
	v.SetDefault("retry.max_pagination_iterations", retry.DefaultMaxIterations)
	v.SetDefault("retry.settle_delay_ms", 500)
	v.SetDefault("retry.recheck", false)

	// 浏览器配置默认值
	v.SetDefault("browser.mode", string(models.ModeDynamic))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.timeout_seconds", 30)
	v.SetDefault("browser.max_restarts", 3)
	v.SetDefault("browser.requests_per_second", 0.5)
	v.SetDefault("browser.user_agent", "")

	// 数据源配置默认值
	v.SetDefault("sources.enabled", []string{string(models.SourceScholar)})
	v.SetDefault("sources.scholar.base_url", "")
	v.SetDefault("sources.scopus.base_url", "")
	v.SetDefault("sources.wos.base_url", "")
	v.SetDefault("sources.wos.email", "")
	v.SetDefault("sources.wos.password", "")
	v.SetDefault("sources.sjr.base_url", "")
	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.base_url", "")
	v.SetDefault("sources.crossref.mailto", "")
	v.SetDefault("sources.crossref.requests_per_second", 2.0)

	// 期刊关联默认值
	v.SetDefault("resolver.name_fallback", true)

	// 输出配置默认值
	v.SetDefault("output.path", filepath.Join("output", "dataset.json"))
	v.SetDefault("output.report_dir", filepath.Join("output", "reports"))
	v.SetDefault("output.checkpoint_dir", filepath.Join("output", "checkpoints"))

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.quiet", false)
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 运行配置默认值
	v.SetDefault("run.parallel_sources", 1)
	v.SetDefault("run.resume", false)
}

// RunFlags 命令行参数,零值表示未指定
type RunFlags struct {
	Sources         []string
	Depth           *int
	FanOut          *int
	MaxPublications *int
	Output          string
	Mode            string
	Headless        *bool
	Parallel        int
	Resume          bool
	LogLevel        string
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(f RunFlags) {
	if len(f.Sources) > 0 {
		c.Sources.Enabled = f.Sources
	}
	if f.Depth != nil {
		c.Traversal.MaxDepth = *f.Depth
	}
	if f.FanOut != nil {
		c.Traversal.FanOut = *f.FanOut
	}
	if f.MaxPublications != nil {
		c.Traversal.MaxPublications = *f.MaxPublications
	}
	if f.Output != "" {
		c.Output.Path = f.Output
	}
	if f.Mode != "" {
		c.Browser.Mode = models.BrowserMode(f.Mode)
	}
	if f.Headless != nil {
		c.Browser.Headless = *f.Headless
	}
	if f.Parallel > 0 {
		c.Run.ParallelSources = f.Parallel
	}
	if f.Resume {
		c.Run.Resume = true
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Traversal.Validate(); err != nil {
		return c.wrap(err)
	}
	if err := c.Retry.Validate(); err != nil {
		return c.wrap(err)
	}
	if err := c.Browser.Validate(); err != nil {
		return c.wrap(err)
	}
	if _, err := c.SourceNames(); err != nil {
		return c.wrap(err)
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return c.wrap(fmt.Errorf("输出路径不能为空"))
	}
	if _, err := store.FormatOf(c.Output.Path); err != nil {
		return c.wrap(err)
	}
	if c.Run.ParallelSources < 1 || c.Run.ParallelSources > MaxParallelSources {
		return c.wrap(fmt.Errorf("并行数据源数必须在1-%d之间", MaxParallelSources))
	}
	return nil
}

func (c *Config) wrap(err error) error {
	return &models.ConfigError{FilePath: c.file, Cause: err}
}

// SourceNames 返回启用的数据源(去重,保持顺序)
func (c *Config) SourceNames() ([]models.SourceName, error) {
	if len(c.Sources.Enabled) == 0 {
		return nil, fmt.Errorf("至少需要启用一个数据源")
	}
	seen := make(map[models.SourceName]bool)
	names := make([]models.SourceName, 0, len(c.Sources.Enabled))
	for _, raw := range c.Sources.Enabled {
		name := models.SourceName(strings.ToLower(strings.TrimSpace(raw)))
		if !isAuthorSource(name) {
			return nil, fmt.Errorf("无效的数据源: %s (有效值: scholar, scopus, wos)", raw)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func isAuthorSource(name models.SourceName) bool {
	for _, s := range models.AuthorSources {
		if s == name {
			return true
		}
	}
	return false
}

// Policy 返回重试策略
func (c *Config) Policy() retry.Policy {
	return retry.PolicyFromConfig(c.Retry)
}

// SourceOptions 构造数据源适配器选项
func (c *Config) SourceOptions(name models.SourceName) crawlers.Options {
	opts := crawlers.Options{
		SJRBaseURL: c.Sources.SJR.BaseURL,
		Policy:     c.Policy(),
	}
	switch name {
	case models.SourceScholar:
		opts.BaseURL = c.Sources.Scholar.BaseURL
		if c.Sources.CrossRef.Enabled {
			opts.CrossRef = crawlers.NewCrossRef(
				c.Sources.CrossRef.BaseURL,
				c.Sources.CrossRef.Mailto,
				c.Browser.Timeout(),
				c.Sources.CrossRef.RequestsPerSecond,
			)
		}
	case models.SourceScopus:
		opts.BaseURL = c.Sources.Scopus.BaseURL
	case models.SourceWoS:
		opts.BaseURL = c.Sources.WoS.BaseURL
		opts.Credentials = crawlers.Credentials{
			Email:    c.Sources.WoS.Email,
			Password: c.Sources.WoS.Password,
		}
	}
	return opts
}

// LogConfig 返回日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		Quiet:      c.Logging.Quiet,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CheckpointPath 数据源检查点文件路径
func (c *Config) CheckpointPath(source models.SourceName) string {
	return filepath.Join(c.Output.CheckpointDir, models.CheckpointFilename(source))
}

// File 返回实际使用的配置文件路径
func (c *Config) File() string {
	return c.file
}

// Settings 返回合并后的配置树(已脱敏),用于config show
func (c *Config) Settings() map[string]interface{} {
	if c.v == nil {
		return map[string]interface{}{}
	}
	settings := c.v.AllSettings()
	settings["sources"] = mergeSources(settings["sources"], c.Sources)
	return utils.NewRedactor().RedactMap(settings)
}

// mergeSources 将命令行覆盖后的启用列表写回配置树
func mergeSources(raw interface{}, sources SourcesConfig) interface{} {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return raw
	}
	m["enabled"] = sources.Enabled
	return m
}
