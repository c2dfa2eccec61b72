package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceName 数据源名称
type SourceName string

const (
	SourceScholar SourceName = "scholar" // 学术档案站点
	SourceScopus  SourceName = "scopus"  // 文献计量数据库
	SourceWoS     SourceName = "wos"     // 引文索引
	SourceSJR     SourceName = "sjr"     // 期刊排名站点
)

// AuthorSources 可作为遍历入口的数据源
var AuthorSources = []SourceName{SourceScholar, SourceScopus, SourceWoS}

// VisitState 作者标识的遍历状态
type VisitState string

const (
	StateUnvisited  VisitState = "UNVISITED"   // 未访问
	StateInProgress VisitState = "IN_PROGRESS" // 处理中
	StateDone       VisitState = "DONE"        // 已完成
	StateFailed     VisitState = "FAILED"      // 失败,不再重试
)

// Terminal 是否为终止状态
func (s VisitState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// BrowserMode 页面会话模式
type BrowserMode string

const (
	ModeDynamic BrowserMode = "dynamic" // 真实浏览器(Rod)
	ModeStatic  BrowserMode = "static"  // 纯HTTP抓取(Colly)
)

// RunStats 运行统计
type RunStats struct {
	SeedsTotal          int     `json:"seeds_total"`          // 入口标识数
	AuthorsVisited      int     `json:"authors_visited"`      // 已处理作者数
	AuthorsDone         int     `json:"authors_done"`         // 成功作者数
	AuthorsFailed       int     `json:"authors_failed"`       // 失败作者数
	PublicationsListed  int     `json:"publications_listed"`  // 列表中发现的出版物数
	PublicationsFetched int     `json:"publications_fetched"` // 抓取详情的出版物数
	MissingFields       int     `json:"missing_fields"`       // 缺失字段总数
	JournalsMatched     int     `json:"journals_matched"`     // 成功关联的期刊数
	JournalsUnmatched   int     `json:"journals_unmatched"`   // 未关联的出版物数
	RecordsWritten      int     `json:"records_written"`      // 写入数据集的记录数
	SessionRestarts     int     `json:"session_restarts"`     // 会话重启次数
	Duration            float64 `json:"duration"`             // 总耗时(秒)
}

// Add 累加另一份统计
func (s *RunStats) Add(o RunStats) {
	s.SeedsTotal += o.SeedsTotal
	s.AuthorsVisited += o.AuthorsVisited
	s.AuthorsDone += o.AuthorsDone
	s.AuthorsFailed += o.AuthorsFailed
	s.PublicationsListed += o.PublicationsListed
	s.PublicationsFetched += o.PublicationsFetched
	s.MissingFields += o.MissingFields
	s.JournalsMatched += o.JournalsMatched
	s.JournalsUnmatched += o.JournalsUnmatched
	s.RecordsWritten += o.RecordsWritten
	s.SessionRestarts += o.SessionRestarts
}

// TraversalConfig 遍历配置
type TraversalConfig struct {
	MaxDepth        int `json:"max_depth" mapstructure:"max_depth"`               // 合作者扩展最大跳数 (默认:2)
	FanOut          int `json:"fan_out" mapstructure:"fan_out"`                   // 每个作者扩展的合作者数 (默认:2)
	MaxPublications int `json:"max_publications" mapstructure:"max_publications"` // 每个作者抓取的出版物上限,0为不限
}

// Validate 验证配置
func (c *TraversalConfig) Validate() error {
	if c.MaxDepth < 0 || c.MaxDepth > 2 {
		return fmt.Errorf("遍历深度必须在0-2之间")
	}
	if c.FanOut < 0 || c.FanOut > 50 {
		return fmt.Errorf("合作者扩展数必须在0-50之间")
	}
	if c.MaxPublications < 0 {
		return fmt.Errorf("出版物上限不能为负数")
	}
	return nil
}

// RetryConfig 重试与分页配置
type RetryConfig struct {
	DetailAttempts          int  `json:"detail_attempts" mapstructure:"detail_attempts"`                     // 字段重试次数 (默认:3)
	MaxPaginationIterations int  `json:"max_pagination_iterations" mapstructure:"max_pagination_iterations"` // 分页最大触发次数 (默认:50)
	SettleDelayMs           int  `json:"settle_delay_ms" mapstructure:"settle_delay_ms"`                     // 加载后等待(毫秒)
	Recheck                 bool `json:"recheck" mapstructure:"recheck"`                                     // 不动点前再测量一次
}

// Validate 验证配置
func (c *RetryConfig) Validate() error {
	if c.DetailAttempts < 1 || c.DetailAttempts > 10 {
		return fmt.Errorf("字段重试次数必须在1-10之间")
	}
	if c.MaxPaginationIterations < 1 || c.MaxPaginationIterations > 1000 {
		return fmt.Errorf("分页最大次数必须在1-1000之间")
	}
	if c.SettleDelayMs < 0 || c.SettleDelayMs > 60000 {
		return fmt.Errorf("加载等待时间必须在0-60000毫秒之间")
	}
	return nil
}

// BrowserConfig 浏览器会话配置
type BrowserConfig struct {
	Mode              BrowserMode `json:"mode" mapstructure:"mode"`                               // dynamic|static
	Headless          bool        `json:"headless" mapstructure:"headless"`                       // 无头模式 (默认:true)
	Bin               string      `json:"bin,omitempty" mapstructure:"bin"`                       // 浏览器可执行文件,留空自动下载
	TimeoutSeconds    int         `json:"timeout_seconds" mapstructure:"timeout_seconds"`         // 单次等待上限(秒)
	MaxRestarts       int         `json:"max_restarts" mapstructure:"max_restarts"`               // 浏览器崩溃最大重启次数
	RequestsPerSecond float64     `json:"requests_per_second" mapstructure:"requests_per_second"` // 页面导航速率
	UserAgent         string      `json:"user_agent,omitempty" mapstructure:"user_agent"`
}

// Timeout 返回单次等待上限
func (c *BrowserConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate 验证配置
func (c *BrowserConfig) Validate() error {
	if c.Mode != ModeDynamic && c.Mode != ModeStatic {
		return fmt.Errorf("无效的会话模式: %s (有效值: dynamic, static)", c.Mode)
	}
	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 300 {
		return fmt.Errorf("等待上限必须在1-300秒之间")
	}
	if c.MaxRestarts < 0 || c.MaxRestarts > 10 {
		return fmt.Errorf("浏览器重启次数必须在0-10之间")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("导航速率必须大于0")
	}
	return nil
}

// ScrapeTask 单个数据源的抓取任务
type ScrapeTask struct {
	ID          string     `json:"id"`                     // 运行ID (UUID)
	Source      SourceName `json:"source"`                 // 数据源
	Seeds       []string   `json:"seeds"`                  // 入口标识或姓名
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Traversal TraversalConfig `json:"traversal"`
	Retry     RetryConfig     `json:"retry"`

	Stats        RunStats `json:"stats"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// NewScrapeTask 创建新任务
func NewScrapeTask(source SourceName, seeds []string, traversal TraversalConfig, retry RetryConfig) (*ScrapeTask, error) {
	if err := ValidateSourceName(source); err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("入口标识列表为空")
	}
	if err := traversal.Validate(); err != nil {
		return nil, err
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}

	return &ScrapeTask{
		ID:        NewRunID(),
		Source:    source,
		Seeds:     seeds,
		CreatedAt: time.Now(),
		Traversal: traversal,
		Retry:     retry,
		Stats:     RunStats{SeedsTotal: len(seeds)},
	}, nil
}

// ToJSON 序列化为JSON
func (t *ScrapeTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
