package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器
var Logger zerolog.Logger

const (
	// MainLogFile 主日志文件名(所有级别)
	MainLogFile = "scholarfuse.log"
	// ErrorLogFile 错误日志文件名(仅错误及以上)
	ErrorLogFile = "scholarfuse_error.log"
)

var (
	closersMu sync.Mutex
	closers   []io.Closer
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string // 日志级别: trace, debug, info, warn, error
	LogDir     string // 日志目录
	MaxSize    int    // 单个日志文件最大大小(MB)
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧日志
	Quiet      bool   // 控制台只输出警告及以上级别
	// Console 控制台输出,为空时使用stderr(stdout留给YAML与统计输出)
	Console io.Writer
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// NewLogger 按配置创建日志器
// 返回的Closer关闭两个轮转日志文件
func NewLogger(config LogConfig) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	level := zerolog.InfoLevel
	if config.Level != "" {
		parsed, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("无效的日志级别: %s", config.Level)
		}
		level = parsed
	}

	mainFile := rotatingFile(config, MainLogFile)
	errorFile := rotatingFile(config, ErrorLogFile)

	out := config.Console
	if out == nil {
		out = os.Stderr
	}
	var console io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	if config.Quiet {
		console = &FilteredWriter{Writer: console, MinLevel: zerolog.WarnLevel}
	}

	writer := zerolog.MultiLevelWriter(
		console,
		mainFile,
		&FilteredWriter{Writer: errorFile, MinLevel: zerolog.ErrorLevel},
	)
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, multiCloser{mainFile, errorFile}, nil
}

// InitLogger 初始化全局日志器,重复调用时关闭上一次打开的日志文件
func InitLogger(config LogConfig) error {
	logger, closer, err := NewLogger(config)
	if err != nil {
		return err
	}

	closersMu.Lock()
	old := closers
	closers = []io.Closer{closer}
	closersMu.Unlock()
	for _, c := range old {
		_ = c.Close()
	}

	Logger = logger
	log.Logger = logger

	Logger.Debug().
		Str("level", logger.GetLevel().String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

// CloseLogger 关闭全局日志器的日志文件
func CloseLogger() error {
	closersMu.Lock()
	defer closersMu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	return errors.Join(errs...)
}

func rotatingFile(config LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, name),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FilteredWriter 只写入指定级别及以上的日志
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 无级别信息的写入一律丢弃
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel 带级别的写入
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

// WithFields 返回附带字段的子日志器,挂到ctx上供下游通过zerolog.Ctx读取
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &Logger
	}
	child := l.With().Fields(fields).Logger()
	return child.WithContext(ctx)
}

// Info 快捷方法: 信息日志
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Infof 快捷方法: 格式化信息日志
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Errorf 快捷方法: 格式化错误日志
func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

// Warn 快捷方法: 警告日志
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Warnf 快捷方法: 格式化警告日志
func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

// Debugf 快捷方法: 格式化调试日志
func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}
