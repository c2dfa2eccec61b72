package utils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("读取日志文件失败 %s: %v", name, err)
	}
	return string(data)
}

func TestNewLogger_Files(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	var console bytes.Buffer

	logger, closer, err := NewLogger(LogConfig{Level: "info", LogDir: dir, MaxSize: 1, Console: &console})
	if err != nil {
		t.Fatalf("创建日志器失败: %v", err)
	}

	logger.Debug().Msg("调试-不应出现")
	logger.Info().Str("source", "scopus").Msg("作者已解析")
	logger.Error().Msg("会话崩溃")
	if err := closer.Close(); err != nil {
		t.Fatalf("关闭日志文件失败: %v", err)
	}

	main := readLog(t, dir, MainLogFile)
	if strings.Contains(main, "调试-不应出现") {
		t.Error("低于配置级别的日志不应写入")
	}
	if !strings.Contains(main, "作者已解析") || !strings.Contains(main, `"source":"scopus"`) {
		t.Errorf("主日志缺少信息日志: %s", main)
	}

	errorsOnly := readLog(t, dir, ErrorLogFile)
	if strings.Contains(errorsOnly, "作者已解析") {
		t.Error("错误日志不应包含信息级别")
	}
	if !strings.Contains(errorsOnly, "会话崩溃") {
		t.Errorf("错误日志缺少错误级别: %s", errorsOnly)
	}

	if !strings.Contains(console.String(), "作者已解析") {
		t.Errorf("控制台缺少输出: %s", console.String())
	}
}

func TestNewLogger_Levels(t *testing.T) {
	testCases := []struct {
		description string
		level       string
		want        zerolog.Level
		wantErr     bool
	}{
		{description: "空级别默认info", level: "", want: zerolog.InfoLevel},
		{description: "调试", level: "debug", want: zerolog.DebugLevel},
		{description: "跟踪", level: "trace", want: zerolog.TraceLevel},
		{description: "错误", level: "error", want: zerolog.ErrorLevel},
		{description: "无效级别", level: "loud", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			logger, closer, err := NewLogger(LogConfig{Level: tc.level, LogDir: t.TempDir(), Console: &bytes.Buffer{}})
			if tc.wantErr {
				if err == nil {
					t.Error("期望报错")
				}
				return
			}
			if err != nil {
				t.Fatalf("不应报错: %v", err)
			}
			defer closer.Close()
			if logger.GetLevel() != tc.want {
				t.Errorf("级别 = %s, 期望 %s", logger.GetLevel(), tc.want)
			}
		})
	}
}

func TestNewLogger_Quiet(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := NewLogger(LogConfig{Level: "debug", LogDir: t.TempDir(), Quiet: true, Console: &console})
	if err != nil {
		t.Fatalf("创建日志器失败: %v", err)
	}
	defer closer.Close()

	logger.Info().Msg("进度信息")
	logger.Warn().Msg("期刊未匹配")

	out := console.String()
	if strings.Contains(out, "进度信息") {
		t.Error("静默模式下控制台不应输出信息日志")
	}
	if !strings.Contains(out, "期刊未匹配") {
		t.Errorf("静默模式下控制台应输出警告: %s", out)
	}
}

func TestFilteredWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &FilteredWriter{Writer: &buf, MinLevel: zerolog.WarnLevel}

	testCases := []struct {
		description string
		level       zerolog.Level
		msg         string
		written     bool
	}{
		{description: "信息被过滤", level: zerolog.InfoLevel, msg: "info-line"},
		{description: "警告写入", level: zerolog.WarnLevel, msg: "warn-line", written: true},
		{description: "错误写入", level: zerolog.ErrorLevel, msg: "error-line", written: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			n, err := w.WriteLevel(tc.level, []byte(tc.msg))
			if err != nil || n != len(tc.msg) {
				t.Fatalf("写入返回 (%d, %v)", n, err)
			}
			if got := strings.Contains(buf.String(), tc.msg); got != tc.written {
				t.Errorf("写入 = %v, 期望 %v", got, tc.written)
			}
		})
	}

	if n, _ := w.Write([]byte("no-level")); n != len("no-level") || strings.Contains(buf.String(), "no-level") {
		t.Error("无级别写入应被丢弃")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := base.WithContext(context.Background())

	ctx = WithFields(ctx, map[string]interface{}{"source": "wos"})
	ctx = WithFields(ctx, map[string]interface{}{"author": "AAB-1234-2020", "depth": 1})
	zerolog.Ctx(ctx).Info().Msg("抓取出版物")

	out := buf.String()
	for _, want := range []string{`"source":"wos"`, `"author":"AAB-1234-2020"`, `"depth":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("日志缺少字段 %s: %s", want, out)
		}
	}
}

func TestWithFields_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	saved := Logger
	Logger = zerolog.New(&buf)
	defer func() { Logger = saved }()

	ctx := WithFields(context.Background(), map[string]interface{}{"run_id": "r-1"})
	zerolog.Ctx(ctx).Info().Msg("开始")

	if !strings.Contains(buf.String(), `"run_id":"r-1"`) {
		t.Errorf("未回退到全局日志器: %s", buf.String())
	}
}

func TestInitLoggerAndClose(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()

	dir := t.TempDir()
	if err := InitLogger(LogConfig{Level: "info", LogDir: dir, Console: &bytes.Buffer{}}); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	Infof("写入 %d 条记录", 3)
	Warn("会话重启")
	Errorf("作者 %s 失败", "57190000001")

	if err := CloseLogger(); err != nil {
		t.Fatalf("关闭日志器失败: %v", err)
	}
	if err := CloseLogger(); err != nil {
		t.Errorf("重复关闭不应报错: %v", err)
	}

	main := readLog(t, dir, MainLogFile)
	for _, want := range []string{"写入 3 条记录", "会话重启", "作者 57190000001 失败"} {
		if !strings.Contains(main, want) {
			t.Errorf("主日志缺少 %q", want)
		}
	}
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	testCases := []struct {
		description string
		got, want   interface{}
	}{
		{description: "级别", got: cfg.Level, want: "info"},
		{description: "目录", got: cfg.LogDir, want: "logs"},
		{description: "大小", got: cfg.MaxSize, want: 10},
		{description: "备份", got: cfg.MaxBackups, want: 3},
		{description: "保留天数", got: cfg.MaxAge, want: 28},
		{description: "压缩", got: cfg.Compress, want: true},
		{description: "非静默", got: cfg.Quiet, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("%v, 期望 %v", tc.got, tc.want)
			}
		})
	}
}
