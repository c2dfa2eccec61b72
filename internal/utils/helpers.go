package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// ReadSeedsFromFile 从文件中读取入口标识列表
// 每行一个标识或姓名,"#"开头为注释;行首可写"scopus:"等前缀限定数据源,
// 前缀与source不一致的行被跳过
func ReadSeedsFromFile(filepath string, source models.SourceName) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer file.Close()

	validator := NewSeedValidator()
	seeds := make([]string, 0)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line, ok := stripSourcePrefix(line, source)
		if !ok {
			continue
		}

		if err := validator.Validate(source, line); err != nil {
			Warnf("跳过无效标识 (行 %d): %v", lineNum, err)
			continue
		}

		if seen[line] {
			continue
		}
		seen[line] = true
		seeds = append(seeds, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("种子文件中没有 %s 的有效标识", source)
	}

	Infof("从文件加载了 %d 个 %s 标识", len(seeds), source)
	return seeds, nil
}

// SeedsForSource 筛选命令行传入的入口标识
// 规则与种子文件相同: "wos:XXX"只属于wos,无前缀的标识对每个数据源都尝试
func SeedsForSource(raw []string, source models.SourceName) []string {
	validator := NewSeedValidator()
	seeds := make([]string, 0, len(raw))
	seen := make(map[string]bool)
	for _, item := range raw {
		seed, ok := stripSourcePrefix(strings.TrimSpace(item), source)
		if !ok || seed == "" {
			continue
		}
		if err := validator.Validate(source, seed); err != nil {
			Debugf("跳过 %s 的无效标识: %v", source, err)
			continue
		}
		if !seen[seed] {
			seen[seed] = true
			seeds = append(seeds, seed)
		}
	}
	return seeds
}

// stripSourcePrefix 去掉数据源前缀,前缀与source不一致时返回false
func stripSourcePrefix(line string, source models.SourceName) (string, bool) {
	prefix, rest, ok := strings.Cut(line, ":")
	if !ok || !isSourcePrefix(prefix) {
		return line, true
	}
	if models.SourceName(strings.ToLower(prefix)) != source {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func isSourcePrefix(prefix string) bool {
	for _, s := range models.AuthorSources {
		if strings.EqualFold(prefix, string(s)) {
			return true
		}
	}
	return false
}
