package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidateSourceName 验证作者数据源名称
func ValidateSourceName(source SourceName) error {
	for _, s := range AuthorSources {
		if s == source {
			return nil
		}
	}
	return fmt.Errorf("不支持的数据源: %s (有效值: scholar, scopus, wos)", source)
}

// NewRunID 生成运行ID
func NewRunID() string {
	return uuid.New().String()
}
