package store

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/viant/afs"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// codec 文件格式的编解码
type codec interface {
	encode(rows []models.DatasetRow) ([]byte, error)
	decode(data []byte) ([]models.DatasetRow, error)
}

// fileStore 基于afs的文件存储,本地路径与afs支持的远程URL均可
type fileStore struct {
	path  string
	codec codec
	fs    afs.Service
	lock  *fileLock // 仅本地路径使用
	mu    sync.Mutex
}

func newFileStore(path string, c codec) *fileStore {
	s := &fileStore{
		path:  path,
		codec: c,
		fs:    afs.New(),
	}
	if isLocal(path) {
		s.path = localPath(path)
		s.lock = newFileLock(s.path)
	}
	return s
}

// Path 返回存储位置
func (s *fileStore) Path() string {
	return s.path
}

// Close 文件存储无需释放资源
func (s *fileStore) Close() error {
	return nil
}

// Load 读取数据集,文件不存在时返回空
func (s *fileStore) Load(ctx context.Context) ([]models.DatasetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Merge 加锁后执行 读取 → 合并 → 写回
func (s *fileStore) Merge(ctx context.Context, batch []models.DatasetRow) (MergeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		if err := s.lock.Acquire(ctx); err != nil {
			return MergeStats{}, err
		}
		defer func() {
			if err := s.lock.Release(); err != nil {
				log.Warn().Err(err).Str("path", s.path).Msg("⚠️  释放锁文件失败")
			}
		}()
	}

	existing, err := s.load(ctx)
	if err != nil {
		return MergeStats{}, err
	}

	merged, stats := merge(existing, batch)
	if err := s.write(ctx, merged); err != nil {
		return MergeStats{}, err
	}

	log.Debug().
		Str("path", s.path).
		Int("existing", stats.Existing).
		Int("incoming", stats.Incoming).
		Int("duplicates", stats.Duplicates).
		Int("total", stats.Total).
		Msg("数据集合并完成")
	return stats, nil
}

func (s *fileStore) load(ctx context.Context) ([]models.DatasetRow, error) {
	exists, err := s.fs.Exists(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("检查数据集失败 %s: %w", s.path, err)
	}
	if !exists {
		return nil, nil
	}

	data, err := s.fs.DownloadWithURL(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("读取数据集失败 %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	rows, err := s.codec.decode(data)
	if err != nil {
		return nil, fmt.Errorf("解析数据集失败 %s: %w", s.path, err)
	}
	return rows, nil
}

// write 本地路径先写临时文件再重命名,远程URL直接上传
func (s *fileStore) write(ctx context.Context, rows []models.DatasetRow) error {
	data, err := s.codec.encode(rows)
	if err != nil {
		return fmt.Errorf("编码数据集失败: %w", err)
	}

	if s.lock == nil {
		if err := s.fs.Upload(ctx, s.path, 0o644, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("写入数据集失败 %s: %w", s.path, err)
		}
		return nil
	}

	tmp := s.path + ".tmp"
	if err := s.fs.Upload(ctx, tmp, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("写入临时文件失败 %s: %w", tmp, err)
	}
	if err := s.fs.Move(ctx, tmp, s.path); err != nil {
		_ = s.fs.Delete(ctx, tmp)
		return fmt.Errorf("替换数据集失败 %s: %w", s.path, err)
	}
	return nil
}

// isLocal 判断是否为本地路径
func isLocal(path string) bool {
	return !strings.Contains(path, "://") || strings.HasPrefix(path, "file://")
}

// localPath 去掉file://前缀并转为绝对路径
func localPath(path string) string {
	path = strings.TrimPrefix(path, "file://")
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
