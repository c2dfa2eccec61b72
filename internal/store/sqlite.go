package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

const publicationsDDL = `CREATE TABLE IF NOT EXISTS publications (
  seq          INTEGER NOT NULL,
  title_key    TEXT NOT NULL,
  author_key   TEXT NOT NULL,
  source       TEXT NOT NULL DEFAULT '',
  author_id    TEXT NOT NULL DEFAULT '',
  title        TEXT NOT NULL DEFAULT '',
  matched      INTEGER NOT NULL DEFAULT 0,
  run_id       TEXT NOT NULL DEFAULT '',
  extracted_at TEXT NOT NULL DEFAULT '',
  data         TEXT NOT NULL,
  UNIQUE(title_key, author_key)
)`

const publicationsSeqIndexDDL = `CREATE INDEX IF NOT EXISTS idx_publications_seq ON publications(seq)`

const upsertSQL = `INSERT INTO publications
  (seq, title_key, author_key, source, author_id, title, matched, run_id, extracted_at, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(title_key, author_key) DO UPDATE SET
  seq = excluded.seq,
  source = excluded.source,
  author_id = excluded.author_id,
  title = excluded.title,
  matched = excluded.matched,
  run_id = excluded.run_id,
  extracted_at = excluded.extracted_at,
  data = excluded.data`

// SQLiteStore 基于SQLite的数据集存储
// 复合键冲突时覆盖并刷新seq,按seq读取即为最后写入顺序
type SQLiteStore struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// OpenSQLite 打开(必要时创建)SQLite数据集
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// SQLite不支持并发写
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("⚠️  启用WAL模式失败")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		log.Warn().Err(err).Msg("⚠️  设置busy_timeout失败")
	}

	for _, ddl := range []string{publicationsDDL, publicationsSeqIndexDDL} {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("初始化数据表失败: %w", err)
		}
	}

	return &SQLiteStore{path: path, db: db}, nil
}

// Path 返回数据库文件路径
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Merge 在一个事务内逐条upsert
func (s *SQLiteStore) Merge(ctx context.Context, batch []models.DatasetRow) (MergeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MergeStats{}, fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	var maxSeq int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(MAX(seq), 0) FROM publications").Scan(&existing, &maxSeq); err != nil {
		return MergeStats{}, fmt.Errorf("统计已有记录失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return MergeStats{}, fmt.Errorf("准备写入语句失败: %w", err)
	}
	defer stmt.Close()

	for i := range batch {
		row := &batch[i]
		data, err := json.Marshal(row)
		if err != nil {
			return MergeStats{}, fmt.Errorf("编码记录失败: %w", err)
		}
		titleKey, authorKey, _ := strings.Cut(row.Key(), "\x1f")

		maxSeq++
		if _, err := stmt.ExecContext(ctx,
			maxSeq,
			titleKey,
			authorKey,
			string(row.Source),
			row.AuthorID,
			row.Title.OrElse(""),
			row.Matched,
			row.RunID,
			formatTime(row.ExtractedAt),
			string(data),
		); err != nil {
			return MergeStats{}, fmt.Errorf("写入记录失败: %w", err)
		}
	}

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM publications").Scan(&total); err != nil {
		return MergeStats{}, fmt.Errorf("统计记录失败: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return MergeStats{}, fmt.Errorf("提交事务失败: %w", err)
	}

	return MergeStats{
		Existing:   existing,
		Incoming:   len(batch),
		Duplicates: existing + len(batch) - total,
		Total:      total,
	}, nil
}

// Load 按seq顺序读取全部记录
func (s *SQLiteStore) Load(ctx context.Context) ([]models.DatasetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT data FROM publications ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("查询记录失败: %w", err)
	}
	defer rows.Close()

	var out []models.DatasetRow
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var row models.DatasetRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("解析记录失败: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
