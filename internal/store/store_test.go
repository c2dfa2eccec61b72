package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

func sampleRow(title, author string, citations int) models.DatasetRow {
	return models.DatasetRow{
		AuthorID:       "qc6CJjYAAAAJ",
		AuthorName:     models.Found(author),
		Affiliation:    models.Found("University of London"),
		Country:        models.Missing[string](),
		CoAuthors:      []string{"abcDEF123456", "ghiJKL789012"},
		AuthorHIndex:   models.Found(42),
		TotalCitations: models.Found(12000),
		FWCI:           models.Missing[float64](),
		Title:          models.Found(title),
		Year:           models.Found(2021),
		Authors:        models.Found([]string{"A Lovelace", "C Babbage"}),
		Citations:      models.Found(citations),
		DOI:            models.Missing[string](),
		ISSN:           models.Found("0095-8956"),
		Abstract:       models.Found("Notes on the engine, with commas, and \"quotes\"."),
		Keywords:       models.Found([]string{"graphs", "engines"}),
		DocumentType:   models.Missing[string](),
		SourceType:     models.Missing[string](),
		JournalName:    models.Found("Journal of Graph Studies"),
		Publisher:      models.Found("Elsevier"),
		Volume:         models.Found("12"),
		Issue:          models.Missing[string](),
		Pages:          models.Found("1-20"),

		JournalISSN:      "0095-8956",
		JournalPublisher: models.Found("Elsevier B.V."),
		JournalHIndex:    models.Found(87),
		Scope:            models.Missing[string](),
		QuartileYear:     models.Found(2023),
		Quartile:         models.Found("Q1"),
		SJRYear:          models.Found(2023),
		SJR:              models.Found(1.875),
		ImpactFactorYear: models.Missing[int](),
		ImpactFactor:     models.Missing[float64](),

		Matched:     true,
		Source:      models.SourceScholar,
		Link:        "https://scholar.example.org/citations?view_op=view_citation&citation_for_view=x",
		RunID:       "run-1",
		ExtractedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

var allFormats = []struct {
	description string
	file        string
}{
	{description: "JSON文档", file: "dataset.json"},
	{description: "CSV表格", file: "dataset.csv"},
	{description: "SQLite数据库", file: "dataset.db"},
}

func openTemp(t *testing.T, file string) Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), file))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_LastWriteWins(t *testing.T) {
	for _, tc := range allFormats {
		t.Run(tc.description, func(t *testing.T) {
			ctx := context.Background()
			s := openTemp(t, tc.file)

			v1 := sampleRow("On the Analytical Engine", "Ada Lovelace", 10)
			v2 := sampleRow("On the Analytical Engine", "Ada Lovelace", 25)
			v2.RunID = "run-2"

			stats, err := s.Merge(ctx, []models.DatasetRow{v1})
			require.NoError(t, err)
			assert.Equal(t, MergeStats{Existing: 0, Incoming: 1, Duplicates: 0, Total: 1}, stats)

			stats, err = s.Merge(ctx, []models.DatasetRow{v2})
			require.NoError(t, err)
			assert.Equal(t, MergeStats{Existing: 1, Incoming: 1, Duplicates: 1, Total: 1}, stats)

			rows, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, v2, rows[0])
		})
	}
}

func TestStore_MergeOrder(t *testing.T) {
	for _, tc := range allFormats {
		t.Run(tc.description, func(t *testing.T) {
			ctx := context.Background()
			s := openTemp(t, tc.file)

			a := sampleRow("Paper A", "Ada Lovelace", 1)
			b := sampleRow("Paper B", "Ada Lovelace", 2)
			c := sampleRow("Paper C", "Ada Lovelace", 3)
			aNew := sampleRow("  paper   a ", "ADA LOVELACE", 9)

			_, err := s.Merge(ctx, []models.DatasetRow{a, b})
			require.NoError(t, err)
			_, err = s.Merge(ctx, []models.DatasetRow{c, aNew})
			require.NoError(t, err)

			rows, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, "Paper B", rows[0].Title.OrElse(""))
			assert.Equal(t, "Paper C", rows[1].Title.OrElse(""))
			assert.Equal(t, 9, rows[2].Citations.OrElse(0))
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for _, tc := range allFormats {
		t.Run(tc.description, func(t *testing.T) {
			rows, err := openTemp(t, tc.file).Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestDedup(t *testing.T) {
	a1 := sampleRow("A", "x", 1)
	a2 := sampleRow("A", "x", 2)
	b := sampleRow("B", "x", 1)
	otherAuthor := sampleRow("A", "y", 1)

	testCases := []struct {
		description string
		input       []models.DatasetRow
		citations   []int
		dups        int
	}{
		{description: "空输入", input: nil, citations: []int{}, dups: 0},
		{description: "无重复", input: []models.DatasetRow{a1, b}, citations: []int{1, 1}, dups: 0},
		{description: "后写覆盖先写", input: []models.DatasetRow{a1, b, a2}, citations: []int{1, 2}, dups: 1},
		{description: "作者不同不算重复", input: []models.DatasetRow{a1, otherAuthor}, citations: []int{1, 1}, dups: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			out, dups := Dedup(tc.input)
			got := make([]int, 0, len(out))
			for _, r := range out {
				got = append(got, r.Citations.OrElse(0))
			}
			assert.Equal(t, tc.citations, got)
			assert.Equal(t, tc.dups, dups)
		})
	}
}

func TestDedup_UntitledFallsBackToDOI(t *testing.T) {
	r1 := sampleRow("", "x", 1)
	r1.Title = models.Missing[string]()
	r1.DOI = models.Found("10.1/a")
	r2 := r1
	r2.DOI = models.Found("10.1/b")

	out, dups := Dedup([]models.DatasetRow{r1, r2})
	assert.Len(t, out, 2)
	assert.Zero(t, dups)
}

func TestFormatOf(t *testing.T) {
	testCases := []struct {
		description string
		path        string
		expected    Format
		wantErr     bool
	}{
		{description: "JSON", path: "out/dataset.json", expected: FormatJSON},
		{description: "无扩展名默认JSON", path: "out/dataset", expected: FormatJSON},
		{description: "远程URL带查询串", path: "s3://bucket/dataset.csv?region=eu", expected: FormatCSV},
		{description: "大写扩展名", path: "DATA.CSV", expected: FormatCSV},
		{description: "db扩展名", path: "data.db", expected: FormatSQLite},
		{description: "sqlite扩展名", path: "data.sqlite", expected: FormatSQLite},
		{description: "不支持的格式", path: "data.xlsx", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got, err := FormatOf(tc.path)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestCSV_FieldStates(t *testing.T) {
	row := sampleRow("Title", "Author", 3)
	row.Volume = models.Field[string]{}
	row.Keywords = models.Found([]string{})
	row.CoAuthors = []string{}

	data, err := csvCodec{}.encode([]models.DatasetRow{row})
	require.NoError(t, err)
	assert.Contains(t, string(data), "not found")
	assert.Contains(t, string(data), "A Lovelace; C Babbage")

	rows, err := csvCodec{}.decode(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.FieldUnset, rows[0].Volume.State())
	assert.Equal(t, models.FieldNotFound, rows[0].Country.State())
	assert.Equal(t, models.FieldFound, rows[0].Title.State())
	assert.Equal(t, []string{}, rows[0].CoAuthors)
}

func TestCSV_EmptyListRoundTrip(t *testing.T) {
	testCases := []struct {
		description string
		keywords    models.Field[[]string]
	}{
		{description: "已找到的空列表", keywords: models.Found([]string{})},
		{description: "未尝试", keywords: models.Field[[]string]{}},
		{description: "缺失", keywords: models.Missing[[]string]()},
		{description: "非空列表", keywords: models.Found([]string{"graphs", "minors"})},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			row := sampleRow("Title", "Author", 3)
			row.Keywords = tc.keywords

			data, err := csvCodec{}.encode([]models.DatasetRow{row})
			require.NoError(t, err)
			rows, err := csvCodec{}.decode(data)
			require.NoError(t, err)
			require.Len(t, rows, 1)

			assert.Equal(t, tc.keywords.State(), rows[0].Keywords.State())
			want, _ := tc.keywords.Get()
			got, _ := rows[0].Keywords.Get()
			assert.Equal(t, want, got)
		})
	}
}

func TestCSV_IgnoresUnknownColumns(t *testing.T) {
	data := []byte("title,legacy,citations\nGraph Minors,x,not found\n")
	rows, err := csvCodec{}.decode(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.Found("Graph Minors"), rows[0].Title)
	assert.Equal(t, models.Missing[int](), rows[0].Citations)
}

func TestCSV_BadNumber(t *testing.T) {
	_, err := csvCodec{}.decode([]byte("citations\nmany\n"))
	assert.Error(t, err)
}

func TestJSON_DecodeBareArray(t *testing.T) {
	rows, err := jsonCodec{}.decode([]byte(`[{"title":"Graph Minors","citations":"not found"}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.Found("Graph Minors"), rows[0].Title)
	assert.Equal(t, models.FieldNotFound, rows[0].Citations.State())
}

func TestFileLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "dataset.json")
	held := newFileLock(target)
	require.NoError(t, held.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := newFileLock(target).Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, held.Release())
	require.NoError(t, newFileLock(target).Acquire(context.Background()))
}

func TestFileLock_Stale(t *testing.T) {
	target := filepath.Join(t.TempDir(), "dataset.json")
	lockPath := target + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("1"), 0o644))
	old := time.Now().Add(-2 * StaleLockAge)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, newFileLock(target).Acquire(ctx))
}

func TestFileStore_MergeReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dataset.json")
	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.Merge(context.Background(), []models.DatasetRow{sampleRow("T", "A", 1)})
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

// concurrentRows 每个写入方的记录互不重复
func concurrentRows(writer, n int) []models.DatasetRow {
	rows := make([]models.DatasetRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, sampleRow(fmt.Sprintf("Paper %d-%d", writer, i), fmt.Sprintf("Author %d", writer), i))
	}
	return rows
}

func TestStore_ConcurrentMerge(t *testing.T) {
	const writers, perWriter = 8, 5

	for _, tc := range allFormats {
		t.Run(tc.description, func(t *testing.T) {
			s := openTemp(t, tc.file)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var g errgroup.Group
			for w := 0; w < writers; w++ {
				batch := concurrentRows(w, perWriter)
				g.Go(func() error {
					_, err := s.Merge(ctx, batch)
					return err
				})
			}
			require.NoError(t, g.Wait())

			rows, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, rows, writers*perWriter, "并发合并不应丢失记录")
		})
	}
}

func TestFileStore_ConcurrentInstances(t *testing.T) {
	const writers, perWriter = 6, 4

	for _, file := range []string{"dataset.json", "dataset.csv"} {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), file)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			// 每个写入方使用独立实例,只靠锁文件互斥
			var g errgroup.Group
			for w := 0; w < writers; w++ {
				batch := concurrentRows(w, perWriter)
				g.Go(func() error {
					s, err := Open(path)
					if err != nil {
						return err
					}
					defer s.Close()
					_, err = s.Merge(ctx, batch)
					return err
				})
			}
			require.NoError(t, g.Wait())

			reader, err := Open(path)
			require.NoError(t, err)
			defer reader.Close()
			rows, err := reader.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, rows, writers*perWriter)

			_, statErr := os.Stat(path + ".lock")
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestFileStore_MergeReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path+".lock", []byte("4242"), 0o644))
	old := time.Now().Add(-StaleLockAge - time.Minute)
	require.NoError(t, os.Chtimes(path+".lock", old, old))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := s.Merge(ctx, []models.DatasetRow{sampleRow("T", "A", 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}
