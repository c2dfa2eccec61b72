package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RecoveryAshes/ScholarFuse/internal/crawlers"
	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// fakeSource 以内存中的合作者图模拟数据源
type fakeSource struct {
	name models.SourceName

	// coAuthors 作者标识 -> 合作者标识
	coAuthors map[string][]string
	// aliases 姓名 -> 作者标识
	aliases map[string]string
	// pubs 每个作者的出版物数量
	pubs map[string]int
	// issn 出版物标题 -> ISSN,未配置的出版物没有ISSN
	issn map[string]string
	// journals ISSN -> 指标
	journals map[string]models.JournalMetrics
	// byName 期刊名 -> 指标
	byName map[string]models.JournalMetrics
	// journalErr ISSN或期刊名 -> 依次返回的查询错误,用完后正常查询
	journalErr map[string][]error

	resolveErr map[string]error
	listErr    map[string]error
	// detailErr 出版物标题 -> 错误
	detailErr map[string]error
	// cancelOn 解析到该作者时调用cancel
	cancelOn string
	cancel   context.CancelFunc

	mu          sync.Mutex
	resolved    map[string]int
	listed      map[string]int
	lookups     map[string]int
	nameLookups int
	restarts    int
	closed      bool
}

func newFakeSource(name models.SourceName) *fakeSource {
	return &fakeSource{
		name:       name,
		coAuthors:  map[string][]string{},
		aliases:    map[string]string{},
		pubs:       map[string]int{},
		issn:       map[string]string{},
		journals:   map[string]models.JournalMetrics{},
		byName:     map[string]models.JournalMetrics{},
		journalErr: map[string][]error{},
		resolveErr: map[string]error{},
		listErr:    map[string]error{},
		detailErr:  map[string]error{},
		resolved:   map[string]int{},
		listed:     map[string]int{},
		lookups:    map[string]int{},
	}
}

func (f *fakeSource) Name() models.SourceName { return f.name }

func (f *fakeSource) ResolveAuthor(ctx context.Context, identifier string) (*models.AuthorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolved[identifier]++
	if identifier == f.cancelOn && f.cancel != nil {
		f.cancel()
		return nil, ctx.Err()
	}
	if err := f.resolveErr[identifier]; err != nil {
		return nil, err
	}

	id := identifier
	if alias, ok := f.aliases[identifier]; ok {
		id = alias
	}
	if _, ok := f.pubs[id]; !ok {
		if _, ok := f.coAuthors[id]; !ok {
			return nil, fmt.Errorf("%w: %s", crawlers.ErrNotFound, identifier)
		}
	}

	return &models.AuthorRecord{
		ID:          id,
		Source:      f.name,
		Name:        models.Found("Author " + strings.ToUpper(id)),
		Affiliation: models.Found("University of " + id),
		HIndex:      models.Found(len(id)),
		CoAuthorIDs: append([]string(nil), f.coAuthors[id]...),
	}, nil
}

func (f *fakeSource) ListPublications(_ context.Context, authorID string) ([]models.PublicationHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listed[authorID]++
	if err := f.listErr[authorID]; err != nil {
		return nil, err
	}
	handles := make([]models.PublicationHandle, 0, f.pubs[authorID])
	for i := 0; i < f.pubs[authorID]; i++ {
		handles = append(handles, models.PublicationHandle{
			Source: f.name,
			URL:    fmt.Sprintf("https://example.org/%s/%d", authorID, i),
			Title:  fmt.Sprintf("%s paper %d", authorID, i),
			Index:  i,
		})
	}
	return handles, nil
}

func (f *fakeSource) FetchPublicationDetail(_ context.Context, h models.PublicationHandle) (*models.PublicationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.detailErr[h.Title]; err != nil {
		return nil, err
	}
	pub := &models.PublicationRecord{
		URL:         h.URL,
		Title:       models.Found(h.Title),
		Year:        models.Found(2020 + h.Index),
		Citations:   models.Found(h.Index * 10),
		JournalName: models.Found("Journal of " + h.Title),
	}
	if issn, ok := f.issn[h.Title]; ok {
		pub.ISSN = models.Found(issn)
	} else {
		pub.ISSN = models.Missing[string]()
	}
	pub.Seal()
	return pub, nil
}

func (f *fakeSource) LookupJournalMetrics(ctx context.Context, issn string) models.JournalMetrics {
	m, _ := f.FetchJournalMetrics(ctx, issn)
	return m
}

func (f *fakeSource) FetchJournalMetrics(_ context.Context, issn string) (models.JournalMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups[issn]++
	if err := f.popJournalErr(issn); err != nil {
		return models.PlaceholderMetrics(issn), err
	}
	if m, ok := f.journals[issn]; ok {
		return m, nil
	}
	return models.PlaceholderMetrics(issn), fmt.Errorf("%w: %s", crawlers.ErrNotFound, issn)
}

func (f *fakeSource) LookupJournalByName(ctx context.Context, name string) models.JournalMetrics {
	m, _ := f.FetchJournalByName(ctx, name)
	return m
}

func (f *fakeSource) FetchJournalByName(_ context.Context, name string) (models.JournalMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nameLookups++
	if err := f.popJournalErr(name); err != nil {
		return models.PlaceholderMetrics(""), err
	}
	if m, ok := f.byName[name]; ok {
		return m, nil
	}
	return models.PlaceholderMetrics(""), fmt.Errorf("%w: %s", crawlers.ErrNotFound, name)
}

func (f *fakeSource) popJournalErr(key string) error {
	errs := f.journalErr[key]
	if len(errs) == 0 {
		return nil
	}
	f.journalErr[key] = errs[1:]
	return errs[0]
}

func (f *fakeSource) Restarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarts
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) resolveCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved[id]
}

func (f *fakeSource) listCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed[id]
}

// q1Metrics 带年份的期刊指标
func q1Metrics(issn string) models.JournalMetrics {
	m := models.JournalMetrics{
		ISSN:     issn,
		Name:     models.Found("Journal " + issn),
		HIndex:   models.Found(120),
		Quartile: models.Found(models.Dated[string]{Year: 2023, Value: "Q1"}),
		SJR:      models.Found(models.Dated[float64]{Year: 2023, Value: 2.5}),
	}
	m.Seal()
	return m
}
