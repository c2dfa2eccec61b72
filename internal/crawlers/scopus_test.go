package crawlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

const scopusBase = "https://scopus.test"

const scopusProfileHTML = `<html><body>
<h1 class="Typography-module__lVnit Typography-module__oFCaL">Grace Hopper</h1>
<div class="AuthorHeader-module__DRxsE">
<span class="Typography-module__lVnit Typography-module__Nfgvc">Grace Hopper</span>
<span class="Typography-module__lVnit Typography-module__Nfgvc">, Yale University, New Haven, United States</span>
</div>
<section class="MetricSection-module__s8lWB">1,234
Citations by 1,100 documents
56
Documents
12
h-index</section>
<div id="metrics-panel">Field-Weighted Citation Impact 1.87</div>
<ul>
<li data-testid="results-list-item"><a href="/record/display.uri?eid=2-s2.0-1&amp;origin=resultslist">Compiling Routines</a></li>
<li data-testid="results-list-item"><a href="/record/display.uri?eid=2-s2.0-2&amp;origin=resultslist">Flow-Matic</a></li>
</ul>
</body></html>`

const scopusCoAuthorHTML = `<html><body><table><tbody>
<tr class="searchArea"><td><input type="checkbox" id="auid_1" value="57190000002"></td><td class="authorResultsNamesCol"><a>Turing, Alan</a></td></tr>
<tr class="searchArea"><td><input type="checkbox" id="auid_2" value="57190000003"></td><td class="authorResultsNamesCol"><a>Hamilton, Margaret</a></td></tr>
<tr class="searchArea"><td><input type="checkbox" id="auid_3" value="57190000001"></td><td class="authorResultsNamesCol"><a>Hopper, Grace</a></td></tr>
</tbody></table></body></html>`

const scopusDetailHTML = `<html><body>
<h2 data-testid="document-title">Compiling Routines</h2>
<div class="DocumentHeader-module__LpsWx"><span>Journal of the ACM</span><span>Volume 5, 2021</span></div>
<div class="DocumentHeader-module__LpsWx"><ul>
<li><span>Hopper, G.</span><sup>a</sup></li>
<li><span>Turing, A.</span></li>
</ul></div>
<span>27 Citations in Scopus</span>
<dl data-testid="source-info-entry-document-type"><dt>Document type</dt><dd>Article</dd></dl>
<dl data-testid="source-info-entry-source-type"><dt>Source type</dt><dd>Journal</dd></dl>
<dl data-testid="source-info-entry-issn"><dt>ISSN</dt><dd>00045411</dd></dl>
<dl data-testid="source-info-entry-doi"><dt>DOI</dt><dd>10.1145/321.322</dd></dl>
<dl data-testid="source-info-entry-publisher"><dt>Publisher</dt><dd>ACM</dd></dl>
<div data-testid="abstract"><p>We describe a compiler.</p></div>
</body></html>`

func newScopusFixture() *fakeSession {
	return newFakeSession(map[string]string{
		scopusBase + "/authid/detail.uri?authorId=57190000001#tab=metrics": scopusProfileHTML,
		scopusBase + "/authid/detail.uri?authorId=57190000001":             scopusProfileHTML,
		scopusBase + "/search/submit/coAuthorSearch.uri?authorId=57190000001&origin=AuthorProfile&sot=al&sdt=coaut&zone=coAuthorsTab": scopusCoAuthorHTML,
		scopusBase + "/record/display.uri?eid=2-s2.0-1&origin=resultslist":                                                            scopusDetailHTML,
	})
}

func TestScopus_ResolveAuthor(t *testing.T) {
	session := newScopusFixture()
	s := NewScopus(session, NewSJR(session, "", fastPolicy()), testOptions(scopusBase))

	author, err := s.ResolveAuthor(context.Background(), "57190000001")
	require.NoError(t, err)

	assert.Equal(t, models.Found("Grace Hopper"), author.Name)
	assert.Equal(t, models.Found("Yale University - New Haven - United States"), author.Affiliation)
	assert.Equal(t, models.Found(1234), author.Citations)
	assert.Equal(t, models.Found(56), author.Documents)
	assert.Equal(t, models.Found(12), author.HIndex)
	assert.Equal(t, models.Found(1.87), author.FWCI)
	assert.Equal(t, []string{"57190000002", "57190000003"}, author.CoAuthorIDs)
	assert.Equal(t, []string{"Turing, Alan", "Hamilton, Margaret"}, author.CoAuthorNames)
}

func TestScopus_ResolveAuthorErrors(t *testing.T) {
	testCases := []struct {
		description string
		identifier  string
		visits      int
	}{
		{description: "非数字标识不访问页面", identifier: "grace", visits: 0},
		{description: "档案页没有姓名", identifier: "99999999", visits: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			session := newScopusFixture()
			s := NewScopus(session, NewSJR(session, "", fastPolicy()), testOptions(scopusBase))

			_, err := s.ResolveAuthor(context.Background(), tc.identifier)
			assert.True(t, errors.Is(err, ErrNotFound))
			total := 0
			for _, n := range session.visits {
				total += n
			}
			assert.Equal(t, tc.visits, total)
		})
	}
}

func TestScopus_ListPublications(t *testing.T) {
	session := newScopusFixture()
	session.offsets = []int{0, 800, 1600, 1600}
	s := NewScopus(session, NewSJR(session, "", fastPolicy()), testOptions(scopusBase))

	handles, err := s.ListPublications(context.Background(), "57190000001")
	require.NoError(t, err)

	assert.Equal(t, 3, session.scrolls)
	require.Len(t, handles, 2)
	assert.Equal(t, scopusBase+"/record/display.uri?eid=2-s2.0-1&origin=resultslist", handles[0].URL)
	assert.Equal(t, "Flow-Matic", handles[1].Title)
}

func TestScopus_FetchPublicationDetail(t *testing.T) {
	session := newScopusFixture()
	s := NewScopus(session, NewSJR(session, "", fastPolicy()), testOptions(scopusBase))

	rec, err := s.FetchPublicationDetail(context.Background(), models.PublicationHandle{
		URL: scopusBase + "/record/display.uri?eid=2-s2.0-1&origin=resultslist",
	})
	require.NoError(t, err)

	assert.True(t, rec.Complete())
	assert.Equal(t, models.Found("Compiling Routines"), rec.Title)
	assert.Equal(t, models.Found(2021), rec.Year)
	assert.Equal(t, models.Found(27), rec.Citations)
	assert.Equal(t, models.Found([]string{"Hopper, G.", "Turing, A."}), rec.Authors)
	assert.Equal(t, models.Found("Article"), rec.DocumentType)
	assert.Equal(t, models.Found("Journal"), rec.SourceType)
	assert.Equal(t, models.Found("0004-5411"), rec.ISSN)
	assert.Equal(t, models.Found("10.1145/321.322"), rec.DOI)
	assert.Equal(t, models.Found("ACM"), rec.Publisher)
	assert.Equal(t, models.Found("We describe a compiler."), rec.Abstract)
	assert.False(t, rec.JournalName.IsFound())
	assert.False(t, rec.Keywords.IsFound())
}
