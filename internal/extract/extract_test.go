package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "Journal of Graphs", StripBoilerplate("  Journal of\n Graphs arrow_drop_down "))
	assert.Equal(t, "", Clean(" \t\n "))
}

func TestText(t *testing.T) {
	testCases := []struct {
		description string
		raw         string
		present     bool
		state       models.FieldState
	}{
		{description: "元素存在且有内容", raw: " Deep Learning ", present: true, state: models.FieldFound},
		{description: "元素不存在", raw: "", present: false, state: models.FieldNotFound},
		{description: "元素存在但为空", raw: "  ", present: true, state: models.FieldNotFound},
		{description: "页面显示N/A", raw: "N/A", present: true, state: models.FieldNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.state, Text(tc.raw, tc.present).State())
		})
	}
}

func TestNumbers(t *testing.T) {
	n, ok := FirstInt("Cited by 1,234")
	assert.True(t, ok)
	assert.Equal(t, 1234, n)

	_, ok = FirstInt("no digits here")
	assert.False(t, ok)

	f, ok := FirstFloat("0,87")
	assert.True(t, ok)
	assert.InDelta(t, 0.87, f, 1e-9)

	f, ok = FirstFloat("1,234.5")
	assert.True(t, ok)
	assert.InDelta(t, 1234.5, f, 1e-9)

	y, ok := Year("Published: MAR 2021")
	assert.True(t, ok)
	assert.Equal(t, 2021, y)

	y, ok = Year("2019/4/12")
	assert.True(t, ok)
	assert.Equal(t, 2019, y)

	_, ok = Year("volume 12345")
	assert.False(t, ok)
}

func TestCitations(t *testing.T) {
	testCases := []struct {
		description string
		raw         string
		expect      int
		ok          bool
	}{
		{description: "普通计数", raw: "42\nCitations", expect: 42, ok: true},
		{description: "只有参考文献数", raw: "37\nCited References", expect: 0, ok: true},
		{description: "千位分隔", raw: "1,002", expect: 1002, ok: true},
		{description: "空文本", raw: "", expect: 0, ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			n, ok := Citations(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expect, n)
		})
	}
}

func TestParseMetricsBlock(t *testing.T) {
	block := ParseMetricsBlock("1,234\nCitations by 1,100 documents\n56\nDocuments\n12\nh-index")

	c, ok := block.Citations.Get()
	require.True(t, ok)
	assert.Equal(t, 1234, c)

	d, ok := block.Documents.Get()
	require.True(t, ok)
	assert.Equal(t, 56, d)

	h, ok := block.HIndex.Get()
	require.True(t, ok)
	assert.Equal(t, 12, h)

	empty := ParseMetricsBlock("")
	assert.Equal(t, models.FieldNotFound, empty.Citations.State())
	assert.Equal(t, models.FieldNotFound, empty.HIndex.State())
}

func TestFWCI(t *testing.T) {
	v, ok := FWCI("Metrics overview\nField-Weighted Citation Impact\n1.87\n(2019-2023)")
	require.True(t, ok)
	assert.InDelta(t, 1.87, v, 1e-9)

	_, ok = FWCI("h-index 12")
	assert.False(t, ok)
}

func TestAffiliationAndCountry(t *testing.T) {
	assert.Equal(t, "Université Mohammed V - Rabat - Morocco", Affiliation(", Université Mohammed V, Rabat, Morocco"))

	country, ok := CountryFromAffiliation("Sultan Moulay Slimane University, Beni Mellal, Morocco")
	assert.True(t, ok)
	assert.Equal(t, "Morocco", country)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A. Smith", "B. Jones", "C. Wu"}, SplitList("A. Smith; B. Jones ;; C. Wu"))
	assert.Equal(t, []string{"Smith A", "Jones B"}, SplitList("Smith A, Jones B"))
	assert.Empty(t, SplitList(" ; "))
}

func TestISSN(t *testing.T) {
	testCases := []struct {
		description string
		raw         string
		expect      string
		ok          bool
	}{
		{description: "带连字符", raw: "0028-0836", expect: "0028-0836", ok: true},
		{description: "无连字符", raw: "00280836", expect: "0028-0836", ok: true},
		{description: "小写x校验位", raw: "ISSN: 1234-567x", expect: "1234-567X", ok: true},
		{description: "多个ISSN取第一个", raw: "0028-0836, 1476-4687", expect: "0028-0836", ok: true},
		{description: "无ISSN", raw: "not available", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			issn, ok := ISSN(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expect, issn)
		})
	}

	assert.Equal(t, []string{"0028-0836", "1476-4687"}, ISSNs("0028-0836 1476-4687 00280836"))
	assert.True(t, ISSNChecksumOK("0028-0836"))
	assert.True(t, ISSNChecksumOK("1476-4687"))
	assert.False(t, ISSNChecksumOK("0028-0837"))
}

func TestDOI(t *testing.T) {
	doi, ok := DOI("https://doi.org/10.1038/nature14539.")
	require.True(t, ok)
	assert.Equal(t, "10.1038/nature14539", doi)

	_, ok = DOI("DOI not found")
	assert.False(t, ok)
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "AAB-1234-2020", LastPathSegment("https://www.webofscience.com/wos/author/record/AAB-1234-2020?x=1"))
	assert.Equal(t, "qc6CJjYAAAAJ", QueryParam("https://scholar.google.com/citations?user=qc6CJjYAAAAJ&hl=en", "user"))
}

func TestFromLabels(t *testing.T) {
	raw := FromLabels(models.SourceScholar, [][2]string{
		{"Auteurs", "A Smith, B Jones"},
		{"Date de publication", "2020/5/1"},
		{"Revue", "Nature"},
		{"Unknown label", "ignored"},
	})

	assert.Equal(t, "A Smith, B Jones", raw[KeyAuthors])
	assert.Equal(t, "Nature", raw[KeyJournalName])
	assert.Len(t, raw, 3)

	wos := FromLabels(models.SourceWoS, [][2]string{
		{"Author Keywords", "graphs; networks"},
		{"Keywords Plus", "MODEL"},
	})
	assert.Equal(t, "graphs; networks; MODEL", wos[KeyKeywords])
}

func TestBuildPublication(t *testing.T) {
	raw := RawRecord{
		KeyTitle:        "Graph Neural Networks",
		KeyYear:         "Published 2022",
		KeyAuthors:      "Doe J ; Roe R",
		KeyCitations:    "15",
		KeyDOI:          "DOI: 10.1000/xyz123",
		KeyISSN:         "2045-2322",
		KeyJournalName:  "SCIENTIFIC REPORTS arrow_drop_down",
		KeyDocumentType: "",
	}

	rec := BuildPublication("https://example.org/record/1", raw)

	assert.True(t, rec.Complete(), "所有字段都应被尝试")
	title, _ := rec.Title.Get()
	assert.Equal(t, "Graph Neural Networks", title)
	year, _ := rec.Year.Get()
	assert.Equal(t, 2022, year)
	authors, _ := rec.Authors.Get()
	assert.Equal(t, []string{"Doe J", "Roe R"}, authors)
	journal, _ := rec.JournalName.Get()
	assert.Equal(t, "SCIENTIFIC REPORTS", journal)
	assert.Equal(t, models.FieldNotFound, rec.DocumentType.State())
	assert.Equal(t, models.FieldNotFound, rec.Abstract.State())
}

func TestBuildAuthor(t *testing.T) {
	scopus := BuildAuthor("7006835644", models.SourceScopus, RawRecord{
		KeyName:         "Doe, Jane",
		KeyAffiliation:  ", Mohammed V University, Rabat, Morocco",
		KeyMetricsBlock: "1,234 Citations by 1,100 documents 56 Documents 12 h-index",
		KeyFWCI:         "Field-Weighted Citation Impact 1.25",
	})

	affiliation, _ := scopus.Affiliation.Get()
	assert.Equal(t, "Mohammed V University - Rabat - Morocco", affiliation)
	h, _ := scopus.HIndex.Get()
	assert.Equal(t, 12, h)
	fwci, _ := scopus.FWCI.Get()
	assert.InDelta(t, 1.25, fwci, 1e-9)
	assert.Equal(t, models.FieldNotFound, scopus.Country.State())

	wos := BuildAuthor("AAB-1234-2020", models.SourceWoS, RawRecord{
		KeyName:        "Doe, Jane",
		KeyAffiliation: "Mohammed V University, Rabat, Morocco",
		KeyHIndex:      "9",
		KeyCitations:   "310",
	})
	country, _ := wos.Country.Get()
	assert.Equal(t, "Morocco", country)
	assert.Equal(t, models.FieldNotFound, wos.FWCI.State())
}

const journalPage = `<html><body>
<h1>Journal of Graph Studies</h1>
<div class="journalgrid">
  <div><h2>Country</h2><p><a href="#">Netherlands</a> - <a href="#">SIR Ranking</a></p></div>
  <div><h2>Subject Area and Category</h2>
    <ul><li><a>Mathematics</a><ul><li><a>Discrete Mathematics</a></li></ul></li><li><a>Computer Science</a></li></ul>
  </div>
  <div><h2>Publisher</h2><p><a href="journalsearch.php?q=Elsevier">Elsevier B.V.</a></p></div>
  <div><h2>H-Index</h2><p class="hindexnumber">87</p></div>
  <div><h2>ISSN</h2><p>00958956, 10960902</p></div>
</div>
<div class="fullwidth"><h2>Scope</h2>The journal publishes research in graph theory.</div>
<div class="dashboard">
  <div class="cellslide"><table><tbody><tr><td>x</td></tr></tbody></table></div>
  <div class="cellslide"><table><tbody>
    <tr><td>Discrete Mathematics</td><td>2021</td><td>Q2</td></tr>
    <tr><td>Discrete Mathematics</td><td>2023</td><td>Q1</td></tr>
  </tbody></table></div>
</div>
<div class="dashboard">
  <div class="cellslide"><table><tbody></tbody></table></div>
  <div class="cellslide"><table><tbody>
    <tr><td>2022</td><td>1.12</td></tr>
    <tr><td>2023</td><td>1.35</td></tr>
  </tbody></table></div>
</div>
</body></html>`

func TestParseJournalPage(t *testing.T) {
	m, err := ParseJournalPage("0095-8956", journalPage)
	require.NoError(t, err)

	name, _ := m.Name.Get()
	assert.Equal(t, "Journal of Graph Studies", name)
	h, _ := m.HIndex.Get()
	assert.Equal(t, 87, h)
	publisher, _ := m.Publisher.Get()
	assert.Equal(t, "Elsevier B.V.", publisher)
	country, _ := m.Country.Get()
	assert.Equal(t, "Netherlands", country)
	areas, _ := m.SubjectAreas.Get()
	assert.Equal(t, []string{"Mathematics", "Computer Science"}, areas)
	scope, _ := m.Scope.Get()
	assert.Equal(t, "The journal publishes research in graph theory.", scope)

	q, ok := m.Quartile.Get()
	require.True(t, ok)
	assert.Equal(t, models.Dated[string]{Year: 2023, Value: "Q1"}, q)

	sjr, ok := m.SJR.Get()
	require.True(t, ok)
	assert.Equal(t, 2023, sjr.Year)
	assert.InDelta(t, 1.35, sjr.Value, 1e-9)

	assert.Equal(t, models.FieldNotFound, m.ImpactFactor.State())
}

func TestParseJournalPage_ISSNFromPage(t *testing.T) {
	m, err := ParseJournalPage("", journalPage)
	require.NoError(t, err)
	assert.Equal(t, "0095-8956", m.ISSN)
}

func TestParseJournalPage_Empty(t *testing.T) {
	m, err := ParseJournalPage("1234-5678", "<html><body><p>nothing</p></body></html>")
	require.NoError(t, err)
	assert.False(t, m.HasAny())
	assert.Equal(t, models.FieldNotFound, m.Quartile.State())
}

func TestParseJournalSearch(t *testing.T) {
	html := `<div class="search_results">
	<a href="journalsearch.php?q=123&tip=sid"><span class="jrnlname">Journal A</span></a>
	<a href="journalsearch.php?q=456&tip=sid"><span class="jrnlname">Journal B</span></a>
	</div>`

	results, err := ParseJournalSearch(html)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Journal A", results[0].Name)
	assert.Equal(t, "journalsearch.php?q=123&tip=sid", results[0].Href)
}
