package crawlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

var _ Session = (*fakeSession)(nil)
var _ Session = (*StaticSession)(nil)
var _ Session = (*RodSession)(nil)
var _ JournalNameLookup = (*Scholar)(nil)

func TestNewSource(t *testing.T) {
	testCases := []struct {
		description string
		name        models.SourceName
		wantErr     bool
	}{
		{description: "学者档案", name: models.SourceScholar},
		{description: "文献计量数据库", name: models.SourceScopus},
		{description: "引文索引", name: models.SourceWoS},
		{description: "期刊站点不能作为作者数据源", name: models.SourceSJR, wantErr: true},
		{description: "未知数据源", name: "arxiv", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			session := newFakeSession(nil)
			source, err := NewSource(tc.name, session, testOptions(""))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, source.Name())

			require.NoError(t, source.Close())
			assert.True(t, session.closed)
		})
	}
}

func TestNewSource_NilSession(t *testing.T) {
	_, err := NewSource(models.SourceScholar, nil, testOptions(""))
	assert.Error(t, err)
}

func TestCredentials_Configured(t *testing.T) {
	assert.False(t, Credentials{}.Configured())
	assert.False(t, Credentials{Email: "a@b.c"}.Configured())
	assert.True(t, Credentials{Email: "a@b.c", Password: "x"}.Configured())
}

func TestBaseURLDefaults(t *testing.T) {
	session := newFakeSession(nil)
	opts := testOptions("https://proxy.example.org/")

	assert.Equal(t, DefaultScholarURL, NewScholar(session, nil, testOptions("")).baseURL)
	assert.Equal(t, "https://proxy.example.org", NewWoS(session, nil, opts).baseURL)
}

func TestCoAuthorList(t *testing.T) {
	testCases := []struct {
		description string
		links       []string
		names       []string
		wantIDs     []string
		wantNames   []string
	}{
		{
			description: "跳过本人与重复后仍按位置配对",
			links:       []string{"A", "self", "B", "A", " ", "C"},
			names:       []string{"Alan", "Me", "Barbara", "Alan", "Blank", " Claude  Shannon "},
			wantIDs:     []string{"A", "B", "C"},
			wantNames:   []string{"Alan", "Barbara", "Claude Shannon"},
		},
		{
			description: "姓名数量不一致时留空",
			links:       []string{"A", "B", "C"},
			names:       []string{"Barbara", "Claude"},
			wantIDs:     []string{"A", "B", "C"},
			wantNames:   []string{"", "", ""},
		},
		{
			description: "没有合作者",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			ids, names := coAuthorList("self", tc.links, tc.names, strings.TrimSpace)
			assert.Equal(t, tc.wantIDs, ids)
			assert.Equal(t, tc.wantNames, names)
			assert.Len(t, names, len(ids))
		})
	}
}
