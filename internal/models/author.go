package models

// AuthorRecord 作者档案
// 同一次运行中提取后不再修改
type AuthorRecord struct {
	ID          string          `json:"id"`
	Source      SourceName      `json:"source"`
	URL         string          `json:"url,omitempty"`
	Name        Field[string]   `json:"name"`
	Affiliation Field[string]   `json:"affiliation"`
	Country     Field[string]   `json:"country"`
	HIndex      Field[int]      `json:"h_index"`
	Citations   Field[int]      `json:"citations"`
	Documents   Field[int]      `json:"documents"`
	FWCI        Field[float64]  `json:"fwci"`
	Interests   Field[[]string] `json:"interests"`

	// CoAuthorIDs 按页面顺序排列的合作者标识
	CoAuthorIDs []string `json:"co_author_ids"`
	// CoAuthorNames 与CoAuthorIDs一一对应,姓名未知时为空字符串
	CoAuthorNames []string `json:"co_author_names,omitempty"`
}

// Seal 未尝试的字段全部标记为缺失
func (a *AuthorRecord) Seal() {
	a.Name.Seal()
	a.Affiliation.Seal()
	a.Country.Seal()
	a.HIndex.Seal()
	a.Citations.Seal()
	a.Documents.Seal()
	a.FWCI.Seal()
	a.Interests.Seal()
}

// DisplayName 返回姓名,缺失时退回标识
func (a *AuthorRecord) DisplayName() string {
	if name, ok := a.Name.Get(); ok && name != "" {
		return name
	}
	return a.ID
}
