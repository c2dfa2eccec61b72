package models

// JournalMetrics 期刊排名指标
// ISSN为关联键,期刊名称仅用于展示
type JournalMetrics struct {
	ISSN         string                `json:"issn"`
	Name         Field[string]         `json:"name"`
	Publisher    Field[string]         `json:"publisher"`
	HIndex       Field[int]            `json:"h_index"`
	Scope        Field[string]         `json:"scope"`
	Country      Field[string]         `json:"country"`
	SubjectAreas Field[[]string]       `json:"subject_areas"`
	Quartile     Field[Dated[string]]  `json:"quartile"`
	SJR          Field[Dated[float64]] `json:"sjr"`
	ImpactFactor Field[Dated[float64]] `json:"impact_factor"`
}

// PlaceholderMetrics 所有指标均为缺失的期刊记录
func PlaceholderMetrics(issn string) JournalMetrics {
	m := JournalMetrics{ISSN: issn}
	m.Seal()
	return m
}

// Seal 未尝试的字段全部标记为缺失
func (m *JournalMetrics) Seal() {
	m.Name.Seal()
	m.Publisher.Seal()
	m.HIndex.Seal()
	m.Scope.Seal()
	m.Country.Seal()
	m.SubjectAreas.Seal()
	m.Quartile.Seal()
	m.SJR.Seal()
	m.ImpactFactor.Seal()
}

// HasAny 是否至少提取到一个指标
func (m *JournalMetrics) HasAny() bool {
	return m.Name.IsFound() || m.Publisher.IsFound() || m.HIndex.IsFound() ||
		m.Scope.IsFound() || m.Quartile.IsFound() || m.SJR.IsFound() ||
		m.ImpactFactor.IsFound()
}
