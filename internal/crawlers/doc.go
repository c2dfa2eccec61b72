// Package crawlers 提供学术数据源的页面会话与适配器
//
// # 概述
//
// crawlers包把三个作者数据源(scholar、scopus、wos)和期刊排名站点(sjr)
// 封装为统一的Source接口。适配器只依赖Session接口描述的页面操作,
// 真实浏览器(go-rod)与纯HTTP抓取(Colly)两种会话可以互换。
//
// # 核心组件
//
// ## Session
//
// 适配器使用的页面能力: 导航、文本/属性查询、点击、滚动、表单输入。
// 查询类方法不等待元素出现,等待与重试统一交给retry包。
//
//	session, err := NewSession(cfg.Browser)
//	if err != nil { /* 处理错误 */ }
//	source, err := NewSource(models.SourceScopus, session, opts)
//	defer source.Close()
//
// ## RodSession (动态模式)
//
// 基于go-rod的浏览器会话:
//   - 每次等待都受browser.timeout_seconds约束
//   - 浏览器崩溃或断开时标记失效,下一次操作前重启(最多max_restarts次)
//   - 导航失败、元素失效等单页错误返回ErrPageFailure,不消耗重启次数
//   - rod的panic在会话内转换为ErrSessionFailure
//   - 导航速率由rate.Limiter控制
//
// ## StaticSession (静态模式)
//
// 基于Colly的HTTP会话,页面解析使用goquery。不执行JavaScript,
// 点击只会跟随链接,滚动不改变任何测量值,因此分页立即到达不动点。
// 429与5xx响应视为瞬时加载失败,由字段重试处理。
//
// ## Source适配器
//
//   - Scholar: 档案页、引用统计表、"显示更多"分页、详情页标签表,DOI由CrossRef补全
//   - Scopus: 指标页、合作者检索页、滚动加载的文档列表、文档详情
//   - WoS: 可选登录、作者档案、"下一页"分页、全记录页
//   - SJR: 按ISSN或期刊名检索,解析期刊页面为JournalMetrics
//
// 字段缺失在记录内以NotFound表示,不作为错误返回。适配器只返回两类错误:
//   - ErrNotFound: 入口标识无法解析
//   - ErrSessionFailure: 会话丢失,当前标识无法继续
//
// 期刊查询的FetchJournal*方法额外返回ErrPageFailure或加载超时,调用方据此决定是否缓存结果。
//
// ## BrowserBudget
//
// 根据系统可用内存与CPU负载计算可同时运行的浏览器会话数,
// 多数据源并行运行时作为并发上限。
//
//	budget := NewBrowserBudget(DefaultBudgetConfig(3))
//	limit := budget.MaxSessions(models.ModeDynamic)
//
// # 并发安全
//
// 每个数据源持有一个会话,数据源内部顺序执行。RodSession内部以互斥锁
// 串行化页面操作,不同数据源的会话互不共享。
package crawlers
