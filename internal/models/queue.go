package models

// SeedItem 遍历队列中的一个作者标识
type SeedItem struct {
	// ID 作者标识或姓名
	ID string

	// Depth 距离入口的跳数
	//   - 0: 入口作者
	//   - 1: 入口作者的合作者
	//   - 2: 合作者的合作者
	Depth int

	// Parent 发现此标识的作者(入口为空)
	Parent string
}
