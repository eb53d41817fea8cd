package contract

// Locator: 在文档中定位待替换区间（纯函数，无 I/O）。
// 起始标记缺失返回 ErrNotFound；其余失败见 errors.go。
type Locator interface {
	Locate(doc Document) (Region, error)
}
