package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 带 scheme 的 URL（如 mem://host/a）原样保留
func NormalizeFileID(p string) FileID {
	if strings.Contains(p, "://") {
		return FileID(p)
	}
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}
