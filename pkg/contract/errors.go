package contract

import "errors"

// 最小错误分类（哨兵）；调用方以 errors.Is 判定，包装使用 %w。
var (
	// ErrNotFound: 起始标记不存在。非致命：规则跳过，文档保持不变。
	ErrNotFound = errors.New("marker not found")
	// ErrUnterminated: 找到起始标记，但其后缺少结束条件（through/close）。
	ErrUnterminated = errors.New("region unterminated")
	// ErrRegionInvalid: 区间越界或 Start>End。
	ErrRegionInvalid = errors.New("region invalid")
	// ErrDecode: 内容无法按 UTF-8 解码。
	ErrDecode = errors.New("decode failed")
	// ErrPathInvalid: 目标路径为空或无法映射。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

// Skippable 判断错误是否只导致单条规则跳过（而非中止整次运行）。
func Skippable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnterminated)
}
