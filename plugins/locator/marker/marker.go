package marker

import (
	"errors"
	"fmt"
	"strings"

	"blockpatch/pkg/contract"
)

// Options 为标记定位器的配置。
type Options struct {
	// Start: 起始标记（子串匹配，必需）。区间从首个包含它的行开始。
	Start string `json:"start"`
	// Through: 可选的哨兵子串；区间延伸至 Start 之后首个包含它的行（含）。
	Through string `json:"through"`
	// Close: 可选的闭合行（去首尾空白后全等匹配，如 "</div>"）。
	Close string `json:"close"`
	// CloseDepth: 首个闭合行之后，最多再吞并 CloseDepth-1 个紧邻且包含 Close 的行。
	// <=0 视为 1。
	CloseDepth int `json:"close_depth"`
	// Open: 可选；从起始行向上回溯到最近一个包含 Open 的行，作为区间起点。
	Open string `json:"open"`
	// Lookback: Open 回溯的最大行数；<=0 时默认 8。
	Lookback int `json:"lookback"`
}

// Locator 按文本标记定位区间，对区间行数的变化不敏感。
type Locator struct {
	start, through, close, open string
	depth, lookback             int
}

// New 创建标记定位器。
func New(opts *Options) (*Locator, error) {
	if opts == nil || opts.Start == "" {
		return nil, errors.New("marker: start is required")
	}
	depth := opts.CloseDepth
	if depth <= 0 {
		depth = 1
	}
	lb := opts.Lookback
	if lb <= 0 {
		lb = 8
	}
	return &Locator{
		start:    opts.Start,
		through:  opts.Through,
		close:    strings.TrimSpace(opts.Close),
		open:     opts.Open,
		depth:    depth,
		lookback: lb,
	}, nil
}

var _ contract.Locator = (*Locator)(nil)

// Locate 依次执行：起始 → (Open 回溯) → Through → Close。
func (l *Locator) Locate(doc contract.Document) (contract.Region, error) {
	lines := doc.Lines
	first := indexFrom(lines, 0, func(s string) bool { return strings.Contains(s, l.start) })
	if first < 0 {
		return contract.Region{}, fmt.Errorf("%w: %q", contract.ErrNotFound, l.start)
	}
	r := contract.Region{Start: first, End: first + 1}

	if l.open != "" {
		floor := first - l.lookback
		if floor < 0 {
			floor = 0
		}
		// 起始行本身包含 Open 时无需回溯
		for i := first; i >= floor; i-- {
			if strings.Contains(lines[i], l.open) {
				r.Start = i
				break
			}
		}
	}

	if l.through != "" {
		i := indexFrom(lines, first+1, func(s string) bool { return strings.Contains(s, l.through) })
		if i < 0 {
			return contract.Region{}, fmt.Errorf("%w: %q after line %d", contract.ErrUnterminated, l.through, first+1)
		}
		r.End = i + 1
	}

	if l.close != "" {
		i := indexFrom(lines, r.End, func(s string) bool { return strings.TrimSpace(s) == l.close })
		if i < 0 {
			return contract.Region{}, fmt.Errorf("%w: %q after line %d", contract.ErrUnterminated, l.close, r.End)
		}
		r.End = i + 1
		for k := 1; k < l.depth && r.End < len(lines); k++ {
			if !strings.Contains(strings.TrimSpace(lines[r.End]), l.close) {
				break
			}
			r.End++
		}
	}
	return r, nil
}

func indexFrom(lines []string, from int, match func(string) bool) int {
	for i := from; i < len(lines); i++ {
		if match(lines[i]) {
			return i
		}
	}
	return -1
}
