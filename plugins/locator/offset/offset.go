// Package offset 按固定行号定位区间。
//
// 不校验区间内容：目标区间之上若有行插入或删除，会静默替换错误的行。
// 仅为兼容已知行号的一次性修补保留；常规场景使用 marker 定位器。
package offset

import (
	"errors"
	"fmt"

	"blockpatch/pkg/contract"
)

// Options: 1 起始、闭区间行号。
type Options struct {
	FromLine int `json:"from_line"`
	ToLine   int `json:"to_line"`
}

type Locator struct {
	r contract.Region
}

// New 创建行号定位器。
func New(opts *Options) (*Locator, error) {
	if opts == nil || opts.FromLine < 1 || opts.ToLine < opts.FromLine {
		return nil, errors.New("offset: require 1 <= from_line <= to_line")
	}
	return &Locator{r: contract.Region{Start: opts.FromLine - 1, End: opts.ToLine}}, nil
}

var _ contract.Locator = (*Locator)(nil)

// Locate 仅做边界检查。
func (l *Locator) Locate(doc contract.Document) (contract.Region, error) {
	if !l.r.Valid(doc.Len()) {
		return contract.Region{}, fmt.Errorf("%w: lines %s beyond %d-line document", contract.ErrRegionInvalid, l.r, doc.Len())
	}
	return l.r, nil
}
