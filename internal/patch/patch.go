// Package patch 提供与 I/O 无关的纯函数：区间替换、定位+替换、诊断扫描与正则探测。
package patch

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"blockpatch/pkg/contract"
)

// Replace 返回 lines[:r.Start] + block + lines[r.End:] 组成的新文档。
// 输入文档与 block 均不被修改。
func Replace(doc contract.Document, r contract.Region, block []string) (contract.Document, error) {
	if !r.Valid(doc.Len()) {
		return contract.Document{}, fmt.Errorf("%w: %s for %d lines", contract.ErrRegionInvalid, r, doc.Len())
	}
	out := contract.Document{ID: doc.ID, FinalNewline: doc.FinalNewline}
	out.Lines = make([]string, 0, doc.Len()-r.Len()+len(block))
	out.Lines = append(out.Lines, doc.Lines[:r.Start]...)
	out.Lines = append(out.Lines, block...)
	out.Lines = append(out.Lines, doc.Lines[r.End:]...)
	// 空文档替换为空块：保持零值形态，Text() 往返不变。
	if len(out.Lines) == 0 {
		out.Lines = nil
	}
	return out, nil
}

// Apply 定位并替换；定位失败时原样返回输入文档与错误。
func Apply(doc contract.Document, loc contract.Locator, block []string) (contract.Document, contract.Region, error) {
	r, err := loc.Locate(doc)
	if err != nil {
		return doc, contract.Region{}, err
	}
	out, err := Replace(doc, r, block)
	if err != nil {
		return doc, r, err
	}
	return out, r, nil
}

// Scan 返回包含任一禁止子串的行（1 起始行号，按行序；同一行只报首个命中的标记）。
func Scan(doc contract.Document, forbidden []string) []contract.Hit {
	var hits []contract.Hit
	for i, line := range doc.Lines {
		for _, m := range forbidden {
			if m == "" {
				continue
			}
			if strings.Contains(line, m) {
				hits = append(hits, contract.Hit{Line: i + 1, Marker: m, Text: strings.TrimSpace(line)})
				break
			}
		}
	}
	return hits
}

// Probe 在全文上执行正则匹配，返回首个匹配的字符（rune）偏移 [from, to)。
func Probe(doc contract.Document, re *regexp.Regexp) (from, to int, ok bool) {
	if re == nil {
		return 0, 0, false
	}
	text := doc.Text()
	loc := re.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	from = utf8.RuneCountInString(text[:loc[0]])
	to = from + utf8.RuneCountInString(text[loc[0]:loc[1]])
	return from, to, true
}

// Window 返回区间前后各 radius 行的摘录（带 1 起始行号），用于人工核对。
func Window(doc contract.Document, r contract.Region, radius int) []string {
	from := r.Start - radius
	if from < 0 {
		from = 0
	}
	to := r.End + radius
	if to > doc.Len() {
		to = doc.Len()
	}
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("%d: %s", i+1, strings.TrimRight(doc.Lines[i], "\r")))
	}
	return out
}
