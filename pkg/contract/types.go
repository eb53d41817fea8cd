package contract

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FileID: 逻辑文档ID（通常为路径或 URL，需规范化，跨平台一致）。
type FileID string

// Document: 整体载入内存的文本文档。
// 约束：
// - 仅按 '\n' 切分，'\r' 保留在行内，保证 Parse→Bytes 字节级往返；
// - FinalNewline 记录源文本是否以换行结尾；
// - 变换必须返回新 Document，不得原地修改 Lines。
type Document struct {
	ID           FileID
	Lines        []string
	FinalNewline bool
}

// Len 返回行数（末尾换行不计为额外的空行）。
func (d Document) Len() int { return len(d.Lines) }

// Text 返回按行拼接后的完整文本。
func (d Document) Text() string {
	s := strings.Join(d.Lines, "\n")
	if d.FinalNewline {
		s += "\n"
	}
	return s
}

// Bytes 返回写回介质的字节。
func (d Document) Bytes() []byte { return []byte(d.Text()) }

// Clone 深拷贝行切片。
func (d Document) Clone() Document {
	out := d
	if d.Lines != nil {
		out.Lines = make([]string, len(d.Lines))
		copy(out.Lines, d.Lines)
	}
	return out
}

// ParseDocument 将原始字节解析为 Document；非 UTF-8 内容返回 ErrDecode。
func ParseDocument(id FileID, data []byte) (Document, error) {
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("%w: %s: invalid UTF-8 at byte %d", ErrDecode, id, firstInvalid(data))
	}
	doc := Document{ID: id}
	if len(data) == 0 {
		return doc, nil
	}
	s := string(data)
	if strings.HasSuffix(s, "\n") {
		doc.FinalNewline = true
		s = s[:len(s)-1]
	}
	doc.Lines = strings.Split(s, "\n")
	return doc, nil
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// Region: 半开行区间 [Start, End)，0 起始。
type Region struct {
	Start int
	End   int
}

// Len 返回区间覆盖的行数。
func (r Region) Len() int { return r.End - r.Start }

// Valid 判断区间是否落在 n 行文档之内。
func (r Region) Valid(n int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= n
}

// String 以 1 起始的闭区间形式展示，便于人工核对。
func (r Region) String() string {
	if r.Len() == 0 {
		return fmt.Sprintf("@%d (empty)", r.Start+1)
	}
	return fmt.Sprintf("%d-%d", r.Start+1, r.End)
}

// Hit: 诊断扫描命中（Line 为 1 起始行号）。
type Hit struct {
	Line   int
	Marker string
	Text   string
}
