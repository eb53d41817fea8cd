package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"blockpatch/pkg/contract"
)

// Terminal: 面向人工核对的终端输出（非日志）。
// - 输出到提供的 io.Writer（默认 stdout）。
// - TTY: 标签着色；非 TTY: 纯文本，逐行打印。
// - 并发安全；写失败后进入禁用态为 no-op。
// - nil *Terminal 的所有方法均为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	tag  lipgloss.Style
	ok   lipgloss.Style
	warn lipgloss.Style
	bad  lipgloss.Style

	mu sync.Mutex
}

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") != "" {
		t.isTTY = false
	} else if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			t.isTTY = fi.Mode()&os.ModeCharDevice != 0
		}
	}
	r := lipgloss.NewRenderer(w)
	t.tag = r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	t.ok = r.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	t.warn = r.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	t.bad = r.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	return t
}

// Target: 文档已载入。
func (t *Terminal) Target(fileID string, lines int) {
	if t == nil {
		return
	}
	t.line(t.tag, "[file]", fmt.Sprintf("%s | 行数 %d", shortenBase(fileID, 48), lines))
}

// Probe: 全文正则探测结果（字符偏移，仅提示，不影响逐行处理）。
func (t *Terminal) Probe(found bool, from, to int) {
	if t == nil {
		return
	}
	if found {
		t.line(t.ok, "[probe]", fmt.Sprintf("命中 pos %d - %d", from, to))
		return
	}
	t.line(t.warn, "[probe]", "未命中，继续逐行处理")
}

// RuleApplied: 规则已替换区间。
func (t *Terminal) RuleApplied(name string, r contract.Region, inserted int) {
	if t == nil {
		return
	}
	t.line(t.ok, "[rule]", fmt.Sprintf("%s | 行 %s | 删除 %d | 插入 %d", safe(name), r, r.Len(), inserted))
}

// RuleSkipped: 规则未生效（标记缺失等）。
func (t *Terminal) RuleSkipped(name string, err error) {
	if t == nil {
		return
	}
	t.line(t.warn, "[skip]", fmt.Sprintf("%s | %s", safe(name), safe(errString(err))))
}

// Done: 结果行数与写回状态（written|unchanged|dry-run）。
func (t *Terminal) Done(lines int, status string, dur time.Duration) {
	if t == nil {
		return
	}
	t.line(t.ok, "[done]", fmt.Sprintf("行数 %d | %s | 用时 %s", lines, status, formatDur(dur)))
}

// Report: 残留引用（1 起始行号）。
func (t *Terminal) Report(hits []contract.Hit) {
	if t == nil {
		return
	}
	if len(hits) == 0 {
		t.line(t.ok, "[refs]", "残留引用 0")
		return
	}
	t.line(t.bad, "[refs]", fmt.Sprintf("残留引用 %d", len(hits)))
	for _, h := range hits {
		t.line(t.bad, "[ref]", fmt.Sprintf("行 %d: %s", h.Line, safe(h.Text)))
	}
}

// Fail: 致命错误提示。
func (t *Terminal) Fail(err error) {
	if t == nil {
		return
	}
	t.line(t.bad, "[fail]", safe(errString(err)))
}

// line 由导出方法调用，调用方已处理 nil。
func (t *Terminal) line(style lipgloss.Style, tag, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.isTTY {
		tag = style.Render(tag)
	}
	if _, err := io.WriteString(t.w, tag+" "+body+"\n"); err != nil {
		t.enabled = false
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// shortenBase 返回 base 名；超长时保留尾部 max 个字符。
func shortenBase(p string, max int) string {
	if max <= 0 {
		return ""
	}
	b := []rune(filepath.Base(p))
	if len(b) <= max {
		return string(b)
	}
	return "…" + string(b[len(b)-max+1:])
}

// safe: 去除换行，避免破坏逐行输出。
func safe(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
