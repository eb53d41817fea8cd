package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockpatch/pkg/contract"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	p := writeFile(t, t.TempDir(), "page.tsx", "a\r\nb\n")
	doc, err := New(nil).Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\r", "b"}, doc.Lines)
	assert.True(t, doc.FinalNewline)
	assert.Equal(t, contract.NormalizeFileID(p), doc.ID)
}

func TestLoadMissing(t *testing.T) {
	_, err := New(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.tsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	var perr *fs.PathError
	assert.True(t, errors.As(err, &perr))
}

func TestLoadDecodeError(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bin.tsx", "ok\n\xc3\x28")
	_, err := New(nil).Load(context.Background(), p)
	assert.True(t, errors.Is(err, contract.ErrDecode))
}

func TestEmptyTarget(t *testing.T) {
	s := New(nil)
	_, err := s.Load(context.Background(), " ")
	assert.True(t, errors.Is(err, contract.ErrPathInvalid))
	assert.True(t, errors.Is(s.Save(context.Background(), "", contract.Document{}), contract.ErrPathInvalid))
}

// 原子写入：替换已有内容且不残留临时文件。
func TestSaveAtomic(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "page.tsx", "v1\n")
	on := true
	s := New(&Options{Atomic: &on})
	doc := contract.Document{Lines: []string{"v2", "v2b"}, FinalNewline: true}
	require.NoError(t, s.Save(context.Background(), p, doc))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "v2\nv2b\n", string(b))
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "tmp file not cleaned: %s", e.Name())
	}
}

// 默认直接覆盖写：截断原内容，小缓冲多次 flush 后结果完整，且不产生临时文件。
func TestSaveOverwrite(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "page.tsx", "a much longer original content\n")
	s := New(&Options{BufSize: 4})
	require.False(t, s.atomic)
	require.NoError(t, s.Save(context.Background(), p, contract.Document{Lines: []string{"short", "block"}}))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "short\nblock", string(b))
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestDefaultOverwrite(t *testing.T) {
	assert.False(t, New(nil).atomic)
	off := false
	assert.False(t, New(&Options{Atomic: &off}).atomic)
	on := true
	assert.True(t, New(&Options{Atomic: &on}).atomic)
}

// 目标不存在时两种模式都会创建文件。
func TestSaveCreates(t *testing.T) {
	dir := t.TempDir()
	on := true
	for name, s := range map[string]*FS{"atomic": New(&Options{Atomic: &on}), "overwrite": New(nil)} {
		p := filepath.Join(dir, name+".tsx")
		require.NoError(t, s.Save(context.Background(), p, contract.Document{Lines: []string{"x"}, FinalNewline: true}))
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "x\n", string(b))
	}
}

func TestSaveMissingDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "no", "such", "page.tsx")
	err := New(nil).Save(context.Background(), p, contract.Document{Lines: []string{"x"}})
	assert.Error(t, err)
}

func TestCanceled(t *testing.T) {
	p := writeFile(t, t.TempDir(), "page.tsx", "a\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(nil)
	_, err := s.Load(ctx, p)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(s.Save(ctx, p, contract.Document{}), context.Canceled))
	b, _ := os.ReadFile(p)
	assert.Equal(t, "a\n", string(b))
}
