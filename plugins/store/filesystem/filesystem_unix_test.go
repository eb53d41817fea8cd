//go:build !windows

package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockpatch/pkg/contract"
)

// 原子替换沿用原文件权限。
func TestSaveAtomicKeepsMode(t *testing.T) {
	p := filepath.Join(t.TempDir(), "page.tsx")
	require.NoError(t, os.WriteFile(p, []byte("a\n"), 0o600))
	require.NoError(t, os.Chmod(p, 0o600))
	on := true
	require.NoError(t, New(&Options{Atomic: &on}).Save(context.Background(), p, contract.Document{Lines: []string{"b"}}))
	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

// 直接覆盖写保留原文件（同一 inode）。
func TestSaveOverwriteInPlace(t *testing.T) {
	p := filepath.Join(t.TempDir(), "page.tsx")
	require.NoError(t, os.WriteFile(p, []byte("a\n"), 0o644))
	before, err := os.Stat(p)
	require.NoError(t, err)
	require.NoError(t, New(nil).Save(context.Background(), p, contract.Document{Lines: []string{"b"}, FinalNewline: true}))
	after, err := os.Stat(p)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after))
	b, _ := os.ReadFile(p)
	assert.Equal(t, "b\n", string(b))
}

// 新建文件使用 PermFile（受 umask 影响，仅断言不超出）。
func TestSaveNewFilePerm(t *testing.T) {
	p := filepath.Join(t.TempDir(), "new.tsx")
	require.NoError(t, New(&Options{PermFile: 0o640}).Save(context.Background(), p, contract.Document{Lines: []string{"b"}}))
	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Zero(t, st.Mode().Perm()&^os.FileMode(0o640))
}
