package afs

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

func TestMemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	url := "mem://localhost/blockpatch/" + t.Name() + "/page.tsx"
	doc := contract.Document{Lines: []string{"Token automático", "ok\r"}, FinalNewline: true}
	require.NoError(t, s.Save(ctx, url, doc))

	got, err := s.Load(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, doc.Lines, got.Lines)
	assert.True(t, got.FinalNewline)
	assert.Equal(t, contract.FileID(url), got.ID)
}

func TestLoadMissing(t *testing.T) {
	_, err := New(nil).Load(context.Background(), "mem://localhost/blockpatch/missing/page.tsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadDecodeError(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	url := "mem://localhost/blockpatch/" + t.Name() + "/bin.tsx"
	require.NoError(t, s.fs.Upload(ctx, url, 0o644, strings.NewReader("\xff")))
	_, err := s.Load(ctx, url)
	assert.True(t, errors.Is(err, contract.ErrDecode))
}

// 本地路径同样可经 afs 访问。
func TestLocalFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "page.tsx")
	require.NoError(t, os.WriteFile(p, []byte("a\nb\n"), 0o644))
	s := New(&Options{PermFile: 0o600})
	doc, err := s.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, doc.Lines)

	doc.Lines = []string{"c"}
	require.NoError(t, s.Save(context.Background(), p, doc))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "c\n", string(b))
}

func TestEmptyTarget(t *testing.T) {
	s := New(nil)
	_, err := s.Load(context.Background(), "")
	assert.True(t, errors.Is(err, contract.ErrPathInvalid))
	assert.True(t, errors.Is(s.Save(context.Background(), " ", contract.Document{}), contract.ErrPathInvalid))
}

