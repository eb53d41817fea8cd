// Package afs 通过 viant/afs 以 URL 寻址文档（file://、mem:// 及 afs 支持的其他 scheme）。
package afs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/viant/afs"

	"blockpatch/pkg/contract"
)

// Options: afs Store 选项。
type Options struct {
	// PermFile: 上传时使用的文件权限；为 0 表示 0o644。
	PermFile os.FileMode `json:"perm_file,omitempty"`
}

// Store 基于 afs.Service 实现 contract.Store。
type Store struct {
	fs   afs.Service
	perm os.FileMode
}

// New 创建 afs Store；每个 Store 持有独立的 afs.Service。
func New(opts *Options) *Store {
	perm := os.FileMode(0o644)
	if opts != nil && opts.PermFile != 0 {
		perm = opts.PermFile
	}
	return &Store{fs: afs.New(), perm: perm}
}

var _ contract.Store = (*Store)(nil)

// Load 下载 URL 全部内容并解析。
func (s *Store) Load(ctx context.Context, target string) (contract.Document, error) {
	if strings.TrimSpace(target) == "" {
		return contract.Document{}, contract.ErrPathInvalid
	}
	ok, err := s.fs.Exists(ctx, target)
	if err != nil {
		return contract.Document{}, &os.PathError{Op: "stat", Path: target, Err: err}
	}
	if !ok {
		return contract.Document{}, &os.PathError{Op: "open", Path: target, Err: os.ErrNotExist}
	}
	rc, err := s.fs.OpenURL(ctx, target)
	if err != nil {
		return contract.Document{}, &os.PathError{Op: "open", Path: target, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return contract.Document{}, &os.PathError{Op: "read", Path: target, Err: err}
	}
	return contract.ParseDocument(contract.NormalizeFileID(target), data)
}

// Save 上传文档内容，覆盖已有对象。
func (s *Store) Save(ctx context.Context, target string, doc contract.Document) error {
	if strings.TrimSpace(target) == "" {
		return contract.ErrPathInvalid
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Upload(ctx, target, s.perm, bytes.NewReader(doc.Bytes())); err != nil {
		return fmt.Errorf("afs upload %s: %w", target, &os.PathError{Op: "write", Path: target, Err: err})
	}
	return nil
}
