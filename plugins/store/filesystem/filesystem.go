package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"blockpatch/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：false。未提供该字段时直接覆盖写；显式 true 则走原子替换。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile: 目标文件不存在时的创建权限；为 0 表示 0o644。已存在文件沿用其权限。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	// BufSize: 读写缓冲区大小；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// FS 实现基于本地文件系统的 Store。
type FS struct {
	atomic  bool
	permF   os.FileMode
	bufSize int
}

// New 创建文件系统 Store。
func New(opts *Options) *FS {
	atomic := false
	var pf os.FileMode
	bsz := 0
	if opts != nil {
		if opts.Atomic != nil {
			atomic = *opts.Atomic
		}
		pf = opts.PermFile
		bsz = opts.BufSize
	}
	if pf == 0 {
		pf = 0o644
	}
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	return &FS{atomic: atomic, permF: pf, bufSize: bsz}
}

var _ contract.Store = (*FS)(nil)

// Load 读取整个文件并解析为 Document。
func (s *FS) Load(ctx context.Context, target string) (contract.Document, error) {
	if err := ctx.Err(); err != nil {
		return contract.Document{}, err
	}
	if strings.TrimSpace(target) == "" {
		return contract.Document{}, contract.ErrPathInvalid
	}
	f, err := os.Open(target)
	if err != nil {
		return contract.Document{}, err
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, readerWithCtx(ctx, bufio.NewReaderSize(f, s.bufSize))); err != nil {
		return contract.Document{}, err
	}
	return contract.ParseDocument(contract.NormalizeFileID(target), buf.Bytes())
}

// Save 将 doc 写回 target。
func (s *FS) Save(ctx context.Context, target string, doc contract.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(target) == "" {
		return contract.ErrPathInvalid
	}
	perm := s.permF
	if st, err := os.Stat(target); err == nil {
		perm = st.Mode().Perm()
	}
	r := bytes.NewReader(doc.Bytes())
	if s.atomic {
		return s.writeAtomic(ctx, target, perm, r)
	}
	return s.writeOverwrite(ctx, target, perm, r)
}

func (s *FS) writeOverwrite(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, s.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	// Close 的错误同样意味着写入失败
	return f.Close()
}

func (s *FS) writeAtomic(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	// 目标权限：尽量与原文件一致
	_ = os.Chmod(tmpPath, perm)

	bw := bufio.NewWriterSize(tmp, s.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 平台特定的原子替换（或最佳努力）
	if err := replaceFile(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 最佳努力：同步父目录
	_ = syncParent(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
