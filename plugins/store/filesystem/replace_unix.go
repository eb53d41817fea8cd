//go:build !windows

package filesystem

import "os"

// replaceFile: POSIX rename 在同一文件系统内原子替换目标。
func replaceFile(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncParent 最佳努力 fsync 父目录，持久化 rename 元数据。
func syncParent(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
