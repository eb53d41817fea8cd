package contract

import "context"

// Store: 文档的载入与写回介质（本地文件系统、afs URL 等）。
// 约束：
//  1. Load 一次性读入整份文档，读后即关闭句柄；
//  2. Save 覆盖写回同一 target，不做备份；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Store interface {
	Load(ctx context.Context, target string) (Document, error)
	Save(ctx context.Context, target string, doc Document) error
}
