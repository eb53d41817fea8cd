package registry

import (
	"bytes"
	"encoding/json"

	"blockpatch/pkg/contract"
	"blockpatch/plugins/locator/marker"
	"blockpatch/plugins/locator/offset"
	safs "blockpatch/plugins/store/afs"
	sfs "blockpatch/plugins/store/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewStore 工厂签名：接收原样 JSON Options。
type NewStore func(raw json.RawMessage) (contract.Store, error)

// NewLocator 工厂签名：接收原样 JSON Options。
type NewLocator func(raw json.RawMessage) (contract.Locator, error)

// Store 工厂注册表（显式、零反射）。
var Store = map[string]NewStore{
	// fs: 本地文件系统（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Store, error) {
		var opts sfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfs.New(&opts), nil
	},
	// afs: viant/afs URL（file://、mem:// 等）
	"afs": func(raw json.RawMessage) (contract.Store, error) {
		var opts safs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return safs.New(&opts), nil
	},
}

// Locator 工厂注册表。
var Locator = map[string]NewLocator{
	// marker: 起始标记 + 哨兵 + 闭合行
	"marker": func(raw json.RawMessage) (contract.Locator, error) {
		var opts marker.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return marker.New(&opts)
	},
	// offset: 固定 1 起始行号（不校验内容）
	"offset": func(raw json.RawMessage) (contract.Locator, error) {
		var opts offset.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return offset.New(&opts)
	},
}
