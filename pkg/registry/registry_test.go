package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockpatch/pkg/contract"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	require.NoError(t, strictUnmarshal(nil, &o))
	assert.Equal(t, 0, o.A)
	require.NoError(t, strictUnmarshal(json.RawMessage(`{"a":1}`), &o))
	assert.Equal(t, 1, o.A)
	assert.Error(t, strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o), "未知字段应报错")
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		for _, name := range []string{"fs", "afs"} {
			s, err := Store[name](json.RawMessage(`{}`))
			require.NoError(t, err, name)
			require.NotNil(t, s, name)
			_, err = Store[name](json.RawMessage(`{"x":1}`))
			assert.Error(t, err, "%s 未对未知字段报错", name)
		}
		s, err := Store["fs"](json.RawMessage(`{"atomic":false,"perm_file":420}`))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
	t.Run("marker", func(t *testing.T) {
		loc, err := Locator["marker"](json.RawMessage(`{"start":"A","close":"</div>"}`))
		require.NoError(t, err)
		doc := contract.Document{Lines: []string{"x", "A", "</div>"}}
		r, err := loc.Locate(doc)
		require.NoError(t, err)
		assert.Equal(t, contract.Region{Start: 1, End: 3}, r)

		_, err = Locator["marker"](json.RawMessage(`{}`))
		assert.Error(t, err, "缺少 start 应报错")
		_, err = Locator["marker"](json.RawMessage(`{"start":"A","x":1}`))
		assert.Error(t, err)
	})
	t.Run("offset", func(t *testing.T) {
		loc, err := Locator["offset"](json.RawMessage(`{"from_line":2,"to_line":3}`))
		require.NoError(t, err)
		r, err := loc.Locate(contract.Document{Lines: []string{"a", "b", "c"}})
		require.NoError(t, err)
		assert.Equal(t, contract.Region{Start: 1, End: 3}, r)

		_, err = Locator["offset"](json.RawMessage(`{"from_line":3,"to_line":2}`))
		assert.Error(t, err)
		_, err = Locator["offset"](json.RawMessage(`{"from":1}`))
		assert.Error(t, err)
	})
	t.Run("unknown", func(t *testing.T) {
		_, ok := Locator["regex"]
		assert.False(t, ok)
		_, ok = Store["s3"]
		assert.False(t, ok)
	})
}
