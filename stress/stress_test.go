package stress

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blockpatch/internal/patch"
	"blockpatch/internal/pipeline"
	"blockpatch/pkg/contract"
	"blockpatch/plugins/locator/marker"
	sfs "blockpatch/plugins/store/filesystem"
)

// randomDoc 生成 n 行带唯一哨兵的文档，并在 [at, at+size) 埋入一个可定位的块。
func randomDoc(rng *rand.Rand, n, at, size int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("keep-%d %s", i, strings.Repeat("x", rng.Intn(40)))
	}
	lines[at] = "    BEGIN-BLOCK"
	for i := at + 1; i < at+size-1; i++ {
		lines[i] = fmt.Sprintf("    body %d", i)
	}
	lines[at+size-1] = "    END-BLOCK"
	return lines
}

// TestLengthLaw 随机区间与替换块：长度守恒、区间外哨兵按序保留、输入不变。
func TestLengthLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for iter := 0; iter < 2000; iter++ {
		n := rng.Intn(200)
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fmt.Sprintf("s%d", i)
		}
		doc := contract.Document{Lines: lines, FinalNewline: rng.Intn(2) == 0}
		start := 0
		if n > 0 {
			start = rng.Intn(n + 1)
		}
		end := start + rng.Intn(n-start+1)
		block := make([]string, rng.Intn(12))
		for i := range block {
			block[i] = fmt.Sprintf("b%d", i)
		}
		orig := doc.Clone()

		out, err := patch.Replace(doc, contract.Region{Start: start, End: end}, block)
		require.NoError(t, err, "iter %d", iter)
		require.Equal(t, n-(end-start)+len(block), out.Len(), "iter %d", iter)
		if out.Len() > 0 {
			require.Equal(t, lines[:start], out.Lines[:start])
			require.Equal(t, block, out.Lines[start:start+len(block)])
			require.Equal(t, lines[end:], out.Lines[start+len(block):])
		}
		require.Equal(t, orig, doc, "输入文档被修改")
		require.Equal(t, doc.FinalNewline, out.FinalNewline)
	}
}

// TestMarkerRandom 在随机位置埋块，经 fs store 完整运行：只替换块，二次运行不变。
func TestMarkerRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	loc, err := marker.New(&marker.Options{Start: "BEGIN-BLOCK", Through: "END-BLOCK"})
	require.NoError(t, err)
	st := sfs.New(nil)
	dir := t.TempDir()

	for iter := 0; iter < 200; iter++ {
		n := 10 + rng.Intn(700)
		size := 2 + rng.Intn(20)
		if size > n {
			size = n
		}
		at := rng.Intn(n - size + 1)
		src := randomDoc(rng, n, at, size)
		target := filepath.Join(dir, fmt.Sprintf("doc-%d.txt", iter))
		require.NoError(t, os.WriteFile(target, []byte(strings.Join(src, "\n")+"\n"), 0o644))

		block := []string{"NEW-1", "NEW-2", "NEW-3"}
		comp := pipeline.Components{Store: st, Rules: []pipeline.Rule{{Name: "blk", Locator: loc, Replacement: block}}}
		set := pipeline.Settings{Target: target, Forbidden: []string{"BLOCK"}}

		res, err := pipeline.Run(context.Background(), comp, set, nil)
		require.NoError(t, err)
		require.Empty(t, res.Hits)
		require.Equal(t, contract.Region{Start: at, End: at + size}, res.Outcomes[0].Region)

		b, err := os.ReadFile(target)
		require.NoError(t, err)
		got := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
		require.Len(t, got, n-size+len(block))
		require.Equal(t, src[:at], got[:at])
		require.Equal(t, src[at+size:], got[at+len(block):])

		res, err = pipeline.Run(context.Background(), comp, set, nil)
		require.NoError(t, err)
		require.False(t, res.Written)
		again, err := os.ReadFile(target)
		require.NoError(t, err)
		require.Equal(t, b, again)
	}
}

func BenchmarkRunMarker(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	src := randomDoc(rng, 5000, 2500, 40)
	data := []byte(strings.Join(src, "\n") + "\n")
	loc, err := marker.New(&marker.Options{Start: "BEGIN-BLOCK", Through: "END-BLOCK"})
	if err != nil {
		b.Fatal(err)
	}
	doc, err := contract.ParseDocument("bench", data)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := patch.Apply(doc, loc, []string{"x"}); err != nil {
			b.Fatal(err)
		}
	}
}
