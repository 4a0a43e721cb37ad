package shade

import (
	"embed"
	"io/fs"
	"path"
	"slices"
	"sync"
)

//go:embed stdlib/*.shd
var stdlib embed.FS

var prelude = sync.OnceValue(func() []CodeFragment {
	entries, err := fs.ReadDir(stdlib, "stdlib")
	if err != nil {
		panic(err)
	}
	fragments := make([]CodeFragment, 0, len(entries))
	for _, e := range entries {
		name := path.Join("stdlib", e.Name())
		code, err := fs.ReadFile(stdlib, name)
		if err != nil {
			panic(err)
		}
		fragments = append(fragments, CodeFragment{Filename: name, Line: 1, Col: 1, Code: string(code)})
	}
	return fragments
})

// Prelude returns the standard library fragments, sorted by file name.
// CompileOptions.Prelude places them before the shader's own fragments;
// only the functions a stage reaches are emitted.
func Prelude() []CodeFragment {
	return slices.Clone(prelude())
}
