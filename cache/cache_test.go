package cache

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	bolt "go.etcd.io/bbolt"

	"github.com/gogpu/shade"
	"github.com/gogpu/shade/builtin"
	"github.com/gogpu/shade/glsl"
	"github.com/gogpu/shade/lang"
)

const passThrough = "fn vertex() -> vec4 { return vec4(0.,0.,0.,1.); } fn pixel() -> vec4 { return vec4(1.,0.,0.,1.); }"

func fragments(code string) []shade.CodeFragment {
	return []shade.CodeFragment{{Filename: "test.shd", Line: 1, Col: 1, Code: code}}
}

func openTemp(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestKey(t *testing.T) {
	opts := shade.DefaultOptions()
	base := Key(fragments(passThrough), shade.TargetGLSL, opts)
	if len(base) != 32 {
		t.Fatalf("len(Key()) = %d, want 32", len(base))
	}
	if !bytes.Equal(base, Key(fragments(passThrough), shade.TargetGLSL, opts)) {
		t.Error("Key() is not deterministic")
	}

	es := shade.DefaultOptions()
	es.GLSL.LangVersion = glsl.VersionES300
	prelude := shade.DefaultOptions()
	prelude.Prelude = true
	moved := fragments(passThrough)
	moved[0].Line = 2
	extended := shade.DefaultOptions()
	extended.Builtins = builtin.Generate()
	extended.Builtins[lang.NewIdent("brighten")] = &builtin.Builtin{
		Name:      lang.NewIdent("brighten"),
		Overloads: []builtin.Signature{{Params: []lang.Ty{lang.Vec4}, Return: lang.Vec4}},
	}
	split := []shade.CodeFragment{
		{Filename: "test.shd", Line: 1, Col: 1, Code: passThrough[:10]},
		{Filename: "test.shd", Line: 1, Col: 1, Code: passThrough[10:]},
	}

	tests := []struct {
		name string
		key  []byte
	}{
		{"target", Key(fragments(passThrough), shade.TargetHLSL, opts)},
		{"options", Key(fragments(passThrough), shade.TargetGLSL, es)},
		{"prelude", Key(fragments(passThrough), shade.TargetGLSL, prelude)},
		{"position", Key(moved, shade.TargetGLSL, opts)},
		{"fragment boundaries", Key(split, shade.TargetGLSL, opts)},
		{"code", Key(fragments(passThrough+" "), shade.TargetGLSL, opts)},
		{"builtins", Key(fragments(passThrough), shade.TargetGLSL, extended)},
	}
	for _, tt := range tests {
		if bytes.Equal(base, tt.key) {
			t.Errorf("changing the %s does not change the key", tt.name)
		}
	}

	// An explicit table with the default content shares the default key.
	fresh := shade.DefaultOptions()
	fresh.Builtins = builtin.Generate()
	if !bytes.Equal(base, Key(fragments(passThrough), shade.TargetGLSL, fresh)) {
		t.Error("a regenerated default built-in table changes the key")
	}

	// Options of other targets do not matter.
	if !bytes.Equal(Key(fragments(passThrough), shade.TargetHLSL, opts), Key(fragments(passThrough), shade.TargetHLSL, es)) {
		t.Error("GLSL options change the HLSL key")
	}
}

func TestGetPut(t *testing.T) {
	c, _ := openTemp(t)
	key := Key(fragments(passThrough), shade.TargetMSL, shade.DefaultOptions())

	if _, ok, err := c.Get(key); err != nil || ok {
		t.Fatalf("Get() on an empty cache = %v, %v", ok, err)
	}

	want := shade.Output{Vertex: "vertex text", Pixel: ""}
	if err := c.Put(key, want); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
	if n, _ := c.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Error("Get() hit after Clear()")
	}
}

func TestCompile(t *testing.T) {
	c, path := openTemp(t)
	opts := shade.DefaultOptions()

	want, err := shade.Compile(fragments(passThrough), shade.TargetHLSL, opts)
	if err != nil {
		t.Fatalf("shade.Compile() error: %v", err)
	}
	got, err := c.Compile(fragments(passThrough), shade.TargetHLSL, opts)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compile() mismatch (-want +got):\n%s", diff)
	}

	// A planted entry proves the second call is served from the cache.
	planted := shade.Output{Vertex: "cached", Pixel: "cached"}
	if err := c.Put(Key(fragments(passThrough), shade.TargetHLSL, opts), planted); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err = c.Compile(fragments(passThrough), shade.TargetHLSL, opts)
	if err != nil || got != planted {
		t.Errorf("Compile() = %+v, %v; want the cached entry", got, err)
	}

	// Entries survive reopening.
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	c2, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer c2.Close()
	if n, _ := c2.Len(); n != 1 {
		t.Errorf("Len() after reopen = %d, want 1", n)
	}
}

func TestCompile_ErrorNotCached(t *testing.T) {
	c, _ := openTemp(t)
	_, err := c.Compile(fragments("fn pixel() -> vec4 { return nope; }"), shade.TargetGLSL, shade.DefaultOptions())
	var serr *shade.SourceError
	if !errors.As(err, &serr) {
		t.Fatalf("Compile() error = %v, want *shade.SourceError", err)
	}
	if n, _ := c.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestOpen_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		t.Fatalf("bolt.Open() error: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucket([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(keyVersion), []byte("shade-cache/0")); err != nil {
			return err
		}
		outputs, err := tx.CreateBucket([]byte(bucketOutputs))
		if err != nil {
			return err
		}
		return outputs.Put([]byte("stale"), encode(shade.Output{Vertex: "old"}))
	})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	db.Close()

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer c.Close()
	if n, _ := c.Len(); n != 0 {
		t.Errorf("Len() = %d, want stale entries dropped", n)
	}
}

func TestDecode(t *testing.T) {
	want := shade.Output{Vertex: "v", Pixel: "pixel text"}
	got, err := decode(encode(want))
	if err != nil {
		t.Fatalf("decode() error: %v", err)
	}
	if got != want {
		t.Errorf("decode() = %+v, want %+v", got, want)
	}
	for _, bad := range [][]byte{{}, {0x80}, {5, 'a'}} {
		if _, err := decode(bad); !errors.Is(err, ErrCorrupt) {
			t.Errorf("decode(%v) error = %v, want ErrCorrupt", bad, err)
		}
	}
}
