package analysis

import (
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/go-cmp/cmp"
)

var interfaceShader = heredoc.Doc(`
	instance model: mat4;
	geometry pos: vec3;
	geometry color: vec4;
	varying normal: vec3;
	varying frame: mat3;
	varying depth: float;
	fn vertex() -> vec4 {
		normal = pos;
		depth = 1.0;
		return model * vec4(pos, 1.0);
	}
	fn pixel() -> vec4 { return color * depth + vec4(frame[0], 1.0); }
`)

func TestSlotsCountMatrixColumns(t *testing.T) {
	m := analyse(t, interfaceShader)
	slots := map[string]int{}
	for _, g := range m.Globals {
		slots[g.Name.String()] = g.Slot
	}
	want := map[string]int{"model": 0, "pos": 4, "color": 5, "normal": 0, "frame": 1, "depth": 4}
	if diff := cmp.Diff(want, slots); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
}

func TestInterface(t *testing.T) {
	m := analyse(t, interfaceShader)

	type entry struct {
		Name      string
		Forwarded bool
		Location  int
	}
	var got []entry
	for _, v := range m.Interface() {
		got = append(got, entry{v.Global.Name.String(), v.Forwarded, v.Location})
	}
	want := []entry{
		{"normal", false, 0},
		{"frame", false, 1},
		{"depth", false, 4},
		{"color", true, 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("interface mismatch (-want +got):\n%s", diff)
	}

	var attrs []string
	for _, g := range m.Attributes() {
		attrs = append(attrs, g.Name.String())
	}
	if diff := cmp.Diff([]string{"model", "pos", "color"}, attrs); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestStages(t *testing.T) {
	m := analyse(t, "fn vertex() -> vec4 { return vec4(1.0); }")
	if m.Closure(StageVertex) != m.Vertex {
		t.Error("Closure(StageVertex) is not the vertex closure")
	}
	if m.Closure(StagePixel) != nil {
		t.Error("pixel closure exists without a pixel entry point")
	}
	for _, s := range Stages {
		got, err := ParseStage(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStage(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseStage("compute"); err == nil {
		t.Error("ParseStage(compute) succeeded")
	}
}

func TestClosureExprs(t *testing.T) {
	m := analyse(t, "fn f(a: float) -> float { return a * 2.0; } fn vertex() -> vec4 { return vec4(f(1.0)); }")
	n := 0
	for range m.Vertex.Exprs() {
		n++
	}
	// a * 2.0 is three nodes, vec4(f(1.0)) another three.
	if n != 6 {
		t.Errorf("visited %d expressions, want 6", n)
	}
	for range m.Vertex.Exprs() {
		break
	}
}
