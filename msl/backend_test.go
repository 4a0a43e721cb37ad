package msl

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/builtin"
	"github.com/gogpu/shade/lang"
)

func analyse(t *testing.T, source string) *analysis.Module {
	t.Helper()
	ast, err := lang.ParseFragments([]string{source})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	m, err := analysis.Analyse(ast, builtin.Default())
	if err != nil {
		t.Fatalf("analysis error: %v", err)
	}
	return m
}

func stageOptions(stage analysis.Stage) Options {
	opts := DefaultOptions()
	opts.Stage = stage
	return opts
}

func compile(t *testing.T, source string, options Options) (string, TranslationInfo) {
	t.Helper()
	code, info, err := Compile(analyse(t, source), options)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	return code, info
}

func assertContains(t *testing.T, code string, expected ...string) {
	t.Helper()
	for _, s := range expected {
		if !strings.Contains(code, s) {
			t.Errorf("expected MSL output to contain %q\n\nGot:\n%s", s, code)
		}
	}
}

func bindingNames(bs []analysis.Binding) []string {
	var out []string
	for _, b := range bs {
		out = append(out, fmt.Sprintf("%s@%d", b.Name, b.Slot))
	}
	return out
}

var litShader = heredoc.Doc(`
	struct Light { dir: vec3, color: vec3 }
	uniform light_dir: vec3;
	uniform tint: vec4 in material;
	geometry pos: vec2;
	geometry color: vec4;
	varying uv: vec2;
	texture image: texture2D;
	const SCALE: float = 2.0;

	fn Light::shade(l: Light, n: vec3) -> vec3 { return l.color * max(dot(l.dir, n), 0.0); }
	fn vertex() -> vec4 {
		uv = pos * SCALE;
		return vec4(pos, 0.0, 1.0);
	}
	fn pixel() -> vec4 {
		let l = Light(light_dir, vec3(1.0));
		let c = l.shade(vec3(0.0, 0.0, 1.0));
		return sample2d(image, uv) * tint * vec4(c, 1.0) * color;
	}
`)

func TestVersion(t *testing.T) {
	if got := Version2_1.String(); got != "2.1" {
		t.Errorf("String() = %q", got)
	}
	if !Version1_2.Less(Version2_0) || Version3_0.Less(Version2_3) || Version2_1.Less(Version2_1) {
		t.Error("Less() ordering is wrong")
	}

	opts := stageOptions(analysis.StagePixel)
	opts.LangVersion = Version{Major: 1, Minor: 1}
	_, _, err := Compile(analyse(t, litShader), opts)
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != ErrUnsupportedFeature {
		t.Errorf("Compile() error = %v, want UnsupportedFeature", err)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"2.1", Version2_1, false},
		{" 3.0 ", Version3_0, false},
		{"1.2", Version1_2, false},
		{"1.1", Version{}, true},
		{"2", Version{}, true},
		{"two.one", Version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"vertex", "_vertex"},
		{"fragment", "_fragment"},
		{"constant", "_constant"},
		{"template", "_template"},
		{"__x", "___x"},
		{"pixel", "pixel"},
		{"color", "color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.name); got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestNamer(t *testing.T) {
	n := newNamer()
	var got []string
	for _, base := range []string{"pos", "pos", "_ctx", "vertex", "vertex_main", "_input"} {
		got = append(got, n.call(base))
	}
	want := []string{"pos", "pos_1", "_ctx_2", "_vertex", "vertex_main_3", "_input_4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	c := n.clone()
	if c.call("pos") == "pos" {
		t.Error("clone forgot used names")
	}
	if n.call("fresh") != "fresh" {
		t.Error("clone shares state with the original")
	}
}

func TestCompile_Vertex(t *testing.T) {
	got, info := compile(t, litShader, stageOptions(analysis.StageVertex))
	want := heredoc.Doc(`
		#include <metal_stdlib>
		#include <simd/simd.h>

		using metal::uint;

		constant float SCALE = 2.0;

		struct _Ctx {
		    metal::float2 pos;
		    metal::float4 color;
		    metal::float2 uv;
		};

		struct VertexInput {
		    metal::float2 pos [[attribute(0)]];
		    metal::float4 color [[attribute(1)]];
		};

		struct Varyings {
		    metal::float4 position [[position]];
		    metal::float2 uv [[user(locn0)]];
		    metal::float4 v_color [[user(locn1)]];
		};

		metal::float4 _vertex(thread _Ctx& _ctx) {
		    _ctx.uv = _ctx.pos * SCALE;
		    return metal::float4(_ctx.pos, 0.0, 1.0);
		}

		vertex Varyings vertex_main(VertexInput _input [[stage_in]]) {
		    _Ctx _ctx = {_input.pos, _input.color, {}};
		    Varyings _output;
		    _output.position = _vertex(_ctx);
		    _output.uv = _ctx.uv;
		    _output.v_color = _ctx.color;
		    return _output;
		}
	`)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(map[string]string{"vertex": "vertex_main"}, info.EntryPointNames); diff != "" {
		t.Errorf("EntryPointNames mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"pos@0", "color@1"}, bindingNames(info.Attributes)); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"uv@0", "v_color@1"}, bindingNames(info.Varyings)); diff != "" {
		t.Errorf("varyings mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_Pixel(t *testing.T) {
	got, info := compile(t, litShader, stageOptions(analysis.StagePixel))
	want := heredoc.Doc(`
		#include <metal_stdlib>
		#include <simd/simd.h>

		using metal::uint;

		struct Light {
		    metal::float3 dir;
		    metal::float3 color;
		};

		struct uniforms_block {
		    metal::float3 light_dir;
		};

		struct material_block {
		    metal::float4 tint;
		};

		struct _Ctx {
		    constant uniforms_block* uniforms;
		    constant material_block* material;
		    metal::float2 uv;
		    metal::float4 v_color;
		};

		struct Varyings {
		    metal::float4 position [[position]];
		    metal::float2 uv [[user(locn0)]];
		    metal::float4 v_color [[user(locn1)]];
		};

		constexpr metal::sampler _sampler(metal::filter::linear, metal::address::clamp_to_edge);

		metal::float3 Light_shade(Light l, metal::float3 n) {
		    return l.color * metal::max(metal::dot(l.dir, n), 0.0);
		}

		metal::float4 pixel(thread _Ctx& _ctx, metal::texture2d<float> image) {
		    Light l = Light{_ctx.uniforms->light_dir, metal::float3(1.0, 1.0, 1.0)};
		    metal::float3 c = Light_shade(l, metal::float3(0.0, 0.0, 1.0));
		    return image.sample(_sampler, _ctx.uv) * _ctx.material->tint * metal::float4(c, 1.0) * _ctx.v_color;
		}

		fragment metal::float4 pixel_main(Varyings _input [[stage_in]], constant uniforms_block& uniforms [[buffer(0)]], constant material_block& material [[buffer(1)]], metal::texture2d<float> image [[texture(0)]]) {
		    _Ctx _ctx = {&uniforms, &material, _input.uv, _input.v_color};
		    return pixel(_ctx, image);
		}
	`)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"uniforms@0", "material@1"}, bindingNames(info.Buffers)); diff != "" {
		t.Errorf("buffers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"image@0"}, bindingNames(info.Textures)); diff != "" {
		t.Errorf("textures mismatch (-want +got):\n%s", diff)
	}
	if len(info.Uniforms) != 2 || info.Uniforms[1].Name != "material" || info.Uniforms[1].Size != 16 {
		t.Errorf("Uniforms = %+v", info.Uniforms)
	}
}

func TestCompile_Matrices(t *testing.T) {
	source := heredoc.Doc(`
		instance model: mat4;
		geometry pos: vec3;
		uniform view: mat4;
		varying basis: mat2;
		fn vertex() -> vec4 {
			let m = view * model;
			let p = m * vec4(pos, 1.0);
			let eq = pos == vec3(1.0);
			let ne = pos != vec3(1.0);
			let d = mat2(1.0, 2.0, 3.0, 4.0);
			let e = mat2(2.0);
			basis = d * e;
			return p + m[0];
		}
		fn pixel() -> vec4 { return vec4(basis[0], basis[1]); }
	`)
	got, info := compile(t, source, stageOptions(analysis.StageVertex))
	assertContains(t, got,
		"    metal::float4 model_0 [[attribute(0)]];\n    metal::float4 model_1 [[attribute(1)]];\n"+
			"    metal::float4 model_2 [[attribute(2)]];\n    metal::float4 model_3 [[attribute(3)]];\n"+
			"    metal::float3 pos [[attribute(4)]];\n",
		"    metal::float2 basis_0 [[user(locn0)]];\n    metal::float2 basis_1 [[user(locn1)]];\n",
		"struct uniforms_block {\n    metal::float4x4 view;\n};",
		"_Ctx _ctx = {&uniforms, metal::float4x4(_input.model_0, _input.model_1, _input.model_2, _input.model_3), _input.pos, {}};",
		"metal::float4x4 m = _ctx.uniforms->view * _ctx.model;",
		"metal::float4 p = m * metal::float4(_ctx.pos, 1.0);",
		"bool eq = metal::all(_ctx.pos == metal::float3(1.0, 1.0, 1.0));",
		"bool ne = metal::any(_ctx.pos != metal::float3(1.0, 1.0, 1.0));",
		"metal::float2x2 d = metal::float2x2(metal::float2(1.0, 2.0), metal::float2(3.0, 4.0));",
		"metal::float2x2 e = metal::float2x2(2.0);",
		"_ctx.basis = d * e;",
		"    _output.basis_0 = _ctx.basis[0];\n    _output.basis_1 = _ctx.basis[1];\n",
	)
	if diff := cmp.Diff([]string{"model_0@0", "pos@4"}, bindingNames(info.Attributes)); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}

	got, _ = compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"_Ctx _ctx = {metal::float2x2(_input.basis_0, _input.basis_1)};",
		"return metal::float4(_ctx.basis[0], _ctx.basis[1]);",
	)
}

func TestCompile_Builtins(t *testing.T) {
	source := heredoc.Doc(`
		varying uv: vec2;
		fn vertex() -> vec4 { uv = vec2(0.0); return vec4(1.0); }
		fn pixel() -> vec4 {
			let a = mix(uv, vec2(1.0), 0.5);
			let b = mod(uv, 2.0);
			let c = fract(uv.x) + inversesqrt(uv.y) + atan(uv.x, uv.y) + radians(uv.x);
			let d = lessThan(uv, vec2(0.5));
			let e = not(d);
			let f = clamp(uv, 0.0, 1.0);
			let g = dFdx(uv);
			return vec4(a + b + f + g, c, 1.0);
		}
	`)
	got, _ := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"template <typename T>\nT _mod(T x, T y) {\n    return x - y * metal::floor(x / y);\n}\n",
		"metal::float2 a = metal::mix(_ctx.uv, metal::float2(1.0, 1.0), metal::float2(0.5));",
		"metal::float2 b = _mod(_ctx.uv, metal::float2(2.0));",
		"float c = metal::fract(_ctx.uv.x) + metal::rsqrt(_ctx.uv.y) + metal::atan2(_ctx.uv.x, _ctx.uv.y) + _ctx.uv.x * 0.017453292519943295;",
		"metal::bool2 d = _ctx.uv < metal::float2(0.5, 0.5);",
		"metal::bool2 e = !d;",
		"metal::float2 f = metal::clamp(_ctx.uv, metal::float2(0.0), metal::float2(1.0));",
		"metal::float2 g = metal::dfdx(_ctx.uv);",
	)
	if strings.Contains(got, "_sampler") {
		t.Error("sampler declared without textures")
	}
}

func TestCompile_Context(t *testing.T) {
	source := heredoc.Doc(`
		uniform scale: float;
		texture image: texture2D;
		geometry pos: vec2;
		fn pure(x: float) -> float { return x * 2.0; }
		fn scaled(x: float) -> float { return x * scale; }
		fn fetch(p: vec2) -> vec4 { return sample2d(image, p); }
		fn both(p: vec2) -> vec4 { return fetch(p) * scaled(1.0); }
		fn vertex() -> vec4 { return vec4(pos, pure(1.0), 1.0); }
		fn pixel() -> vec4 { return both(vec2(0.5)); }
	`)
	got, _ := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"float scaled(thread _Ctx& _ctx, float x) {",
		"metal::float4 fetch(metal::texture2d<float> image, metal::float2 p) {",
		"    return image.sample(_sampler, p);",
		"metal::float4 both(thread _Ctx& _ctx, metal::texture2d<float> image, metal::float2 p) {",
		"    return fetch(image, p) * scaled(_ctx, 1.0);",
		"metal::float4 pixel(thread _Ctx& _ctx, metal::texture2d<float> image) {",
		"    return both(_ctx, image, metal::float2(0.5, 0.5));",
	)
	if strings.Contains(got, "pure") {
		t.Error("pixel stage emitted a function only the vertex stage calls")
	}

	got, _ = compile(t, source, stageOptions(analysis.StageVertex))
	assertContains(t, got,
		"float pure(float x) {",
		"return metal::float4(_ctx.pos, pure(1.0), 1.0);",
	)
}

func TestCompile_NoContext(t *testing.T) {
	source := "fn pixel() -> vec4 { return vec4(1.0, 0.0, 0.0, 1.0); }"
	got, _ := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"metal::float4 pixel() {",
		"fragment metal::float4 pixel_main(Varyings _input [[stage_in]]) {\n    return pixel();\n}",
	)
	if strings.Contains(got, "_Ctx") {
		t.Error("context declared without globals")
	}
}

func TestCompile_VertexSampling(t *testing.T) {
	source := "texture height: texture2D; geometry pos: vec2; fn vertex() -> vec4 { return vec4(pos, sample2d(height, pos).x, 1.0); }"
	got, _ := compile(t, source, stageOptions(analysis.StageVertex))
	assertContains(t, got,
		"metal::float4(_ctx.pos, height.sample(_sampler, _ctx.pos, metal::level(0.0)).x, 1.0)",
		"vertex Varyings vertex_main(VertexInput _input [[stage_in]], metal::texture2d<float> height [[texture(0)]]) {",
		"_output.position = _vertex(_ctx, height);",
	)
}

func TestCompile_Statements(t *testing.T) {
	source := heredoc.Doc(`
		struct S { a: float }
		fn bump(inout v: float) { v += 1.0; }
		fn first(xs: [float; 2]) -> float { return xs[0]; }
		fn pixel() -> vec4 {
			let acc = 0.0;
			let arr: [float; 2];
			let s: S;
			let v: vec2;
			for i from 0 to 4 step 2 { bump(acc); }
			for j from 3 to 0 step -1 { if acc > first(arr) { continue; } else { break; } }
			return vec4(acc + s.a + v.y);
		}
	`)
	got, _ := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"void bump(thread float& v) {\n    v += 1.0;\n}",
		"float first(metal::array<float, 2> xs) {",
		"metal::array<float, 2> arr = {};",
		"S s = {};",
		"metal::float2 v = {};",
		"for (int i = 0; i < 4; i += 2) {\n        bump(acc);\n    }",
		"for (int j = 3; j > 0; j--) {\n        if (acc > first(arr)) {\n            continue;\n        } else {\n            break;\n        }\n    }",
	)
}

func TestCompile_Bindings(t *testing.T) {
	opts := stageOptions(analysis.StagePixel)
	opts.BindingMap = map[string]uint8{"uniforms": 4, "image": 2}
	got, info := compile(t, litShader, opts)
	assertContains(t, got,
		"constant uniforms_block& uniforms [[buffer(4)]]",
		"constant material_block& material [[buffer(1)]]",
		"metal::texture2d<float> image [[texture(2)]]",
	)
	if diff := cmp.Diff([]string{"uniforms@4", "material@1"}, bindingNames(info.Buffers)); diff != "" {
		t.Errorf("buffers mismatch (-want +got):\n%s", diff)
	}

	opts.FakeMissingBindings = false
	_, _, err := Compile(analyse(t, litShader), opts)
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != ErrMissingBinding {
		t.Fatalf("Compile() error = %v, want MissingBinding", err)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		stage  analysis.Stage
		kind   ErrorKind
	}{
		{
			name:   "missing entry point",
			source: "fn vertex() -> vec4 { return vec4(1.0); }",
			stage:  analysis.StagePixel,
			kind:   ErrEntryPointNotFound,
		},
		{
			name:   "derivative in vertex stage",
			source: "fn vertex() -> vec4 { return vec4(dFdx(1.0)); }",
			stage:  analysis.StageVertex,
			kind:   ErrUnsupportedFeature,
		},
		{
			name:   "swizzle passed as inout",
			source: "fn bump(inout v: float) { v += 1.0; } fn pixel() -> vec4 { let c = vec4(0.0); bump(c.y); return c; }",
			stage:  analysis.StagePixel,
			kind:   ErrUnsupportedFeature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(analyse(t, tt.source), stageOptions(tt.stage))
			var merr *Error
			if !errors.As(err, &merr) {
				t.Fatalf("Compile() error = %v, want *Error", err)
			}
			if merr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", merr.Kind, tt.kind)
			}
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	m := analyse(t, litShader)
	for _, stage := range analysis.Stages {
		first, _, err := Compile(m, stageOptions(stage))
		if err != nil {
			t.Fatal(err)
		}
		second, _, err := Compile(m, stageOptions(stage))
		if err != nil {
			t.Fatal(err)
		}
		if first != second {
			t.Errorf("%s output differs between runs", stage)
		}

		extra, _ := compile(t, litShader+"fn unused(x: float) -> float { return x * SCALE; }\n", stageOptions(stage))
		if diff := cmp.Diff(first, extra); diff != "" {
			t.Errorf("%s output changed by an unreferenced function (-want +got):\n%s", stage, diff)
		}
	}
}
