// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

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

// assertContains checks that the HLSL output contains every expected substring.
func assertContains(t *testing.T, code string, expected ...string) {
	t.Helper()
	for _, s := range expected {
		if !strings.Contains(code, s) {
			t.Errorf("expected HLSL output to contain %q\n\nGot:\n%s", s, code)
		}
	}
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

func TestCompile_Vertex(t *testing.T) {
	got, info := compile(t, litShader, stageOptions(analysis.StageVertex))
	want := heredoc.Doc(`
		static const float SCALE = 2.0;

		static float2 pos;
		static float4 color;
		static float2 uv;

		struct VertexInput {
		    float2 pos : GEOM0;
		    float4 color : GEOM1;
		};

		struct Varyings {
		    float4 position : SV_POSITION;
		    float2 uv : TEXCOORD0;
		    float4 v_color : TEXCOORD1;
		};

		float4 vertex() {
		    uv = pos * SCALE;
		    return float4(pos, 0.0, 1.0);
		}

		Varyings main(VertexInput input) {
		    pos = input.pos;
		    color = input.color;
		    Varyings output;
		    output.position = vertex();
		    output.uv = uv;
		    output.v_color = color;
		    return output;
		}
	`)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if info.Profile != "vs_5_1" {
		t.Errorf("Profile = %q, want vs_5_1", info.Profile)
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
		struct Light {
		    float3 dir;
		    float3 color;
		};

		cbuffer uniforms : register(b0) {
		    float3 light_dir;
		};
		cbuffer material : register(b1) {
		    float4 tint;
		};
		Texture2D<float4> image : register(t0);
		SamplerState image_sampler : register(s0);

		static float2 uv;
		static float4 v_color;

		struct Varyings {
		    float4 position : SV_POSITION;
		    float2 uv : TEXCOORD0;
		    float4 v_color : TEXCOORD1;
		};

		Light make_Light(float3 dir, float3 color) {
		    Light result;
		    result.dir = dir;
		    result.color = color;
		    return result;
		}

		float3 Light_shade(Light l, float3 n) {
		    return l.color * max(dot(l.dir, n), 0.0);
		}

		float4 pixel() {
		    Light l = make_Light(light_dir, float3(1.0, 1.0, 1.0));
		    float3 c = Light_shade(l, float3(0.0, 0.0, 1.0));
		    return image.Sample(image_sampler, uv) * tint * float4(c, 1.0) * v_color;
		}

		float4 main(Varyings input) : SV_TARGET0 {
		    uv = input.uv;
		    v_color = input.v_color;
		    return pixel();
		}
	`)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	wantBindings := map[string]string{
		"uniforms":      "register(b0)",
		"material":      "register(b1)",
		"image":         "register(t0)",
		"image_sampler": "register(s0)",
	}
	if diff := cmp.Diff(wantBindings, info.RegisterBindings); diff != "" {
		t.Errorf("RegisterBindings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"make_Light"}, info.HelperFunctions); diff != "" {
		t.Errorf("HelperFunctions mismatch (-want +got):\n%s", diff)
	}
	if got := info.EntryPointNames["pixel"]; got != "pixel" {
		t.Errorf("EntryPointNames[pixel] = %q", got)
	}
	if len(info.Uniforms) != 2 || info.Uniforms[1].Name != "material" {
		t.Errorf("Uniforms = %+v", info.Uniforms)
	}
}

func bindingNames(bs []analysis.Binding) []string {
	var out []string
	for _, b := range bs {
		out = append(out, fmt.Sprintf("%s@%d", b.Name, b.Slot))
	}
	return out
}

func TestCompile_Matrices(t *testing.T) {
	source := heredoc.Doc(`
		struct Frame { basis: mat2, origin: vec2 }
		instance model: mat4;
		geometry pos: vec3;
		uniform view: mat4;
		fn vertex() -> vec4 {
			let frame: Frame;
			let m = view * model;
			let p = m * vec4(pos, 1.0);
			let q = vec4(pos, 1.0) * m;
			let eq = pos == vec3(1.0);
			let ne = pos != vec3(1.0);
			let d = mat2(2.0);
			m *= model;
			return p + q + m[0] + vec4(d * frame.origin, 0.0, 1.0);
		}
	`)
	got, info := compile(t, source, stageOptions(analysis.StageVertex))
	assertContains(t, got,
		"struct Frame {\n    row_major float2x2 basis;\n    float2 origin;\n};",
		"cbuffer uniforms : register(b0) {\n    row_major float4x4 view;\n};",
		"Frame frame = (Frame)0;",
		"    row_major float4x4 model : INST0;\n    float3 pos : GEOM4;\n",
		"float4x4 m = mul(model, view);",
		"float4 p = mul(float4(pos, 1.0), m);",
		"float4 q = mul(m, float4(pos, 1.0));",
		"bool eq = all(pos == float3(1.0, 1.0, 1.0));",
		"bool ne = any(pos != float3(1.0, 1.0, 1.0));",
		"float2x2 d = _mat2_diag(2.0);",
		"m = mul(model, m);",
		"return p + q + m[0] + float4(mul(frame.origin, d), 0.0, 1.0);",
		"float2x2 _mat2_diag(float d) {\n    return float2x2(d, 0.0, 0.0, d);\n}",
	)
	if diff := cmp.Diff([]string{"_mat2_diag"}, info.HelperFunctions); diff != "" {
		t.Errorf("HelperFunctions mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_Builtins(t *testing.T) {
	source := heredoc.Doc(`
		varying uv: vec2;
		fn vertex() -> vec4 { uv = vec2(0.0); return vec4(1.0); }
		fn pixel() -> vec4 {
			let a = mix(uv, vec2(1.0), 0.5);
			let b = mod(uv, 2.0);
			let c = fract(uv.x) + inversesqrt(uv.y) + atan(uv.x, uv.y) + sign(uv.x);
			let d = lessThan(uv, vec2(0.5));
			let e = not(d);
			let f = clamp(uv, 0.0, 1.0);
			let g = dFdx(uv);
			let h = vec3(uv.x);
			return vec4(a + b + f + g, c, h.z);
		}
	`)
	got, info := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"float2 a = lerp(uv, float2(1.0, 1.0), ((float2)0.5));",
		"float2 b = _mod(uv, ((float2)2.0));",
		"float c = frac(uv.x) + rsqrt(uv.y) + atan2(uv.x, uv.y) + float(sign(uv.x));",
		"bool2 d = uv < float2(0.5, 0.5);",
		"bool2 e = !d;",
		"float2 f = clamp(uv, ((float2)0.0), ((float2)1.0));",
		"float2 g = ddx(uv);",
		"float3 h = ((float3)uv.x);",
		"float2 _mod(float2 x, float2 y) {\n    return x - y * floor(x / y);\n}",
	)
	if diff := cmp.Diff([]string{"_mod"}, info.HelperFunctions); diff != "" {
		t.Errorf("HelperFunctions mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_Bindings(t *testing.T) {
	opts := stageOptions(analysis.StagePixel)
	opts.BindingMap = map[string]BindTarget{
		"uniforms": {Space: 1, Register: 3},
		"image":    {Register: 2},
	}
	got, info := compile(t, litShader, opts)
	assertContains(t, got,
		"cbuffer uniforms : register(b3, space1) {",
		"cbuffer material : register(b1) {",
		"Texture2D<float4> image : register(t2);",
		"SamplerState image_sampler : register(s2);",
	)
	if diff := cmp.Diff([]string{"image@2"}, bindingNames(info.Textures)); diff != "" {
		t.Errorf("textures mismatch (-want +got):\n%s", diff)
	}

	opts.FakeMissingBindings = false
	_, _, err := Compile(analyse(t, litShader), opts)
	var herr *Error
	if !errors.As(err, &herr) || !herr.IsMissingBinding() {
		t.Fatalf("Compile() error = %v, want MissingBinding", err)
	}
	if !strings.Contains(err.Error(), "material") {
		t.Errorf("error %q does not name the block", err)
	}
}

func TestCompile_Names(t *testing.T) {
	source := heredoc.Doc(`
		uniform Color: vec4;
		uniform color: vec4;
		fn frac(sample: float) -> float {
			let lerp = sample;
			return lerp;
		}
		fn pixel() -> vec4 { return Color * color * frac(1.0); }
	`)
	got, _ := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"    float4 Color;\n    float4 color_1;\n",
		"float _frac(float _sample) {",
		"float _lerp = _sample;",
		"return Color * color_1 * _frac(1.0);",
	)
}

func TestCompile_Statements(t *testing.T) {
	source := heredoc.Doc(`
		struct S { a: float }
		fn pixel() -> vec4 {
			let acc = 0.0;
			let arr: [float; 2];
			let s: S;
			let v: vec2;
			for i from 0 to 4 step 2 { acc += arr[0]; }
			for j from 3 to 0 step -1 { if acc > 1.0 { continue; } }
			return vec4(acc + s.a + v.y);
		}
	`)
	got, _ := compile(t, source, stageOptions(analysis.StagePixel))
	assertContains(t, got,
		"float arr[2] = {0.0, 0.0};",
		"S s = (S)0;",
		"float2 v = (float2)0;",
		"for (int i = 0; i < 4; i += 2) {\n        acc += arr[0];\n    }",
		"for (int j = 3; j > 0; j--) {\n        if (acc > 1.0) {\n            continue;\n        }\n    }",
	)
}

func TestCompile_VertexSampling(t *testing.T) {
	source := "texture height: texture2D; geometry pos: vec2; fn vertex() -> vec4 { return vec4(pos, sample2d(height, pos).x, 1.0); }"
	got, _ := compile(t, source, stageOptions(analysis.StageVertex))
	assertContains(t, got, "float4(pos, height.SampleLevel(height_sampler, pos, 0.0).x, 1.0)")
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
			source: "fn vertex() -> vec4 { return vec4(dFdy(1.0)); }",
			stage:  analysis.StageVertex,
			kind:   ErrUnsupportedFeature,
		},
		{
			name:   "array return",
			source: "fn arr() -> [float; 2] { let a: [float; 2]; return a; } fn pixel() -> vec4 { return vec4(arr()[0]); }",
			stage:  analysis.StagePixel,
			kind:   ErrUnsupportedFeature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(analyse(t, tt.source), stageOptions(tt.stage))
			var herr *Error
			if !errors.As(err, &herr) {
				t.Fatalf("Compile() error = %v, want *Error", err)
			}
			if herr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", herr.Kind, tt.kind)
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
