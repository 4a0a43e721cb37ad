package shade

import (
	"errors"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/builtin"
	"github.com/gogpu/shade/glsl"
	"github.com/gogpu/shade/lang"
	"github.com/gogpu/shade/msl"
)

const passThrough = "fn vertex() -> vec4 { return vec4(0.,0.,0.,1.); } fn pixel() -> vec4 { return vec4(1.,0.,0.,1.); }"

func fragment(code string) []CodeFragment {
	return []CodeFragment{{Filename: "test.shd", Line: 1, Col: 1, Code: code}}
}

func mustContain(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(got, s) {
			t.Errorf("output does not contain %q:\n%s", s, got)
		}
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    Target
		wantErr bool
	}{
		{"glsl", TargetGLSL, false},
		{"HLSL", TargetHLSL, false},
		{" msl ", TargetMSL, false},
		{"metal", TargetMSL, false},
		{"spirv", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTarget_String(t *testing.T) {
	tests := []struct {
		target    Target
		name, ext string
	}{
		{TargetGLSL, "glsl", ".glsl"},
		{TargetHLSL, "hlsl", ".hlsl"},
		{TargetMSL, "msl", ".metal"},
	}
	for _, tt := range tests {
		if got := tt.target.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.target.Ext(); got != tt.ext {
			t.Errorf("Ext() = %q, want %q", got, tt.ext)
		}
	}
	if got := Target(7).String(); got != "Target(7)" {
		t.Errorf("String() = %q, want Target(7)", got)
	}
}

func TestCompile_PassThrough(t *testing.T) {
	out, err := Compile(fragment(passThrough), TargetGLSL, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	wantVertex := heredoc.Doc(`
		#version 330 core

		vec4 vertex() {
		    return vec4(0.0, 0.0, 0.0, 1.0);
		}

		void main() {
		    gl_Position = vertex();
		}
	`)
	if diff := cmp.Diff(wantVertex, out.Vertex); diff != "" {
		t.Errorf("vertex mismatch (-want +got):\n%s", diff)
	}
	if out.Stage(analysis.StagePixel) != out.Pixel || out.Stage(analysis.StageVertex) != out.Vertex {
		t.Error("Stage() does not select the stage output")
	}
	mustContain(t, out.Pixel, "frag_color = pixel();", "return vec4(1.0, 0.0, 0.0, 1.0);")

	out, err = Compile(fragment(passThrough), TargetHLSL, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile(hlsl) error: %v", err)
	}
	mustContain(t, out.Vertex, "return float4(0.0, 0.0, 0.0, 1.0);")
	mustContain(t, out.Pixel, "return float4(1.0, 0.0, 0.0, 1.0);")

	out, err = Compile(fragment(passThrough), TargetMSL, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile(msl) error: %v", err)
	}
	mustContain(t, out.Vertex, "#include <metal_stdlib>", "vertex_main(")
	mustContain(t, out.Pixel, "return metal::float4(1.0, 0.0, 0.0, 1.0);", "pixel_main(")
}

func TestCompile_SingleStage(t *testing.T) {
	out, err := Compile(fragment("fn vertex() -> vec4 { return vec4(1.0); }"), TargetGLSL, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if out.Vertex == "" {
		t.Error("vertex stage is empty")
	}
	if out.Pixel != "" {
		t.Errorf("pixel stage = %q, want empty", out.Pixel)
	}
}

func TestCompile_NoEntryPoint(t *testing.T) {
	_, err := Compile(fragment("fn helper() -> float { return 1.0; }"), TargetHLSL, DefaultOptions())
	if !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("Compile() error = %v, want ErrNoEntryPoint", err)
	}
}

func TestCompile_Options(t *testing.T) {
	opts := DefaultOptions()
	opts.GLSL.LangVersion = glsl.VersionES300
	out, err := Compile(fragment(passThrough), TargetGLSL, opts)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	mustContain(t, out.Pixel, "#version 300 es\n")

	opts.MSL.LangVersion = msl.Version{Major: 1, Minor: 0}
	_, err = Compile(fragment(passThrough), TargetMSL, opts)
	var merr *msl.Error
	if !errors.As(err, &merr) || merr.Kind != msl.ErrUnsupportedFeature {
		t.Errorf("Compile() error = %v, want msl UnsupportedFeature", err)
	}
}

func TestCompileStage_UnknownTarget(t *testing.T) {
	m, err := GenerateShaderAst(fragment(passThrough), builtin.Default())
	if err != nil {
		t.Fatalf("GenerateShaderAst() error: %v", err)
	}
	if _, err := CompileStage(m, Target(9), analysis.StageVertex, DefaultOptions()); err == nil {
		t.Error("CompileStage() with an unknown target succeeded")
	}
}

func TestGenerateShaderAst_Errors(t *testing.T) {
	tests := []struct {
		name      string
		fragments []CodeFragment
		want      SourceError
	}{
		{
			name: "type mismatch spans the initializer",
			fragments: fragment(heredoc.Doc(`
				fn vertex() -> vec4 {
				    let x: float = true;
				    return vec4(x);
				}
			`)),
			want: SourceError{
				Filename: "test.shd",
				Line:     2,
				Col:      20,
				Source:   "    let x: float = true;",
				Length:   4,
			},
		},
		{
			name:      "lex error on a fragment's first line",
			fragments: []CodeFragment{{Filename: "inline.shd", Line: 3, Col: 5, Code: "fn vertex() -> vec4 { return @; }"}},
			want: SourceError{
				Filename: "inline.shd",
				Line:     3,
				Col:      34,
				Source:   "    fn vertex() -> vec4 { return @; }",
				Length:   1,
			},
		},
		{
			name: "unknown function in a later fragment",
			fragments: []CodeFragment{
				{Filename: "lib.shd", Line: 1, Col: 1, Code: "fn helper() -> float { return 1.0; }\n"},
				{Filename: "main.shd", Line: 10, Col: 5, Code: "fn vertex() -> vec4 {\n    return vec4(helper(), missing(), 0.0, 1.0);\n}"},
			},
			want: SourceError{
				Filename: "main.shd",
				Line:     11,
				Col:      27,
				Source:   "    return vec4(helper(), missing(), 0.0, 1.0);",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateShaderAst(tt.fragments, nil)
			var serr *SourceError
			if !errors.As(err, &serr) {
				t.Fatalf("GenerateShaderAst() error = %v, want *SourceError", err)
			}
			var perr *lang.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("SourceError does not unwrap to *lang.ParseError")
			}
			if serr.Message != perr.Message {
				t.Errorf("Message = %q, want %q", serr.Message, perr.Message)
			}
			got := SourceError{Filename: serr.Filename, Line: serr.Line, Col: serr.Col, Source: serr.Source}
			want := tt.want
			if want.Length != 0 {
				got.Length = serr.Length
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("SourceError mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompile_BackendErrorSpan(t *testing.T) {
	source := heredoc.Doc(`
		fn bump(inout v: float) { v += 1.0; }
		fn pixel() -> vec4 {
		    let c = vec4(0.0);
		    bump(c.y);
		    return c;
		}
	`)
	_, err := Compile(fragment(source), TargetMSL, DefaultOptions())
	var serr *SourceError
	if !errors.As(err, &serr) {
		t.Fatalf("Compile() error = %v, want *SourceError", err)
	}
	if serr.Line != 4 || serr.Source != "    bump(c.y);" {
		t.Errorf("error at line %d %q, want line 4", serr.Line, serr.Source)
	}
	var merr *msl.Error
	if !errors.As(err, &merr) || merr.Kind != msl.ErrUnsupportedFeature {
		t.Errorf("SourceError does not unwrap to the msl error: %v", err)
	}

	// The same shader is fine where inout swizzles are allowed.
	if _, err := Compile(fragment(source), TargetGLSL, DefaultOptions()); err != nil {
		t.Errorf("Compile(glsl) error: %v", err)
	}
}

func TestCompile_InoutParam(t *testing.T) {
	source := heredoc.Doc(`
		fn bump(inout v: float) { v += 1.0; }
		fn pixel() -> vec4 {
		    let a = 0.0;
		    bump(a);
		    return vec4(a);
		}
	`)
	tests := []struct {
		target Target
		want   string
	}{
		{TargetGLSL, "void bump(inout float v) {\n    v += 1.0;\n}"},
		{TargetHLSL, "void bump(inout float v) {\n    v += 1.0;\n}"},
		{TargetMSL, "void bump(thread float& v) {\n    v += 1.0;\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.target.String(), func(t *testing.T) {
			out, err := Compile(fragment(source), tt.target, DefaultOptions())
			if err != nil {
				t.Fatalf("Compile() error: %v", err)
			}
			mustContain(t, out.Pixel, tt.want, "bump(a);")
		})
	}
}

func TestCompile_LiteralOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		source string
		lit    string
	}{
		{"float", "fn pixel() -> vec4 { return vec4(1e39); }", "1e39"},
		{"negative float", "fn pixel() -> vec4 { return vec4(-4e38); }", "4e38"},
		{"int", "fn pixel() -> vec4 { return vec4(float(2147483648)); }", "2147483648"},
	}

	for _, tt := range tests {
		for _, target := range Targets {
			t.Run(tt.name+"/"+target.String(), func(t *testing.T) {
				_, err := Compile(fragment(tt.source), target, DefaultOptions())
				var serr *SourceError
				if !errors.As(err, &serr) {
					t.Fatalf("Compile() error = %v, want *SourceError", err)
				}
				if !strings.Contains(serr.Message, "out of range") {
					t.Errorf("Message = %q, want it to mention the range", serr.Message)
				}
				if want := strings.Index(tt.source, tt.lit) + 1; serr.Line != 1 || serr.Col != want || serr.Length != len(tt.lit) {
					t.Errorf("error at %d:%d length %d, want 1:%d length %d", serr.Line, serr.Col, serr.Length, want, len(tt.lit))
				}
			})
		}
	}
}

func TestCompile_Deterministic(t *testing.T) {
	for _, target := range Targets {
		t.Run(target.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Prelude = true
			first, err := Compile(fragment(passThrough), target, opts)
			if err != nil {
				t.Fatalf("Compile() error: %v", err)
			}
			for range 3 {
				again, err := Compile(fragment(passThrough), target, opts)
				if err != nil {
					t.Fatalf("Compile() error: %v", err)
				}
				if diff := cmp.Diff(first, again); diff != "" {
					t.Fatalf("output changed between runs (-first +again):\n%s", diff)
				}
			}
		})
	}
}
