package shade

import (
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/go-cmp/cmp"
)

func TestPrelude(t *testing.T) {
	got := Prelude()
	var names []string
	for _, f := range got {
		names = append(names, f.Filename)
		if f.Line != 1 || f.Col != 1 || f.Code == "" {
			t.Errorf("fragment %s = line %d col %d with %d bytes", f.Filename, f.Line, f.Col, len(f.Code))
		}
	}
	if diff := cmp.Diff([]string{"stdlib/color.shd", "stdlib/math.shd"}, names); diff != "" {
		t.Errorf("Prelude() files mismatch (-want +got):\n%s", diff)
	}

	got[0].Code = ""
	if Prelude()[0].Code == "" {
		t.Error("Prelude() returned shared fragments")
	}

	if _, err := GenerateShaderAst(Prelude(), nil); err != nil {
		t.Errorf("prelude does not analyse: %v", err)
	}
}

// preludeUser calls every prelude function.
var preludeUser = heredoc.Doc(`
	uniform v: vec4;
	fn pixel() -> vec4 {
	    let m = rotate2d(PI * 0.5);
	    let c = linear_to_srgb(srgb_to_linear(v.rgb));
	    let k = remap(saturate(v.a), 0.0, 1.0, -1.0, 1.0);
	    return premultiply(vec4(m * c.xy, luminance(c) * TAU, k));
	}
`)

func TestCompile_Prelude(t *testing.T) {
	opts := DefaultOptions()
	opts.Prelude = true
	for _, target := range Targets {
		t.Run(target.String(), func(t *testing.T) {
			out, err := Compile([]CodeFragment{{Filename: "user.shd", Line: 1, Col: 1, Code: preludeUser}}, target, opts)
			if err != nil {
				t.Fatalf("Compile() error: %v", err)
			}
			if out.Vertex != "" {
				t.Errorf("vertex stage generated without an entry point")
			}
			for _, fn := range []string{"rotate2d(", "linear_to_srgb(", "srgb_to_linear(", "remap(", "saturate(", "premultiply(", "luminance("} {
				if !strings.Contains(out.Pixel, fn) {
					t.Errorf("pixel stage does not contain %q", fn)
				}
			}
		})
	}
}

func TestCompile_PreludeOnlyReachable(t *testing.T) {
	opts := DefaultOptions()
	opts.Prelude = true
	source := "uniform color: vec3; fn pixel() -> vec4 { return vec4(vec3(luminance(color)), 1.0); }"

	out, err := Compile(fragment(source), TargetGLSL, opts)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	mustContain(t, out.Pixel, "float luminance(vec3 c) {")
	for _, unused := range []string{"srgb_to_linear", "rotate2d", "PI", "TAU"} {
		if strings.Contains(out.Pixel, unused) {
			t.Errorf("pixel stage contains unreachable %q:\n%s", unused, out.Pixel)
		}
	}

	// Without the prelude the same shader fails with a source position.
	opts.Prelude = false
	_, err = Compile(fragment(source), TargetGLSL, opts)
	if err == nil || !strings.HasPrefix(err.Error(), "test.shd:1:") {
		t.Errorf("Compile() error = %v, want a test.shd position", err)
	}
}

func TestCompile_PreludeEscapes(t *testing.T) {
	opts := DefaultOptions()
	opts.Prelude = true
	source := "uniform v: float; fn pixel() -> vec4 { return vec4(saturate(v)); }"

	out, err := Compile(fragment(source), TargetHLSL, opts)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	mustContain(t, out.Pixel, "float _saturate(float x)", "_saturate(v)")
}
