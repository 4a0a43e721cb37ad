// Command shadec is the shade shader compiler CLI.
//
// Usage:
//
//	shadec [options] <input.shd>...
//	shadec -config <shade.toml | dir> [options]
//
// The inputs are the fragments of one shader, in order.
//
// Examples:
//
//	shadec sprite.shd                         # Print GLSL for both stages
//	shadec -target msl -stage pixel a.shd     # Print the MSL pixel stage
//	shadec -o out common.shd sprite.shd       # Write out/sprite.vertex.glsl, out/sprite.pixel.glsl
//	shadec -config .                          # Build every shader in ./shade.toml
//	shadec -config . -d                       # Show what a build would change
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/gogpu/shade"
)

const shadecVersion = "0.1.0-dev"

type options struct {
	target      string
	stage       string
	glslVersion string
	shaderModel string
	mslVersion  string
	prelude     bool
	outDir      string
	diff        bool
	config      string
	cachePath   string
	verbose     bool
	version     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes shadec and returns the exit status: 0 on success, 1 on a
// compile error or, with -d, on any difference, and 2 on bad usage.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shadec", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.target, "target", "glsl", "output language: glsl, hlsl or msl")
	fs.StringVar(&o.stage, "stage", "both", "stage to emit: vertex, pixel or both")
	fs.StringVar(&o.glslVersion, "glsl-version", "330", "GLSL version, e.g. 100, 300 es, 330")
	fs.StringVar(&o.shaderModel, "shader-model", "5.1", "HLSL shader model")
	fs.StringVar(&o.mslVersion, "msl-version", "2.1", "MSL language version")
	fs.BoolVar(&o.prelude, "prelude", false, "prepend the standard library")
	fs.StringVar(&o.outDir, "o", "", "output directory (default: stdout)")
	fs.BoolVar(&o.diff, "d", false, "print a diff against the files in the output directory instead of writing them")
	fs.StringVar(&o.config, "config", "", "build manifest, or a directory containing shade.toml or shade.yaml")
	fs.StringVar(&o.cachePath, "cache", "", "compile cache database")
	fs.BoolVar(&o.verbose, "v", false, "log debug information")
	fs.BoolVar(&o.version, "version", false, "print version")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "shadec version %s\n", shadecVersion)
		return 0
	}
	if o.config == "" && fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no input file specified")
		usage(fs)
		return 2
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	shade.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer shade.SetLogger(nil)

	b, err := newBuild(o, fs.Args())
	if err != nil {
		report(stderr, err)
		return 1
	}
	defer b.close()

	if err := b.compile(); err != nil {
		report(stderr, err)
		return 1
	}
	changed, err := b.emit(stdout)
	if err != nil {
		report(stderr, err)
		return 1
	}
	if o.diff && changed > 0 {
		return 1
	}
	return 0
}

// report prints err, with source context for compile errors. The culprit
// is highlighted when stderr is a terminal.
func report(w io.Writer, err error) {
	var serr *shade.SourceError
	if errors.As(err, &serr) {
		fmt.Fprint(w, serr.FormatWithContext(isTerminal(w)))
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: shadec [options] <input.shd>...\n")
	fmt.Fprintf(w, "       shadec -config <shade.toml | dir> [options]\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  shadec sprite.shd                      Compile to stdout\n")
	fmt.Fprintf(w, "  shadec -target hlsl -o out sprite.shd  Compile to files\n")
	fmt.Fprintf(w, "  shadec -config . -d                    Check generated files are current\n")
}
