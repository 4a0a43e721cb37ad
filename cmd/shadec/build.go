package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/shade"
	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/cache"
	"github.com/gogpu/shade/config"
	"github.com/gogpu/shade/glsl"
	"github.com/gogpu/shade/hlsl"
	"github.com/gogpu/shade/msl"
)

// unit is one shader compiled for one target.
type unit struct {
	name      string
	fragments []shade.CodeFragment
	target    shade.Target
	opts      shade.CompileOptions
	outDir    string // empty writes to stdout

	out shade.Output
}

type build struct {
	units  []*unit
	stages []analysis.Stage
	diff   bool
	cache  *cache.Cache
}

func newBuild(o options, inputs []string) (*build, error) {
	b := &build{diff: o.diff}
	switch o.stage {
	case "both":
		b.stages = analysis.Stages
	default:
		s, err := analysis.ParseStage(o.stage)
		if err != nil {
			return nil, err
		}
		b.stages = []analysis.Stage{s}
	}

	cachePath := o.cachePath
	if o.config != "" {
		p, err := b.planManifest(o)
		if err != nil {
			return nil, err
		}
		if cachePath == "" {
			cachePath = p
		}
	} else if err := b.planFiles(o, inputs); err != nil {
		return nil, err
	}

	if b.diff {
		for _, u := range b.units {
			if u.outDir == "" {
				return nil, errors.New("-d needs an output directory (-o or a manifest)")
			}
		}
	}
	if cachePath != "" {
		c, err := cache.Open(cachePath)
		if err != nil {
			return nil, err
		}
		b.cache = c
	}
	return b, nil
}

// planFiles plans the command-line inputs as one shader.
func (b *build) planFiles(o options, inputs []string) error {
	target, err := shade.ParseTarget(o.target)
	if err != nil {
		return err
	}
	opts, err := flagOptions(o)
	if err != nil {
		return err
	}
	fragments, err := readFragments(inputs)
	if err != nil {
		return err
	}
	last := filepath.Base(inputs[len(inputs)-1])
	b.units = append(b.units, &unit{
		name:      strings.TrimSuffix(last, filepath.Ext(last)),
		fragments: fragments,
		target:    target,
		opts:      opts,
		outDir:    o.outDir,
	})
	return nil
}

// planManifest plans every shader and target of a manifest and returns
// the manifest's cache path.
func (b *build) planManifest(o options) (string, error) {
	var (
		m   config.Manifest
		err error
	)
	if info, statErr := os.Stat(o.config); statErr == nil && info.IsDir() {
		m, _, err = config.Load(o.config)
	} else {
		m, _, err = config.LoadFile(o.config)
	}
	if err != nil {
		return "", err
	}
	if err := m.Validate(); err != nil {
		return "", fmt.Errorf("invalid manifest %q: %w", o.config, err)
	}

	for _, s := range m.Shaders {
		opts, err := m.Options(s)
		if err != nil {
			return "", err
		}
		targets, err := s.ParsedTargets()
		if err != nil {
			return "", err
		}
		fragments, err := readFragments(s.Fragments)
		if err != nil {
			return "", err
		}
		outDir := s.OutDir
		if o.outDir != "" {
			outDir = o.outDir
		}
		for _, t := range targets {
			b.units = append(b.units, &unit{name: s.Name, fragments: fragments, target: t, opts: opts, outDir: outDir})
		}
	}
	return m.Cache.Path, nil
}

func flagOptions(o options) (shade.CompileOptions, error) {
	opts := shade.DefaultOptions()
	opts.Prelude = o.prelude
	var err error
	if opts.GLSL.LangVersion, err = glsl.ParseVersion(o.glslVersion); err != nil {
		return opts, err
	}
	if opts.HLSL.ShaderModel, err = hlsl.ParseShaderModel(o.shaderModel); err != nil {
		return opts, err
	}
	if opts.MSL.LangVersion, err = msl.ParseVersion(o.mslVersion); err != nil {
		return opts, err
	}
	return opts, nil
}

func readFragments(paths []string) ([]shade.CodeFragment, error) {
	fragments := make([]shade.CodeFragment, len(paths))
	for i, path := range paths {
		code, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		fragments[i] = shade.CodeFragment{Filename: path, Line: 1, Col: 1, Code: string(code)}
	}
	return fragments, nil
}

// compile compiles every unit in parallel, through the cache if one is open.
func (b *build) compile() error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, u := range b.units {
		g.Go(func() error {
			var err error
			if b.cache != nil {
				u.out, err = b.cache.Compile(u.fragments, u.target, u.opts)
			} else {
				u.out, err = shade.Compile(u.fragments, u.target, u.opts)
			}
			return err
		})
	}
	return g.Wait()
}

// emit writes, prints or diffs the compiled stages and returns how many
// outputs differ from the files on disk.
func (b *build) emit(stdout io.Writer) (int, error) {
	type result struct {
		path, code string
		toStdout   bool
	}
	var results []result
	for _, u := range b.units {
		for _, s := range b.stages {
			code := u.out.Stage(s)
			if code == "" {
				continue
			}
			name := u.name + "." + s.String() + u.target.Ext()
			if u.outDir == "" {
				results = append(results, result{path: name, code: code, toStdout: true})
			} else {
				results = append(results, result{path: filepath.Join(u.outDir, name), code: code})
			}
		}
	}
	if len(results) == 0 {
		return 0, errors.New("no stage to emit")
	}

	changed := 0
	for _, r := range results {
		switch {
		case r.toStdout:
			if len(results) > 1 {
				fmt.Fprintf(stdout, "// %s\n", r.path)
			}
			if _, err := io.WriteString(stdout, r.code); err != nil {
				return changed, err
			}
		case b.diff:
			old, err := os.ReadFile(r.path)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return changed, err
			}
			if string(old) == r.code {
				continue
			}
			changed++
			fmt.Fprint(stdout, udiff.Unified(r.path, r.path, string(old), r.code))
		default:
			if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
				return changed, err
			}
			if err := os.WriteFile(r.path, []byte(r.code), 0o644); err != nil {
				return changed, err
			}
			shade.Logger().Info("shadec: wrote", "path", r.path, "bytes", len(r.code))
		}
	}
	return changed, nil
}

func (b *build) close() {
	if b.cache != nil {
		if err := b.cache.Close(); err != nil {
			shade.Logger().Warn("shadec: closing cache", "err", err)
		}
	}
}
