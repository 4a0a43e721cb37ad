// Package config loads shadec build manifests.
//
// A manifest lists the shaders of a project and the targets to build them
// for. shade.toml is read first, then shade.yaml:
//
//	out_dir = "build/shaders"
//
//	[glsl]
//	version = "300 es"
//
//	[[shader]]
//	name = "sprite"
//	fragments = ["common.shd", "sprite.shd"]
//	prelude = true
//	targets = ["glsl", "msl"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/shade"
	"github.com/gogpu/shade/glsl"
	"github.com/gogpu/shade/hlsl"
	"github.com/gogpu/shade/msl"
)

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Defaults filled in by Normalise.
const (
	DefaultOutDir      = "out"
	DefaultGLSLVersion = "330"
	DefaultShaderModel = "5.1"
	DefaultMSLVersion  = "2.1"
)

type Format string

// Handle records where a manifest was read from.
type Handle struct {
	Path   string
	Format Format
}

type Manifest struct {
	OutDir  string   `toml:"out_dir" yaml:"out_dir"`
	Shaders []Shader `toml:"shader"  yaml:"shader"`
	GLSL    GLSL     `toml:"glsl"    yaml:"glsl"`
	HLSL    HLSL     `toml:"hlsl"    yaml:"hlsl"`
	MSL     MSL      `toml:"msl"     yaml:"msl"`
	Cache   Cache    `toml:"cache"   yaml:"cache"`
}

type Shader struct {
	Name      string   `toml:"name"      yaml:"name"`
	Fragments []string `toml:"fragments" yaml:"fragments"`
	Prelude   bool     `toml:"prelude"   yaml:"prelude"`
	// Targets defaults to every target.
	Targets []string `toml:"targets" yaml:"targets"`
	// OutDir overrides the manifest's out_dir.
	OutDir string `toml:"out_dir" yaml:"out_dir"`
}

type GLSL struct {
	Version string `toml:"version" yaml:"version"`
	// LowPrecision selects mediump as the ES default precision.
	LowPrecision bool `toml:"low_precision" yaml:"low_precision"`
}

type HLSL struct {
	ShaderModel string `toml:"shader_model" yaml:"shader_model"`
}

type MSL struct {
	Version string `toml:"version" yaml:"version"`
}

type Cache struct {
	// Path is the bbolt database file; empty disables caching.
	Path string `toml:"path" yaml:"path"`
}

// Load reads the manifest of dir, trying shade.toml, shade.yaml and
// shade.yml in that order. Missing files are skipped; a file that fails to
// parse is an error. Fragment and output paths are made relative to dir.
func Load(dir string) (Manifest, Handle, error) {
	candidates := []Handle{
		{Path: filepath.Join(dir, "shade.toml"), Format: FormatTOML},
		{Path: filepath.Join(dir, "shade.yaml"), Format: FormatYAML},
		{Path: filepath.Join(dir, "shade.yml"), Format: FormatYAML},
	}

	var accumulated error
	for _, candidate := range candidates {
		m, err := load(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			var perr *parseError
			if errors.As(err, &perr) {
				return Manifest{}, Handle{}, err
			}
			accumulated = errors.Join(accumulated, err)
			continue
		}
		return m, candidate, nil
	}
	if accumulated != nil {
		return Manifest{}, Handle{}, accumulated
	}
	return Manifest{}, Handle{}, fmt.Errorf("no shade.toml or shade.yaml in %q: %w", dir, fs.ErrNotExist)
}

// LoadFile reads one manifest, choosing the format by extension.
func LoadFile(path string) (Manifest, Handle, error) {
	h := Handle{Path: path, Format: FormatTOML}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		h.Format = FormatYAML
	}
	m, err := load(h)
	if err != nil {
		return Manifest{}, Handle{}, err
	}
	return m, h, nil
}

type parseError struct {
	path string
	err  error
}

func (e *parseError) Error() string { return fmt.Sprintf("parse manifest %q: %v", e.path, e.err) }
func (e *parseError) Unwrap() error { return e.err }

func load(h Handle) (Manifest, error) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, err
		}
		return Manifest{}, fmt.Errorf("read manifest %q: %w", h.Path, err)
	}
	m, err := Decode(data, h.Format)
	if err != nil {
		return Manifest{}, &parseError{path: h.Path, err: err}
	}
	return m.Normalise(filepath.Dir(h.Path)), nil
}

// Decode parses a manifest. Unknown keys are rejected.
func Decode(data []byte, format Format) (Manifest, error) {
	var m Manifest
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return Manifest{}, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return Manifest{}, err
		}
	default:
		return Manifest{}, fmt.Errorf("unsupported manifest format %q", format)
	}
	return m, nil
}

// Normalise fills defaults and resolves relative paths against base. It
// does not validate.
func (m Manifest) Normalise(base string) Manifest {
	if m.OutDir == "" {
		m.OutDir = DefaultOutDir
	}
	m.OutDir = resolve(base, m.OutDir)
	if m.GLSL.Version == "" {
		m.GLSL.Version = DefaultGLSLVersion
	}
	if m.HLSL.ShaderModel == "" {
		m.HLSL.ShaderModel = DefaultShaderModel
	}
	if m.MSL.Version == "" {
		m.MSL.Version = DefaultMSLVersion
	}
	if m.Cache.Path != "" {
		m.Cache.Path = resolve(base, m.Cache.Path)
	}

	shaders := make([]Shader, len(m.Shaders))
	for i, s := range m.Shaders {
		s.Fragments = append([]string(nil), s.Fragments...)
		for j, f := range s.Fragments {
			s.Fragments[j] = resolve(base, f)
		}
		if s.Name == "" && len(s.Fragments) > 0 {
			last := filepath.Base(s.Fragments[len(s.Fragments)-1])
			s.Name = strings.TrimSuffix(last, filepath.Ext(last))
		}
		if len(s.Targets) == 0 {
			for _, t := range shade.Targets {
				s.Targets = append(s.Targets, t.String())
			}
		} else {
			targets := make([]string, len(s.Targets))
			for j, t := range s.Targets {
				targets[j] = strings.ToLower(strings.TrimSpace(t))
			}
			s.Targets = targets
		}
		if s.OutDir == "" {
			s.OutDir = m.OutDir
		} else {
			s.OutDir = resolve(base, s.OutDir)
		}
		shaders[i] = s
	}
	m.Shaders = shaders
	return m
}

func resolve(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Validate reports every problem in a normalised manifest.
func (m Manifest) Validate() error {
	var errs []error
	if len(m.Shaders) == 0 {
		errs = append(errs, errors.New("manifest declares no shaders"))
	}
	if _, err := glsl.ParseVersion(m.GLSL.Version); err != nil {
		errs = append(errs, fmt.Errorf("glsl.version: %w", err))
	}
	if _, err := hlsl.ParseShaderModel(m.HLSL.ShaderModel); err != nil {
		errs = append(errs, fmt.Errorf("hlsl.shader_model: %w", err))
	}
	if _, err := msl.ParseVersion(m.MSL.Version); err != nil {
		errs = append(errs, fmt.Errorf("msl.version: %w", err))
	}

	seen := make(map[string]bool)
	for i, s := range m.Shaders {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("shader %d: missing name", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("shader %q: duplicate name", s.Name))
		}
		seen[s.Name] = true
		if len(s.Fragments) == 0 {
			errs = append(errs, fmt.Errorf("shader %q: no fragments", s.Name))
		}
		for _, t := range s.Targets {
			if _, err := shade.ParseTarget(t); err != nil {
				errs = append(errs, fmt.Errorf("shader %q: %w", s.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Options returns the compile options of shader s.
func (m Manifest) Options(s Shader) (shade.CompileOptions, error) {
	opts := shade.DefaultOptions()
	var err error
	if opts.GLSL.LangVersion, err = glsl.ParseVersion(m.GLSL.Version); err != nil {
		return opts, err
	}
	opts.GLSL.ForceHighPrecision = !m.GLSL.LowPrecision
	if opts.HLSL.ShaderModel, err = hlsl.ParseShaderModel(m.HLSL.ShaderModel); err != nil {
		return opts, err
	}
	if opts.MSL.LangVersion, err = msl.ParseVersion(m.MSL.Version); err != nil {
		return opts, err
	}
	opts.Prelude = s.Prelude
	return opts, nil
}

// ParsedTargets parses the targets of s.
func (s Shader) ParsedTargets() ([]shade.Target, error) {
	targets := make([]shade.Target, 0, len(s.Targets))
	for _, name := range s.Targets {
		t, err := shade.ParseTarget(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
