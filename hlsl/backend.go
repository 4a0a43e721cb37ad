// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"

	"github.com/gogpu/shade/analysis"
)

// Options configures HLSL code generation.
type Options struct {
	// ShaderModel specifies the target shader model.
	// Defaults to ShaderModel5_1 for maximum compatibility.
	ShaderModel ShaderModel

	// Stage selects the entry point to compile.
	Stage analysis.Stage

	// BindingMap maps uniform block names and texture names to HLSL
	// register targets. The default block is keyed by "uniforms". A
	// texture's sampler shares its register number.
	BindingMap map[string]BindTarget

	// FakeMissingBindings generates bindings for resources not found in
	// BindingMap: blocks use their index, textures their texture unit.
	// If false, a missing binding fails with ErrMissingBinding.
	FakeMissingBindings bool
}

// DefaultOptions returns sensible default options for HLSL generation.
func DefaultOptions() Options {
	return Options{
		ShaderModel:         ShaderModel5_1,
		FakeMissingBindings: true,
	}
}

// TranslationInfo contains metadata about the HLSL translation.
type TranslationInfo struct {
	// EntryPointNames maps the entry function to its emitted name. The
	// stage itself always starts at "main".
	EntryPointNames map[string]string

	// Profile is the compiler target, such as "vs_5_1".
	Profile string

	// RegisterBindings maps resource names to their HLSL register bindings.
	// Format: "image" -> "register(t0)"
	RegisterBindings map[string]string

	// HelperFunctions lists any helper functions that were generated.
	HelperFunctions []string

	// Attributes are the vertex inputs with their GEOM/INST semantic index.
	Attributes []analysis.Binding

	// Varyings are the values passed between stages by TEXCOORD index.
	Varyings []analysis.Binding

	// Textures are the Texture2D objects by register.
	Textures []analysis.Binding

	// Uniforms are the constant buffers with HLSL packing.
	Uniforms []analysis.LayoutBlock
}

// Compile generates HLSL source code for one stage of an analysed module.
// Returns the HLSL source, translation info, or an error.
func Compile(module *analysis.Module, options Options) (string, TranslationInfo, error) {
	if module == nil {
		return "", TranslationInfo{}, NewError(ErrInternalError, "module is nil")
	}

	closure := module.Closure(options.Stage)
	if closure == nil {
		return "", TranslationInfo{}, fmt.Errorf("hlsl: %w", NewError(ErrEntryPointNotFound,
			fmt.Sprintf("entry point `%s` is not declared", options.Stage)))
	}

	w := newWriter(module, closure, &options)
	if err := w.writeModule(); err != nil {
		return "", TranslationInfo{}, fmt.Errorf("hlsl: %w", err)
	}
	return w.String(), w.translationInfo(), nil
}
