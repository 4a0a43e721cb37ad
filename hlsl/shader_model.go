// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/shade/analysis"
)

// ShaderModel represents a DirectX Shader Model version.
type ShaderModel uint8

// Supported Shader Model versions.
const (
	// ShaderModel4_0 is the first model with Texture2D objects (DirectX 10).
	ShaderModel4_0 ShaderModel = iota

	// ShaderModel5_0 is the base SM5 version (DirectX 11).
	ShaderModel5_0

	// ShaderModel5_1 provides improved resource binding (default).
	ShaderModel5_1

	// ShaderModel6_0 introduces DXIL and the DXC compiler.
	ShaderModel6_0
)

var shaderModels = []ShaderModel{ShaderModel4_0, ShaderModel5_0, ShaderModel5_1, ShaderModel6_0}

// String returns a human-readable representation of the shader model.
// Example: "SM 5.1", "SM 6.0"
func (sm ShaderModel) String() string {
	major, minor := sm.version()
	return fmt.Sprintf("SM %d.%d", major, minor)
}

// ProfileSuffix returns the shader profile suffix for this model.
// Example: "5_1", "6_0"
func (sm ShaderModel) ProfileSuffix() string {
	major, minor := sm.version()
	return fmt.Sprintf("%d_%d", major, minor)
}

// Profile returns the compiler target profile of a stage, such as "vs_5_1"
// or "ps_5_1".
func (sm ShaderModel) Profile(stage analysis.Stage) string {
	prefix := "vs_"
	if stage == analysis.StagePixel {
		prefix = "ps_"
	}
	return prefix + sm.ProfileSuffix()
}

func (sm ShaderModel) version() (major, minor uint8) {
	switch sm {
	case ShaderModel4_0:
		return 4, 0
	case ShaderModel5_0:
		return 5, 0
	case ShaderModel6_0:
		return 6, 0
	default:
		return 5, 1
	}
}

// SupportsDXIL returns true if this shader model uses DXIL output.
// Earlier models use DXBC (DirectX Bytecode).
func (sm ShaderModel) SupportsDXIL() bool {
	return sm >= ShaderModel6_0
}

// ParseShaderModel accepts "5.1", "5_1" or "SM 5.1".
func ParseShaderModel(s string) (ShaderModel, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(strings.TrimPrefix(s, "SM")), "_", ".")
	for _, sm := range shaderModels {
		major, minor := sm.version()
		if norm == fmt.Sprintf("%d.%d", major, minor) {
			return sm, nil
		}
	}
	return 0, NewError(ErrInvalidShaderModel, fmt.Sprintf("unknown shader model %q", s))
}
