// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"
)

// UnnamedIdentifier is the default name for empty identifiers.
const UnnamedIdentifier = "_unnamed"

// Names the generated code declares itself.
const (
	ModFunction       = "_mod"
	MakeStructPrefix  = "make_"
	EntryPointName    = "main"
	VertexInputStruct = "VertexInput"
	VaryingsStruct    = "Varyings"
	InputParam        = "input"
	OutputVar         = "output"
	PositionField     = "position"
	SamplerSuffix     = "_sampler"
)

// diagFunction names the helper that builds an n×n diagonal matrix.
func diagFunction(n int) string {
	return fmt.Sprintf("_mat%d_diag", n)
}

// reservedKeywords contains the HLSL reserved words, the intrinsics a user
// declaration must not hide and the object types of the language.
var reservedKeywords = func() map[string]struct{} {
	words := strings.Fields(`
		AppendStructuredBuffer asm asm_fragment BlendState bool break Buffer
		ByteAddressBuffer case cbuffer centroid class column_major compile
		compile_fragment CompileShader const continue ComputeShader
		ConsumeStructuredBuffer default DepthStencilState DepthStencilView
		discard do double DomainShader dword else export extern false float for
		fxgroup GeometryShader groupshared half Hullshader if in inline inout
		InputPatch int interface line lineadj linear LineStream matrix min16float
		min10float min16int min12int min16uint namespace nointerpolation
		noperspective NULL out OutputPatch packoffset pass pixelfragment
		PixelShader point PointStream precise RasterizerState RenderTargetView
		return register row_major RWBuffer RWByteAddressBuffer RWStructuredBuffer
		RWTexture1D RWTexture1DArray RWTexture2D RWTexture2DArray RWTexture3D
		sample sampler SamplerState SamplerComparisonState shared snorm stateblock
		stateblock_state static string struct switch StructuredBuffer tbuffer
		technique technique10 technique11 texture Texture1D Texture1DArray
		Texture2D Texture2DArray Texture2DMS Texture2DMSArray Texture3D
		TextureCube TextureCubeArray true typedef triangle triangleadj
		TriangleStream uint uniform unorm unsigned vector vertexfragment
		VertexShader void volatile while

		auto catch char const_cast delete dynamic_cast enum explicit friend goto
		long mutable new operator private protected public reinterpret_cast short
		signed sizeof static_cast template this throw try typename union using
		virtual

		abs acos all any asin asint asuint atan atan2 ceil clamp clip cos cosh
		cross ddx ddy degrees determinant distance dot exp exp2 faceforward floor
		fmod frac frexp fwidth isfinite isinf isnan ldexp length lerp lit log
		log10 log2 max min modf mul normalize pow radians rcp reflect refract
		round rsqrt saturate sign sin sincos sinh smoothstep sqrt step tan tanh
		tex2D tex2Dlod transpose trunc

		SV_Position SV_Target SV_Target0 SV_Depth SV_VertexID SV_InstanceID
		SV_IsFrontFace SV_ClipDistance SV_CullDistance
	`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// caseInsensitiveKeywords contains keywords that are case-insensitive in HLSL.
var caseInsensitiveKeywords = map[string]struct{}{
	"asm":         {},
	"decl":        {},
	"pass":        {},
	"technique":   {},
	"texture1d":   {},
	"texture2d":   {},
	"texture3d":   {},
	"texturecube": {},
}

// typeShorthands contains the scalar, vector and matrix type names.
var typeShorthands = func() map[string]struct{} {
	result := make(map[string]struct{})
	for _, base := range []string{"bool", "int", "uint", "dword", "half", "float", "double", "min16float", "min16int", "min16uint"} {
		result[base] = struct{}{}
		for i := 1; i <= 4; i++ {
			result[base+string(rune('0'+i))] = struct{}{}
			for j := 1; j <= 4; j++ {
				result[base+string(rune('0'+i))+"x"+string(rune('0'+j))] = struct{}{}
			}
		}
	}
	return result
}()

// IsReserved checks if a name is an HLSL reserved keyword.
func IsReserved(name string) bool {
	if _, ok := reservedKeywords[name]; ok {
		return true
	}
	_, ok := typeShorthands[name]
	return ok
}

// IsCaseInsensitiveReserved checks if a name conflicts with case-insensitive keywords.
func IsCaseInsensitiveReserved(name string) bool {
	_, ok := caseInsensitiveKeywords[strings.ToLower(name)]
	return ok
}

// Escape returns a safe identifier name.
// If the name is reserved or empty, it's prefixed with underscore.
func Escape(name string) string {
	if name == "" {
		return UnnamedIdentifier
	}
	if IsReserved(name) || IsCaseInsensitiveReserved(name) {
		return "_" + name
	}
	return name
}
