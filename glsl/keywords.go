// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import "strings"

// glslKeywords holds the reserved words of desktop GLSL and GLSL ES, the
// built-in functions and variables a user declaration must not hide, and
// the names the generated code itself uses.
var glslKeywords = func() map[string]struct{} {
	words := strings.Fields(`
		attribute const uniform varying buffer shared coherent volatile restrict
		readonly writeonly atomic_uint layout centroid flat smooth noperspective
		patch sample break continue do for while switch case default if else
		subroutine in out inout float double int void bool true false invariant
		precise discard return lowp mediump highp precision struct uint

		mat2 mat3 mat4 mat2x2 mat2x3 mat2x4 mat3x2 mat3x3 mat3x4 mat4x2 mat4x3 mat4x4
		dmat2 dmat3 dmat4 vec2 vec3 vec4 ivec2 ivec3 ivec4 bvec2 bvec3 bvec4
		dvec2 dvec3 dvec4 uvec2 uvec3 uvec4
		sampler1D sampler2D sampler3D samplerCube sampler2DShadow samplerCubeShadow
		sampler2DArray sampler2DArrayShadow isampler2D usampler2D sampler2DMS
		samplerBuffer image2D iimage2D uimage2D samplerExternalOES

		common partition active asm class union enum typedef template this
		resource goto inline noinline public static extern external interface
		long short half fixed unsigned superp input output hvec2 hvec3 hvec4
		fvec2 fvec3 fvec4 sampler3DRect filter sizeof cast namespace using

		radians degrees sin cos tan asin acos atan sinh cosh tanh pow exp log
		exp2 log2 sqrt inversesqrt abs sign floor trunc round roundEven ceil
		fract mod modf min max clamp mix step smoothstep isnan isinf length
		distance dot cross normalize faceforward reflect refract matrixCompMult
		outerProduct transpose determinant inverse lessThan lessThanEqual
		greaterThan greaterThanEqual equal notEqual any all not texture
		textureLod texture2D texture2DLod textureSize texelFetch dFdx dFdy fwidth

		main
	`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func isKeyword(name string) bool {
	_, ok := glslKeywords[name]
	return ok
}

// escapeKeyword escapes a name if it conflicts with GLSL keywords.
// Returns the name with underscore prefix if it's reserved.
func escapeKeyword(name string) string {
	if name == "" {
		return "_unnamed"
	}
	if isKeyword(name) {
		return "_" + name
	}
	// Also escape names starting with "gl_" (reserved prefix)
	if strings.HasPrefix(name, "gl_") {
		return "_" + name
	}
	return name
}
