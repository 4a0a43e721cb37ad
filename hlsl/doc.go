// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package hlsl generates HLSL (High-Level Shading Language) source from an
// analysed shade module, one stage at a time.
//
// The output targets Shader Model 4.0 and later and compiles with both
// FXC and DXC. The stage always starts at a function called main.
//
// # Usage
//
//	options := hlsl.DefaultOptions()
//	options.Stage = analysis.StagePixel
//
//	hlslCode, info, err := hlsl.Compile(module, options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Matrices
//
// Source matrices are column-major. HLSL matrices hold one source column
// per row, so m[i] still selects a column and products are written with
// their operands swapped: m * v becomes mul(v, m). Matrices in constant
// buffers and vertex inputs are declared row_major to match.
//
// # Register Binding
//
// Every uniform block becomes a cbuffer and every texture a Texture2D and
// SamplerState pair:
//
//	cbuffer : register(b#, space#)  // Constant buffers
//	Texture : register(t#, space#)  // Textures
//	Sampler : register(s#, space#)  // Samplers
//
// The BindingMap in Options allows explicit control over register assignment.
package hlsl
