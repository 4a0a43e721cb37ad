// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glsl generates GLSL (OpenGL Shading Language) source from an
// analysed shade module, one stage at a time.
//
// Supported targets:
//
//   - GLSL ES 1.00: WebGL 1.0, OpenGL ES 2.0
//   - GLSL ES 3.00: WebGL 2.0, OpenGL ES 3.0
//   - GLSL 3.30 Core and later: desktop OpenGL
//
// # Basic Usage
//
//	source, info, err := glsl.Compile(module, glsl.Options{
//	    LangVersion: glsl.Version330,
//	    Stage:       analysis.StagePixel,
//	})
//
// # Stage Interface
//
// Both stages declare every varying of the module, so a vertex and a pixel
// shader compiled from the same module always link. Attributes read by the
// pixel stage are copied into extra varyings named v_<attribute>.
//
// # Reserved Words
//
// Names that collide with GLSL reserved words or built-ins are escaped
// by prefixing them with an underscore.
package glsl
