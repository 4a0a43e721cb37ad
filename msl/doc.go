// Package msl implements Metal Shading Language (MSL) code generation for
// shade.
//
// MSL is Apple's shader language for the Metal graphics API. It is based on C++14
// with extensions for GPU programming, including explicit address spaces, attribute-based
// parameter binding, and a metal:: namespace for standard library functions.
//
// # Usage
//
//	module, err := shade.GenerateShaderAst(fragments, builtin.Default())
//	if err != nil {
//	    return err
//	}
//
//	options := msl.DefaultOptions()
//	options.Stage = analysis.StagePixel
//
//	mslCode, info, err := msl.Compile(module, options)
//	if err != nil {
//	    return err
//	}
//
// # Type Mapping
//
//	shade          MSL
//	-----          ---
//	bool           bool
//	int            int
//	float          float
//	vec2..vec4     metal::float2..metal::float4
//	ivec, bvec     metal::intN, metal::boolN
//	mat4           metal::float4x4
//	[T; N]         metal::array<T, N>
//	texture2D      metal::texture2d<float>
//
// # Globals
//
// Metal has no mutable program-scope variables. Attributes, varyings and
// uniform buffer pointers live in a thread struct, _Ctx, which the stage
// function builds and passes by reference to every function that touches
// them:
//
//	float scaled(thread _Ctx& _ctx, float x) {
//	    return x * _ctx.uniforms->scale;
//	}
//
// Each uniform block becomes a struct named <block>_block bound with
// [[buffer(n)]]; the default block is "uniforms". Textures are passed as
// arguments after the context and sampled with a single linear, clamped
// constexpr sampler.
//
// # Entry Points
//
// The generated stage functions are vertex_main and pixel_main. Matrix
// attributes and varyings are split into one column per [[attribute(n)]] or
// [[user(locnN)]] slot and reassembled on entry.
//
// # Helper Functions
//
//   - _mod: floored modulo, since metal::fmod truncates
package msl
