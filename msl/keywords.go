package msl

import (
	"fmt"
	"maps"
	"strings"
)

// Names the generated code declares itself.
const (
	ContextStruct     = "_Ctx"
	ContextParam      = "_ctx"
	SamplerName       = "_sampler"
	ModFunction       = "_mod"
	VertexInputStruct = "VertexInput"
	VaryingsStruct    = "Varyings"
	InputParam        = "_input"
	OutputVar         = "_output"
	PositionField     = "position"
	BlockSuffix       = "_block"
)

// stageFunctions are the names of the generated [[vertex]] and
// [[fragment]] functions.
var stageFunctions = [...]string{"vertex_main", "pixel_main"}

// reservedKeywords holds the C++14 keywords MSL inherits, the Metal
// function and address space qualifiers, and the scalar type names.
var reservedKeywords = func() map[string]struct{} {
	words := strings.Fields(`
		alignas alignof and and_eq asm auto bitand bitor bool break case catch
		char char16_t char32_t class compl const constexpr const_cast continue
		decltype default delete do double dynamic_cast else enum explicit
		export extern false float for friend goto if inline int long mutable
		namespace new noexcept not not_eq nullptr operator or or_eq private
		protected public register reinterpret_cast return short signed sizeof
		static static_assert static_cast struct switch template this
		thread_local throw true try typedef typeid typename union unsigned
		using virtual void volatile wchar_t while xor xor_eq

		kernel vertex fragment visible device constant thread threadgroup
		threadgroup_imageblock ray_data object_data stage_in patch metal main

		half uchar ushort uint ulong size_t ptrdiff_t
	`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsReserved reports whether name is an MSL keyword or type name.
func IsReserved(name string) bool {
	_, ok := reservedKeywords[name]
	return ok
}

// Escape returns a safe identifier name: reserved words and names in the
// implementation namespace get an underscore prefix.
func Escape(name string) string {
	if IsReserved(name) || strings.HasPrefix(name, "__") {
		return "_" + name
	}
	return name
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counter   uint32
}

func newNamer() *namer {
	n := &namer{
		usedNames: make(map[string]struct{}),
	}
	for _, name := range []string{
		ContextStruct, ContextParam, SamplerName, ModFunction,
		VertexInputStruct, VaryingsStruct, InputParam, OutputVar,
		stageFunctions[0], stageFunctions[1],
	} {
		n.usedNames[name] = struct{}{}
	}
	return n
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	// First try the base name directly
	escaped := Escape(base)
	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}

	// Add numeric suffix
	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

func (n *namer) clone() *namer {
	return &namer{usedNames: maps.Clone(n.usedNames), counter: n.counter}
}
