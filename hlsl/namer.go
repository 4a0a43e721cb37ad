// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"maps"
	"strings"
)

// namer generates unique identifiers for HLSL output.
// It tracks used names to ensure uniqueness and handles
// HLSL's case-insensitive keyword matching.
type namer struct {
	// usedNames tracks names that have been generated, lowercased.
	usedNames map[string]struct{}

	// counter is used to generate unique suffixes.
	counter uint32
}

// newNamer creates a namer that already holds every name the generated
// code declares itself.
func newNamer() *namer {
	n := &namer{
		usedNames: make(map[string]struct{}),
	}
	for _, name := range []string{
		ModFunction,
		diagFunction(2),
		diagFunction(3),
		diagFunction(4),
		EntryPointName,
		VertexInputStruct,
		VaryingsStruct,
		InputParam,
		OutputVar,
	} {
		n.reserve(name)
	}
	return n
}

// call generates a unique name based on the given base.
// It escapes reserved keywords and adds numeric suffixes if needed.
func (n *namer) call(base string) string {
	escaped := Escape(base)

	lowerEscaped := strings.ToLower(escaped)
	if !n.isUsedLower(lowerEscaped) {
		n.usedNames[lowerEscaped] = struct{}{}
		return escaped
	}

	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		lowerCandidate := strings.ToLower(candidate)
		if !n.isUsedLower(lowerCandidate) {
			n.usedNames[lowerCandidate] = struct{}{}
			return candidate
		}
	}
}

func (n *namer) isUsedLower(lowerName string) bool {
	_, used := n.usedNames[lowerName]
	return used
}

// reserve marks a name as used without returning it.
func (n *namer) reserve(name string) {
	n.usedNames[strings.ToLower(name)] = struct{}{}
}

// clone returns a namer that starts with every name n has handed out.
func (n *namer) clone() *namer {
	return &namer{usedNames: maps.Clone(n.usedNames), counter: n.counter}
}
