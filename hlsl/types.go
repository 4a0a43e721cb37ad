// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/shade/lang"
)

func scalarName(k lang.TyKind) string {
	switch k {
	case lang.TyBool:
		return "bool"
	case lang.TyInt:
		return "int"
	default:
		return "float"
	}
}

// typeName returns the HLSL spelling of t. Arrays have no type spelling in
// HLSL; declarations use declaration instead.
func (w *Writer) typeName(t lang.Ty) string {
	switch {
	case t.Kind == lang.TyVoid:
		return "void"
	case t.Kind == lang.TyTexture2D:
		return "Texture2D<float4>"
	case t.Kind == lang.TyStruct:
		return w.structs[t.Struct]
	case t.Kind == lang.TyArray:
		w.fail(ErrUnsupportedFeature, lang.Span{}, "array type %s cannot be named in HLSL", t)
		return ""
	case t.IsVector():
		return fmt.Sprintf("%s%d", scalarName(t.Scalar()), t.Size())
	case t.IsMatrix():
		return fmt.Sprintf("float%dx%d", t.Size(), t.Size())
	}
	return scalarName(t.Kind)
}

// declaration returns "T name", with the array size after the name.
func (w *Writer) declaration(t lang.Ty, name string) string {
	if t.Kind == lang.TyArray {
		return fmt.Sprintf("%s %s[%d]", w.typeName(*t.Elem), name, t.Len)
	}
	return w.typeName(t) + " " + name
}

// memberDeclaration declares a struct or cbuffer member. Matrices are
// stored row by row so that each row holds one column of the source matrix.
func (w *Writer) memberDeclaration(t lang.Ty, name string) string {
	decl := w.declaration(t, name)
	if t.IsMatrix() || t.Kind == lang.TyArray && t.Elem.IsMatrix() {
		return "row_major " + decl
	}
	return decl
}

// zeroValue returns an initializer for the zero value of t.
func (w *Writer) zeroValue(t lang.Ty) string {
	switch {
	case t.Kind == lang.TyBool:
		return "false"
	case t.Kind == lang.TyInt:
		return "0"
	case t.Kind == lang.TyFloat:
		return "0.0"
	case t.Kind == lang.TyArray:
		elems := make([]string, t.Len)
		for i := range elems {
			elems[i] = w.zeroValue(*t.Elem)
		}
		return "{" + strings.Join(elems, ", ") + "}"
	}
	return "(" + w.typeName(t) + ")0"
}
