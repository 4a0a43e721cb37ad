// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/shade/lang"
)

// typeName returns the GLSL spelling of t. Arrays are spelled as types
// (vec2[3]); declarations use declaration instead.
func (w *Writer) typeName(t lang.Ty) string {
	switch t.Kind {
	case lang.TyVoid:
		return "void"
	case lang.TyTexture2D:
		return "sampler2D"
	case lang.TyStruct:
		return w.structs[t.Struct]
	case lang.TyArray:
		return fmt.Sprintf("%s[%d]", w.typeName(*t.Elem), t.Len)
	}
	// Built-in type names match the source language.
	return t.String()
}

// declaration returns "T name", with the array size after the name.
func (w *Writer) declaration(t lang.Ty, name string) string {
	if t.Kind == lang.TyArray {
		return fmt.Sprintf("%s %s[%d]", w.typeName(*t.Elem), name, t.Len)
	}
	return w.typeName(t) + " " + name
}

// zeroValue returns an expression for the zero value of t.
func (w *Writer) zeroValue(t lang.Ty) string {
	switch {
	case t.Kind == lang.TyBool:
		return "false"
	case t.Kind == lang.TyInt:
		return "0"
	case t.Kind == lang.TyFloat:
		return "0.0"
	case t.IsVector() || t.IsMatrix():
		return w.typeName(t) + "(" + w.zeroValue(lang.Ty{Kind: t.Scalar()}) + ")"
	case t.Kind == lang.TyStruct:
		s, _ := w.module.Struct(t.Struct)
		fields := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = w.zeroValue(f.Ty)
		}
		return w.structs[t.Struct] + "(" + strings.Join(fields, ", ") + ")"
	case t.Kind == lang.TyArray:
		elems := make([]string, t.Len)
		for i := range elems {
			elems[i] = w.zeroValue(*t.Elem)
		}
		return w.typeName(t) + "(" + strings.Join(elems, ", ") + ")"
	}
	w.fail(ErrInternalError, lang.Span{}, "no zero value for %s", t)
	return ""
}
