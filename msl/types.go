package msl

import (
	"fmt"

	"github.com/gogpu/shade/lang"
)

// Namespace is the MSL metal namespace prefix.
const Namespace = "metal::"

func scalarTypeName(k lang.TyKind) string {
	switch k {
	case lang.TyBool:
		return "bool"
	case lang.TyInt:
		return "int"
	default:
		return "float"
	}
}

// typeName returns the MSL spelling of t.
func (w *Writer) typeName(t lang.Ty) string {
	switch {
	case t.Kind == lang.TyVoid:
		return "void"
	case t.Kind == lang.TyTexture2D:
		return Namespace + "texture2d<float>"
	case t.Kind == lang.TyStruct:
		return w.structs[t.Struct]
	case t.Kind == lang.TyArray:
		return fmt.Sprintf("%sarray<%s, %d>", Namespace, w.typeName(*t.Elem), t.Len)
	case t.IsVector():
		return fmt.Sprintf("%s%s%d", Namespace, scalarTypeName(t.Scalar()), t.Size())
	case t.IsMatrix():
		return fmt.Sprintf("%sfloat%dx%d", Namespace, t.Size(), t.Size())
	}
	return scalarTypeName(t.Kind)
}

func (w *Writer) declaration(t lang.Ty, name string) string {
	return w.typeName(t) + " " + name
}

// zeroValue returns an initializer for the zero value of t. Aggregates
// and vectors are value-initialized.
func (w *Writer) zeroValue(t lang.Ty) string {
	switch t.Kind {
	case lang.TyBool:
		return "false"
	case lang.TyInt:
		return "0"
	case lang.TyFloat:
		return "0.0"
	}
	return "{}"
}
