// Package builtin is the registry of functions every shader can call
// without declaring them.
//
// The table is built by a pure function and is never mutated afterwards,
// so one instance is shared by all concurrent compilations.
package builtin

import (
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/shade/lang"
)

// Signature is one accepted argument list and its result type.
type Signature struct {
	Params []lang.Ty
	Return lang.Ty
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	return "(" + strings.Join(params, ", ") + ") -> " + s.Return.String()
}

// Builtin is a callable built-in with all of its overloads.
type Builtin struct {
	Name      lang.Ident
	Overloads []Signature
}

// Resolve returns the overload whose parameters match args exactly.
func (b *Builtin) Resolve(args []lang.Ty) (Signature, bool) {
	for _, sig := range b.Overloads {
		if slices.EqualFunc(sig.Params, args, lang.Ty.Equal) {
			return sig, true
		}
	}
	return Signature{}, false
}

// Table maps a built-in name to its declaration.
type Table map[lang.Ident]*Builtin

// Lookup returns the built-in called name.
func (t Table) Lookup(name lang.Ident) (*Builtin, bool) {
	b, ok := t[name]
	return b, ok
}

// Names returns the sorted names of all built-ins.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name.String())
	}
	slices.Sort(names)
	return names
}

// Default returns the process-wide table, built on first use.
var Default = sync.OnceValue(Generate)

var (
	genTypes = []lang.Ty{lang.Float, lang.Vec2, lang.Vec3, lang.Vec4}
	vecSizes = []int{2, 3, 4}
)

type builder struct {
	table Table
}

func (b *builder) add(name string, ret lang.Ty, params ...lang.Ty) {
	id := lang.NewIdent(name)
	bi, ok := b.table[id]
	if !ok {
		bi = &Builtin{Name: id}
		b.table[id] = bi
	}
	bi.Overloads = append(bi.Overloads, Signature{Params: params, Return: ret})
}

// Generate builds the built-in table. It is pure and deterministic.
func Generate() Table {
	b := &builder{table: make(Table)}

	for _, name := range []string{
		"radians", "degrees", "sin", "cos", "tan", "asin", "acos", "atan",
		"exp", "log", "exp2", "log2", "sqrt", "inversesqrt",
		"abs", "sign", "floor", "ceil", "fract", "normalize", "dFdx", "dFdy",
	} {
		for _, g := range genTypes {
			b.add(name, g, g)
		}
	}

	for _, g := range genTypes {
		b.add("atan", g, g, g)
		b.add("pow", g, g, g)
		b.add("mod", g, g, g)
		b.add("min", g, g, g)
		b.add("max", g, g, g)
		b.add("clamp", g, g, g, g)
		b.add("mix", g, g, g, g)
		b.add("step", g, g, g)
		b.add("smoothstep", g, g, g, g)
		b.add("length", lang.Float, g)
		b.add("distance", lang.Float, g, g)
		b.add("dot", lang.Float, g, g)
		b.add("faceforward", g, g, g, g)
		b.add("reflect", g, g, g)
		b.add("refract", g, g, g, lang.Float)
		if g.IsVector() {
			// Scalar edge / bound variants.
			b.add("mod", g, g, lang.Float)
			b.add("min", g, g, lang.Float)
			b.add("max", g, g, lang.Float)
			b.add("clamp", g, g, lang.Float, lang.Float)
			b.add("mix", g, g, g, lang.Float)
			b.add("step", g, lang.Float, g)
			b.add("smoothstep", g, lang.Float, lang.Float, g)
		}
	}

	b.add("cross", lang.Vec3, lang.Vec3, lang.Vec3)

	for _, n := range vecSizes {
		b.add("transpose", lang.MatOf(n), lang.MatOf(n))

		bvec := lang.VecOf(lang.TyBool, n)
		for _, scalar := range []lang.TyKind{lang.TyFloat, lang.TyInt} {
			v := lang.VecOf(scalar, n)
			for _, name := range []string{"lessThan", "lessThanEqual", "greaterThan", "greaterThanEqual", "equal", "notEqual"} {
				b.add(name, bvec, v, v)
			}
		}
		b.add("equal", bvec, bvec, bvec)
		b.add("notEqual", bvec, bvec, bvec)
		b.add("any", lang.Bool, bvec)
		b.add("all", lang.Bool, bvec)
		b.add("not", bvec, bvec)
	}

	b.add("sample2d", lang.Vec4, lang.Texture2D, lang.Vec2)

	return b.table
}
