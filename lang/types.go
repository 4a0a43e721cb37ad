package lang

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TyKind is the kind of a shader type.
type TyKind uint8

const (
	TyVoid TyKind = iota
	TyBool
	TyInt
	TyFloat
	TyBvec2
	TyBvec3
	TyBvec4
	TyIvec2
	TyIvec3
	TyIvec4
	TyVec2
	TyVec3
	TyVec4
	TyMat2
	TyMat3
	TyMat4
	TyTexture2D
	TyStruct
	TyArray
)

// Ty is a resolved shader type. Built-in types compare structurally,
// structs by name.
type Ty struct {
	Kind   TyKind
	Struct Ident // TyStruct
	Elem   *Ty   // TyArray
	Len    int   // TyArray
}

// Frequently used types.
var (
	Void      = Ty{Kind: TyVoid}
	Bool      = Ty{Kind: TyBool}
	Int       = Ty{Kind: TyInt}
	Float     = Ty{Kind: TyFloat}
	Vec2      = Ty{Kind: TyVec2}
	Vec3      = Ty{Kind: TyVec3}
	Vec4      = Ty{Kind: TyVec4}
	Mat4      = Ty{Kind: TyMat4}
	Texture2D = Ty{Kind: TyTexture2D}
)

// StructTy returns the nominal type of the struct called name.
func StructTy(name Ident) Ty {
	return Ty{Kind: TyStruct, Struct: name}
}

// ArrayOf returns the type [elem; n].
func ArrayOf(elem Ty, n int) Ty {
	e := elem
	return Ty{Kind: TyArray, Elem: &e, Len: n}
}

// Equal reports whether t and o denote the same type.
func (t Ty) Equal(o Ty) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TyStruct:
		return t.Struct == o.Struct
	case TyArray:
		return t.Len == o.Len && t.Elem.Equal(*o.Elem)
	}
	return true
}

// Scalar returns the component kind (TyBool, TyInt or TyFloat) of a scalar,
// vector or matrix type, and TyVoid for anything else.
func (t Ty) Scalar() TyKind {
	switch t.Kind {
	case TyBool, TyBvec2, TyBvec3, TyBvec4:
		return TyBool
	case TyInt, TyIvec2, TyIvec3, TyIvec4:
		return TyInt
	case TyFloat, TyVec2, TyVec3, TyVec4, TyMat2, TyMat3, TyMat4:
		return TyFloat
	}
	return TyVoid
}

// Size returns the number of components of a scalar (1) or vector, the
// number of columns of a matrix, and 0 otherwise.
func (t Ty) Size() int {
	switch t.Kind {
	case TyBool, TyInt, TyFloat:
		return 1
	case TyBvec2, TyIvec2, TyVec2, TyMat2:
		return 2
	case TyBvec3, TyIvec3, TyVec3, TyMat3:
		return 3
	case TyBvec4, TyIvec4, TyVec4, TyMat4:
		return 4
	}
	return 0
}

// Components returns the total scalar count of t (n*n for matrices).
func (t Ty) Components() int {
	if t.IsMatrix() {
		return t.Size() * t.Size()
	}
	if t.IsScalar() || t.IsVector() {
		return t.Size()
	}
	return 0
}

func (t Ty) IsScalar() bool { return t.Kind == TyBool || t.Kind == TyInt || t.Kind == TyFloat }

func (t Ty) IsVector() bool { return t.Kind >= TyBvec2 && t.Kind <= TyVec4 }

func (t Ty) IsMatrix() bool { return t.Kind >= TyMat2 && t.Kind <= TyMat4 }

// IsNumeric reports whether t is an int or float scalar, vector or matrix.
func (t Ty) IsNumeric() bool {
	s := t.Scalar()
	return s == TyInt || s == TyFloat
}

// IsComposite reports whether values of t are built from other values
// (structs and arrays).
func (t Ty) IsComposite() bool { return t.Kind == TyStruct || t.Kind == TyArray }

// VecOf returns the scalar (n == 1) or vector type with the given
// component kind and size.
func VecOf(scalar TyKind, n int) Ty {
	if n == 1 {
		return Ty{Kind: scalar}
	}
	var base TyKind
	switch scalar {
	case TyBool:
		base = TyBvec2
	case TyInt:
		base = TyIvec2
	default:
		base = TyVec2
	}
	return Ty{Kind: base + TyKind(n-2)}
}

// MatOf returns the n×n float matrix type.
func MatOf(n int) Ty {
	return Ty{Kind: TyMat2 + TyKind(n-2)}
}

// Column returns the column vector type of a matrix.
func (t Ty) Column() Ty {
	return VecOf(TyFloat, t.Size())
}

func (t Ty) String() string {
	switch t.Kind {
	case TyVoid:
		return "()"
	case TyStruct:
		return t.Struct.String()
	case TyArray:
		return fmt.Sprintf("[%s; %d]", t.Elem, t.Len)
	}
	for lit, ty := range tyLitTypes {
		if ty == t.Kind {
			return tyLitNames[lit]
		}
	}
	return fmt.Sprintf("TyKind(%d)", t.Kind)
}

// TyLit is a built-in type name token.
type TyLit uint8

const (
	TyLitBool TyLit = iota
	TyLitInt
	TyLitFloat
	TyLitVec2
	TyLitVec3
	TyLitVec4
	TyLitIvec2
	TyLitIvec3
	TyLitIvec4
	TyLitBvec2
	TyLitBvec3
	TyLitBvec4
	TyLitMat2
	TyLitMat3
	TyLitMat4
	TyLitTexture2D
)

var tyLitNames = [...]string{
	TyLitBool:      "bool",
	TyLitInt:       "int",
	TyLitFloat:     "float",
	TyLitVec2:      "vec2",
	TyLitVec3:      "vec3",
	TyLitVec4:      "vec4",
	TyLitIvec2:     "ivec2",
	TyLitIvec3:     "ivec3",
	TyLitIvec4:     "ivec4",
	TyLitBvec2:     "bvec2",
	TyLitBvec3:     "bvec3",
	TyLitBvec4:     "bvec4",
	TyLitMat2:      "mat2",
	TyLitMat3:      "mat3",
	TyLitMat4:      "mat4",
	TyLitTexture2D: "texture2D",
}

var tyLitTypes = [...]TyKind{
	TyLitBool:      TyBool,
	TyLitInt:       TyInt,
	TyLitFloat:     TyFloat,
	TyLitVec2:      TyVec2,
	TyLitVec3:      TyVec3,
	TyLitVec4:      TyVec4,
	TyLitIvec2:     TyIvec2,
	TyLitIvec3:     TyIvec3,
	TyLitIvec4:     TyIvec4,
	TyLitBvec2:     TyBvec2,
	TyLitBvec3:     TyBvec3,
	TyLitBvec4:     TyBvec4,
	TyLitMat2:      TyMat2,
	TyLitMat3:      TyMat3,
	TyLitMat4:      TyMat4,
	TyLitTexture2D: TyTexture2D,
}

var tyLitByName = func() map[string]TyLit {
	m := make(map[string]TyLit, len(tyLitNames))
	for lit, name := range tyLitNames {
		m[name] = TyLit(lit)
	}
	return m
}()

// LookupTyLit returns the type literal spelled name.
func LookupTyLit(name string) (TyLit, bool) {
	lit, ok := tyLitByName[name]
	return lit, ok
}

func (l TyLit) String() string { return tyLitNames[l] }

// ToTy returns the type named by l.
func (l TyLit) ToTy() Ty { return Ty{Kind: tyLitTypes[l]} }

// LitKind is the kind of a literal.
type LitKind uint8

const (
	LitBool LitKind = iota
	LitInt
	LitFloat
)

// Lit is a source literal.
type Lit struct {
	Kind  LitKind
	Bool  bool
	Int   int64
	Float float64
}

// ToTy returns the type of the literal.
func (l Lit) ToTy() Ty {
	switch l.Kind {
	case LitBool:
		return Bool
	case LitInt:
		return Int
	default:
		return Float
	}
}

// ToVal returns the constant value of the literal.
func (l Lit) ToVal() Val {
	switch l.Kind {
	case LitBool:
		return BoolVal(l.Bool)
	case LitInt:
		return IntVal(l.Int)
	default:
		return FloatVal(l.Float)
	}
}

// String formats the literal the way every backend prints it.
func (l Lit) String() string {
	return l.ToVal().String()
}

// FormatFloat formats f as a float literal valid in GLSL, HLSL and MSL:
// whole numbers always carry a trailing ".0".
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// ValKind is the kind of an evaluated constant.
type ValKind uint8

const (
	ValBool ValKind = iota
	ValInt
	ValFloat
	ValVec
)

// Val is a compile-time constant value. Vectors are float vectors of
// size N (2..4).
type Val struct {
	Kind  ValKind
	Bool  bool
	Int   int64
	Float float64
	Vec   [4]float64
	N     int
}

func BoolVal(b bool) Val { return Val{Kind: ValBool, Bool: b} }
func IntVal(i int64) Val { return Val{Kind: ValInt, Int: i} }
func FloatVal(f float64) Val { return Val{Kind: ValFloat, Float: f} }

// VecVal builds a float vector constant from 2 to 4 components.
func VecVal(c ...float64) Val {
	v := Val{Kind: ValVec, N: len(c)}
	copy(v.Vec[:], c)
	return v
}

// Ty returns the type of the value.
func (v Val) Ty() Ty {
	switch v.Kind {
	case ValBool:
		return Bool
	case ValInt:
		return Int
	case ValFloat:
		return Float
	default:
		return VecOf(TyFloat, v.N)
	}
}

// Finite reports whether every float component of v is finite.
func (v Val) Finite() bool {
	switch v.Kind {
	case ValFloat:
		return !math.IsInf(v.Float, 0) && !math.IsNaN(v.Float)
	case ValVec:
		for _, c := range v.Vec[:v.N] {
			if math.IsInf(c, 0) || math.IsNaN(c) {
				return false
			}
		}
	}
	return true
}

// String formats scalars as literals and vectors as vecN(...) constructors.
func (v Val) String() string {
	switch v.Kind {
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValInt:
		return strconv.FormatInt(v.Int, 10)
	case ValFloat:
		return FormatFloat(v.Float)
	default:
		return v.Ty().String() + "(" + strings.Join(v.ComponentStrings(), ", ") + ")"
	}
}

// ComponentStrings returns the formatted components of a vector value.
func (v Val) ComponentStrings() []string {
	out := make([]string, v.N)
	for i := range out {
		out[i] = FormatFloat(v.Vec[i])
	}
	return out
}
