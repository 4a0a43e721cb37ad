package analysis

import (
	"slices"

	"github.com/gogpu/shade/lang"
)

// UniformBlock groups the uniforms declared with the same `in` block name.
// The default block has a zero Name.
type UniformBlock struct {
	Name     lang.Ident
	Index    int // position among the module's blocks, used as binding slot
	Uniforms []*Global
}

// IsDefault reports whether b collects the uniforms declared without a
// block name.
func (b *UniformBlock) IsDefault() bool { return b.Name.IsZero() }

// UsesBlock reports whether the closure reads any uniform of b.
func (c *Closure) UsesBlock(b *UniformBlock) bool {
	for _, g := range b.Uniforms {
		if c.Uses(g) {
			return true
		}
	}
	return false
}

// Blocks returns the uniform blocks the closure reads, in binding order.
func (c *Closure) Blocks(m *Module) []*UniformBlock {
	var out []*UniformBlock
	for _, b := range m.Blocks {
		if c.UsesBlock(b) {
			out = append(out, b)
		}
	}
	return out
}

func (m *Module) addToBlock(g *Global) {
	i := slices.IndexFunc(m.Blocks, func(b *UniformBlock) bool { return b.Name == g.Block })
	if i < 0 {
		i = len(m.Blocks)
		m.Blocks = append(m.Blocks, &UniformBlock{Name: g.Block, Index: i})
	}
	b := m.Blocks[i]
	g.Slot = len(b.Uniforms)
	b.Uniforms = append(b.Uniforms, g)
}

// LayoutRules selects the packing rules of a uniform block.
type LayoutRules uint8

const (
	// LayoutStd140 is the OpenGL std140 uniform block layout.
	LayoutStd140 LayoutRules = iota
	// LayoutHLSL is the Direct3D constant buffer packing.
	LayoutHLSL
	// LayoutMetal is the layout of a plain Metal struct.
	LayoutMetal
)

func (r LayoutRules) String() string {
	switch r {
	case LayoutStd140:
		return "std140"
	case LayoutHLSL:
		return "hlsl"
	case LayoutMetal:
		return "metal"
	}
	return "unknown"
}

// LayoutField is the placement of one uniform inside its block, in bytes.
type LayoutField struct {
	Name   string
	Ty     lang.Ty
	Offset int
	Size   int
	Align  int
	// Stride is the distance between array elements, zero for non-arrays.
	Stride int
}

// LayoutBlock is the byte layout of a uniform block.
type LayoutBlock struct {
	Name   string
	Fields []LayoutField
	Size   int
}

// Layout places the uniforms of b one after another following rules.
func (b *UniformBlock) Layout(rules LayoutRules) LayoutBlock {
	out := LayoutBlock{Name: b.Name.String()}
	offset, maxAlign := 0, 4
	for _, g := range b.Uniforms {
		size, align, stride := sizeAlign(g.Ty, rules)
		offset = roundUp(offset, align)
		if rules == LayoutHLSL && (g.Ty.Kind == lang.TyArray || g.Ty.IsMatrix() || offset%16+size > 16) {
			offset = roundUp(offset, 16)
		}
		out.Fields = append(out.Fields, LayoutField{
			Name:   g.Name.String(),
			Ty:     g.Ty,
			Offset: offset,
			Size:   size,
			Align:  align,
			Stride: stride,
		})
		offset += size
		maxAlign = max(maxAlign, align)
	}
	switch rules {
	case LayoutMetal:
		out.Size = roundUp(offset, maxAlign)
	default:
		out.Size = roundUp(offset, 16)
	}
	return out
}

// sizeAlign returns the size, alignment and array stride of t.
func sizeAlign(t lang.Ty, rules LayoutRules) (size, align, stride int) {
	if t.Kind == lang.TyArray {
		esize, ealign, _ := sizeAlign(*t.Elem, rules)
		switch rules {
		case LayoutStd140:
			stride = roundUp(esize, 16)
			return stride * t.Len, 16, stride
		case LayoutHLSL:
			stride = roundUp(esize, 16)
			return stride*(t.Len-1) + esize, 16, stride
		default:
			stride = roundUp(esize, ealign)
			return stride * t.Len, ealign, stride
		}
	}

	n := t.Size()
	if t.IsMatrix() {
		switch rules {
		case LayoutStd140:
			return 16 * n, 16, 0
		case LayoutHLSL:
			return 16*(n-1) + 4*n, 16, 0
		default:
			col, calign, _ := sizeAlign(t.Column(), rules)
			return col * n, calign, 0
		}
	}

	scalar := 4
	if rules == LayoutMetal && t.Scalar() == lang.TyBool {
		scalar = 1
	}
	switch rules {
	case LayoutHLSL:
		return scalar * n, 4, 0
	default:
		// Three component vectors align like four.
		a := n
		if a == 3 {
			a = 4
		}
		size = scalar * n
		if rules == LayoutMetal {
			size = scalar * a
		}
		return size, scalar * a, 0
	}
}

func roundUp(n, align int) int {
	return (n + align - 1) / align * align
}
