package analysis

import (
	"fmt"
	"iter"

	"github.com/gogpu/shade/lang"
)

// Stage is a pipeline stage with its own entry point.
type Stage uint8

const (
	StageVertex Stage = iota
	StagePixel
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageVertex, StagePixel}

// String returns the name of the stage's entry point function.
func (s Stage) String() string {
	if s == StagePixel {
		return EntryPixel
	}
	return EntryVertex
}

// ParseStage returns the stage whose entry point is called name.
func ParseStage(name string) (Stage, error) {
	switch name {
	case EntryVertex:
		return StageVertex, nil
	case EntryPixel:
		return StagePixel, nil
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// Closure returns the closure of the stage's entry point, nil when the
// entry point is not declared.
func (m *Module) Closure(s Stage) *Closure {
	return m.Entry(s.String())
}

// Locations returns the number of attribute or varying locations a value
// of type t occupies.
func Locations(t lang.Ty) int {
	if t.IsMatrix() {
		return t.Size()
	}
	return 1
}

// InterfaceVar is a value passed from the vertex to the pixel stage.
type InterfaceVar struct {
	Global *Global
	// Forwarded is set for an attribute the pixel stage reads. The vertex
	// stage copies it into a varying of its own.
	Forwarded bool
	Location  int
}

// Interface returns the stage interface: every varying of the module,
// then the attributes read by the pixel stage. Both stages see the same
// list, so their declarations match regardless of what each one uses.
func (m *Module) Interface() []InterfaceVar {
	var out []InterfaceVar
	next := 0
	for _, g := range m.Globals {
		if g.Kind == VarVarying {
			out = append(out, InterfaceVar{Global: g, Location: g.Slot})
			next = max(next, g.Slot+Locations(g.Ty))
		}
	}
	if m.Pixel == nil {
		return out
	}
	for _, g := range m.Globals {
		if g.Kind.IsAttribute() && m.Pixel.Uses(g) {
			out = append(out, InterfaceVar{Global: g, Forwarded: true, Location: next})
			next += Locations(g.Ty)
		}
	}
	return out
}

// Attributes returns the attributes the vertex stage has to fetch: the
// ones its closure reads and the ones it forwards to the pixel stage.
func (m *Module) Attributes() []*Global {
	var out []*Global
	for _, g := range m.Globals {
		if !g.Kind.IsAttribute() {
			continue
		}
		if m.Vertex != nil && m.Vertex.Uses(g) || m.Pixel != nil && m.Pixel.Uses(g) {
			out = append(out, g)
		}
	}
	return out
}

// Binding is a named resource slot of generated code, reported back to the
// caller so it can bind buffers and textures.
type Binding struct {
	Name string
	Slot int
	Ty   lang.Ty
}

// Exprs yields every expression in the bodies of the closure's functions,
// parents before children.
func (c *Closure) Exprs() iter.Seq[lang.Expr] {
	return func(yield func(lang.Expr) bool) {
		for _, fn := range c.Functions {
			for _, root := range RootExprs(fn.Decl.Body) {
				err := Visit(root, PreOrder, func(e lang.Expr) error {
					if !yield(e) {
						return errStop
					}
					return nil
				})
				if err != nil {
					return
				}
			}
		}
	}
}
