package analysis

import (
	"math"

	"github.com/gogpu/shade/lang"
)

// foldConsts evaluates every constant subexpression of every function
// body into Info.Consts and checks the places where the language demands
// a constant: loop bounds, loop steps and array indices with a known size.
func (a *analyser) foldConsts() *lang.ParseError {
	for _, fn := range a.m.Functions {
		for stmt, root := range RootExprs(fn.Decl.Body) {
			if err := a.foldTree(root); err != nil {
				return err
			}
			switch s := stmt.(type) {
			case *lang.ForStmt:
				if err := a.checkLoopBound(s, root); err != nil {
					return err
				}
			case *lang.AssignStmt:
				if root != s.Right || s.Op != lang.TokenSlashEqual {
					continue
				}
				if v, ok := a.info.ConstOf(s.Right); ok && v.Kind == lang.ValInt && v.Int == 0 {
					return lang.Errorf(s.Right.Pos(), "integer division by zero")
				}
			}
		}
	}
	return nil
}

func (a *analyser) checkLoopBound(s *lang.ForStmt, e lang.Expr) *lang.ParseError {
	what := "loop bound"
	if e == s.Step {
		what = "loop step"
	}
	v, ok := a.info.ConstOf(e)
	if !ok {
		return lang.Errorf(e.Pos(), "%s must be a constant expression", what)
	}
	if e == s.Step && v.Int == 0 {
		return lang.Errorf(e.Pos(), "loop step must not be zero")
	}
	return nil
}

// foldExpr folds e and returns its value, if it is constant. e must have
// been type-checked.
func (a *analyser) foldExpr(e lang.Expr) (lang.Val, bool, *lang.ParseError) {
	if err := a.foldTree(e); err != nil {
		return lang.Val{}, false, err
	}
	v, ok := a.info.ConstOf(e)
	return v, ok, nil
}

func (a *analyser) foldTree(root lang.Expr) *lang.ParseError {
	err := Visit(root, PostOrder, func(e lang.Expr) error {
		v, ok, perr := a.fold(e)
		if perr != nil {
			return perr
		}
		if ok && v.Finite() {
			a.info.setConst(e.NodeID(), v)
		}
		return nil
	})
	if err != nil {
		return err.(*lang.ParseError)
	}
	return nil
}

// fold computes the value of e from the already folded values of its
// children.
func (a *analyser) fold(e lang.Expr) (lang.Val, bool, *lang.ParseError) {
	consts := func(es ...lang.Expr) ([]lang.Val, bool) {
		vals := make([]lang.Val, len(es))
		for i, x := range es {
			v, ok := a.info.ConstOf(x)
			if !ok {
				return nil, false
			}
			vals[i] = v
		}
		return vals, true
	}

	switch e := e.(type) {
	case *lang.LitExpr:
		return e.Lit.ToVal(), true, nil

	case *lang.VarExpr:
		ref := a.info.Vars[e.ID]
		if c, ok := ref.Decl.(*lang.ConstDecl); ok && ref.Kind == VarConst {
			return a.m.constByDecl[c].Val, true, nil
		}

	case *lang.UnaryExpr:
		if vals, ok := consts(e.Operand); ok {
			v, ok := unaryVal(e.Op, vals[0])
			return v, ok, nil
		}

	case *lang.BinaryExpr:
		if r, ok := a.info.ConstOf(e.Right); ok && e.Op == lang.TokenSlash && r.Kind == lang.ValInt && r.Int == 0 {
			return lang.Val{}, false, lang.Errorf(e.Right.Pos(), "integer division by zero")
		}
		vals, ok := consts(e.Left, e.Right)
		if !ok {
			return lang.Val{}, false, nil
		}
		v, ok := binaryVal(e.Op, vals[0], vals[1])
		return v, ok, nil

	case *lang.ConsCallExpr:
		if vals, ok := consts(e.Args...); ok {
			v, ok := constructVal(e.Ty.ToTy(), vals)
			return v, ok, nil
		}

	case *lang.CondExpr:
		if vals, ok := consts(e.Cond, e.Then, e.Else); ok {
			if vals[0].Bool {
				return vals[1], true, nil
			}
			return vals[2], true, nil
		}

	case *lang.MemberExpr:
		if vals, ok := consts(e.Expr); ok && vals[0].Kind == lang.ValVec {
			idx, _ := Swizzle(e.Member.String())
			return pick(vals[0], idx), true, nil
		}

	case *lang.IndexExpr:
		return a.foldIndex(e)
	}
	return lang.Val{}, false, nil
}

// foldIndex rejects constant indices outside the indexed value and folds
// constant vector indexing.
func (a *analyser) foldIndex(e *lang.IndexExpr) (lang.Val, bool, *lang.ParseError) {
	idx, ok := a.info.ConstOf(e.Index)
	if !ok {
		return lang.Val{}, false, nil
	}
	ty := a.info.TypeOf(e.Expr)
	n := ty.Size()
	if ty.Kind == lang.TyArray {
		n = ty.Len
	}
	if idx.Int < 0 || idx.Int >= int64(n) {
		return lang.Val{}, false, lang.Errorf(e.Index.Pos(), "index %d is out of range for %s", idx.Int, ty)
	}
	if v, ok := a.info.ConstOf(e.Expr); ok && v.Kind == lang.ValVec {
		return pick(v, []int{int(idx.Int)}), true, nil
	}
	return lang.Val{}, false, nil
}

// pick applies a swizzle to a float vector.
func pick(v lang.Val, idx []int) lang.Val {
	if len(idx) == 1 {
		return lang.FloatVal(v.Vec[idx[0]])
	}
	c := make([]float64, len(idx))
	for i, j := range idx {
		c[i] = v.Vec[j]
	}
	return lang.VecVal(c...)
}

// wrap truncates an int result to 32 bits, the width every target uses.
func wrap(i int64) int64 { return int64(int32(i)) }

// round rounds a float result to single precision.
func round(f float64) float64 { return float64(float32(f)) }

func unaryVal(op lang.TokenKind, v lang.Val) (lang.Val, bool) {
	switch {
	case op == lang.TokenBang && v.Kind == lang.ValBool:
		return lang.BoolVal(!v.Bool), true
	case op != lang.TokenMinus:
		return lang.Val{}, false
	}
	switch v.Kind {
	case lang.ValInt:
		return lang.IntVal(wrap(-v.Int)), true
	case lang.ValFloat:
		return lang.FloatVal(-v.Float), true
	case lang.ValVec:
		for i := range v.N {
			v.Vec[i] = -v.Vec[i]
		}
		return v, true
	}
	return lang.Val{}, false
}

func binaryVal(op lang.TokenKind, l, r lang.Val) (lang.Val, bool) {
	switch op {
	case lang.TokenAmpAmp:
		return lang.BoolVal(l.Bool && r.Bool), true
	case lang.TokenPipePipe:
		return lang.BoolVal(l.Bool || r.Bool), true
	case lang.TokenEqualEqual:
		return lang.BoolVal(l == r), true
	case lang.TokenBangEqual:
		return lang.BoolVal(l != r), true
	}

	switch {
	case l.Kind == lang.ValInt && r.Kind == lang.ValInt:
		return intOp(op, l.Int, r.Int)
	case l.Kind == lang.ValFloat && r.Kind == lang.ValFloat:
		return floatOp(op, l.Float, r.Float)
	case l.Kind == lang.ValVec || r.Kind == lang.ValVec:
		return vecOp(op, l, r)
	}
	return lang.Val{}, false
}

func intOp(op lang.TokenKind, l, r int64) (lang.Val, bool) {
	switch op {
	case lang.TokenPlus:
		return lang.IntVal(wrap(l + r)), true
	case lang.TokenMinus:
		return lang.IntVal(wrap(l - r)), true
	case lang.TokenStar:
		return lang.IntVal(wrap(l * r)), true
	case lang.TokenSlash:
		return lang.IntVal(wrap(l / r)), true
	case lang.TokenLess:
		return lang.BoolVal(l < r), true
	case lang.TokenGreater:
		return lang.BoolVal(l > r), true
	case lang.TokenLessEqual:
		return lang.BoolVal(l <= r), true
	case lang.TokenGreaterEqual:
		return lang.BoolVal(l >= r), true
	}
	return lang.Val{}, false
}

func floatOp(op lang.TokenKind, l, r float64) (lang.Val, bool) {
	switch op {
	case lang.TokenLess:
		return lang.BoolVal(l < r), true
	case lang.TokenGreater:
		return lang.BoolVal(l > r), true
	case lang.TokenLessEqual:
		return lang.BoolVal(l <= r), true
	case lang.TokenGreaterEqual:
		return lang.BoolVal(l >= r), true
	}
	f, ok := arith(op, l, r)
	return lang.FloatVal(f), ok
}

func arith(op lang.TokenKind, l, r float64) (float64, bool) {
	switch op {
	case lang.TokenPlus:
		return round(l + r), true
	case lang.TokenMinus:
		return round(l - r), true
	case lang.TokenStar:
		return round(l * r), true
	case lang.TokenSlash:
		return round(l / r), true
	}
	return math.NaN(), false
}

// vecOp applies op componentwise, broadcasting a float scalar operand.
func vecOp(op lang.TokenKind, l, r lang.Val) (lang.Val, bool) {
	n := max(l.N, r.N)
	comp := func(v lang.Val, i int) (float64, bool) {
		switch v.Kind {
		case lang.ValFloat:
			return v.Float, true
		case lang.ValVec:
			return v.Vec[i], v.N == n
		}
		return 0, false
	}
	out := lang.Val{Kind: lang.ValVec, N: n}
	for i := range n {
		x, ok1 := comp(l, i)
		y, ok2 := comp(r, i)
		if !ok1 || !ok2 {
			return lang.Val{}, false
		}
		f, ok := arith(op, x, y)
		if !ok {
			return lang.Val{}, false
		}
		out.Vec[i] = f
	}
	return out, true
}

// constructVal folds scalar conversions and float vector constructors.
func constructVal(target lang.Ty, args []lang.Val) (lang.Val, bool) {
	switch {
	case target.IsScalar():
		return convert(target.Kind, args[0])

	case target.IsVector() && target.Scalar() == lang.TyFloat:
		if len(args) == 1 && args[0].Kind != lang.ValVec {
			f, ok := convert(lang.TyFloat, args[0])
			if !ok {
				return lang.Val{}, false
			}
			c := make([]float64, target.Size())
			for i := range c {
				c[i] = f.Float
			}
			return lang.VecVal(c...), true
		}
		var c []float64
		for _, v := range args {
			switch v.Kind {
			case lang.ValFloat:
				c = append(c, v.Float)
			case lang.ValVec:
				c = append(c, v.Vec[:v.N]...)
			default:
				return lang.Val{}, false
			}
		}
		return lang.VecVal(c...), len(c) == target.Size()
	}
	return lang.Val{}, false
}

func convert(to lang.TyKind, v lang.Val) (lang.Val, bool) {
	var f float64
	switch v.Kind {
	case lang.ValBool:
		if v.Bool {
			f = 1
		}
	case lang.ValInt:
		f = float64(v.Int)
	case lang.ValFloat:
		f = v.Float
	default:
		return lang.Val{}, false
	}
	switch to {
	case lang.TyBool:
		return lang.BoolVal(f != 0), true
	case lang.TyInt:
		if math.IsNaN(f) || f >= math.MaxInt32+1 || f <= math.MinInt32-1 {
			return lang.Val{}, false
		}
		return lang.IntVal(int64(f)), true
	case lang.TyFloat:
		return lang.FloatVal(round(f)), true
	}
	return lang.Val{}, false
}
