package lang

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
)

func parseSource(t *testing.T, source string) *ShaderAst {
	t.Helper()
	ast, err := ParseFragments([]string{source})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return ast
}

// returnExpr returns the value of the first statement of fn, which must
// be a return statement.
func returnExpr(t *testing.T, fn *FnDecl) Expr {
	t.Helper()
	if len(fn.Body.Stmts) == 0 {
		t.Fatalf("%s has an empty body", fn.Path)
	}
	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	if !ok {
		t.Fatalf("first statement is %T, want *ReturnStmt", fn.Body.Stmts[0])
	}
	return ret.Value
}

func TestParsePassThrough(t *testing.T) {
	ast := parseSource(t, "fn vertex() -> vec4 { return vec4(0.,0.,0.,1.); } fn pixel() -> vec4 { return vec4(1.,0.,0.,1.); }")

	if len(ast.Fns) != 2 || len(ast.Decls) != 2 {
		t.Fatalf("got %d functions / %d decls, want 2 / 2", len(ast.Fns), len(ast.Decls))
	}
	for i, name := range []string{"vertex", "pixel"} {
		fn := ast.Fns[i]
		if fn.Path.String() != name {
			t.Errorf("function %d = %s, want %s", i, fn.Path, name)
		}
		ret, ok := fn.Return.(*TyLitType)
		if !ok || ret.Lit != TyLitVec4 {
			t.Errorf("%s return type = %#v, want vec4", name, fn.Return)
		}
		cons, ok := returnExpr(t, fn).(*ConsCallExpr)
		if !ok {
			t.Fatalf("%s returns %T, want *ConsCallExpr", name, returnExpr(t, fn))
		}
		if cons.Ty != TyLitVec4 || len(cons.Args) != 4 {
			t.Errorf("%s constructor = %v with %d args, want vec4 with 4", name, cons.Ty, len(cons.Args))
		}
	}
	if ast.NumNodes != 10 {
		t.Errorf("NumNodes = %d, want 10", ast.NumNodes)
	}
}

func TestParseDeclarations(t *testing.T) {
	ast := parseSource(t, heredoc.Doc(`
		struct Rect {
			pos: vec2,
			size: vec2,
		}
		instance rect: vec4;
		geometry geom: vec2;
		uniform camera: mat4 in pass;
		uniform tint: vec4 = vec4(1.0);
		varying uv: vec2;
		texture image: texture2D;
		const WEIGHTS: [float; 3] = 1.0;
		fn Rect::area(r: Rect, inout out: float) -> float { return r.size.x; }
	`))

	if len(ast.Structs) != 1 || len(ast.Vars) != 6 || len(ast.Consts) != 1 || len(ast.Fns) != 1 {
		t.Fatalf("got %d structs, %d vars, %d consts, %d fns",
			len(ast.Structs), len(ast.Vars), len(ast.Consts), len(ast.Fns))
	}

	rect := ast.Structs[0]
	if rect.Name.String() != "Rect" || len(rect.Fields) != 2 || rect.Fields[1].Name.String() != "size" {
		t.Errorf("struct = %s with %d fields", rect.Name, len(rect.Fields))
	}

	storages := []Storage{StorageInstance, StorageGeometry, StorageUniform, StorageUniform, StorageVarying, StorageTexture}
	for i, v := range ast.Vars {
		if v.Storage != storages[i] {
			t.Errorf("var %s storage = %v, want %v", v.Name, v.Storage, storages[i])
		}
	}
	if got := ast.Vars[2].Block.String(); got != "pass" {
		t.Errorf("camera block = %q, want pass", got)
	}
	if ast.Vars[3].Init == nil {
		t.Error("tint has no default value")
	}

	arr, ok := ast.Consts[0].Type.(*ArrayType)
	if !ok {
		t.Fatalf("const type = %T, want *ArrayType", ast.Consts[0].Type)
	}
	if n, ok := arr.Len.(*LitExpr); !ok || n.Lit.Int != 3 {
		t.Errorf("array length = %#v, want literal 3", arr.Len)
	}

	fn := ast.Fns[0]
	if !fn.Path.IsQualified() || fn.Path.String() != "Rect::area" {
		t.Errorf("fn path = %s, want Rect::area", fn.Path)
	}
	if len(fn.Params) != 2 || fn.Params[0].Inout || !fn.Params[1].Inout {
		t.Errorf("params inout flags wrong: %+v", fn.Params)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		expr  string
		check func(t *testing.T, e Expr)
	}{
		{"a + b * c", func(t *testing.T, e Expr) {
			add := e.(*BinaryExpr)
			if add.Op != TokenPlus {
				t.Fatalf("top op = %v, want +", add.Op)
			}
			if mul, ok := add.Right.(*BinaryExpr); !ok || mul.Op != TokenStar {
				t.Errorf("right = %#v, want a * expression", add.Right)
			}
		}},
		{"a - b - c", func(t *testing.T, e Expr) {
			sub := e.(*BinaryExpr)
			if _, ok := sub.Left.(*BinaryExpr); !ok {
				t.Errorf("subtraction is not left-associative")
			}
		}},
		{"a || b && c == d", func(t *testing.T, e Expr) {
			or := e.(*BinaryExpr)
			if or.Op != TokenPipePipe {
				t.Fatalf("top op = %v, want ||", or.Op)
			}
			and := or.Right.(*BinaryExpr)
			if and.Op != TokenAmpAmp {
				t.Fatalf("right op = %v, want &&", and.Op)
			}
			if eq := and.Right.(*BinaryExpr); eq.Op != TokenEqualEqual {
				t.Errorf("innermost op = %v, want ==", eq.Op)
			}
		}},
		{"a < b ? c : d ? e : f", func(t *testing.T, e Expr) {
			cond := e.(*CondExpr)
			if _, ok := cond.Cond.(*BinaryExpr); !ok {
				t.Errorf("condition = %T, want comparison", cond.Cond)
			}
			if _, ok := cond.Else.(*CondExpr); !ok {
				t.Errorf("ternary is not right-associative")
			}
		}},
		{"-a.x", func(t *testing.T, e Expr) {
			neg := e.(*UnaryExpr)
			if _, ok := neg.Operand.(*MemberExpr); !ok {
				t.Errorf("operand = %T, want member access", neg.Operand)
			}
		}},
		{"!(a && b)", func(t *testing.T, e Expr) {
			not := e.(*UnaryExpr)
			if not.Op != TokenBang {
				t.Errorf("op = %v, want !", not.Op)
			}
		}},
		{"r.area(2.0)[1]", func(t *testing.T, e Expr) {
			idx := e.(*IndexExpr)
			call, ok := idx.Expr.(*MethodCallExpr)
			if !ok || call.Method.String() != "area" || len(call.Args) != 1 {
				t.Errorf("indexed expression = %#v, want method call area(1 arg)", idx.Expr)
			}
		}},
		{"Rect::area(r)", func(t *testing.T, e Expr) {
			call := e.(*CallExpr)
			if call.Callee.String() != "Rect::area" {
				t.Errorf("callee = %s", call.Callee)
			}
		}},
		{"mix(a, b, 0.5)", func(t *testing.T, e Expr) {
			call := e.(*CallExpr)
			if call.Callee.IsQualified() || len(call.Args) != 3 {
				t.Errorf("call = %s with %d args", call.Callee, len(call.Args))
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ast := parseSource(t, "fn f() -> float { return "+tt.expr+"; }")
			tt.check(t, returnExpr(t, ast.Fns[0]))
		})
	}
}

func TestParseNodeIDs(t *testing.T) {
	ast := parseSource(t, "fn f() -> float { return 1.0 + 2.0; }")
	add := returnExpr(t, ast.Fns[0]).(*BinaryExpr)
	if add.Left.NodeID() != 0 || add.Right.NodeID() != 1 || add.NodeID() != 2 {
		t.Errorf("ids = %d, %d, %d; want 0, 1, 2", add.Left.NodeID(), add.Right.NodeID(), add.NodeID())
	}
	if ast.NumNodes != 3 {
		t.Errorf("NumNodes = %d, want 3", ast.NumNodes)
	}
	if want := (Span{Start: 25, End: 34}); add.Pos() != want {
		t.Errorf("span = %v, want %v", add.Pos(), want)
	}
}

func TestParseStatements(t *testing.T) {
	ast := parseSource(t, heredoc.Doc(`
		fn f(n: float) -> float {
			let a: float = 1.0;
			let b = a;
			let c: vec2;
			if a > b { a += 1.0; } else if a < b { a -= 1.0; } else { a = 0.0; }
			for i from 0 to 10 step 2 {
				if a > 3.0 { break; }
				continue;
			}
			c.x *= 2.0;
			c /= 2.0;
			{ b = a; }
			f(a);
			return;
		}
	`))

	stmts := ast.Fns[0].Body.Stmts
	want := []string{"*lang.LetStmt", "*lang.LetStmt", "*lang.LetStmt", "*lang.IfStmt", "*lang.ForStmt",
		"*lang.AssignStmt", "*lang.AssignStmt", "*lang.BlockStmt", "*lang.ExprStmt", "*lang.ReturnStmt"}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(stmts), len(want))
	}
	for i, s := range stmts {
		if got := fmt.Sprintf("%T", s); got != want[i] {
			t.Errorf("stmt %d = %s, want %s", i, got, want[i])
		}
	}

	if let := stmts[2].(*LetStmt); let.Init != nil || let.Type == nil {
		t.Errorf("let c: type=%v init=%v", let.Type, let.Init)
	}
	ifs := stmts[3].(*IfStmt)
	elseIf, ok := ifs.Else.(*IfStmt)
	if !ok {
		t.Fatalf("else branch = %T, want *IfStmt", ifs.Else)
	}
	if _, ok := elseIf.Else.(*BlockStmt); !ok {
		t.Errorf("final else = %T, want *BlockStmt", elseIf.Else)
	}
	loop := stmts[4].(*ForStmt)
	if loop.Var.String() != "i" || loop.Step == nil || len(loop.Body.Stmts) != 2 {
		t.Errorf("for loop = %+v", loop)
	}
	if op := stmts[5].(*AssignStmt).Op; op != TokenStarEqual {
		t.Errorf("assign op = %v, want *=", op)
	}
	if ret := stmts[9].(*ReturnStmt); ret.Value != nil {
		t.Errorf("bare return has value %v", ret.Value)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"missing semicolon", "fn f() { return 1.0 }", "expected ';', got '}'"},
		{"missing param name", "fn f( { }", "expected identifier"},
		{"type name without call", "fn f() { let x = vec4; }", "expected '(' after type name"},
		{"path without call", "fn f() { A::b; }", "expected '(' after path"},
		{"unclosed struct", "struct S { a: float", "expected '}'"},
		{"missing colon", "uniform x float;", "expected ':'"},
		{"for without from", "fn f() { for i 0 to 1 { } }", "expected 'from'"},
		{"statement at top level", "let x = 1;", "expected declaration"},
		{"unclosed block", "fn f() { let x = 1;", "expected '}'"},
		{"bad type", "fn f(a: 1) { }", "expected type"},
		{"dangling operator", "fn f() { return 1 + ; }", "expected expression"},
		{"int literal too large", "fn f() -> int { return 2147483648; }", "integer literal 2147483648 out of range"},
		{"negated int literal too large", "fn f() -> int { return -(2147483648); }", "integer literal 2147483648 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFragments([]string{tt.source})
			if err == nil {
				t.Fatalf("parse of %q succeeded, want error", tt.source)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if !strings.Contains(perr.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", perr.Message, tt.message)
			}
		})
	}
}

func TestParseErrorSpan(t *testing.T) {
	_, err := ParseFragments([]string{"fn f() { return 1.0 }"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if want := (Span{Start: 20, End: 21}); perr.Span != want {
		t.Errorf("span = %v, want %v", perr.Span, want)
	}
}

func TestParseMinInt(t *testing.T) {
	source := "fn f() -> int { return -2147483648; }"
	fn := parseSource(t, source).Fns[0]
	lit, ok := returnExpr(t, fn).(*LitExpr)
	if !ok {
		t.Fatalf("return value = %T, want *LitExpr", returnExpr(t, fn))
	}
	if want := (Lit{Kind: LitInt, Int: -2147483648}); lit.Lit != want {
		t.Errorf("lit = %+v, want %+v", lit.Lit, want)
	}
	start := strings.Index(source, "-2147483648")
	if want := (Span{Start: start, End: start + len("-2147483648")}); lit.Span != want {
		t.Errorf("span = %v, want %v", lit.Span, want)
	}

	fn = parseSource(t, "fn f() -> int { return -2147483647; }").Fns[0]
	if _, ok := returnExpr(t, fn).(*UnaryExpr); !ok {
		t.Errorf("-2147483647 parsed as %T, want *UnaryExpr", returnExpr(t, fn))
	}
}
