package lang

import (
	"math"
	"slices"
)

// Parser parses a token stream into a ShaderAst. It stops at the first
// error; there is no recovery and no partial AST.
type Parser struct {
	tokens  []Token
	current int
	nextID  NodeID
}

// NewParser creates a new parser for the given tokens. The stream must end
// with an EOF token.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEOF {
		tokens = append(slices.Clip(tokens), Token{Kind: TokenEOF})
	}
	return &Parser{tokens: tokens}
}

// Parse parses tokens into a ShaderAst.
func Parse(tokens []Token) (*ShaderAst, error) {
	ast, err := NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}
	return ast, nil
}

// ParseFragments lexes and parses several fragments as one shader. Spans
// refer to fragments by their index in codes.
func ParseFragments(codes []string) (*ShaderAst, error) {
	tokens, err := LexFragments(codes)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse parses the whole token stream.
func (p *Parser) Parse() (*ShaderAst, *ParseError) {
	ast := &ShaderAst{}
	for !p.isAtEnd() {
		decl, err := p.declaration()
		if err != nil {
			return nil, err
		}
		ast.Decls = append(ast.Decls, decl)
		switch d := decl.(type) {
		case *StructDecl:
			ast.Structs = append(ast.Structs, d)
		case *FnDecl:
			ast.Fns = append(ast.Fns, d)
		case *VarDecl:
			ast.Vars = append(ast.Vars, d)
		case *ConstDecl:
			ast.Consts = append(ast.Consts, d)
		}
	}
	ast.NumNodes = int(p.nextID)
	return ast, nil
}

// declaration parses a top-level declaration.
func (p *Parser) declaration() (Decl, *ParseError) {
	switch p.peek().Kind {
	case TokenStruct:
		return p.structDecl()
	case TokenFn:
		return p.fnDecl()
	case TokenConst:
		return p.constDecl()
	case TokenInstance, TokenUniform, TokenVarying, TokenGeometry, TokenTexture:
		return p.varDecl()
	}
	return nil, p.unexpected("declaration")
}

func (p *Parser) structDecl() (*StructDecl, *ParseError) {
	start := p.advance().Span
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	decl := &StructDecl{Name: name}
	for !p.check(TokenRightBrace) {
		fieldStart := p.peek().Span
		fieldName, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenColon); err != nil {
			return nil, err
		}
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, &Field{Name: fieldName, Type: ty, Span: fieldStart.Join(ty.Pos())})
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	decl.Span = start.Join(p.previous().Span)
	return decl, nil
}

func (p *Parser) fnDecl() (*FnDecl, *ParseError) {
	start := p.advance().Span
	path, err := p.identPath()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	decl := &FnDecl{Path: path}
	for !p.check(TokenRightParen) {
		param, err := p.param()
		if err != nil {
			return nil, err
		}
		decl.Params = append(decl.Params, param)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	if p.match(TokenArrow) {
		if decl.Return, err = p.typeExpr(); err != nil {
			return nil, err
		}
	}
	if decl.Body, err = p.block(); err != nil {
		return nil, err
	}
	decl.Span = start.Join(decl.Body.Span)
	return decl, nil
}

func (p *Parser) param() (*Param, *ParseError) {
	start := p.peek().Span
	inout := p.match(TokenInout)
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	ty, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	return &Param{Name: name, Type: ty, Inout: inout, Span: start.Join(ty.Pos())}, nil
}

var storageOf = map[TokenKind]Storage{
	TokenInstance: StorageInstance,
	TokenUniform:  StorageUniform,
	TokenVarying:  StorageVarying,
	TokenGeometry: StorageGeometry,
	TokenTexture:  StorageTexture,
}

// varDecl parses `uniform name: type (in block)? (= init)?;` and the other
// storage classes. Which clauses are legal per class is decided by analysis.
func (p *Parser) varDecl() (*VarDecl, *ParseError) {
	kw := p.advance()
	decl := &VarDecl{Storage: storageOf[kw.Kind]}
	var err *ParseError
	if decl.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	if decl.Type, err = p.typeExpr(); err != nil {
		return nil, err
	}
	if p.matchWord("in") {
		if decl.Block, err = p.ident(); err != nil {
			return nil, err
		}
	}
	if p.match(TokenEqual) {
		if decl.Init, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	decl.Span = kw.Span.Join(p.previous().Span)
	return decl, nil
}

func (p *Parser) constDecl() (*ConstDecl, *ParseError) {
	start := p.advance().Span
	decl := &ConstDecl{}
	var err *ParseError
	if decl.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	if decl.Type, err = p.typeExpr(); err != nil {
		return nil, err
	}
	if p.match(TokenEqual) {
		if decl.Init, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	decl.Span = start.Join(p.previous().Span)
	return decl, nil
}

// typeExpr parses vec4, a struct name or [T; N].
func (p *Parser) typeExpr() (TypeExpr, *ParseError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenTyLit:
		p.advance()
		return &TyLitType{Lit: tok.TyLit, Span: tok.Span}, nil
	case TokenIdent:
		p.advance()
		return &NamedType{Name: NewIdent(tok.Text), Span: tok.Span}, nil
	case TokenLeftBracket:
		p.advance()
		elem, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		n, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightBracket); err != nil {
			return nil, err
		}
		return &ArrayType{Elem: elem, Len: n, Span: tok.Span.Join(p.previous().Span)}, nil
	}
	return nil, p.unexpected("type")
}

// Statements

func (p *Parser) block() (*BlockStmt, *ParseError) {
	start := p.peek().Span
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	b := &BlockStmt{}
	for !p.check(TokenRightBrace) {
		if p.isAtEnd() {
			return nil, p.unexpected("'}'")
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	p.advance()
	b.Span = start.Join(p.previous().Span)
	return b, nil
}

func (p *Parser) statement() (Stmt, *ParseError) {
	switch p.peek().Kind {
	case TokenLet:
		return p.letStmt()
	case TokenIf:
		return p.ifStmt()
	case TokenFor:
		return p.forStmt()
	case TokenBreak:
		tok := p.advance()
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		return &BreakStmt{Span: tok.Span.Join(p.previous().Span)}, nil
	case TokenContinue:
		tok := p.advance()
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		return &ContinueStmt{Span: tok.Span.Join(p.previous().Span)}, nil
	case TokenReturn:
		return p.returnStmt()
	case TokenLeftBrace:
		return p.block()
	}
	return p.exprOrAssignStmt()
}

func (p *Parser) letStmt() (*LetStmt, *ParseError) {
	start := p.advance().Span
	stmt := &LetStmt{}
	var err *ParseError
	if stmt.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if p.match(TokenColon) {
		if stmt.Type, err = p.typeExpr(); err != nil {
			return nil, err
		}
	}
	if p.match(TokenEqual) {
		if stmt.Init, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	stmt.Span = start.Join(p.previous().Span)
	return stmt, nil
}

func (p *Parser) ifStmt() (*IfStmt, *ParseError) {
	start := p.advance().Span
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then, Span: start.Join(then.Span)}
	if p.match(TokenElse) {
		if p.check(TokenIf) {
			stmt.Else, err = p.ifStmt()
		} else {
			stmt.Else, err = p.block()
		}
		if err != nil {
			return nil, err
		}
		stmt.Span = stmt.Span.Join(stmt.Else.Pos())
	}
	return stmt, nil
}

// forStmt parses `for i from a to b step s { ... }`.
func (p *Parser) forStmt() (*ForStmt, *ParseError) {
	start := p.advance().Span
	stmt := &ForStmt{}
	var err *ParseError
	if stmt.Var, err = p.ident(); err != nil {
		return nil, err
	}
	if err := p.expectWord("from"); err != nil {
		return nil, err
	}
	if stmt.From, err = p.expression(); err != nil {
		return nil, err
	}
	if err := p.expectWord("to"); err != nil {
		return nil, err
	}
	if stmt.To, err = p.expression(); err != nil {
		return nil, err
	}
	if p.matchWord("step") {
		if stmt.Step, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if stmt.Body, err = p.block(); err != nil {
		return nil, err
	}
	stmt.Span = start.Join(stmt.Body.Span)
	return stmt, nil
}

func (p *Parser) returnStmt() (*ReturnStmt, *ParseError) {
	start := p.advance().Span
	stmt := &ReturnStmt{}
	if !p.check(TokenSemicolon) {
		var err *ParseError
		if stmt.Value, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	stmt.Span = start.Join(p.previous().Span)
	return stmt, nil
}

func (p *Parser) exprOrAssignStmt() (Stmt, *ParseError) {
	left, err := p.expression()
	if err != nil {
		return nil, err
	}
	if isAssignOp(p.peek().Kind) {
		op := p.advance()
		right, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		return &AssignStmt{Left: left, Op: op.Kind, Right: right, Span: left.Pos().Join(p.previous().Span)}, nil
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: left, Span: left.Pos().Join(p.previous().Span)}, nil
}

// Expressions

func (p *Parser) expression() (Expr, *ParseError) {
	return p.conditional()
}

// conditional parses cond ? a : b, right-associative.
func (p *Parser) conditional() (Expr, *ParseError) {
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if !p.match(TokenQuestion) {
		return cond, nil
	}
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	els, err := p.conditional()
	if err != nil {
		return nil, err
	}
	return &CondExpr{ExprNode: p.node(cond.Pos().Join(els.Pos())), Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) logicalOr() (Expr, *ParseError) {
	return p.binary(p.logicalAnd, TokenPipePipe)
}

func (p *Parser) logicalAnd() (Expr, *ParseError) {
	return p.binary(p.equality, TokenAmpAmp)
}

func (p *Parser) equality() (Expr, *ParseError) {
	return p.binary(p.comparison, TokenEqualEqual, TokenBangEqual)
}

func (p *Parser) comparison() (Expr, *ParseError) {
	return p.binary(p.additive, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual)
}

func (p *Parser) additive() (Expr, *ParseError) {
	return p.binary(p.multiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) multiplicative() (Expr, *ParseError) {
	return p.binary(p.unary, TokenStar, TokenSlash)
}

// binary parses one left-associative precedence level.
func (p *Parser) binary(next func() (Expr, *ParseError), ops ...TokenKind) (Expr, *ParseError) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for slices.Contains(ops, p.peek().Kind) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			ExprNode: p.node(left.Pos().Join(right.Pos())),
			Op:       op.Kind,
			Left:     left,
			Right:    right,
		}
	}
	return left, nil
}

func (p *Parser) unary() (Expr, *ParseError) {
	if p.check(TokenMinus) || p.check(TokenBang) {
		op := p.advance()
		if lit := p.peek(); op.Kind == TokenMinus && lit.Kind == TokenIntLiteral && lit.Lit.Int == -math.MinInt32 {
			p.advance()
			return &LitExpr{ExprNode: p.node(op.Span.Join(lit.Span)), Lit: Lit{Kind: LitInt, Int: math.MinInt32}}, nil
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{ExprNode: p.node(op.Span.Join(operand.Pos())), Op: op.Kind, Operand: operand}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, *ParseError) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match(TokenDot):
			member, err := p.ident()
			if err != nil {
				return nil, err
			}
			if p.check(TokenLeftParen) {
				args, err := p.arguments()
				if err != nil {
					return nil, err
				}
				expr = &MethodCallExpr{
					ExprNode: p.node(expr.Pos().Join(p.previous().Span)),
					Receiver: expr,
					Method:   member,
					Args:     args,
				}
				continue
			}
			expr = &MemberExpr{ExprNode: p.node(expr.Pos().Join(p.previous().Span)), Expr: expr, Member: member}
		case p.match(TokenLeftBracket):
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectErr(TokenRightBracket); err != nil {
				return nil, err
			}
			expr = &IndexExpr{ExprNode: p.node(expr.Pos().Join(p.previous().Span)), Expr: expr, Index: index}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) primary() (Expr, *ParseError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenIntLiteral, TokenFloatLiteral, TokenBoolLiteral:
		if tok.Kind == TokenIntLiteral && tok.Lit.Int > math.MaxInt32 {
			return nil, Errorf(tok.Span, "integer literal %s out of range", tok.Text)
		}
		p.advance()
		return &LitExpr{ExprNode: p.node(tok.Span), Lit: tok.Lit}, nil

	case TokenTyLit:
		p.advance()
		if !p.check(TokenLeftParen) {
			return nil, p.unexpected("'(' after type name")
		}
		args, err := p.arguments()
		if err != nil {
			return nil, err
		}
		return &ConsCallExpr{ExprNode: p.node(tok.Span.Join(p.previous().Span)), Ty: tok.TyLit, Args: args}, nil

	case TokenIdent:
		path, err := p.identPath()
		if err != nil {
			return nil, err
		}
		if p.check(TokenLeftParen) {
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			return &CallExpr{ExprNode: p.node(tok.Span.Join(p.previous().Span)), Callee: path, Args: args}, nil
		}
		if path.IsQualified() {
			return nil, p.unexpected("'(' after path")
		}
		return &VarExpr{ExprNode: p.node(tok.Span), Name: path.Name}, nil

	case TokenLeftParen:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, p.unexpected("expression")
}

// arguments parses a parenthesized, comma-separated argument list.
func (p *Parser) arguments() ([]Expr, *ParseError) {
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	var args []Expr
	for !p.check(TokenRightParen) {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) identPath() (IdentPath, *ParseError) {
	first, err := p.ident()
	if err != nil {
		return IdentPath{}, err
	}
	if !p.match(TokenColonColon) {
		return PathOf(first), nil
	}
	second, err := p.ident()
	if err != nil {
		return IdentPath{}, err
	}
	return IdentPath{Qualifier: first, Name: second}, nil
}

func (p *Parser) ident() (Ident, *ParseError) {
	if !p.check(TokenIdent) {
		return Ident{}, p.unexpected("identifier")
	}
	return NewIdent(p.advance().Text), nil
}

// node allocates the next expression NodeID.
func (p *Parser) node(span Span) ExprNode {
	id := p.nextID
	p.nextID++
	return ExprNode{ID: id, Span: span}
}

// Helper methods

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

// matchWord consumes a contextual keyword such as "from" or "step".
func (p *Parser) matchWord(word string) bool {
	if tok := p.peek(); tok.Kind == TokenIdent && tok.Text == word {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectWord(word string) *ParseError {
	if p.matchWord(word) {
		return nil
	}
	return p.unexpected("'" + word + "'")
}

func (p *Parser) expectErr(kind TokenKind) *ParseError {
	if p.check(kind) {
		p.advance()
		return nil
	}
	return p.unexpected("'" + kind.String() + "'")
}

func (p *Parser) unexpected(want string) *ParseError {
	tok := p.peek()
	return Errorf(tok.Span, "expected %s, got %s", want, tok)
}

func isAssignOp(kind TokenKind) bool {
	switch kind {
	case TokenEqual, TokenPlusEqual, TokenMinusEqual, TokenStarEqual, TokenSlashEqual:
		return true
	}
	return false
}
