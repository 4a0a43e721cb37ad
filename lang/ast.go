package lang

// NodeID identifies an expression node. IDs are dense, assigned by the
// parser in source order, and index the analysis side tables.
type NodeID uint32

// ShaderAst is one parsed shader: the declarations of all its fragments in
// source order.
type ShaderAst struct {
	Decls   []Decl
	Structs []*StructDecl
	Fns     []*FnDecl
	Vars    []*VarDecl
	Consts  []*ConstDecl

	// NumNodes is the number of expression NodeIDs handed out.
	NumNodes int
}

// Node is the base interface for all AST nodes.
type Node interface {
	Pos() Span
}

// Decl is the interface for top-level declarations.
type Decl interface {
	Node
	declNode()
}

// Stmt is the interface for statements.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the interface for expressions.
type Expr interface {
	Node
	NodeID() NodeID
	exprNode()
}

// TypeExpr is a type as written in the source.
type TypeExpr interface {
	Node
	typeNode()
}

// StructDecl represents a struct declaration.
type StructDecl struct {
	Name   Ident
	Fields []*Field
	Span   Span
}

func (s *StructDecl) Pos() Span { return s.Span }
func (s *StructDecl) declNode() {}

// Field represents a struct field.
type Field struct {
	Name Ident
	Type TypeExpr
	Span Span
}

// FnDecl represents a function declaration. Methods are free functions
// whose path is qualified by the struct name (Rect::area).
type FnDecl struct {
	Path   IdentPath
	Params []*Param
	Return TypeExpr // nil for no return value
	Body   *BlockStmt
	Span   Span
}

func (f *FnDecl) Pos() Span { return f.Span }
func (f *FnDecl) declNode() {}

// Param represents a function parameter.
type Param struct {
	Name  Ident
	Type  TypeExpr
	Inout bool
	Span  Span
}

func (p *Param) Pos() Span { return p.Span }

// Storage is the storage class of a global variable.
type Storage uint8

const (
	StorageInstance Storage = iota
	StorageUniform
	StorageVarying
	StorageGeometry
	StorageTexture
)

func (s Storage) String() string {
	switch s {
	case StorageInstance:
		return "instance"
	case StorageUniform:
		return "uniform"
	case StorageVarying:
		return "varying"
	case StorageGeometry:
		return "geometry"
	case StorageTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// VarDecl represents an instance, uniform, varying, geometry or texture
// declaration.
type VarDecl struct {
	Storage Storage
	Name    Ident
	Type    TypeExpr
	Block   Ident // uniform block name ("in pass"), zero for the default block
	Init    Expr  // uniform default value, nil when absent
	Span    Span
}

func (v *VarDecl) Pos() Span { return v.Span }
func (v *VarDecl) declNode() {}

// ConstDecl represents a const declaration.
type ConstDecl struct {
	Name Ident
	Type TypeExpr
	Init Expr
	Span Span
}

func (c *ConstDecl) Pos() Span { return c.Span }
func (c *ConstDecl) declNode() {}

// Types

// TyLitType is a built-in type name (vec4, mat3, ...).
type TyLitType struct {
	Lit  TyLit
	Span Span
}

func (t *TyLitType) Pos() Span { return t.Span }
func (t *TyLitType) typeNode() {}

// NamedType is a reference to a struct type.
type NamedType struct {
	Name Ident
	Span Span
}

func (n *NamedType) Pos() Span { return n.Span }
func (n *NamedType) typeNode() {}

// ArrayType represents a fixed-size array type [elem; len].
type ArrayType struct {
	Elem TypeExpr
	Len  Expr
	Span Span
}

func (a *ArrayType) Pos() Span { return a.Span }
func (a *ArrayType) typeNode() {}

// Statements

// BlockStmt represents a block statement.
type BlockStmt struct {
	Stmts []Stmt
	Span  Span
}

func (b *BlockStmt) Pos() Span { return b.Span }
func (b *BlockStmt) stmtNode() {}

// LetStmt declares a local variable.
type LetStmt struct {
	Name Ident
	Type TypeExpr // nil when inferred
	Init Expr     // nil when zero-initialised
	Span Span
}

func (l *LetStmt) Pos() Span { return l.Span }
func (l *LetStmt) stmtNode() {}

// AssignStmt represents `=` and compound assignments.
type AssignStmt struct {
	Left  Expr
	Op    TokenKind // TokenEqual, TokenPlusEqual, ...
	Right Expr
	Span  Span
}

func (a *AssignStmt) Pos() Span { return a.Span }
func (a *AssignStmt) stmtNode() {}

// ExprStmt represents an expression statement.
type ExprStmt struct {
	Expr Expr
	Span Span
}

func (e *ExprStmt) Pos() Span { return e.Span }
func (e *ExprStmt) stmtNode() {}

// IfStmt represents an if statement.
type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else Stmt // nil, *BlockStmt or *IfStmt
	Span Span
}

func (i *IfStmt) Pos() Span { return i.Span }
func (i *IfStmt) stmtNode() {}

// ForStmt is a counted loop: for i from a to b step s { }.
type ForStmt struct {
	Var  Ident
	From Expr
	To   Expr
	Step Expr // nil means 1
	Body *BlockStmt
	Span Span
}

func (f *ForStmt) Pos() Span { return f.Span }
func (f *ForStmt) stmtNode() {}

// BreakStmt represents a break statement.
type BreakStmt struct {
	Span Span
}

func (b *BreakStmt) Pos() Span { return b.Span }
func (b *BreakStmt) stmtNode() {}

// ContinueStmt represents a continue statement.
type ContinueStmt struct {
	Span Span
}

func (c *ContinueStmt) Pos() Span { return c.Span }
func (c *ContinueStmt) stmtNode() {}

// ReturnStmt represents a return statement.
type ReturnStmt struct {
	Value Expr // nil for a bare return
	Span  Span
}

func (r *ReturnStmt) Pos() Span { return r.Span }
func (r *ReturnStmt) stmtNode() {}

// Expressions

// ExprNode holds the identity and location shared by every expression.
type ExprNode struct {
	ID   NodeID
	Span Span
}

func (e *ExprNode) Pos() Span      { return e.Span }
func (e *ExprNode) NodeID() NodeID { return e.ID }
func (e *ExprNode) exprNode()      {}

// LitExpr is a literal.
type LitExpr struct {
	ExprNode
	Lit Lit
}

// VarExpr is a reference to a local, parameter, global or const.
type VarExpr struct {
	ExprNode
	Name Ident
}

// MemberExpr is a struct field access or a vector swizzle.
type MemberExpr struct {
	ExprNode
	Expr   Expr
	Member Ident
}

// IndexExpr indexes a vector, matrix or array.
type IndexExpr struct {
	ExprNode
	Expr  Expr
	Index Expr
}

// CallExpr calls a user function, built-in or struct constructor by path.
type CallExpr struct {
	ExprNode
	Callee IdentPath
	Args   []Expr
}

// MethodCallExpr is recv.method(args). It resolves to the free function
// S::method(recv, args) where S is the struct type of recv.
type MethodCallExpr struct {
	ExprNode
	Receiver Expr
	Method   Ident
	Args     []Expr
}

// ConsCallExpr constructs a built-in type: vec3(1.0, 2.0, 3.0).
type ConsCallExpr struct {
	ExprNode
	Ty   TyLit
	Args []Expr
}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	ExprNode
	Op    TokenKind
	Left  Expr
	Right Expr
}

// UnaryExpr represents a unary expression.
type UnaryExpr struct {
	ExprNode
	Op      TokenKind
	Operand Expr
}

// CondExpr is the ternary cond ? then : else.
type CondExpr struct {
	ExprNode
	Cond Expr
	Then Expr
	Else Expr
}
