// Package lang provides lexing and parsing for the shade shading language.
package lang

import (
	"fmt"
	"unique"
)

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota

	// Literals
	TokenIdent
	TokenIntLiteral
	TokenFloatLiteral
	TokenBoolLiteral
	TokenStringLiteral
	TokenTyLit

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenBang         // !
	TokenEqual        // =
	TokenLess         // <
	TokenGreater      // >
	TokenDot          // .
	TokenComma        // ,
	TokenColon        // :
	TokenSemicolon    // ;
	TokenQuestion     // ?
	TokenArrow        // ->
	TokenFatArrow     // =>
	TokenColonColon   // ::
	TokenEqualEqual   // ==
	TokenBangEqual    // !=
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenAmpAmp       // &&
	TokenPipePipe     // ||
	TokenPlusEqual    // +=
	TokenMinusEqual   // -=
	TokenStarEqual    // *=
	TokenSlashEqual   // /=

	// Delimiters
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBrace    // {
	TokenRightBrace   // }
	TokenLeftBracket  // [
	TokenRightBracket // ]

	// Keywords
	TokenFn
	TokenLet
	TokenIf
	TokenElse
	TokenFor
	TokenBreak
	TokenContinue
	TokenReturn
	TokenStruct
	TokenConst
	TokenInout
	TokenInstance
	TokenUniform
	TokenVarying
	TokenGeometry
	TokenTexture
)

var tokenNames = [...]string{
	TokenEOF:           "end of input",
	TokenIdent:         "identifier",
	TokenIntLiteral:    "integer literal",
	TokenFloatLiteral:  "float literal",
	TokenBoolLiteral:   "bool literal",
	TokenStringLiteral: "string literal",
	TokenTyLit:         "type name",
	TokenPlus:          "+",
	TokenMinus:         "-",
	TokenStar:          "*",
	TokenSlash:         "/",
	TokenBang:          "!",
	TokenEqual:         "=",
	TokenLess:          "<",
	TokenGreater:       ">",
	TokenDot:           ".",
	TokenComma:         ",",
	TokenColon:         ":",
	TokenSemicolon:     ";",
	TokenQuestion:      "?",
	TokenArrow:         "->",
	TokenFatArrow:      "=>",
	TokenColonColon:    "::",
	TokenEqualEqual:    "==",
	TokenBangEqual:     "!=",
	TokenLessEqual:     "<=",
	TokenGreaterEqual:  ">=",
	TokenAmpAmp:        "&&",
	TokenPipePipe:      "||",
	TokenPlusEqual:     "+=",
	TokenMinusEqual:    "-=",
	TokenStarEqual:     "*=",
	TokenSlashEqual:    "/=",
	TokenLeftParen:     "(",
	TokenRightParen:    ")",
	TokenLeftBrace:     "{",
	TokenRightBrace:    "}",
	TokenLeftBracket:   "[",
	TokenRightBracket:  "]",
	TokenFn:            "fn",
	TokenLet:           "let",
	TokenIf:            "if",
	TokenElse:          "else",
	TokenFor:           "for",
	TokenBreak:         "break",
	TokenContinue:      "continue",
	TokenReturn:        "return",
	TokenStruct:        "struct",
	TokenConst:         "const",
	TokenInout:         "inout",
	TokenInstance:      "instance",
	TokenUniform:       "uniform",
	TokenVarying:       "varying",
	TokenGeometry:      "geometry",
	TokenTexture:       "texture",
}

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) && tokenNames[k] != "" {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", k)
}

var keywords = map[string]TokenKind{
	"fn":       TokenFn,
	"let":      TokenLet,
	"if":       TokenIf,
	"else":     TokenElse,
	"for":      TokenFor,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"return":   TokenReturn,
	"struct":   TokenStruct,
	"const":    TokenConst,
	"inout":    TokenInout,
	"instance": TokenInstance,
	"uniform":  TokenUniform,
	"varying":  TokenVarying,
	"geometry": TokenGeometry,
	"texture":  TokenTexture,
}

// Span is a half-open byte range [Start, End) inside one code fragment.
type Span struct {
	Fragment int
	Start    int
	End      int
}

// Join returns the smallest span covering both s and o. Spans from
// different fragments keep s.
func (s Span) Join(o Span) Span {
	if s.Fragment != o.Fragment {
		return s
	}
	if o.Start < s.Start {
		s.Start = o.Start
	}
	if o.End > s.End {
		s.End = o.End
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("%d:[%d,%d)", s.Fragment, s.Start, s.End)
}

// Token represents a lexical token.
type Token struct {
	Kind  TokenKind
	Text  string // source text, unquoted for strings
	Lit   Lit    // set for literal tokens
	TyLit TyLit  // set for TokenTyLit
	Span  Span
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent, TokenIntLiteral, TokenFloatLiteral, TokenBoolLiteral, TokenTyLit:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	case TokenStringLiteral:
		return fmt.Sprintf("string %q", t.Text)
	}
	return fmt.Sprintf("'%s'", t.Kind)
}

// Ident is an interned identifier. The zero Ident is the empty name.
type Ident struct {
	h unique.Handle[string]
}

// NewIdent interns name.
func NewIdent(name string) Ident {
	return Ident{h: unique.Make(name)}
}

// IsZero reports whether i is the empty identifier.
func (i Ident) IsZero() bool {
	return i == Ident{}
}

func (i Ident) String() string {
	if i.IsZero() {
		return ""
	}
	return i.h.Value()
}

// IdentPath is a one- or two-segment path: `name` or `Type::name`.
type IdentPath struct {
	Qualifier Ident // zero for single-segment paths
	Name      Ident
}

// PathOf builds a single-segment path.
func PathOf(name Ident) IdentPath {
	return IdentPath{Name: name}
}

// IsQualified reports whether the path has two segments.
func (p IdentPath) IsQualified() bool {
	return !p.Qualifier.IsZero()
}

func (p IdentPath) String() string {
	if p.IsQualified() {
		return p.Qualifier.String() + "::" + p.Name.String()
	}
	return p.Name.String()
}
