package lang

import (
	"iter"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer tokenizes one code fragment.
type Lexer struct {
	source   string
	fragment int
	pos      int
	start    int
}

// NewLexer creates a new lexer for the given fragment text.
func NewLexer(source string, fragment int) *Lexer {
	return &Lexer{
		source:   source,
		fragment: fragment,
	}
}

// Lex returns the lazy token sequence of one fragment. The sequence ends
// after the EOF token or after the first error.
func Lex(source string, fragment int) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := NewLexer(source, fragment)
		for {
			tok, err := l.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) || tok.Kind == TokenEOF {
				return
			}
		}
	}
}

// Tokenize returns all tokens of one fragment, ending with EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	// Estimate ~1 token per 5 characters of source.
	tokens := make([]Token, 0, len(l.source)/5+1)
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

// LexFragments lexes several fragments into one stream. Only the last
// fragment's EOF token is kept.
func LexFragments(codes []string) ([]Token, error) {
	var tokens []Token
	for id, code := range codes {
		for tok, err := range Lex(code, id) {
			if err != nil {
				return nil, err
			}
			if tok.Kind == TokenEOF && id != len(codes)-1 {
				continue
			}
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		tokens = append(tokens, Token{Kind: TokenEOF})
	}
	return tokens, nil
}

// Next returns the next token. After EOF it keeps returning EOF.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	l.start = l.pos
	if l.isAtEnd() {
		return l.token(TokenEOF), nil
	}

	r := l.advance()
	switch r {
	case '(':
		return l.token(TokenLeftParen), nil
	case ')':
		return l.token(TokenRightParen), nil
	case '{':
		return l.token(TokenLeftBrace), nil
	case '}':
		return l.token(TokenRightBrace), nil
	case '[':
		return l.token(TokenLeftBracket), nil
	case ']':
		return l.token(TokenRightBracket), nil
	case ',':
		return l.token(TokenComma), nil
	case ';':
		return l.token(TokenSemicolon), nil
	case '?':
		return l.token(TokenQuestion), nil
	case '.':
		if isDigit(l.peek()) {
			return l.number()
		}
		return l.token(TokenDot), nil
	case ':':
		if l.match(':') {
			return l.token(TokenColonColon), nil
		}
		return l.token(TokenColon), nil
	case '+':
		if l.match('=') {
			return l.token(TokenPlusEqual), nil
		}
		return l.token(TokenPlus), nil
	case '-':
		if l.match('=') {
			return l.token(TokenMinusEqual), nil
		}
		if l.match('>') {
			return l.token(TokenArrow), nil
		}
		return l.token(TokenMinus), nil
	case '*':
		if l.match('=') {
			return l.token(TokenStarEqual), nil
		}
		return l.token(TokenStar), nil
	case '/':
		if l.match('=') {
			return l.token(TokenSlashEqual), nil
		}
		return l.token(TokenSlash), nil
	case '=':
		if l.match('=') {
			return l.token(TokenEqualEqual), nil
		}
		if l.match('>') {
			return l.token(TokenFatArrow), nil
		}
		return l.token(TokenEqual), nil
	case '!':
		if l.match('=') {
			return l.token(TokenBangEqual), nil
		}
		return l.token(TokenBang), nil
	case '<':
		if l.match('=') {
			return l.token(TokenLessEqual), nil
		}
		return l.token(TokenLess), nil
	case '>':
		if l.match('=') {
			return l.token(TokenGreaterEqual), nil
		}
		return l.token(TokenGreater), nil
	case '&':
		if l.match('&') {
			return l.token(TokenAmpAmp), nil
		}
	case '|':
		if l.match('|') {
			return l.token(TokenPipePipe), nil
		}
	case '"':
		return l.string()
	default:
		if isDigit(r) {
			return l.number()
		}
		if isAlpha(r) || r == '_' {
			return l.identifier(), nil
		}
	}
	return Token{}, Errorf(l.span(), "unexpected character %q", l.source[l.start:l.pos])
}

// skipTrivia skips whitespace and comments.
func (l *Lexer) skipTrivia() error {
	for !l.isAtEnd() {
		switch r := l.peek(); {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '/' && l.peekNext() == '/':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekNext() == '*':
			if err := l.blockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) blockComment() error {
	start := l.pos
	l.advance()
	l.advance()
	depth := 1
	for depth > 0 {
		if l.isAtEnd() {
			return Errorf(Span{Fragment: l.fragment, Start: start, End: start + 2}, "unterminated block comment")
		}
		switch {
		case l.peek() == '/' && l.peekNext() == '*':
			l.advance()
			l.advance()
			depth++
		case l.peek() == '*' && l.peekNext() == '/':
			l.advance()
			l.advance()
			depth--
		default:
			l.advance()
		}
	}
	return nil
}

// number scans an int or float literal. The first character (a digit or a
// leading '.') has already been consumed.
func (l *Lexer) number() (Token, error) {
	isFloat := l.source[l.start] == '.'
	for isDigit(l.peek()) {
		l.advance()
	}

	// "1." is a float; "1.x" is int 1 followed by member access.
	if !isFloat && l.peek() == '.' && !isAlpha(l.peekNext()) && l.peekNext() != '_' && l.peekNext() != '.' {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !isDigit(l.peek()) {
			return Token{}, Errorf(l.span(), "malformed number %q: missing exponent digits", l.source[l.start:l.pos])
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	text := l.source[l.start:l.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.Abs(f) > math.MaxFloat32 {
			return Token{}, Errorf(l.span(), "float literal %q out of range", text)
		}
		tok := l.token(TokenFloatLiteral)
		tok.Lit = Lit{Kind: LitFloat, Float: f}
		return tok, nil
	}

	// 2147483648 is accepted here so that the parser can negate it.
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil || i > -math.MinInt32 {
		return Token{}, Errorf(l.span(), "integer literal %q out of range", text)
	}
	tok := l.token(TokenIntLiteral)
	tok.Lit = Lit{Kind: LitInt, Int: i}
	return tok, nil
}

func (l *Lexer) string() (Token, error) {
	var sb strings.Builder
	for {
		if l.isAtEnd() || l.peek() == '\n' {
			return Token{}, Errorf(l.span(), "unterminated string")
		}
		r := l.advance()
		if r == '"' {
			break
		}
		if r == '\\' && (l.peek() == '"' || l.peek() == '\\') {
			r = l.advance()
		}
		sb.WriteRune(r)
	}
	tok := l.token(TokenStringLiteral)
	tok.Text = sb.String()
	return tok, nil
}

func (l *Lexer) identifier() Token {
	for isAlphaNumeric(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	text := l.source[l.start:l.pos]
	if kind, ok := keywords[text]; ok {
		return l.token(kind)
	}
	if text == "true" || text == "false" {
		tok := l.token(TokenBoolLiteral)
		tok.Lit = Lit{Kind: LitBool, Bool: text == "true"}
		return tok
	}
	if lit, ok := LookupTyLit(text); ok {
		tok := l.token(TokenTyLit)
		tok.TyLit = lit
		return tok
	}
	return l.token(TokenIdent)
}

func (l *Lexer) token(kind TokenKind) Token {
	return Token{
		Kind: kind,
		Text: l.source[l.start:l.pos],
		Span: l.span(),
	}
}

func (l *Lexer) span() Span {
	return Span{Fragment: l.fragment, Start: l.start, End: l.pos}
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.source[l.pos:])
	r, _ := utf8.DecodeRuneInString(l.source[l.pos+size:])
	return r
}

func (l *Lexer) match(expected rune) bool {
	if l.peek() != expected || l.isAtEnd() {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlpha(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func isAlphaNumeric(r rune) bool {
	return isAlpha(r) || isDigit(r)
}
