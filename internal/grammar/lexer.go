package grammar

import (
	"strings"
	"unicode"

	"github.com/nlstn/go-datasource/internal/descriptor"
)

// Lexer tokenizes filter grammar text
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer over input. Token positions are byte offsets into input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Lex tokenizes input in one call
func Lex(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

// skipSeparators skips the separator character and whitespace
func (l *Lexer) skipSeparators() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch != descriptor.Separator[0] && ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			return
		}
		l.pos++
	}
}

// Tokenize returns every token of the input
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		l.skipSeparators()
		if l.pos >= len(l.input) {
			return tokens, nil
		}

		token, ok, err := l.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newGrammarError(l.pos, string(l.peek()), "ungrammatical token")
		}
		tokens = append(tokens, token)
	}
}

// next tries each recognizer in priority order
func (l *Lexer) next() (Token, bool, error) {
	if token, ok, err := l.tryIdentifier(); ok || err != nil {
		return token, ok, err
	}
	if token, ok, err := l.tryNumber(); ok || err != nil {
		return token, ok, err
	}
	if token, ok, err := l.tryString(); ok || err != nil {
		return token, ok, err
	}
	return l.tryStructural()
}

func isIdentifierStart(ch byte) bool {
	return ch == '_' || (ch < 0x80 && unicode.IsLetter(rune(ch)))
}

func isIdentifierPart(ch byte) bool {
	return isIdentifierStart(ch) || (ch >= '0' && ch <= '9') || ch == '.'
}

// tryIdentifier reads a property, keyword or datetime literal
func (l *Lexer) tryIdentifier() (Token, bool, error) {
	if !isIdentifierStart(l.peek()) {
		return Token{}, false, nil
	}

	start := l.pos
	for l.pos < len(l.input) && isIdentifierPart(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]
	lower := strings.ToLower(text)

	if lower == "datetime" && l.peek() == '\'' {
		value, err := l.readQuoted()
		if err != nil {
			return Token{}, false, err
		}
		return Token{Kind: TokenDateTime, Text: value, Pos: start}, true, nil
	}

	if kind, ok := keywords[lower]; ok {
		return Token{Kind: kind, Text: lower, Pos: start}, true, nil
	}
	return Token{Kind: TokenProperty, Text: text, Pos: start}, true, nil
}

// tryNumber reads an optionally signed decimal number
func (l *Lexer) tryNumber() (Token, bool, error) {
	ch := l.peek()
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }
	if !isDigit(ch) && !(ch == '-' && (isDigit(l.peekAt(1)) || l.peekAt(1) == '.')) && !(ch == '.' && isDigit(l.peekAt(1))) {
		return Token{}, false, nil
	}

	start := l.pos
	if ch == '-' {
		l.pos++
	}
	dots := 0
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '.' {
			dots++
			if dots > 1 {
				return Token{}, false, newGrammarError(l.pos, l.input[start:l.pos+1], "multiple decimal points in number")
			}
		} else if !isDigit(c) {
			break
		}
		l.pos++
	}
	return Token{Kind: TokenNumber, Text: l.input[start:l.pos], Pos: start}, true, nil
}

// tryString reads a single-quoted string
func (l *Lexer) tryString() (Token, bool, error) {
	if l.peek() != '\'' {
		return Token{}, false, nil
	}
	start := l.pos
	value, err := l.readQuoted()
	if err != nil {
		return Token{}, false, err
	}
	return Token{Kind: TokenString, Text: value, Pos: start}, true, nil
}

// readQuoted consumes a quoted literal; a doubled quote is an escaped quote
func (l *Lexer) readQuoted() (string, error) {
	start := l.pos
	l.pos++ // opening quote

	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.peekAt(1) == '\'' {
				b.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return b.String(), nil
		}
		b.WriteByte(ch)
		l.pos++
	}
	return "", newGrammarError(len(l.input), l.input[start:], "unterminated string")
}

func (l *Lexer) tryStructural() (Token, bool, error) {
	var kind TokenKind
	switch l.peek() {
	case '(':
		kind = TokenLeftParen
	case ')':
		kind = TokenRightParen
	case ',':
		kind = TokenComma
	default:
		return Token{}, false, nil
	}
	token := Token{Kind: kind, Text: string(l.peek()), Pos: l.pos}
	l.pos++
	return token, true, nil
}
