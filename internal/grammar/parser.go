package grammar

import (
	"strconv"
	"time"

	"github.com/nlstn/go-datasource/internal/descriptor"
)

// Parser parses filter tokens into an AST
type Parser struct {
	tokens  []Token
	current int
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses text. Empty input yields a nil node and no error.
func Parse(text string) (Node, error) {
	tokens, err := Lex(text)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (Node, error) {
	if len(p.tokens) == 0 {
		return nil, nil
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if !p.atEnd() {
		tok := p.currentToken()
		return nil, newGrammarError(tok.Pos, tok.Text, "unexpected token after expression")
	}
	return node, nil
}

func (p *Parser) atEnd() bool {
	return p.current >= len(p.tokens)
}

func (p *Parser) currentToken() Token {
	if p.atEnd() {
		return Token{Pos: p.endPos()}
	}
	return p.tokens[p.current]
}

func (p *Parser) endPos() int {
	if len(p.tokens) == 0 {
		return 0
	}
	last := p.tokens[len(p.tokens)-1]
	return last.Pos + len(last.Text)
}

func (p *Parser) is(kind TokenKind) bool {
	return !p.atEnd() && p.tokens[p.current].Kind == kind
}

// expect checks the current token kind and advances
func (p *Parser) expect(kind TokenKind) (Token, error) {
	if !p.is(kind) {
		tok := p.currentToken()
		if p.atEnd() {
			return Token{}, newGrammarError(tok.Pos, "", "expected token %s, got end of input", kind)
		}
		return Token{}, newGrammarError(tok.Pos, tok.Text, "expected token %s, got %s", kind, tok.Kind)
	}
	tok := p.tokens[p.current]
	p.current++
	return tok, nil
}

// parseOr: andExpr ('or' orExpr | 'and' orExpr)?
// A trailing chain right-associates: a and b and c or d is (a and b) and (c or d).
func (p *Parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	switch {
	case p.is(TokenOr):
		p.current++
		second, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &OrNode{First: first, Second: second}, nil
	case p.is(TokenAnd):
		p.current++
		second, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &AndNode{First: first, Second: second}, nil
	}
	return first, nil
}

// parseAnd: comparisonExpr ('and' comparisonExpr)?
func (p *Parser) parseAnd() (Node, error) {
	first, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if p.is(TokenAnd) {
		p.current++
		second, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		return &AndNode{First: first, Second: second}, nil
	}
	return first, nil
}

// parseComparison: 'not' comparisonExpr | primary (comparisonOp primary | functionOp primary | unaryOp)?
func (p *Parser) parseComparison() (Node, error) {
	if p.is(TokenNot) {
		p.current++
		operand, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		return &NotNode{Operand: operand}, nil
	}

	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	switch {
	case p.is(TokenComparisonOperator):
		_, op, err := p.operator(TokenComparisonOperator)
		if err != nil {
			return nil, err
		}
		second, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &ComparisonNode{First: first, Operator: op, Second: second}, nil

	case p.is(TokenFunction):
		_, op, err := p.operator(TokenFunction)
		if err != nil {
			return nil, err
		}
		second, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &FunctionNode{Operator: op, Arguments: []Node{first, second}}, nil

	case p.is(TokenUnaryOperator):
		_, op, err := p.operator(TokenUnaryOperator)
		if err != nil {
			return nil, err
		}
		// An empty string placeholder may follow a unary operator.
		if p.is(TokenString) && p.currentToken().Text == "" {
			p.current++
		}
		return &ComparisonNode{First: first, Operator: op}, nil
	}
	return first, nil
}

func (p *Parser) operator(kind TokenKind) (Token, descriptor.FilterOperator, error) {
	tok, err := p.expect(kind)
	if err != nil {
		return Token{}, "", err
	}
	op, ok := descriptor.ParseFilterOperator(tok.Text)
	if !ok {
		return Token{}, "", newGrammarError(tok.Pos, tok.Text, "unknown operator")
	}
	return tok, op, nil
}

// parsePrimary: '(' expr ')' | functionCall | boolean | datetime | property | number | string
func (p *Parser) parsePrimary() (Node, error) {
	tok := p.currentToken()
	switch {
	case p.is(TokenLeftParen):
		return p.parseNested()
	case p.is(TokenFunction):
		return p.parseFunctionCall()
	case p.is(TokenBoolean):
		p.current++
		return &ConstantNode{Value: tok.Text == "true", Kind: ConstantBoolean}, nil
	case p.is(TokenDateTime):
		p.current++
		value, err := time.ParseInLocation(descriptor.DateTimeLayout, tok.Text, time.UTC)
		if err != nil {
			return nil, newGrammarError(tok.Pos, tok.Text, "invalid datetime, expected yyyy-MM-ddTHH-mm-ss")
		}
		return &ConstantNode{Value: value, Kind: ConstantDateTime}, nil
	case p.is(TokenProperty):
		p.current++
		return &PropertyNode{Name: tok.Text}, nil
	case p.is(TokenNumber):
		p.current++
		value, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, newGrammarError(tok.Pos, tok.Text, "invalid number")
		}
		return &ConstantNode{Value: value, Kind: ConstantNumber}, nil
	case p.is(TokenString):
		p.current++
		return &ConstantNode{Value: tok.Text, Kind: ConstantString}, nil
	}

	if p.atEnd() {
		return nil, newGrammarError(tok.Pos, "", "expected primary expression, got end of input")
	}
	return nil, newGrammarError(tok.Pos, tok.Text, "expected primary expression")
}

func (p *Parser) parseNested() (Node, error) {
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return node, nil
}

// parseFunctionCall: functionName '(' expr (',' expr)* ')'
func (p *Parser) parseFunctionCall() (Node, error) {
	_, op, err := p.operator(TokenFunction)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}

	fn := &FunctionNode{Operator: op}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		fn.Arguments = append(fn.Arguments, arg)
		if !p.is(TokenComma) {
			break
		}
		p.current++
	}

	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return fn, nil
}
