package grammar

import "fmt"

// TokenKind represents the kind of a filter grammar token
type TokenKind int

const (
	TokenProperty TokenKind = iota
	TokenComparisonOperator
	TokenFunction
	TokenUnaryOperator
	TokenBoolean
	TokenNumber
	TokenString
	TokenDateTime
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenAnd
	TokenOr
	TokenNot
)

var tokenKindNames = [...]string{
	TokenProperty:           "Property",
	TokenComparisonOperator: "ComparisonOperator",
	TokenFunction:           "Function",
	TokenUnaryOperator:      "UnaryOperator",
	TokenBoolean:            "Boolean",
	TokenNumber:             "Number",
	TokenString:             "String",
	TokenDateTime:           "DateTime",
	TokenLeftParen:          "LeftParen",
	TokenRightParen:         "RightParen",
	TokenComma:              "Comma",
	TokenAnd:                "And",
	TokenOr:                 "Or",
	TokenNot:                "Not",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexeme. For strings and datetimes Text holds the
// unquoted content.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

func (t Token) String() string {
	return t.Kind.String() + "(" + t.Text + ")"
}

var keywords = map[string]TokenKind{
	"and":              TokenAnd,
	"or":               TokenOr,
	"not":              TokenNot,
	"true":             TokenBoolean,
	"false":            TokenBoolean,
	"eq":               TokenComparisonOperator,
	"ne":               TokenComparisonOperator,
	"neq":              TokenComparisonOperator,
	"lt":               TokenComparisonOperator,
	"le":               TokenComparisonOperator,
	"lte":              TokenComparisonOperator,
	"gt":               TokenComparisonOperator,
	"ge":               TokenComparisonOperator,
	"gte":              TokenComparisonOperator,
	"contains":         TokenFunction,
	"startswith":       TokenFunction,
	"endswith":         TokenFunction,
	"substringof":      TokenFunction,
	"notsubstringof":   TokenFunction,
	"doesnotcontain":   TokenFunction,
	"isnull":           TokenUnaryOperator,
	"isnotnull":        TokenUnaryOperator,
	"isempty":          TokenUnaryOperator,
	"isnotempty":       TokenUnaryOperator,
	"isnullorempty":    TokenUnaryOperator,
	"isnotnullorempty": TokenUnaryOperator,
}
