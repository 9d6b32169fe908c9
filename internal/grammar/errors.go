package grammar

import (
	"errors"
	"fmt"
)

// ErrGrammar is matched by every GrammarError.
var ErrGrammar = errors.New("grammar error")

// GrammarError reports malformed filter text.
type GrammarError struct {
	Message string
	Pos     int
	Token   string
}

func (e *GrammarError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("filter grammar error at position %d near %q: %s", e.Pos, e.Token, e.Message)
	}
	return fmt.Sprintf("filter grammar error at position %d: %s", e.Pos, e.Message)
}

// Is reports whether target is ErrGrammar.
func (e *GrammarError) Is(target error) bool {
	return target == ErrGrammar
}

func newGrammarError(pos int, token, format string, args ...any) *GrammarError {
	return &GrammarError{
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
		Token:   token,
	}
}
