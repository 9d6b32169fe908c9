package member

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrInvalidMember is matched by every InvalidMemberError.
var ErrInvalidMember = errors.New("invalid member")

var (
	errEmptyPath        = errors.New("empty member path")
	errUnterminatedPath = errors.New("unterminated indexer")
)

// InvalidMemberError reports a member path that does not exist on the item shape.
type InvalidMemberError struct {
	Member     string
	Type       reflect.Type
	Suggestion string
	Err        error
}

func (e *InvalidMemberError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no member %q on type %s", e.Member, typeName(e.Type))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "; did you mean %q?", e.Suggestion)
	}
	return b.String()
}

// Is reports whether target is ErrInvalidMember.
func (e *InvalidMemberError) Is(target error) bool {
	return target == ErrInvalidMember
}

func (e *InvalidMemberError) Unwrap() error {
	return e.Err
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func invalidMember(name string, t reflect.Type, candidates []string) *InvalidMemberError {
	return &InvalidMemberError{
		Member:     name,
		Type:       t,
		Suggestion: suggest(name, candidates, 3),
	}
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = curr
	}
	return prev[lb]
}

// suggest returns the candidate closest to input within maxDist, ignoring case.
func suggest(input string, candidates []string, maxDist int) string {
	best := ""
	bestDist := maxDist + 1
	lower := strings.ToLower(input)
	for _, c := range candidates {
		if d := levenshtein(lower, strings.ToLower(c)); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
