package datasource

import (
	"context"
	"errors"

	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/grammar"
	"github.com/nlstn/go-datasource/internal/hierarchy"
	"github.com/nlstn/go-datasource/internal/member"
)

// Sentinel errors for the failure classes of a request.
// These can be used with errors.Is() for error handling.
var (
	// ErrGrammar indicates filter text that does not follow the grammar.
	ErrGrammar = grammar.ErrGrammar

	// ErrInvalidMember indicates a member path that does not exist on the item shape.
	ErrInvalidMember = member.ErrInvalidMember

	// ErrIncompatibleOperands indicates an operator applied to operands of
	// types it cannot compare.
	ErrIncompatibleOperands = compile.ErrIncompatibleOperands

	// ErrTypeCoercion indicates a literal that cannot be converted to the member type.
	ErrTypeCoercion = expr.ErrTypeCoercion

	// ErrUnknownAggregate indicates an aggregate kind that is not registered.
	ErrUnknownAggregate = aggregate.ErrUnknownFunction

	// ErrUnsupportedAggregate indicates an aggregate over a field type it cannot handle.
	ErrUnsupportedAggregate = aggregate.ErrUnsupportedField

	// ErrHierarchyDepthExceeded indicates a tree closure that did not settle
	// within the configured depth.
	ErrHierarchyDepthExceeded = hierarchy.ErrHierarchyDepthExceeded
)

// Typed errors carrying the details of a failure.
type (
	GrammarError              = grammar.GrammarError
	InvalidMemberError        = member.InvalidMemberError
	IncompatibleOperandsError = compile.IncompatibleOperandsError
	TypeCoercionError         = expr.TypeCoercionError
)

// Error kinds reported by ErrorKind.
const (
	// KindValidation is a request the caller can correct.
	KindValidation = "validation"
	// KindConfiguration is a mismatch between the request and the item shape
	// or processor setup.
	KindConfiguration = "configuration"
	// KindCanceled is a request whose context ended.
	KindCanceled = "canceled"
	// KindInternal is any other failure, typically from the source.
	KindInternal = "internal"
)

// ErrorKind classifies err for logging and metrics.
//
// Example usage:
//
//	if datasource.ErrorKind(err) == datasource.KindValidation {
//	    w.WriteHeader(http.StatusBadRequest)
//	}
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGrammar),
		errors.Is(err, ErrIncompatibleOperands),
		errors.Is(err, ErrTypeCoercion),
		errors.Is(err, ErrUnknownAggregate),
		errors.Is(err, ErrUnsupportedAggregate):
		return KindValidation
	case errors.Is(err, ErrInvalidMember),
		errors.Is(err, ErrHierarchyDepthExceeded),
		errors.Is(err, hierarchy.ErrMissingSelector):
		return KindConfiguration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}
