package descriptor

import "errors"

var (
	errInvalidSortToken      = errors.New("invalid sort token, expected 'member-asc' or 'member-desc'")
	errInvalidAggregateToken = errors.New("invalid aggregate token, expected 'member-function[-function...]'")
	errEmptySnapshot         = errors.New("empty request snapshot")
)
