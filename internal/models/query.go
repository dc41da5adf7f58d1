package models

import (
	"fmt"
	"strings"
)

// Comparator is the single-field filter operator of a Query.
type Comparator int

const (
	// NoComparator means the query is unfiltered.
	NoComparator Comparator = iota
	Equal
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (c Comparator) String() string {
	switch c {
	case Equal:
		return "eq"
	case LessThan:
		return "lt"
	case LessThanOrEqual:
		return "lte"
	case GreaterThan:
		return "gt"
	case GreaterThanOrEqual:
		return "gte"
	default:
		return ""
	}
}

// ParseComparator accepts the short names (eq, lt, lte, gt, gte) and the
// symbolic forms (==, <, <=, >, >=). An empty string yields NoComparator.
func ParseComparator(s string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoComparator, nil
	case "eq", "equal", "==", "=":
		return Equal, nil
	case "lt", "<":
		return LessThan, nil
	case "lte", "le", "<=":
		return LessThanOrEqual, nil
	case "gt", ">":
		return GreaterThan, nil
	case "gte", "ge", ">=":
		return GreaterThanOrEqual, nil
	default:
		return NoComparator, fmt.Errorf("unknown comparator %q", s)
	}
}

// Query is an optional single-field filter. Value must be typed to match the
// stored field.
type Query struct {
	Field      string
	Comparator Comparator
	Value      any
}

// Filtered reports whether both a field and a comparator are present.
func (q Query) Filtered() bool {
	return q.Field != "" && q.Comparator != NoComparator
}
