// Package infer derives a column type for each sampled column of a file.
// Types form a widening ladder: a column gets the narrowest type that the
// configured share of its non-null samples satisfies, and text is the
// fallback that satisfies everything.
package infer

import "fmt"

// Kind enumerates the inferable column types in widening order. The order is
// load-bearing: inference walks it from narrowest to widest.
type Kind int

const (
	KindBoolean Kind = iota
	KindInteger
	KindBigInteger
	KindDecimal
	KindDate
	KindDateTime
	KindText
)

// String returns the stable lowercase name used in reports and metadata.
func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindBigInteger:
		return "biginteger"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Text length buckets. A column's length is the smallest bucket that holds
// its longest observed value; anything longer is unbounded (Length 0).
var textBuckets = []int{50, 255, 1000}

// TextLength returns the bucketed column length for the longest observed
// value, or 0 for unbounded.
func TextLength(maxRunes int) int {
	for _, b := range textBuckets {
		if maxRunes <= b {
			return b
		}
	}
	return 0
}

// Column is the inferred shape of a single column.
type Column struct {
	Kind      Kind
	Length    int // text only; 0 means unbounded
	Precision int // decimal only
	Scale     int // decimal only
	Nullable  bool
}

// Token renders the canonical type token used in schema fingerprints. Two
// columns with equal tokens are type-identical; nullability is deliberately
// excluded so that a sparse file still groups with its dense siblings.
func (c Column) Token() string {
	switch c.Kind {
	case KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", c.Precision, c.Scale)
	case KindText:
		if c.Length == 0 {
			return "text"
		}
		return fmt.Sprintf("text(%d)", c.Length)
	default:
		return c.Kind.String()
	}
}
