package index

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

type Op uint8

const (
	OpEq Op = iota
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpIn
)

var opNames = [...]string{
	OpEq:    "=",
	OpNotEq: "!=",
	OpLt:    "<",
	OpLtEq:  "<=",
	OpGt:    ">",
	OpGtEq:  ">=",
	OpIn:    "in",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// ParseOp parses the textual form of an operator as printed by Op.String.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if strings.EqualFold(s, name) {
			return Op(op), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrInvalidPredicate, s)
}

// Predicate compares a column against literal operands. Every operator takes
// exactly one operand except OpIn, which takes one or more.
type Predicate struct {
	Column string
	Op     Op
	Values []any
}

func Eq(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpEq, Values: []any{v}}
}

func NotEq(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpNotEq, Values: []any{v}}
}

func Lt(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpLt, Values: []any{v}}
}

func LtEq(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpLtEq, Values: []any{v}}
}

func Gt(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpGt, Values: []any{v}}
}

func GtEq(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpGtEq, Values: []any{v}}
}

func In(column string, vs ...any) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: vs}
}

func (p Predicate) String() string {
	if p.Op == OpIn {
		vals := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			vals = append(vals, fmt.Sprint(v))
		}
		return fmt.Sprintf("%s in (%s)", p.Column, strings.Join(vals, ", "))
	}
	if len(p.Values) == 1 {
		return fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Values[0])
	}
	return fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Values)
}

// operands converts the predicate's values to the representation used for
// values of dt.
func (p Predicate) operands(dt arrow.DataType) ([]any, error) {
	if p.Op > OpIn {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPredicate, p.Op)
	}
	if len(p.Values) == 0 || (p.Op != OpIn && len(p.Values) != 1) {
		return nil, fmt.Errorf("%w: %s takes %d operands", ErrInvalidPredicate, p.Op, len(p.Values))
	}

	out := make([]any, 0, len(p.Values))
	for _, v := range p.Values {
		c, err := coerce(dt, v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %w", ErrInvalidPredicate, p.Column, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// rangeDecision evaluates op against a range of values [min, max]. A nil min
// means the range only holds nulls, which no comparison matches.
func rangeDecision(op Op, operands []any, min, max any) Decision {
	if min == nil || max == nil {
		return Skip
	}

	v := operands[0]
	var skip bool
	switch op {
	case OpEq:
		skip = compare(v, min) < 0 || compare(v, max) > 0
	case OpNotEq:
		skip = compare(min, max) == 0 && compare(min, v) == 0
	case OpLt:
		skip = compare(min, v) >= 0
	case OpLtEq:
		skip = compare(min, v) > 0
	case OpGt:
		skip = compare(max, v) <= 0
	case OpGtEq:
		skip = compare(max, v) < 0
	case OpIn:
		skip = true
		for _, v := range operands {
			if compare(v, min) >= 0 && compare(v, max) <= 0 {
				skip = false
				break
			}
		}
	}

	if skip {
		return Skip
	}
	return Keep
}
