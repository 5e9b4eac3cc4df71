package index

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// MinMaxIndex records the smallest and largest value of a column over one
// data range.
type MinMaxIndex struct {
	column   string
	dataType arrow.DataType
	min, max any
	version  SchemaVersion
}

var _ Index = (*MinMaxIndex)(nil)

// BuildMinMax computes the min-max index of arr. Nulls are ignored.
func BuildMinMax(column string, arr arrow.Array) (*MinMaxIndex, error) {
	if err := checkType(column, arr.DataType()); err != nil {
		return nil, err
	}
	min, max := minMax(arr, 0, arr.Len())
	return &MinMaxIndex{
		column:   column,
		dataType: arr.DataType(),
		min:      min,
		max:      max,
		version:  V1,
	}, nil
}

func (m *MinMaxIndex) Kind() Kind               { return KindMinMax }
func (m *MinMaxIndex) Column() string           { return m.column }
func (m *MinMaxIndex) DataType() arrow.DataType { return m.dataType }
func (m *MinMaxIndex) Version() SchemaVersion   { return m.version }

// Min and Max are nil when the range only holds nulls.
func (m *MinMaxIndex) Min() any { return m.min }
func (m *MinMaxIndex) Max() any { return m.max }

func (m *MinMaxIndex) Apply(p Predicate) (Decision, error) {
	if p.Column != m.column {
		return Keep, nil
	}
	operands, err := p.operands(m.dataType)
	if err != nil {
		return Keep, err
	}
	return rangeDecision(p.Op, operands, m.min, m.max), nil
}

func (m *MinMaxIndex) String() string {
	return fmt.Sprintf("minmax(%s) [%s, %s] %s", m.column, format(m.min), format(m.max), m.version)
}

func format(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}
