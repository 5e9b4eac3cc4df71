package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow-go/v18/arrow"
)

// PartitionIndex records the distinct partition key values of a data range.
// Equality and membership are answered through a bitmap of hashed keys, so a
// hash collision keeps a range that could have been skipped but never the
// other way around.
type PartitionIndex struct {
	column   string
	dataType arrow.DataType
	values   []any
	min, max any
	bitmap   *roaring.Bitmap
	version  SchemaVersion
}

var _ Index = (*PartitionIndex)(nil)

// BuildPartition collects the distinct non-null values of arr.
func BuildPartition(column string, arr arrow.Array) (*PartitionIndex, error) {
	if err := checkType(column, arr.DataType()); err != nil {
		return nil, err
	}
	values := make([]any, 0)
	for i := 0; i < arr.Len(); i++ {
		if v := valueAt(arr, i); v != nil {
			values = append(values, v)
		}
	}
	return newPartitionIndex(column, arr.DataType(), values, V1), nil
}

func newPartitionIndex(column string, dt arrow.DataType, values []any, version SchemaVersion) *PartitionIndex {
	sort.Slice(values, func(i, j int) bool {
		return compare(values[i], values[j]) < 0
	})
	distinct := values[:0]
	for i, v := range values {
		if i > 0 && compare(v, distinct[len(distinct)-1]) == 0 {
			continue
		}
		distinct = append(distinct, v)
	}

	p := &PartitionIndex{
		column:   column,
		dataType: dt,
		values:   distinct,
		bitmap:   roaring.New(),
		version:  version,
	}
	for _, v := range distinct {
		p.bitmap.Add(hashValue(v))
	}
	if len(distinct) > 0 {
		p.min, p.max = distinct[0], distinct[len(distinct)-1]
	}
	return p
}

func (p *PartitionIndex) Kind() Kind               { return KindPartition }
func (p *PartitionIndex) Column() string           { return p.column }
func (p *PartitionIndex) DataType() arrow.DataType { return p.dataType }
func (p *PartitionIndex) Version() SchemaVersion   { return p.version }

// Values returns the distinct keys in ascending order.
func (p *PartitionIndex) Values() []any {
	return p.values
}

func (p *PartitionIndex) contains(v any) bool {
	return p.bitmap.Contains(hashValue(v))
}

func (p *PartitionIndex) Apply(pred Predicate) (Decision, error) {
	if pred.Column != p.column {
		return Keep, nil
	}
	operands, err := pred.operands(p.dataType)
	if err != nil {
		return Keep, err
	}
	if len(p.values) == 0 {
		return Skip, nil
	}

	switch pred.Op {
	case OpEq, OpIn:
		for _, v := range operands {
			if p.contains(v) {
				return Keep, nil
			}
		}
		return Skip, nil
	case OpNotEq:
		if len(p.values) == 1 && compare(p.values[0], operands[0]) == 0 {
			return Skip, nil
		}
		return Keep, nil
	default:
		return rangeDecision(pred.Op, operands, p.min, p.max), nil
	}
}

func (p *PartitionIndex) String() string {
	vals := make([]string, 0, len(p.values))
	for _, v := range p.values {
		vals = append(vals, format(v))
	}
	return fmt.Sprintf("partition(%s) {%s} %s", p.column, strings.Join(vals, ", "), p.version)
}
