package index

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/cespare/xxhash/v2"
)

// Values of indexed columns are held as int64, uint64, float64 or string.
// Binary columns use string so that they compare bytewise.

func supported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT64, arrow.UINT64, arrow.FLOAT64, arrow.STRING, arrow.BINARY:
		return true
	default:
		return false
	}
}

func checkType(column string, dt arrow.DataType) error {
	if !supported(dt) {
		return fmt.Errorf("%w: column %s has type %s", ErrUnsupportedType, column, dt)
	}
	return nil
}

// valueAt returns the i-th value of arr or nil if it is null. Strings are
// copied out of the array's buffers, so the value outlives arr.
func valueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return strings.Clone(a.Value(i))
	case *array.Binary:
		return string(a.Value(i))
	default:
		return nil
	}
}

// minMax returns the smallest and largest non-null values of arr[from:to].
func minMax(arr arrow.Array, from, to int) (min, max any) {
	for i := from; i < to; i++ {
		v := valueAt(arr, i)
		if v == nil {
			continue
		}
		if min == nil || compare(v, min) < 0 {
			min = v
		}
		if max == nil || compare(v, max) > 0 {
			max = v
		}
	}
	return min, max
}

func appendValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Uint64Builder:
		b.Append(v.(uint64))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.BinaryBuilder:
		b.AppendString(v.(string))
	default:
		b.AppendNull()
	}
}

// coerce converts a Go literal to the representation of values of dt.
func coerce(dt arrow.DataType, v any) (any, error) {
	switch dt.ID() {
	case arrow.INT64:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint32:
			return int64(x), nil
		case uint64:
			if x <= math.MaxInt64 {
				return int64(x), nil
			}
		}
	case arrow.UINT64:
		switch x := v.(type) {
		case int:
			if x >= 0 {
				return uint64(x), nil
			}
		case int64:
			if x >= 0 {
				return uint64(x), nil
			}
		case uint32:
			return uint64(x), nil
		case uint64:
			return x, nil
		}
	case arrow.FLOAT64:
		switch x := v.(type) {
		case float32:
			return float64(x), nil
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
	case arrow.STRING, arrow.BINARY:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T with %s", v, dt)
}

// compare orders two values of the same representation.
func compare(a, b any) int {
	switch x := a.(type) {
	case int64:
		return cmp.Compare(x, b.(int64))
	case uint64:
		return cmp.Compare(x, b.(uint64))
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	default:
		panic(fmt.Sprintf("index: unexpected value type %T", a))
	}
}

// hashValue hashes a value for membership bitmaps. Collisions only ever
// cause a range to be kept.
func hashValue(v any) uint32 {
	var buf [8]byte
	switch x := v.(type) {
	case int64:
		binary.LittleEndian.PutUint64(buf[:], uint64(x))
	case uint64:
		binary.LittleEndian.PutUint64(buf[:], x)
	case float64:
		if x == 0 {
			x = 0 // -0 == +0
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
	case string:
		return uint32(xxhash.Sum64String(x))
	}
	return uint32(xxhash.Sum64(buf[:]))
}

// columnArray returns the column called name of rec.
func columnArray(rec arrow.Record, name string) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("column %s not found", name)
	}
	return rec.Column(indices[0]), nil
}
