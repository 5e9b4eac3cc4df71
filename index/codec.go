package index

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// An index block is an Arrow IPC stream holding a single record. The schema
// metadata identifies the index and the record holds its values:
//
//	minmax:    min, max           (one row)
//	partition: value              (one row per distinct key)
//	sparse:    min, max, page_no  (one row per page)
const (
	metaKind     = "kind"
	metaColumn   = "column"
	metaVersion  = "version"
	metaPageSize = "page_size"
)

// Encode writes idx as an index block.
func Encode(w io.Writer, mem memory.Allocator, idx Index) error {
	rec, err := toRecord(mem, idx)
	if err != nil {
		return err
	}
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("write index block: %w", err)
	}
	return iw.Close()
}

// Decode reads an index block written by Encode.
func Decode(r io.Reader, mem memory.Allocator) (Index, error) {
	ir, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBlock, err)
	}
	defer ir.Release()

	md := ir.Schema().Metadata()
	lookup := func(key string) string {
		if i := md.FindKey(key); i >= 0 {
			return md.Values()[i]
		}
		return ""
	}

	version := SchemaVersion(lookup(metaVersion))
	if version != V1 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	column := lookup(metaColumn)

	if !ir.Next() {
		if err := ir.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBlock, err)
		}
		return nil, fmt.Errorf("%w: no record", ErrMalformedBlock)
	}
	rec := ir.Record()

	switch kind := Kind(lookup(metaKind)); kind {
	case KindMinMax:
		return decodeMinMax(rec, column, version)
	case KindPartition:
		return decodePartition(rec, column, version)
	case KindSparse:
		pageSize, err := strconv.Atoi(lookup(metaPageSize))
		if err != nil {
			return nil, fmt.Errorf("%w: page size: %w", ErrMalformedBlock, err)
		}
		if pageSize < 1 {
			return nil, fmt.Errorf("%w: page size %d", ErrMalformedBlock, pageSize)
		}
		return decodeSparse(rec, column, pageSize, version)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedBlock, kind)
	}
}

func toRecord(mem memory.Allocator, idx Index) (arrow.Record, error) {
	dt := idx.DataType()
	keys := []string{metaKind, metaColumn, metaVersion}
	vals := []string{string(idx.Kind()), idx.Column(), string(idx.Version())}

	var (
		fields []arrow.Field
		rows   [][]any
	)
	switch idx := idx.(type) {
	case *MinMaxIndex:
		fields = []arrow.Field{
			{Name: "min", Type: dt, Nullable: true},
			{Name: "max", Type: dt, Nullable: true},
		}
		rows = [][]any{{idx.min, idx.max}}
	case *PartitionIndex:
		fields = []arrow.Field{{Name: "value", Type: dt}}
		for _, v := range idx.values {
			rows = append(rows, []any{v})
		}
	case *SparseIndex:
		keys = append(keys, metaPageSize)
		vals = append(vals, strconv.Itoa(idx.pageSize))
		fields = []arrow.Field{
			{Name: "min", Type: dt, Nullable: true},
			{Name: "max", Type: dt, Nullable: true},
			{Name: "page_no", Type: arrow.PrimitiveTypes.Uint64},
		}
		for _, v := range idx.values {
			rows = append(rows, []any{v.Min, v.Max, v.PageNo})
		}
	default:
		return nil, fmt.Errorf("cannot encode index of type %T", idx)
	}

	md := arrow.NewMetadata(keys, vals)
	b := array.NewRecordBuilder(mem, arrow.NewSchema(fields, &md))
	defer b.Release()
	for _, row := range rows {
		for i, v := range row {
			appendValue(b.Field(i), v)
		}
	}
	return b.NewRecord(), nil
}

func checkColumns(rec arrow.Record, kind Kind, n int) error {
	if int(rec.NumCols()) != n {
		return fmt.Errorf("%w: %s block has %d columns, want %d", ErrMalformedBlock, kind, rec.NumCols(), n)
	}
	return nil
}

// checkRange verifies that the min and max columns of a block hold values of
// the same type.
func checkRange(rec arrow.Record, kind Kind) error {
	min, max := rec.Column(0).DataType(), rec.Column(1).DataType()
	if !arrow.TypeEqual(min, max) {
		return fmt.Errorf("%w: %s block has min of type %s and max of type %s", ErrMalformedBlock, kind, min, max)
	}
	return nil
}

func decodeMinMax(rec arrow.Record, column string, version SchemaVersion) (*MinMaxIndex, error) {
	if err := checkColumns(rec, KindMinMax, 2); err != nil {
		return nil, err
	}
	if err := checkRange(rec, KindMinMax); err != nil {
		return nil, err
	}
	if rec.NumRows() != 1 {
		return nil, fmt.Errorf("%w: minmax block has %d rows", ErrMalformedBlock, rec.NumRows())
	}
	dt := rec.Column(0).DataType()
	if err := checkType(column, dt); err != nil {
		return nil, err
	}
	return &MinMaxIndex{
		column:   column,
		dataType: dt,
		min:      valueAt(rec.Column(0), 0),
		max:      valueAt(rec.Column(1), 0),
		version:  version,
	}, nil
}

func decodePartition(rec arrow.Record, column string, version SchemaVersion) (*PartitionIndex, error) {
	if err := checkColumns(rec, KindPartition, 1); err != nil {
		return nil, err
	}
	arr := rec.Column(0)
	if err := checkType(column, arr.DataType()); err != nil {
		return nil, err
	}
	values := make([]any, 0, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if v := valueAt(arr, i); v != nil {
			values = append(values, v)
		}
	}
	return newPartitionIndex(column, arr.DataType(), values, version), nil
}

func decodeSparse(rec arrow.Record, column string, pageSize int, version SchemaVersion) (*SparseIndex, error) {
	if err := checkColumns(rec, KindSparse, 3); err != nil {
		return nil, err
	}
	if err := checkRange(rec, KindSparse); err != nil {
		return nil, err
	}
	dt := rec.Column(0).DataType()
	if err := checkType(column, dt); err != nil {
		return nil, err
	}
	s := &SparseIndex{
		column:   column,
		dataType: dt,
		pageSize: pageSize,
		version:  version,
	}
	pages := rec.Column(2)
	for i := 0; i < int(rec.NumRows()); i++ {
		pageNo, ok := valueAt(pages, i).(uint64)
		if !ok {
			return nil, fmt.Errorf("%w: page %d has no number", ErrMalformedBlock, i)
		}
		s.values = append(s.values, SparseIndexValue{
			Min:    valueAt(rec.Column(0), i),
			Max:    valueAt(rec.Column(1), i),
			PageNo: pageNo,
		})
	}
	return s, nil
}
