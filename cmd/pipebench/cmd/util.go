package cmd

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const valueColumn = "value"

var schema = arrow.NewSchema([]arrow.Field{
	{Name: valueColumn, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// generateRecords returns blocks records of rows consecutive values each,
// starting at start.
func generateRecords(mem memory.Allocator, start int64, blocks, rows int) []arrow.Record {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	records := make([]arrow.Record, 0, blocks)
	v := start
	for i := 0; i < blocks; i++ {
		vb := b.Field(0).(*array.Int64Builder)
		vb.Reserve(rows)
		for j := 0; j < rows; j++ {
			vb.Append(v)
			v++
		}
		records = append(records, b.NewRecord())
	}
	return records
}

func releaseRecords(records []arrow.Record) {
	for _, r := range records {
		r.Release()
	}
}
