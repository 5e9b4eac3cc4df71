package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testSchema = arrow.NewSchema([]arrow.Field{{Name: "value", Type: arrow.PrimitiveTypes.Int64}}, nil)

func int64Record(mem memory.Allocator, vals ...int64) arrow.Record {
	b := array.NewRecordBuilder(mem, testSchema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(vals, nil)
	return b.NewRecord()
}

// singleValueRecords returns one single-row record per value.
func singleValueRecords(mem memory.Allocator, vals ...int64) []arrow.Record {
	records := make([]arrow.Record, 0, len(vals))
	for _, v := range vals {
		records = append(records, int64Record(mem, v))
	}
	return records
}

func valueRange(from, to int64) []int64 {
	vals := make([]int64, 0, to-from)
	for v := from; v < to; v++ {
		vals = append(vals, v)
	}
	return vals
}

func recordValues(r arrow.Record) []int64 {
	return append([]int64(nil), r.Column(0).(*array.Int64).Int64Values()...)
}

type drained struct {
	values []int64
	errs   []error
}

// items is the number of stream items, records and errors alike.
func (d drained) items() int {
	return len(d.values) + len(d.errs)
}

// drain reads s to the end, releasing every record.
func drain(ctx context.Context, s Stream) (drained, error) {
	var d drained
	for {
		r, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return d, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return d, ctxErr
		}
		if err != nil {
			d.errs = append(d.errs, err)
			continue
		}
		// Single-row test records count as one item.
		d.values = append(d.values, recordValues(r)...)
		r.Release()
	}
}

// drainAll drains every stream concurrently, since a mixing stage blocks as
// soon as one output's buffer is full.
func drainAll(t *testing.T, streams []Stream) []drained {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make([]drained, len(streams))
	errg, ctx := errgroup.WithContext(ctx)
	for i, s := range streams {
		errg.Go(func() error {
			defer s.Close()
			d, err := drain(ctx, s)
			if err != nil {
				return fmt.Errorf("output %d: %w", i, err)
			}
			out[i] = d
			return nil
		})
	}
	require.NoError(t, errg.Wait())
	return out
}

func sorted(vals []int64) []int64 {
	vals = append([]int64(nil), vals...)
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals
}

// failingProcessor fails to execute.
type failingProcessor struct {
	err error
}

func (p *failingProcessor) Name() string                { return "FailingProcessor" }
func (p *failingProcessor) ConnectTo(_ Processor) error { return nil }
func (p *failingProcessor) Inputs() []Processor         { return nil }
func (p *failingProcessor) Execute(_ context.Context) (Stream, error) {
	return nil, p.err
}

// faultyProcessor yields its values one record at a time, and an error in
// place of the value at position failAt.
type faultyProcessor struct {
	mem    memory.Allocator
	values []int64
	failAt int
	err    error
}

func (p *faultyProcessor) Name() string                { return "FaultyProcessor" }
func (p *faultyProcessor) ConnectTo(_ Processor) error { return nil }
func (p *faultyProcessor) Inputs() []Processor         { return nil }
func (p *faultyProcessor) Execute(_ context.Context) (Stream, error) {
	return &faultyStream{p: p}, nil
}

type faultyStream struct {
	p   *faultyProcessor
	pos int
}

func (s *faultyStream) Next(_ context.Context) (arrow.Record, error) {
	if s.pos >= len(s.p.values) {
		return nil, io.EOF
	}
	pos := s.pos
	s.pos++
	if pos == s.p.failAt {
		return nil, s.p.err
	}
	return int64Record(s.p.mem, s.p.values[pos]), nil
}

func (s *faultyStream) Close() error { return nil }

// panickingProcessor panics while executing.
type panickingProcessor struct {
	msg string
}

func (p *panickingProcessor) Name() string                { return "PanickingProcessor" }
func (p *panickingProcessor) ConnectTo(_ Processor) error { return nil }
func (p *panickingProcessor) Inputs() []Processor         { return nil }
func (p *panickingProcessor) Execute(_ context.Context) (Stream, error) {
	panic(p.msg)
}
