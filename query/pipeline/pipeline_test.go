package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/frostpipe/query"
)

func TestPipelineMixThenMerge(t *testing.T) {
	mem := query.NewAccountingAllocator(0, memory.NewGoAllocator())
	qctx := newTestQueryContext(t)

	p := NewPipeline(qctx)
	var want []int64
	for i := int64(0); i < 3; i++ {
		vals := valueRange(i*10, i*10+10)
		want = append(want, vals...)
		require.NoError(t, p.AddSource(NewSourceProcessor("SourceProcessor", singleValueRecords(mem, vals...)...)))
	}
	require.Greater(t, mem.Allocated(), 0)

	require.NoError(t, p.Mix(2))
	require.Equal(t, 2, p.NumOutputs())
	require.NoError(t, p.Merge())
	require.Equal(t, 1, p.NumOutputs())
	// Merging a single output is a no-op.
	require.NoError(t, p.Merge())
	require.Equal(t, "MixedProcessor x1 - MixedProcessor x2 - SourceProcessor x3", p.Draw().String())

	require.ErrorIs(t, p.AddSource(EmptyProcessor{}), ErrIllegalConnectionState)

	var got []int64
	err := p.Collect(context.Background(), func(output int, r arrow.Record) error {
		if output != 0 {
			return fmt.Errorf("unexpected output %d", output)
		}
		got = append(got, recordValues(r)...)
		r.Release()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, want, sorted(got))
	require.Equal(t, 0, mem.Allocated())
	require.Greater(t, mem.Peak(), 0)
}

func TestPipelineCollectAbortsOnError(t *testing.T) {
	qctx := newTestQueryContext(t)
	errSource := errors.New("source failed")

	p := NewPipeline(qctx)
	require.NoError(t, p.AddSource(&failingProcessor{err: errSource}))
	require.NoError(t, p.AddSource(NewSourceProcessor("SourceProcessor", singleValueRecords(memory.DefaultAllocator, valueRange(0, 50)...)...)))
	require.NoError(t, p.Mix(3))

	var mtx sync.Mutex
	err := p.Collect(context.Background(), func(_ int, r arrow.Record) error {
		mtx.Lock()
		defer mtx.Unlock()
		r.Release()
		return nil
	})
	require.ErrorIs(t, err, errSource)
}

func TestPipelineCollectCallbackError(t *testing.T) {
	qctx := newTestQueryContext(t)
	errStop := errors.New("stop")

	p := NewPipeline(qctx)
	require.NoError(t, p.AddSource(NewSourceProcessor("SourceProcessor", singleValueRecords(memory.DefaultAllocator, valueRange(0, 50)...)...)))
	require.NoError(t, p.Merge())

	err := p.Collect(context.Background(), func(_ int, r arrow.Record) error {
		r.Release()
		return errStop
	})
	require.ErrorIs(t, err, errStop)
}

func TestPipelineCollectCallbackPanic(t *testing.T) {
	qctx := newTestQueryContext(t)

	p := NewPipeline(qctx)
	require.NoError(t, p.AddSource(NewSourceProcessor("SourceProcessor", singleValueRecords(memory.DefaultAllocator, 1, 2, 3)...)))
	require.NoError(t, p.Mix(2))

	err := p.Collect(context.Background(), func(_ int, r arrow.Record) error {
		r.Release()
		panic("callback")
	})
	require.EqualError(t, err, "panic: callback")
}

func TestPipelineEmpty(t *testing.T) {
	qctx := newTestQueryContext(t)
	p := NewPipeline(qctx)

	require.ErrorIs(t, p.Mix(2), ErrIllegalConnectionState)
	_, err := p.Execute(context.Background())
	require.ErrorIs(t, err, ErrIllegalConnectionState)
	require.Equal(t, "", p.Draw().String())
}

func TestPipelineExecuteTwice(t *testing.T) {
	qctx := newTestQueryContext(t)
	p := NewPipeline(qctx)
	require.NoError(t, p.AddSource(EmptyProcessor{}))
	require.NoError(t, p.Mix(2))

	streams, err := p.Execute(context.Background())
	require.NoError(t, err)
	_, err = p.Execute(context.Background())
	require.ErrorIs(t, err, ErrAlreadyExecuted)

	drainAll(t, streams)
}
