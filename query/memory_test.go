package query

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAccountingAllocator(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a := NewAccountingAllocator(0, mem)
	b := a.Allocate(64)
	require.Equal(t, 64, a.Allocated())

	b = a.Reallocate(128, b)
	require.Equal(t, 128, a.Allocated())
	require.Equal(t, 128, a.Peak())

	c := a.Allocate(32)
	require.Equal(t, 160, a.Peak())

	a.Free(b)
	a.Free(c)
	require.Equal(t, 0, a.Allocated())
	require.Equal(t, 160, a.Peak())

	expected := `
# HELP frostpipe_allocator_allocated_bytes Bytes currently held through the accounting allocator
# TYPE frostpipe_allocator_allocated_bytes gauge
frostpipe_allocator_allocated_bytes 0
# HELP frostpipe_allocator_peak_bytes Highest number of bytes held at once through the accounting allocator
# TYPE frostpipe_allocator_peak_bytes gauge
frostpipe_allocator_peak_bytes 160
`
	require.NoError(t, testutil.CollectAndCompare(a.Collector(), strings.NewReader(expected)))
}

func TestAccountingAllocatorLimit(t *testing.T) {
	a := NewAccountingAllocator(100, memory.NewGoAllocator())
	b := a.Allocate(60)
	require.PanicsWithValue(t, PanicMemoryLimit, func() {
		a.Allocate(60)
	})
	require.Equal(t, 60, a.Allocated())
	a.Free(b)
}
