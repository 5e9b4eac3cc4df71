package query

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const PanicMemoryLimit = "memory limit exceeded"

var _ memory.Allocator = (*AccountingAllocator)(nil)

// AccountingAllocator wraps a memory.Allocator and keeps track of the bytes
// currently held by records flowing through a pipeline, as well as the peak.
// It panics if a limit is set and an allocation exceeds it.
type AccountingAllocator struct {
	limit     int64
	allocated *atomic.Int64
	peak      *atomic.Int64
	allocator memory.Allocator
}

// NewAccountingAllocator returns an allocator accounting for allocations made
// through allocator. A limit of 0 disables the limit.
func NewAccountingAllocator(limit int64, allocator memory.Allocator) *AccountingAllocator {
	return &AccountingAllocator{
		limit:     limit,
		allocated: atomic.NewInt64(0),
		peak:      atomic.NewInt64(0),
		allocator: allocator,
	}
}

func (a *AccountingAllocator) grow(delta int64) {
	allocated := a.allocated.Add(delta)
	if a.limit > 0 && allocated > a.limit {
		a.allocated.Sub(delta)
		panic(PanicMemoryLimit)
	}
	for {
		peak := a.peak.Load()
		if allocated <= peak || a.peak.CompareAndSwap(peak, allocated) {
			return
		}
	}
}

func (a *AccountingAllocator) Allocate(size int) []byte {
	a.grow(int64(size))
	return a.allocator.Allocate(size)
}

func (a *AccountingAllocator) Reallocate(size int, b []byte) []byte {
	if len(b) == size {
		return b
	}
	a.grow(int64(size - len(b)))
	return a.allocator.Reallocate(size, b)
}

func (a *AccountingAllocator) Free(b []byte) {
	a.allocated.Sub(int64(len(b)))
	a.allocator.Free(b)
}

// Allocated is the number of bytes currently allocated.
func (a *AccountingAllocator) Allocated() int {
	return int(a.allocated.Load())
}

// Peak is the highest number of bytes allocated at once.
func (a *AccountingAllocator) Peak() int {
	return int(a.peak.Load())
}

var (
	descAllocatedBytes = prometheus.NewDesc(
		"frostpipe_allocator_allocated_bytes",
		"Bytes currently held through the accounting allocator",
		nil, nil,
	)
	descPeakBytes = prometheus.NewDesc(
		"frostpipe_allocator_peak_bytes",
		"Highest number of bytes held at once through the accounting allocator",
		nil, nil,
	)
)

// allocatorCollector exports the accounting allocator's counters.
type allocatorCollector struct {
	a *AccountingAllocator
}

var _ prometheus.Collector = (*allocatorCollector)(nil)

// Collector returns a prometheus collector for the allocator's counters.
func (a *AccountingAllocator) Collector() prometheus.Collector {
	return &allocatorCollector{a: a}
}

func (c *allocatorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAllocatedBytes
	ch <- descPeakBytes
}

func (c *allocatorCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descAllocatedBytes, prometheus.GaugeValue, float64(c.a.Allocated()))
	ch <- prometheus.MustNewConstMetric(descPeakBytes, prometheus.GaugeValue, float64(c.a.Peak()))
}
