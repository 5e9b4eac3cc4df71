package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log/level"

	"github.com/polarsignals/frostpipe/index"
)

// Part is a data range read by a scan stage together with the pruning indexes
// built over it.
type Part struct {
	Name    string
	Record  arrow.Record
	Indexes index.Set
}

// ScanProcessor emits the records of its parts, skipping the parts and pages
// that the pruning indexes prove cannot match the predicates. Ownership of
// the part records is handed to the stream returned by Execute.
type ScanProcessor struct {
	qctx  *QueryContext
	name  string
	preds []index.Predicate

	mtx      sync.Mutex
	parts    []Part
	executed bool
}

var _ Processor = (*ScanProcessor)(nil)

func NewScanProcessor(qctx *QueryContext, name string, parts []Part, preds ...index.Predicate) *ScanProcessor {
	return &ScanProcessor{
		qctx:  qctx,
		name:  name,
		parts: parts,
		preds: preds,
	}
}

func (s *ScanProcessor) Name() string {
	return s.name
}

func (s *ScanProcessor) ConnectTo(_ Processor) error {
	return fmt.Errorf("%w: scan %q cannot have inputs", ErrIllegalConnectionState, s.name)
}

func (s *ScanProcessor) Inputs() []Processor {
	return nil
}

func (s *ScanProcessor) Execute(_ context.Context) (Stream, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.executed {
		return nil, fmt.Errorf("%w: scan %q", ErrAlreadyExecuted, s.name)
	}
	s.executed = true

	parts := s.parts
	s.parts = nil
	return &scanStream{scan: s, parts: parts}, nil
}

// scan returns the records of part that may match. A pruning error is
// returned as is and the part is dropped.
func (s *ScanProcessor) scan(part Part) ([]arrow.Record, error) {
	metrics := s.qctx.Metrics()
	logger := s.qctx.Logger()

	if len(s.preds) == 0 || len(part.Indexes) == 0 {
		metrics.partsScanned.Inc()
		return []arrow.Record{part.Record}, nil
	}

	d, err := part.Indexes.Prune(s.preds...)
	if err != nil {
		part.Record.Release()
		return nil, err
	}
	if d == index.Skip {
		level.Debug(logger).Log("msg", "part pruned", "part", part.Name)
		metrics.partsPruned.Inc()
		part.Record.Release()
		return nil, nil
	}

	rows, err := s.keptRows(part)
	if err != nil {
		part.Record.Release()
		return nil, err
	}
	if rows == nil {
		metrics.partsScanned.Inc()
		return []arrow.Record{part.Record}, nil
	}
	if rows.IsEmpty() {
		level.Debug(logger).Log("msg", "all pages pruned", "part", part.Name)
		metrics.partsPruned.Inc()
		part.Record.Release()
		return nil, nil
	}

	metrics.partsScanned.Inc()
	defer part.Record.Release()

	var (
		records     []arrow.Record
		start, prev int64 = -1, -1
	)
	flush := func() {
		if start >= 0 {
			records = append(records, part.Record.NewSlice(start, prev+1))
		}
	}
	it := rows.Iterator()
	for it.HasNext() {
		row := int64(it.Next())
		if row != prev+1 || start < 0 {
			flush()
			start = row
		}
		prev = row
	}
	flush()
	return records, nil
}

// keptRows intersects the rows of the pages every sparse index keeps. It
// returns nil if no sparse index applies to the predicates.
func (s *ScanProcessor) keptRows(part Part) (*roaring.Bitmap, error) {
	numRows := uint64(part.Record.NumRows())

	var rows *roaring.Bitmap
	for _, p := range s.preds {
		sparse := part.Indexes.Sparse(p.Column)
		if sparse == nil {
			continue
		}
		pages, err := sparse.Pages(p)
		if err != nil {
			return nil, err
		}

		kept := roaring.New()
		pageSize := uint64(sparse.PageSize())
		for _, page := range pages {
			from := page * pageSize
			to := from + pageSize
			if to > numRows {
				to = numRows
			}
			if from < to {
				kept.AddRange(from, to)
			}
		}

		if rows == nil {
			rows = kept
		} else {
			rows.And(kept)
		}
	}
	return rows, nil
}

type scanStream struct {
	scan    *ScanProcessor
	parts   []Part
	pending []arrow.Record
}

func (s *scanStream) Next(ctx context.Context) (arrow.Record, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.parts) == 0 {
			return nil, io.EOF
		}
		part := s.parts[0]
		s.parts = s.parts[1:]

		records, err := s.scan.scan(part)
		if err != nil {
			return nil, fmt.Errorf("scan part %s: %w", part.Name, err)
		}
		s.pending = records
	}

	r := s.pending[0]
	s.pending = s.pending[1:]
	return r, nil
}

func (s *scanStream) Close() error {
	for _, r := range s.pending {
		r.Release()
	}
	for _, p := range s.parts {
		p.Record.Release()
	}
	s.pending, s.parts = nil, nil
	return nil
}
