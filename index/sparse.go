package index

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// SparseIndexValue is the value range of one page of rows.
type SparseIndexValue struct {
	Min    any
	Max    any
	PageNo uint64
}

// SparseIndex splits a data range into pages of a fixed number of rows and
// records the value range of every page.
type SparseIndex struct {
	column   string
	dataType arrow.DataType
	pageSize int
	values   []SparseIndexValue
	version  SchemaVersion
}

var _ Index = (*SparseIndex)(nil)

// BuildSparse computes the per-page ranges of arr with pages of pageSize
// rows. The last page may be shorter.
func BuildSparse(column string, arr arrow.Array, pageSize int) (*SparseIndex, error) {
	if err := checkType(column, arr.DataType()); err != nil {
		return nil, err
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("sparse index page size must be positive, got %d", pageSize)
	}

	s := &SparseIndex{
		column:   column,
		dataType: arr.DataType(),
		pageSize: pageSize,
		version:  V1,
	}
	for from, page := 0, uint64(0); from < arr.Len(); from, page = from+pageSize, page+1 {
		to := from + pageSize
		if to > arr.Len() {
			to = arr.Len()
		}
		min, max := minMax(arr, from, to)
		s.values = append(s.values, SparseIndexValue{Min: min, Max: max, PageNo: page})
	}
	return s, nil
}

func (s *SparseIndex) Kind() Kind               { return KindSparse }
func (s *SparseIndex) Column() string           { return s.column }
func (s *SparseIndex) DataType() arrow.DataType { return s.dataType }
func (s *SparseIndex) Version() SchemaVersion   { return s.version }
func (s *SparseIndex) PageSize() int            { return s.pageSize }
func (s *SparseIndex) Values() []SparseIndexValue {
	return s.values
}

// Pages returns the numbers of the pages that may hold rows matching p, in
// ascending order. Every page is returned for predicates on other columns.
func (s *SparseIndex) Pages(p Predicate) ([]uint64, error) {
	pages := make([]uint64, 0, len(s.values))
	if p.Column != s.column {
		for _, v := range s.values {
			pages = append(pages, v.PageNo)
		}
		return pages, nil
	}

	operands, err := p.operands(s.dataType)
	if err != nil {
		return nil, err
	}
	for _, v := range s.values {
		if rangeDecision(p.Op, operands, v.Min, v.Max) == Keep {
			pages = append(pages, v.PageNo)
		}
	}
	return pages, nil
}

func (s *SparseIndex) Apply(p Predicate) (Decision, error) {
	if p.Column != s.column {
		return Keep, nil
	}
	pages, err := s.Pages(p)
	if err != nil {
		return Keep, err
	}
	if len(pages) == 0 {
		return Skip, nil
	}
	return Keep, nil
}

func (s *SparseIndex) String() string {
	return fmt.Sprintf("sparse(%s) %d pages of %d rows %s", s.column, len(s.values), s.pageSize, s.version)
}
