// Package index implements the pruning indexes consulted by scan stages
// before they read a data range: min-max ranges, partition key membership and
// sparse per-page ranges. Every index answers whether a predicate can match
// any row of the range it covers.
package index

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// SchemaVersion tags the layout of a serialized index block.
type SchemaVersion string

const (
	V1 SchemaVersion = "V1"
)

type Kind string

const (
	KindMinMax    Kind = "minmax"
	KindPartition Kind = "partition"
	KindSparse    Kind = "sparse"
)

// Decision is the outcome of evaluating a predicate against an index.
type Decision uint8

const (
	// Keep means the range may contain matching rows.
	Keep Decision = iota
	// Skip means the range provably contains no matching row.
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "keep"
}

type Index interface {
	Kind() Kind
	Column() string
	DataType() arrow.DataType
	Version() SchemaVersion
	// Apply evaluates p against the index. Predicates on other columns are
	// always kept.
	Apply(p Predicate) (Decision, error)
	String() string
}

// Pruner decides whether a data range can be skipped for a conjunction of
// predicates.
type Pruner interface {
	Prune(preds ...Predicate) (Decision, error)
}

// Set holds the indexes of one data range.
type Set []Index

var _ Pruner = Set(nil)

// Prune skips the range as soon as one index proves that one predicate
// cannot match.
func (s Set) Prune(preds ...Predicate) (Decision, error) {
	for _, p := range preds {
		for _, idx := range s {
			d, err := idx.Apply(p)
			if err != nil {
				return Keep, err
			}
			if d == Skip {
				return Skip, nil
			}
		}
	}
	return Keep, nil
}

// Sparse returns the sparse index of column, if any.
func (s Set) Sparse(column string) *SparseIndex {
	for _, idx := range s {
		if sparse, ok := idx.(*SparseIndex); ok && sparse.Column() == column {
			return sparse
		}
	}
	return nil
}
