package index

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/thanos-io/objstore"
)

const blockSuffix = ".arrow"

// Store persists the index blocks of data ranges ("parts") in a bucket. The
// blocks of a part live under <part>/<kind>.<column>.arrow.
type Store struct {
	bucket objstore.Bucket
	mem    memory.Allocator
}

func NewStore(bucket objstore.Bucket, mem memory.Allocator) *Store {
	return &Store{bucket: bucket, mem: mem}
}

func objectName(part string, idx Index) string {
	return path.Join(part, string(idx.Kind())+"."+idx.Column()+blockSuffix)
}

// Put writes one index block of part, replacing a previous block of the same
// kind and column.
func (s *Store) Put(ctx context.Context, part string, idx Index) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s.mem, idx); err != nil {
		return err
	}
	if err := s.bucket.Upload(ctx, objectName(part, idx), &buf); err != nil {
		return fmt.Errorf("upload index %s of %s: %w", idx.Kind(), part, err)
	}
	return nil
}

// Load reads every index block of part. A part without blocks yields an
// empty set, which never prunes anything.
func (s *Store) Load(ctx context.Context, part string) (Set, error) {
	var names []string
	err := s.bucket.Iter(ctx, part+objstore.DirDelim, func(name string) error {
		if strings.HasSuffix(name, blockSuffix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", part, err)
	}
	sort.Strings(names)

	set := make(Set, 0, len(names))
	for _, name := range names {
		idx, err := s.get(ctx, name)
		if err != nil {
			return nil, err
		}
		set = append(set, idx)
	}
	return set, nil
}

func (s *Store) get(ctx context.Context, name string) (Index, error) {
	rc, err := s.bucket.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get index block %s: %w", name, err)
	}
	defer rc.Close()

	idx, err := Decode(rc, s.mem)
	if err != nil {
		return nil, fmt.Errorf("decode index block %s: %w", name, err)
	}
	return idx, nil
}
