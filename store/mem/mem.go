// Package mem implements an in-memory content store.
package mem

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// Store is a memory-based implementation of a content store.
type Store struct {
	mu     sync.Mutex
	bodies map[vs.Hash][]byte
}

// New produces a new Store.
func New() *Store {
	return &Store{bodies: make(map[vs.Hash][]byte)}
}

// Get gets the body stored under hash.
func (s *Store) Get(_ context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bodies[hash]
	if !ok {
		return nil, 0, errors.Wrapf(vs.ErrNotFound, "hash %s", hash)
	}
	return ioutil.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

// Put stores size bytes from r under hash.
func (s *Store) Put(_ context.Context, hash vs.Hash, size int64, r io.Reader) error {
	buf := new(bytes.Buffer)
	n, err := vs.CopyChunks(buf, io.LimitReader(r, size))
	if err != nil {
		return errors.Wrapf(err, "reading body for %s", hash)
	}
	if n != size {
		return errors.Wrapf(io.ErrUnexpectedEOF, "reading body for %s (got %d of %d bytes)", hash, n, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bodies[hash] = buf.Bytes()
	return nil
}

// Delete removes the body stored under hash.
func (s *Store) Delete(_ context.Context, hash vs.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bodies, hash)
	return nil
}

// List produces all hashes in the store, in lexical order.
func (s *Store) List(_ context.Context, f func(vs.Hash) error) error {
	s.mu.Lock()
	hashes := make([]vs.Hash, 0, len(s.bodies))
	for h := range s.bodies {
		hashes = append(hashes, h)
	}
	s.mu.Unlock()

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	for _, h := range hashes {
		err := f(h)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (vs.Store, error) {
		return New(), nil
	})
}
