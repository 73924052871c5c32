// Package lru implements a content store that acts as a least-recently-used cache for a nested content store.
package lru

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// DefaultMaxBody is the largest body cached when no limit is configured.
const DefaultMaxBody = 64 * vs.ChunkSize

// Store implements a memory-based least-recently-used cache for a content store.
// It caches only bodies of at most maxBody bytes;
// larger ones are streamed straight from the nested store.
// Writes pass through to the nested store.
type Store struct {
	c       *lru.Cache // Hash->[]byte
	s       vs.Store
	maxBody int64
}

// New produces a new Store backed by `s` and caching up to `size` bodies
// of up to `maxBody` bytes each.
func New(s vs.Store, size int, maxBody int64) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c, maxBody: maxBody}, err
}

// Get gets the body stored under hash.
func (s *Store) Get(ctx context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	if got, ok := s.c.Get(hash); ok {
		b := got.([]byte)
		return ioutil.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
	}
	r, size, err := s.s.Get(ctx, hash)
	if err != nil {
		return nil, 0, err
	}
	if size > s.maxBody {
		return r, size, nil
	}
	defer r.Close()

	b := make([]byte, size)
	_, err = io.ReadFull(r, b)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", hash)
	}
	s.c.Add(hash, b)
	return ioutil.NopCloser(bytes.NewReader(b)), size, nil
}

// Put stores size bytes from r under hash in the nested store.
// Small bodies are cached on the way through.
func (s *Store) Put(ctx context.Context, hash vs.Hash, size int64, r io.Reader) error {
	s.c.Remove(hash)

	var buf *bytes.Buffer
	if size <= s.maxBody {
		buf = bytes.NewBuffer(make([]byte, 0, size))
		r = io.TeeReader(r, buf)
	}
	err := s.s.Put(ctx, hash, size, r)
	if err != nil {
		return err
	}
	if buf != nil && int64(buf.Len()) == size {
		s.c.Add(hash, buf.Bytes())
	}
	return nil
}

// Delete removes the body stored under hash from the cache and the nested store.
func (s *Store) Delete(ctx context.Context, hash vs.Hash) error {
	s.c.Remove(hash)
	return s.s.Delete(ctx, hash)
}

// List produces all hashes in the nested store, in lexical order.
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	return s.s.List(ctx, f)
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
		size, ok := intParam(conf, "size")
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		maxBody, ok := intParam(conf, "max_body")
		if !ok {
			maxBody = DefaultMaxBody
		}
		nestedStore, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nestedStore, size, int64(maxBody))
	})
}

// Config maps decoded from JSON hold numbers as float64,
// or as json.Number when the decoder uses UseNumber.
func intParam(conf map[string]interface{}, key string) (int, bool) {
	switch v := conf[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}
