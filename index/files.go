// Package index holds the server's two in-memory tables:
// the content index (Files) and the tag index (Tags).
//
// Neither type does its own locking.
// The server guards both with a single rwlock.RWLock.
package index

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

// Files is the content index.
// It maps each hash to the one name it was pushed under,
// and each name to every hash ever pushed under it.
type Files struct {
	names  map[vs.Hash]string
	hashes map[string]map[vs.Hash]struct{}
}

// NewFiles produces a new, empty Files.
func NewFiles() *Files {
	return &Files{
		names:  make(map[vs.Hash]string),
		hashes: make(map[string]map[vs.Hash]struct{}),
	}
}

// Exists tells whether hash is indexed.
func (f *Files) Exists(hash vs.Hash) bool {
	_, ok := f.names[hash]
	return ok
}

// Insert records hash under name.
// If hash is already indexed,
// under any name,
// the result is vs.ErrExists and nothing changes.
func (f *Files) Insert(name string, hash vs.Hash) error {
	if f.Exists(hash) {
		return errors.Wrapf(vs.ErrExists, "hash %s", hash)
	}
	set, ok := f.hashes[name]
	if !ok {
		set = make(map[vs.Hash]struct{})
		f.hashes[name] = set
	}
	set[hash] = struct{}{}
	f.names[hash] = name
	return nil
}

// Remove undoes an Insert of (name, hash).
// It is a no-op for a pair that is not present.
func (f *Files) Remove(name string, hash vs.Hash) {
	if set, ok := f.hashes[name]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(f.hashes, name)
		}
	}
	if f.names[hash] == name {
		delete(f.names, hash)
	}
}

// NameOf returns the name hash was pushed under.
// Callers are expected to check Exists first;
// a miss is reported as vs.ErrNotFound.
func (f *Files) NameOf(hash vs.Hash) (string, error) {
	name, ok := f.names[hash]
	if !ok {
		return "", errors.Wrapf(vs.ErrNotFound, "hash %s", hash)
	}
	return name, nil
}

// Hashes returns the hashes pushed under name, sorted.
func (f *Files) Hashes(name string) []vs.Hash {
	return setToSlice(f.hashes[name])
}

// Len is the number of indexed hashes.
func (f *Files) Len() int {
	return len(f.names)
}

// Each calls fn once for each name,
// in lexical order,
// with the sorted hashes recorded under it.
// If fn returns an error,
// Each exits with that error.
func (f *Files) Each(fn func(name string, hashes []vs.Hash) error) error {
	names := make([]string, 0, len(f.hashes))
	for name := range f.hashes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		err := fn(name, setToSlice(f.hashes[name]))
		if err != nil {
			return err
		}
	}
	return nil
}

func setToSlice(set map[vs.Hash]struct{}) []vs.Hash {
	result := make([]vs.Hash, 0, len(set))
	for h := range set {
		result = append(result, h)
	}
	return vs.SortHashes(result)
}
