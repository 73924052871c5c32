package index

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

// Tags is the tag index.
// It maps each tag name to an immutable set of hashes.
type Tags struct {
	tags map[string]map[vs.Hash]struct{}
}

// NewTags produces a new, empty Tags.
func NewTags() *Tags {
	return &Tags{tags: make(map[string]map[vs.Hash]struct{})}
}

// HashesOf returns the hashes in tag, sorted.
// If there is no such tag the error is vs.ErrNotFound.
func (t *Tags) HashesOf(tag string) ([]vs.Hash, error) {
	set, ok := t.tags[tag]
	if !ok {
		return nil, errors.Wrapf(vs.ErrNotFound, "tag %s", tag)
	}
	return setToSlice(set), nil
}

// Exists tells whether tag is defined.
func (t *Tags) Exists(tag string) bool {
	_, ok := t.tags[tag]
	return ok
}

// Add defines tag over hashes.
// Duplicate hashes collapse.
// If tag is already defined the result is vs.ErrExists,
// whatever hashes contains,
// and nothing changes.
//
// Add does not check hashes against the content index.
// That is the caller's job,
// done under the same write lock.
func (t *Tags) Add(tag string, hashes []vs.Hash) error {
	if t.Exists(tag) {
		return errors.Wrapf(vs.ErrExists, "tag %s", tag)
	}
	set := make(map[vs.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	t.tags[tag] = set
	return nil
}

// Len is the number of defined tags.
func (t *Tags) Len() int {
	return len(t.tags)
}

// Each calls fn once for each tag,
// in lexical order,
// with the tag's sorted hashes.
// If fn returns an error,
// Each exits with that error.
func (t *Tags) Each(fn func(tag string, hashes []vs.Hash) error) error {
	names := make([]string, 0, len(t.tags))
	for name := range t.tags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		err := fn(name, setToSlice(t.tags[name]))
		if err != nil {
			return err
		}
	}
	return nil
}
