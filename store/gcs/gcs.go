// Package gcs implements a content store on Google Cloud Storage.
package gcs

import (
	"context"
	stderrs "errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// Store is a Google Cloud Storage-based implementation of a content store.
// Each body is one object,
// named for its hash.
type Store struct {
	bucket *storage.BucketHandle
}

// New produces a new Store.
func New(bucket *storage.BucketHandle) *Store {
	return &Store{bucket: bucket}
}

const objPrefix = "b:"

func blobObjName(hash vs.Hash) string {
	return objPrefix + string(hash)
}

func hashFromObjName(name string) (vs.Hash, bool) {
	if !strings.HasPrefix(name, objPrefix) {
		return "", false
	}
	return vs.Hash(strings.TrimPrefix(name, objPrefix)), true
}

// Get gets the body stored under hash.
func (s *Store) Get(ctx context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	name := blobObjName(hash)
	r, err := s.bucket.Object(name).NewReader(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, errors.Wrapf(vs.ErrNotFound, "hash %s", hash)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading object %s", name)
	}
	return r, r.Attrs.Size, nil
}

// Put stores size bytes from r under hash,
// replacing any object already there.
// If r runs short, the upload is abandoned
// and the existing object (if any) is untouched.
func (s *Store) Put(ctx context.Context, hash vs.Hash, size int64, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		name = blobObjName(hash)
		w    = s.bucket.Object(name).NewWriter(ctx)
	)
	w.ChunkSize = 0 // single-request upload

	n, err := vs.CopyChunks(w, io.LimitReader(r, size))
	if err == nil && n != size {
		err = errors.Wrapf(io.ErrUnexpectedEOF, "got %d of %d bytes", n, size)
	}
	if err != nil {
		cancel()
		w.Close()
		return errors.Wrapf(err, "writing object %s", name)
	}

	return errors.Wrapf(w.Close(), "closing object %s", name)
}

// Delete removes the object stored under hash.
func (s *Store) Delete(ctx context.Context, hash vs.Hash) error {
	name := blobObjName(hash)
	err := s.bucket.Object(name).Delete(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return errors.Wrapf(err, "deleting object %s", name)
}

// List produces all hashes in the store, in lexical order.
// (Cloud Storage lists objects in lexical order of their names.)
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	iter := s.bucket.Objects(ctx, &storage.Query{Prefix: objPrefix})
	for {
		attrs, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "iterating over objects")
		}
		hash, ok := hashFromObjName(attrs.Name)
		if !ok {
			continue
		}
		err = f(hash)
		if err != nil {
			return err
		}
	}
}

func init() {
	store.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
		var options []option.ClientOption
		creds, ok := conf["creds"].(string)
		if !ok {
			return nil, errors.New(`missing "creds" parameter`)
		}
		bucketName, ok := conf["bucket"].(string)
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		options = append(options, option.WithCredentialsFile(creds))
		c, err := storage.NewClient(ctx, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName)), nil
	})
}
