// Package logging implements a store that delegates everything to a nested store,
// logging operations as they happen.
package logging

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// Store logs each operation on a nested store.
type Store struct {
	s   vs.Store
	log log.FieldLogger
}

// New produces a Store logging operations on s to logger.
// A nil logger means the logrus standard logger.
func New(s vs.Store, logger log.FieldLogger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{s: s, log: logger}
}

// Get gets the body stored under hash in the nested store, logging the outcome.
func (s *Store) Get(ctx context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	r, size, err := s.s.Get(ctx, hash)
	if err != nil {
		s.log.WithError(err).WithField("hash", hash).Error("Get")
	} else {
		s.log.WithFields(log.Fields{"hash": hash, "size": size}).Debug("Get")
	}
	return r, size, err
}

// Put stores size bytes from r under hash in the nested store, logging the outcome.
func (s *Store) Put(ctx context.Context, hash vs.Hash, size int64, r io.Reader) error {
	err := s.s.Put(ctx, hash, size, r)
	fields := log.Fields{"hash": hash, "size": size}
	if err != nil {
		s.log.WithError(err).WithFields(fields).Error("Put")
	} else {
		s.log.WithFields(fields).Debug("Put")
	}
	return err
}

// Delete removes the body stored under hash from the nested store, logging the outcome.
func (s *Store) Delete(ctx context.Context, hash vs.Hash) error {
	err := s.s.Delete(ctx, hash)
	if err != nil {
		s.log.WithError(err).WithField("hash", hash).Error("Delete")
	} else {
		s.log.WithField("hash", hash).Debug("Delete")
	}
	return err
}

// List produces all hashes in the nested store, logging the count.
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	s.log.Debug("List")
	var n int
	err := s.s.List(ctx, func(hash vs.Hash) error {
		err := f(hash)
		if err != nil {
			s.log.WithError(err).WithField("hash", hash).Error("in List")
		} else {
			n++
		}
		return err
	})
	s.log.WithField("count", n).Debug("List done")
	return err
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
		nestedStore, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nestedStore, nil), nil
	})
}
