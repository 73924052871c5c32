// Package gc removes content bodies that no index entry refers to.
//
// Such orphans are left behind when a server stops without saving its recovery log
// after accepting pushes,
// since the store keeps the bodies but the reloaded index has no record of them.
package gc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

// Keep tells whether a hash is still in use.
type Keep interface {
	Exists(vs.Hash) bool
}

// Run runs a garbage collection on s,
// deleting every body whose hash k does not contain.
// It returns the hashes deleted.
//
// Hashes are gathered before anything is deleted,
// so backends need not support deletion during List.
func Run(ctx context.Context, s vs.Store, k Keep) ([]vs.Hash, error) {
	var orphans []vs.Hash
	err := s.List(ctx, func(hash vs.Hash) error {
		if !k.Exists(hash) {
			orphans = append(orphans, hash)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing store")
	}

	for i, hash := range orphans {
		err = s.Delete(ctx, hash)
		if err != nil {
			return orphans[:i], errors.Wrapf(err, "deleting %s", hash)
		}
	}
	return orphans, nil
}
