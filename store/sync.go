package store

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/vs"
)

// Sync synchronizes two or more stores.
// It lists all input stores concurrently.
// When a hash is found to be in some but not all stores,
// its body is streamed from one that has it to each one that doesn't.
//
// Sync moves bodies only.
// Whether a hash counts as pushed is up to a server's content index,
// so Sync is a tool for migrating between backends,
// not a way to create content.
func Sync(ctx context.Context, stores []vs.Store) error {
	if len(stores) < 2 {
		return nil
	}

	var (
		eg, ctx2 = errgroup.WithContext(ctx)
		sets     = make([]map[vs.Hash]struct{}, len(stores))
	)
	for i, s := range stores {
		i, s := i, s
		eg.Go(func() error {
			set := make(map[vs.Hash]struct{})
			err := s.List(ctx2, func(h vs.Hash) error {
				set[h] = struct{}{}
				return nil
			})
			sets[i] = set
			return errors.Wrapf(err, "listing store %d", i)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	// Union of all hashes, each mapped to one store that has it.
	havers := make(map[vs.Hash]int)
	for i, set := range sets {
		for h := range set {
			if _, ok := havers[h]; !ok {
				havers[h] = i
			}
		}
	}

	hashes := make([]vs.Hash, 0, len(havers))
	for h := range havers {
		hashes = append(hashes, h)
	}
	vs.SortHashes(hashes)

	for _, h := range hashes {
		src := stores[havers[h]]
		for i, dst := range stores {
			if _, ok := sets[i][h]; ok {
				continue
			}
			err := Copy(ctx, dst, src, h)
			if err != nil {
				return errors.Wrapf(err, "copying %s to store %d", h, i)
			}
		}
	}

	return nil
}

// Copy streams the body stored under hash from src to dst.
func Copy(ctx context.Context, dst, src vs.Store, hash vs.Hash) error {
	r, size, err := src.Get(ctx, hash)
	if err != nil {
		return errors.Wrapf(err, "getting %s", hash)
	}
	defer r.Close()

	return errors.Wrapf(dst.Put(ctx, hash, size, r), "putting %s", hash)
}
