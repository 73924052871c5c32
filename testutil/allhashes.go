package testutil

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/vs"
)

// AllHashes writes a random set of random bodies to an empty store
// and makes sure that the right set of hashes comes back, in order, from List.
func AllHashes(ctx context.Context, t *testing.T, storeFactory func() vs.Store) {
	if err := quick.Check(allHashesHelper(ctx, t, storeFactory), &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func allHashesHelper(ctx context.Context, t *testing.T, storeFactory func() vs.Store) func(map[uint64][]byte) bool {
	return func(bodies map[uint64][]byte) bool {
		var (
			store = storeFactory()
			want  []vs.Hash
		)
		for k, body := range bodies {
			h := vs.Hash(strconv.FormatUint(k, 16))
			err := store.Put(ctx, h, int64(len(body)), bytes.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			want = append(want, h)
		}
		vs.SortHashes(want)

		var got []vs.Hash
		err := store.List(ctx, func(h vs.Hash) error {
			got = append(got, h)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Logf("mismatch (-want +got):\n%s", diff)
			return false
		}
		return true
	}
}
