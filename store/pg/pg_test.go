package pg

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store/sqlstore"
	"github.com/bobg/vs/testutil"
)

func TestStore(t *testing.T) {
	withStore(t, func(ctx context.Context, store *sqlstore.Store) {
		testutil.ReadWrite(ctx, t, store, testutil.Data(100000))
	})
}

func TestAllHashes(t *testing.T) {
	withStore(t, func(ctx context.Context, store *sqlstore.Store) {
		testutil.AllHashes(ctx, t, func() vs.Store {
			clear(ctx, t, store)
			return store
		})
	})
}

const connVar = "VS_PG_TESTING_CONN"

func withStore(t *testing.T, f func(context.Context, *sqlstore.Store)) {
	connstr := os.Getenv(connVar)
	if connstr == "" {
		t.Skipf("to run %s, set %s to a valid Postgresql connection string", t.Name(), connVar)
	}

	db, err := sql.Open("postgres", connstr)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	store, err := New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}

	clear(ctx, t, store)
	f(ctx, store)
}

func clear(ctx context.Context, t *testing.T, store *sqlstore.Store) {
	var hashes []vs.Hash
	err := store.List(ctx, func(h vs.Hash) error {
		hashes = append(hashes, h)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hashes {
		if err := store.Delete(ctx, h); err != nil {
			t.Fatal(err)
		}
	}
}
