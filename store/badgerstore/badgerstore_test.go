package badgerstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/bobg/vs"
	"github.com/bobg/vs/testutil"
)

func open(t *testing.T) *Store {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir()).
		WithLogger(nil).
		WithMemTableSize(1 << 20).
		WithBlockCacheSize(1 << 20)
	s, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Error(err)
		}
	})
	return s
}

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, open(t), testutil.Data(100000))
}

func TestAllHashes(t *testing.T) {
	testutil.AllHashes(context.Background(), t, func() vs.Store {
		return open(t)
	})
}

func countChunks(t *testing.T, s *Store) int {
	t.Helper()

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(chunkPrefix); it.ValidForPrefix(chunkPrefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestChunks(t *testing.T) {
	var (
		ctx  = context.Background()
		s    = open(t)
		data = testutil.Data(5*vs.ChunkSize + 1)
	)

	err := s.Put(ctx, "h", int64(len(data)), bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if n := countChunks(t, s); n != 6 {
		t.Errorf("got %d chunks after first put, want 6", n)
	}

	err = s.Put(ctx, "h", 10, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if n := countChunks(t, s); n != 1 {
		t.Errorf("got %d chunks after replacing, want 1", n)
	}

	err = s.Put(ctx, "h", int64(len(data)+1), bytes.NewReader(data))
	if err == nil {
		t.Error("got no error putting a short body")
	}
	if n := countChunks(t, s); n != 1 {
		t.Errorf("got %d chunks after a failed put, want 1", n)
	}

	err = s.Delete(ctx, "h")
	if err != nil {
		t.Fatal(err)
	}
	if n := countChunks(t, s); n != 0 {
		t.Errorf("got %d chunks after deleting, want 0", n)
	}
}
