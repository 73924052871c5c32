// Package testutil holds conformance tests shared by the content store backends.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"math/rand"
	"testing"
	"time"

	"github.com/bobg/vs"
)

// Data produces n bytes of pseudorandom data.
// The same n always produces the same bytes.
func Data(n int) []byte {
	var (
		rnd = rand.New(rand.NewSource(int64(n)))
		buf = make([]byte, n)
	)
	rnd.Read(buf)
	return buf
}

// ReadWrite permits testing a Store implementation
// by writing some data to it,
// then reading it back out to make sure it's the same.
// It also checks replacing, deleting, and getting a missing hash.
func ReadWrite(ctx context.Context, t *testing.T, store vs.Store, data []byte) {
	const hash = vs.Hash("readwrite")

	t1 := time.Now()
	err := store.Put(ctx, hash, int64(len(data)), bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("wrote %d bytes in %s", len(data), time.Since(t1))

	t2 := time.Now()
	got := get(ctx, t, store, hash)
	t.Logf("read %d bytes in %s", len(got), time.Since(t2))
	compare(t, got, data)

	// Put replaces.
	data2 := append([]byte("replaced "), data[:len(data)/2]...)
	err = store.Put(ctx, hash, int64(len(data2)), bytes.NewReader(data2))
	if err != nil {
		t.Fatal(err)
	}
	compare(t, get(ctx, t, store, hash), data2)

	// A short source fails and leaves the old body in place.
	err = store.Put(ctx, hash, int64(len(data)+1), bytes.NewReader(data))
	if err == nil {
		t.Error("got no error putting a short body")
	}
	if r, _, err := store.Get(ctx, hash); err == nil {
		r.Close()
	} else if !errors.Is(err, vs.ErrNotFound) {
		t.Errorf("after short put: %s", err)
	}

	err = store.Delete(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = store.Get(ctx, hash)
	if !errors.Is(err, vs.ErrNotFound) {
		t.Errorf("after delete got error %v, want ErrNotFound", err)
	}

	// Deleting again is not an error.
	err = store.Delete(ctx, hash)
	if err != nil {
		t.Errorf("deleting a missing hash: %s", err)
	}

	// The empty body is a body.
	err = store.Put(ctx, "empty", 0, bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	compare(t, get(ctx, t, store, "empty"), nil)
}

func get(ctx context.Context, t *testing.T, store vs.Store, hash vs.Hash) []byte {
	t.Helper()

	r, size, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(got)) != size {
		t.Errorf("Get reported size %d but produced %d bytes", size, len(got))
	}
	return got
}

func compare(t *testing.T, got, want []byte) {
	t.Helper()

	if len(got) != len(want) {
		t.Errorf("got length %d, want %d", len(got), len(want))
		return
	}
	for i := 0; i < len(got); i++ {
		if got[i] != want[i] {
			t.Fatalf("mismatch at position %d (of %d)", i, len(got))
		}
	}
}
