package file

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/vs"
	"github.com/bobg/vs/testutil"
)

func TestStore(t *testing.T) {
	dirname, err := ioutil.TempDir("", "filestore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dirname)

	testutil.ReadWrite(context.Background(), t, New(dirname), testutil.Data(100000))
}

func TestAllHashes(t *testing.T) {
	dirname, err := ioutil.TempDir("", "filestore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dirname)

	var n int
	testutil.AllHashes(context.Background(), t, func() vs.Store {
		n++
		return New(filepath.Join(dirname, strings.Repeat("x", n)))
	})
}

func TestAwkwardHashes(t *testing.T) {
	dirname, err := ioutil.TempDir("", "filestore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dirname)

	var (
		ctx    = context.Background()
		s      = New(dirname)
		hashes = []vs.Hash{"", ".", "..", "../escape", "a/b", "with space", "100%"}
	)
	for _, h := range hashes {
		err = s.Put(ctx, h, int64(len(h)), strings.NewReader(string(h)))
		if err != nil {
			t.Fatalf("putting %q: %s", h, err)
		}
	}

	// Leftovers that List must ignore.
	err = ioutil.WriteFile(filepath.Join(dirname, "blobs", "stray"), []byte("x"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	var got []vs.Hash
	err = s.List(ctx, func(h vs.Hash) error {
		got = append(got, h)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := vs.SortHashes(append([]vs.Hash(nil), hashes...))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dirname), "escape")); err == nil {
		t.Error("hash escaped the store root")
	}
}
