package lru

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
	"github.com/bobg/vs/store/mem"
	"github.com/bobg/vs/testutil"
)

func TestStore(t *testing.T) {
	s, err := New(mem.New(), 1000, DefaultMaxBody)
	if err != nil {
		t.Fatal(err)
	}
	testutil.ReadWrite(context.Background(), t, s, testutil.Data(100000))

	s, err = New(mem.New(), 1000, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	testutil.ReadWrite(context.Background(), t, s, testutil.Data(100000))
}

func TestAllHashes(t *testing.T) {
	testutil.AllHashes(context.Background(), t, func() vs.Store {
		s, err := New(mem.New(), 1000, DefaultMaxBody)
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestCache(t *testing.T) {
	var (
		ctx    = context.Background()
		nested = mem.New()
	)
	s, err := New(nested, 10, 8)
	if err != nil {
		t.Fatal(err)
	}

	for _, word := range []string{"small", "much too large"} {
		err = s.Put(ctx, vs.Hash(word), int64(len(word)), strings.NewReader(word))
		if err != nil {
			t.Fatal(err)
		}
	}

	// Remove the bodies from underneath the cache.
	for _, word := range []string{"small", "much too large"} {
		if err := nested.Delete(ctx, vs.Hash(word)); err != nil {
			t.Fatal(err)
		}
	}

	r, _, err := s.Get(ctx, "small")
	if err != nil {
		t.Fatalf("small body not cached: %s", err)
	}
	got, err := ioutil.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "small" {
		t.Errorf("got %q, want %q", got, "small")
	}

	_, _, err = s.Get(ctx, "much too large")
	if err == nil {
		t.Error("large body was cached")
	}
}

func TestRegistry(t *testing.T) {
	conf := map[string]interface{}{
		"size":   float64(10),
		"nested": map[string]interface{}{"type": "mem"},
	}
	s, err := store.Create(context.Background(), "lru", conf)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.(*Store).maxBody; got != DefaultMaxBody {
		t.Errorf("got max body %d, want %d", got, DefaultMaxBody)
	}

	conf["max_body"] = json.Number("100")
	s, err = store.Create(context.Background(), "lru", conf)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.(*Store).maxBody; got != 100 {
		t.Errorf("got max body %d, want 100", got)
	}
}
