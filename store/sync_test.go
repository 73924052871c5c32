package store_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/vs"
	. "github.com/bobg/vs/store"
	_ "github.com/bobg/vs/store/lru"
	"github.com/bobg/vs/store/mem"
)

func TestSync(t *testing.T) {
	const text = `abc def ghi jkl mno pqr stu`

	var (
		ctx    = context.Background()
		words  = strings.Fields(text)
		stores = make([]vs.Store, 0, len(words))
	)
	for i := range words {
		s := mem.New()
		stores = append(stores, s)
		for j, word := range words {
			if i == j {
				continue
			}

			err := s.Put(ctx, vs.Hash(word), int64(len(word)), strings.NewReader(word))
			if err != nil {
				t.Fatal(err)
			}
		}
	}

	err := Sync(ctx, stores)
	if err != nil {
		t.Fatal(err)
	}

	for i, s := range stores {
		var hashes []vs.Hash
		err = s.List(ctx, func(h vs.Hash) error {
			hashes = append(hashes, h)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		var want []vs.Hash
		for _, word := range words {
			want = append(want, vs.Hash(word))
		}
		if diff := cmp.Diff(want, hashes); diff != "" {
			t.Errorf("store %d mismatch (-want +got):\n%s", i, diff)
		}

		r, _, err := s.Get(ctx, vs.Hash(words[i]))
		if err != nil {
			t.Fatal(err)
		}
		got, err := ioutil.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != words[i] {
			t.Errorf("store %d: got %q for %s, want %q", i, got, words[i], words[i])
		}
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	s, err := Create(ctx, "mem", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*mem.Store); !ok {
		t.Errorf("got %T, want *mem.Store", s)
	}

	_, err = Create(ctx, "nonesuch", nil)
	if err == nil {
		t.Error("got no error creating an unregistered type")
	}

	s, err = CreateNested(ctx, map[string]interface{}{
		"nested": map[string]interface{}{"type": "mem"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*mem.Store); !ok {
		t.Errorf("got %T, want *mem.Store", s)
	}

	_, err = CreateNested(ctx, map[string]interface{}{})
	if err == nil {
		t.Error("got no error with no nested config")
	}
}

func TestCreateFromFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "vsstore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cases := []struct {
		ext     string
		conf    string
		wantErr bool
	}{
		{ext: "json", conf: `{"type": "mem"}`},
		{ext: "json", conf: `{"type": "nonesuch"}`, wantErr: true},
		{ext: "json", conf: `{}`, wantErr: true},
		{ext: "json", conf: `not json`, wantErr: true},
		{ext: "yaml", conf: "type: mem\n"},
		{ext: "yml", conf: "type: lru\nsize: 10\nnested:\n  type: mem\n"},
		{ext: "yaml", conf: "size: 10\n", wantErr: true},
		{ext: "yaml", conf: "type: [mem\n", wantErr: true},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%02d", i+1), func(t *testing.T) {
			path := filepath.Join(dir, fmt.Sprintf("conf%02d.%s", i+1, c.ext))
			if err := ioutil.WriteFile(path, []byte(c.conf), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := CreateFromFile(context.Background(), path)
			if c.wantErr {
				if err == nil {
					t.Error("got no error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
		})
	}

	if _, err := CreateFromFile(context.Background(), filepath.Join(dir, "nosuch.json")); err == nil {
		t.Error("got no error for a missing file")
	}
}
