package client

import (
	"context"
	"io"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/bobg/vs"
	"github.com/bobg/vs/server"
	"github.com/bobg/vs/store/mem"
)

func withServer(t *testing.T, f func(context.Context, *Client)) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var (
		ctx, cancel = context.WithCancel(context.Background())
		logger, _   = test.NewNullLogger()
		srv         = server.New(mem.New(), nil, nil, server.WithLogger(logger))
		served      = make(chan error, 1)
	)
	go func() {
		served <- srv.Serve(ctx, lis)
	}()
	defer func() {
		cancel()
		if err := <-served; err != nil {
			t.Errorf("Serve: %s", err)
		}
	}()

	host, port, err := net.SplitHostPort(lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	f(ctx, New(host, port))
}

func TestClient(t *testing.T) {
	dir, err := ioutil.TempDir("", "vsclient")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	withServer(t, func(ctx context.Context, c *Client) {
		added, err := c.Push(ctx, "report.txt", "abc123", 5, strings.NewReader("hello"))
		if err != nil {
			t.Fatal(err)
		}
		if !added {
			t.Error("first push not added")
		}

		added, err = c.Push(ctx, "x", "abc123", 5, strings.NewReader("other"))
		if err != nil {
			t.Fatal(err)
		}
		if added {
			t.Error("repeat push added")
		}

		if err = c.Tag(ctx, "v1", []vs.Hash{"abc123"}); err != nil {
			t.Fatal(err)
		}
		if err = c.Tag(ctx, "v1", []vs.Hash{"abc123"}); !errors.Is(err, ErrRefused) {
			t.Errorf("repeat tag: got %v, want ErrRefused", err)
		}
		if err = c.Tag(ctx, "v2", []vs.Hash{"doesnotexist"}); !errors.Is(err, ErrRefused) {
			t.Errorf("tag of unknown hash: got %v, want ErrRefused", err)
		}

		paths, err := c.PullToDir(ctx, "v1", dir)
		if err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, "report.txt.v1")
		if diff := cmp.Diff([]string{want}, paths); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
		got, err := ioutil.ReadFile(want)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}

		_, err = c.PullToDir(ctx, "nosuch", dir)
		if !errors.Is(err, ErrRefused) {
			t.Errorf("pull of unknown tag: got %v, want ErrRefused", err)
		}
	})
}

func TestPushFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "vsclient")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "data")
	data := strings.Repeat("0123456789", 500)
	if err = ioutil.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	withServer(t, func(ctx context.Context, c *Client) {
		_, err := c.PushFile(ctx, filepath.Join(dir, "nosuch"), "h0")
		if !os.IsNotExist(errors.Cause(err)) {
			t.Errorf("got %v, want a not-exist error", err)
		}

		added, err := c.PushFile(ctx, path, "h1")
		if err != nil {
			t.Fatal(err)
		}
		if !added {
			t.Error("push not added")
		}
		if err = c.Tag(ctx, "big", []vs.Hash{"h1"}); err != nil {
			t.Fatal(err)
		}

		var names []string
		err = c.Pull(ctx, "big", func(name string, size int64, body io.Reader) error {
			names = append(names, name)
			if size != int64(len(data)) {
				t.Errorf("got size %d, want %d", size, len(data))
			}
			// Read only part; Pull drains the rest.
			_, err := body.Read(make([]byte, 10))
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{path}, names); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPullOutsideDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "vsclient")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	withServer(t, func(ctx context.Context, c *Client) {
		if _, err := c.Push(ctx, "../escape", "h", 1, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
		if err := c.Tag(ctx, "t", []vs.Hash{"h"}); err != nil {
			t.Fatal(err)
		}
		_, err := c.PullToDir(ctx, "t", dir)
		if !errors.Is(err, vs.ErrProtocol) {
			t.Errorf("got %v, want ErrProtocol", err)
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.t")); err == nil {
			t.Error("file written outside dir")
		}
	})
}

func TestPullAbsoluteName(t *testing.T) {
	dir, err := ioutil.TempDir("", "vsclient")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	var (
		path = filepath.Join(dir, "src", "report.txt")
		out  = filepath.Join(dir, "out")
	)
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err = ioutil.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("%s is not absolute", path)
	}

	withServer(t, func(ctx context.Context, c *Client) {
		if _, err := c.PushFile(ctx, path, "abc123"); err != nil {
			t.Fatal(err)
		}
		if err := c.Tag(ctx, "v1", []vs.Hash{"abc123"}); err != nil {
			t.Fatal(err)
		}
		paths, err := c.PullToDir(ctx, "v1", out)
		if err != nil {
			t.Fatal(err)
		}

		want := filepath.Join(out, path[len(filepath.VolumeName(path)):]+".v1")
		if diff := cmp.Diff([]string{want}, paths); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
		got, err := ioutil.ReadFile(want)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "hello" {
			t.Errorf("got %q, want hello", got)
		}
	})
}
