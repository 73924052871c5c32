// Package client implements the client side of the versioning protocol.
// Each method opens its own connection,
// since the server handles one request per connection.
package client

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/wire"
)

// ErrRefused is the error for a request the server answered with status Error.
// For a tag request that means the tag already exists or names an unknown hash;
// for a pull request, that the tag does not exist.
var ErrRefused = errors.New("request refused")

// Client talks to the server at one address.
type Client struct {
	addr, service string
}

// New produces a Client for the server at addr and service (a port number or name).
func New(addr, service string) *Client {
	return &Client{addr: addr, service: service}
}

// Canceling ctx closes the connection,
// which unblocks any read or write in progress.
func (c *Client) dial(ctx context.Context) (*wire.Conn, func(), error) {
	ch, err := wire.Dial(ctx, c.addr, c.service)
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() { ch.Close() })
	conn := wire.NewConn(ch)
	return conn, func() {
		stop()
		conn.Close()
	}, nil
}

// Push offers size bytes from r to the server under name and hash.
// It reports whether the server took them;
// false means the server already has hash,
// in which case nothing is read from r.
func (c *Client) Push(ctx context.Context, name string, hash vs.Hash, size int64, r io.Reader) (bool, error) {
	conn, done, err := c.dial(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	err = conn.WriteRequest(&wire.PushRequest{Name: name, Hash: hash})
	if err != nil {
		return false, errors.Wrap(err, "sending push request")
	}
	status, err := conn.ReadStatus()
	if err != nil {
		return false, errors.Wrap(err, "reading push response")
	}
	if status == wire.Error {
		return false, nil
	}
	err = conn.WriteBody(size, r)
	return err == nil, errors.Wrapf(err, "sending %s", name)
}

// PushFile pushes the file at path, using path as its name.
// The file is opened before connecting,
// so a missing file is reported without involving the server.
func (c *Client) PushFile(ctx context.Context, path string, hash vs.Hash) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, errors.Wrapf(err, "statting %s", path)
	}
	return c.Push(ctx, path, hash, info.Size(), f)
}

// Tag asks the server to define tag as the given set of hashes.
// It returns ErrRefused if the server says no.
func (c *Client) Tag(ctx context.Context, tag string, hashes []vs.Hash) error {
	conn, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = conn.WriteRequest(&wire.TagRequest{Tag: tag, Hashes: hashes})
	if err != nil {
		return errors.Wrap(err, "sending tag request")
	}
	status, err := conn.ReadStatus()
	if err != nil {
		return errors.Wrap(err, "reading tag response")
	}
	if status == wire.Error {
		return errors.Wrapf(ErrRefused, "tag %s", tag)
	}
	return nil
}

// Pull asks the server for every file in tag
// and calls f with each one's name, size, and body as it arrives.
// The body must be consumed only within the call.
// Pull returns ErrRefused if the tag does not exist.
func (c *Client) Pull(ctx context.Context, tag string, f func(name string, size int64, body io.Reader) error) error {
	conn, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = conn.WriteRequest(&wire.PullRequest{Tag: tag})
	if err != nil {
		return errors.Wrap(err, "sending pull request")
	}
	status, err := conn.ReadStatus()
	if err != nil {
		return errors.Wrap(err, "reading pull response")
	}
	if status == wire.Error {
		return errors.Wrapf(ErrRefused, "tag %s", tag)
	}

	n, err := conn.ReadUint32()
	if err != nil {
		return errors.Wrap(err, "reading file count")
	}
	for i := uint32(0); i < n; i++ {
		name, err := conn.ReadString()
		if err != nil {
			return errors.Wrapf(err, "reading name of file %d of %d", i+1, n)
		}
		size, body, err := conn.ReadBody()
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
		err = f(name, size, body)
		if err != nil {
			return err
		}
		// Drain whatever f left, to stay in step with the stream.
		_, err = vs.CopyChunks(io.Discard, body)
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
	}
	return nil
}

// PullToDir pulls tag and writes each file into dir as NAME.TAG.
// An absolute NAME is taken relative to dir.
// It returns the paths written.
// Each file appears whole or not at all,
// but a pull that fails partway leaves the files before it in place.
func (c *Client) PullToDir(ctx context.Context, tag, dir string) ([]string, error) {
	var paths []string
	err := c.Pull(ctx, tag, func(name string, size int64, body io.Reader) error {
		rel, ok := localPath(name + "." + tag)
		if !ok {
			return errors.Wrapf(vs.ErrProtocol, "refusing to write %s outside %s", name+"."+tag, dir)
		}
		path := filepath.Join(dir, rel)
		err := writeFile(path, size, body)
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// localPath maps a received file name to a path relative to the output directory.
// A leading volume name or root is dropped,
// so a file pushed by absolute path lands under the output directory.
// It reports false for a name that would still climb out of it.
func localPath(name string) (string, bool) {
	rel := name[len(filepath.VolumeName(name)):]
	rel = strings.TrimLeft(rel, "/"+string(filepath.Separator))
	return rel, filepath.IsLocal(rel)
}

func writeFile(path string, size int64, body io.Reader) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	pf, err := renameio.TempFile(dir, path)
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	defer pf.Cleanup()

	n, err := vs.CopyChunks(pf, body)
	if err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if n != size {
		return errors.Wrapf(io.ErrUnexpectedEOF, "writing %s (got %d of %d bytes)", path, n, size)
	}
	if err = pf.Chmod(0644); err != nil {
		return errors.Wrapf(err, "setting mode of %s", path)
	}
	return errors.Wrapf(pf.CloseAtomicallyReplace(), "committing %s", path)
}
