// Package file implements a content store as a file hierarchy.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// Store is a file-based implementation of a content store.
//
// Each body is one file.
// Its name is "b" followed by the path-escaped hash,
// under two levels of subdirectories named for a digest of the hash,
// which keeps directories small no matter what the hashes look like.
type Store struct {
	root string
}

// New produces a new Store storing data beneath `root`.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) blobroot() string {
	return filepath.Join(s.root, "blobs")
}

func (s *Store) blobpath(hash vs.Hash) string {
	d := sha256.Sum256([]byte(hash))
	h := hex.EncodeToString(d[:])
	return filepath.Join(s.blobroot(), h[:2], h[:4], blobPrefix+url.PathEscape(string(hash)))
}

// The prefix keeps hashes like "." and ".." from naming directories.
const blobPrefix = "b"

// Most filesystems limit a name to 255 bytes.
const maxNameLen = 255

// Get gets the body stored under hash.
func (s *Store) Get(_ context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	path := s.blobpath(hash)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, errors.Wrapf(vs.ErrNotFound, "hash %s", hash)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "opening %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Wrapf(err, "statting %s", path)
	}
	return f, info.Size(), nil
}

// Put stores size bytes from r under hash.
// The body is written to a temporary file
// that replaces the final one only once complete.
func (s *Store) Put(_ context.Context, hash vs.Hash, size int64, r io.Reader) error {
	var (
		path = s.blobpath(hash)
		dir  = filepath.Dir(path)
	)
	if len(filepath.Base(path)) > maxNameLen {
		return fmt.Errorf("hash %s too long for a file name", hash)
	}

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	pf, err := renameio.TempFile(dir, path)
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	defer pf.Cleanup()

	n, err := vs.CopyChunks(pf, io.LimitReader(r, size))
	if err != nil {
		return errors.Wrapf(err, "writing data to %s", path)
	}
	if n != size {
		return errors.Wrapf(io.ErrUnexpectedEOF, "writing data to %s (got %d of %d bytes)", path, n, size)
	}

	return errors.Wrapf(pf.CloseAtomicallyReplace(), "committing %s", path)
}

// Delete removes the body stored under hash.
func (s *Store) Delete(_ context.Context, hash vs.Hash) error {
	path := s.blobpath(hash)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "removing %s", path)
}

// List produces all hashes in the store, in lexical order.
// It walks the whole hierarchy,
// since the directory layout follows a digest of each hash and not the hash itself.
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	topLevel, err := ioutil.ReadDir(s.blobroot())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", s.blobroot())
	}

	var hashes []vs.Hash
	for _, topInfo := range topLevel {
		if !topInfo.IsDir() || len(topInfo.Name()) != 2 {
			continue
		}
		topDir := filepath.Join(s.blobroot(), topInfo.Name())
		midLevel, err := ioutil.ReadDir(topDir)
		if err != nil {
			return errors.Wrapf(err, "reading dir %s", topDir)
		}
		for _, midInfo := range midLevel {
			if !midInfo.IsDir() || len(midInfo.Name()) != 4 {
				continue
			}
			midDir := filepath.Join(topDir, midInfo.Name())
			blobInfos, err := ioutil.ReadDir(midDir)
			if err != nil {
				return errors.Wrapf(err, "reading dir %s", midDir)
			}
			for _, blobInfo := range blobInfos {
				name := blobInfo.Name()
				if blobInfo.IsDir() || !strings.HasPrefix(name, blobPrefix) {
					continue
				}
				h, err := url.PathUnescape(strings.TrimPrefix(name, blobPrefix))
				if err != nil {
					// Not one of ours (a leftover temp file, say).
					continue
				}
				if s.blobpath(vs.Hash(h)) != filepath.Join(midDir, name) {
					continue
				}
				hashes = append(hashes, vs.Hash(h))
			}
		}
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	for _, h := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = f(h)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (vs.Store, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
