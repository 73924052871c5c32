// Package compress implements a content store that compresses and uncompresses bodies
// on their way into and out of a nested store.
//
// Bodies are compressed with zstd.
// Each stored object is the body's uncompressed size as a big-endian uint64,
// followed by the compressed stream.
package compress

import (
	"context"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// Store compresses bodies stored in a nested store.
type Store struct {
	s      vs.Store
	level  zstd.EncoderLevel
	tmpdir string
}

// New produces a new Store compressing into s at the given level.
// Compressed bodies are staged in temporary files in tmpdir
// (the default temp dir if tmpdir is "")
// since the nested store needs each one's size before it can take it.
func New(s vs.Store, level zstd.EncoderLevel, tmpdir string) *Store {
	return &Store{s: s, level: level, tmpdir: tmpdir}
}

const headerLen = 8

// Get gets the body stored under hash, uncompressing it as it is read.
func (s *Store) Get(ctx context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	r, _, err := s.s.Get(ctx, hash)
	if err != nil {
		return nil, 0, err
	}

	var hdr [headerLen]byte
	_, err = io.ReadFull(r, hdr[:])
	if err != nil {
		r.Close()
		return nil, 0, errors.Wrapf(err, "reading header of %s", hash)
	}

	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		r.Close()
		return nil, 0, errors.Wrapf(err, "uncompressing %s", hash)
	}
	return &reader{dec: dec, r: r}, int64(binary.BigEndian.Uint64(hdr[:])), nil
}

type reader struct {
	dec *zstd.Decoder
	r   io.ReadCloser
}

func (r *reader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *reader) Close() error {
	r.dec.Close()
	return r.r.Close()
}

// Put compresses size bytes from r and stores them under hash in the nested store.
func (s *Store) Put(ctx context.Context, hash vs.Hash, size int64, r io.Reader) error {
	tmp, err := ioutil.TempFile(s.tmpdir, "vscompress")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	var hdr [headerLen]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(size))
	_, err = tmp.Write(hdr[:])
	if err != nil {
		return errors.Wrapf(err, "writing header of %s", hash)
	}

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return errors.Wrap(err, "creating compressor")
	}
	n, err := vs.CopyChunks(enc, io.LimitReader(r, size))
	if err == nil && n != size {
		err = errors.Wrapf(io.ErrUnexpectedEOF, "got %d of %d bytes", n, size)
	}
	if err != nil {
		enc.Close()
		return errors.Wrapf(err, "compressing %s", hash)
	}
	err = enc.Close()
	if err != nil {
		return errors.Wrapf(err, "compressing %s", hash)
	}

	csize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "measuring temp file")
	}
	_, err = tmp.Seek(0, io.SeekStart)
	if err != nil {
		return errors.Wrap(err, "rewinding temp file")
	}
	return s.s.Put(ctx, hash, csize, tmp)
}

// Delete removes the body stored under hash from the nested store.
func (s *Store) Delete(ctx context.Context, hash vs.Hash) error {
	return s.s.Delete(ctx, hash)
}

// List produces all hashes in the nested store, in lexical order.
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	return s.s.List(ctx, f)
}

func init() {
	store.Register("compress", func(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
		level := zstd.SpeedDefault
		if name, ok := conf["level"].(string); ok {
			var found bool
			found, level = zstd.EncoderLevelFromString(name)
			if !found {
				return nil, errors.Errorf("unknown compression level %q", name)
			}
		}
		tmpdir, _ := conf["tmpdir"].(string)
		nestedStore, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nestedStore, level, tmpdir), nil
	})
}
