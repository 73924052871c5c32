// Package badgerstore implements a content store on top of a Badger key-value database.
//
// Each body has a metadata record, keyed by "m" plus its hash,
// holding its size and a generation number.
// The body itself is kept in records of at most vs.ChunkSize bytes,
// keyed by "c" plus the generation and a sequence number.
// A Put writes a fresh generation of chunks before switching the metadata record to it,
// so a failed Put leaves the old body in place.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
)

var _ vs.Store = &Store{}

// Store is a Badger-based content store.
type Store struct {
	db  *badger.DB
	gen *badger.Sequence
}

var (
	metaPrefix  = []byte("m")
	chunkPrefix = []byte("c")
	genKey      = []byte("g")
)

// New opens (creating if needed) the Badger database in dir
// and produces a Store on top of it.
// Badger's own logging goes to the standard logrus logger.
func New(dir string) (*Store, error) {
	return Open(badger.DefaultOptions(dir).WithLogger(log.StandardLogger()))
}

// Open produces a Store on top of the Badger database described by opts.
func Open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", opts.Dir)
	}
	gen, err := db.GetSequence(genKey, 100)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "getting generation sequence")
	}
	return &Store{db: db, gen: gen}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.gen.Release(); err != nil {
		s.db.Close()
		return errors.Wrap(err, "releasing generation sequence")
	}
	return s.db.Close()
}

func metaKey(hash vs.Hash) []byte {
	return append(append([]byte{}, metaPrefix...), hash...)
}

func genPrefix(gen uint64) []byte {
	k := make([]byte, len(chunkPrefix)+8)
	copy(k, chunkPrefix)
	binary.BigEndian.PutUint64(k[len(chunkPrefix):], gen)
	return k
}

func chunkKey(gen, seq uint64) []byte {
	k := genPrefix(gen)
	return binary.BigEndian.AppendUint64(k, seq)
}

type meta struct {
	size, gen uint64
}

func (m meta) bytes() []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], m.size)
	binary.BigEndian.PutUint64(buf[8:], m.gen)
	return buf[:]
}

func getMeta(txn *badger.Txn, hash vs.Hash) (meta, error) {
	item, err := txn.Get(metaKey(hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta{}, errors.Wrapf(vs.ErrNotFound, "hash %s", hash)
	}
	if err != nil {
		return meta{}, errors.Wrapf(err, "getting metadata for %s", hash)
	}
	var m meta
	err = item.Value(func(val []byte) error {
		if len(val) != 16 {
			return errors.Errorf("metadata for %s is %d bytes, want 16", hash, len(val))
		}
		m.size = binary.BigEndian.Uint64(val[:8])
		m.gen = binary.BigEndian.Uint64(val[8:])
		return nil
	})
	return m, err
}

// Get gets the body stored under hash.
// The returned reader fetches one chunk record per call to Read.
func (s *Store) Get(_ context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	var m meta
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getMeta(txn, hash)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return &chunkReader{db: s.db, hash: hash, gen: m.gen, remaining: int64(m.size)}, int64(m.size), nil
}

type chunkReader struct {
	db        *badger.DB
	hash      vs.Hash
	gen, seq  uint64
	buf       []byte
	remaining int64
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}
		err := r.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(chunkKey(r.gen, r.seq))
			if err != nil {
				return err
			}
			r.buf, err = item.ValueCopy(r.buf[:0])
			return err
		})
		if err != nil {
			return 0, errors.Wrapf(err, "reading chunk %d of %s", r.seq, r.hash)
		}
		if len(r.buf) == 0 {
			return 0, errors.Wrapf(io.ErrUnexpectedEOF, "empty chunk %d of %s", r.seq, r.hash)
		}
		r.seq++
		r.remaining -= int64(len(r.buf))
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	return nil
}

// Put stores size bytes from r under hash,
// replacing any body already there.
func (s *Store) Put(_ context.Context, hash vs.Hash, size int64, r io.Reader) error {
	gen, err := s.gen.Next()
	if err != nil {
		return errors.Wrap(err, "getting next generation")
	}

	err = s.writeChunks(gen, size, r)
	if err != nil {
		if err2 := s.deleteGen(gen); err2 != nil {
			log.WithError(err2).Warnf("cleaning up after failed write of %s", hash)
		}
		return errors.Wrapf(err, "writing %s", hash)
	}

	var (
		old    meta
		hadOld bool
	)
	err = s.db.Update(func(txn *badger.Txn) error {
		var err error
		old, err = getMeta(txn, hash)
		switch {
		case err == nil:
			hadOld = true
		case !errors.Is(err, vs.ErrNotFound):
			return err
		}
		return txn.Set(metaKey(hash), meta{size: uint64(size), gen: gen}.bytes())
	})
	if err != nil {
		s.deleteGen(gen)
		return errors.Wrapf(err, "storing metadata for %s", hash)
	}

	if hadOld {
		return s.deleteGen(old.gen)
	}
	return nil
}

func (s *Store) writeChunks(gen uint64, size int64, r io.Reader) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var (
		buf = make([]byte, vs.ChunkSize)
		seq uint64
	)
	for size > 0 {
		n := int64(len(buf))
		if n > size {
			n = size
		}
		_, err := io.ReadFull(r, buf[:n])
		if err != nil {
			return errors.Wrapf(err, "reading chunk %d", seq)
		}
		// The batch keeps the value until it is flushed.
		err = wb.Set(chunkKey(gen, seq), append([]byte{}, buf[:n]...))
		if err != nil {
			return errors.Wrapf(err, "writing chunk %d", seq)
		}
		size -= n
		seq++
	}
	return wb.Flush()
}

// deleteGen removes every chunk record of generation gen.
func (s *Store) deleteGen(gen uint64) error {
	prefix := genPrefix(gen)

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "listing chunks of generation %d", gen)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return errors.Wrapf(err, "deleting chunks of generation %d", gen)
		}
	}
	return wb.Flush()
}

// Delete removes the body stored under hash.
// Deleting a missing hash is not an error.
func (s *Store) Delete(_ context.Context, hash vs.Hash) error {
	var (
		old   meta
		found bool
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		old, err = getMeta(txn, hash)
		if errors.Is(err, vs.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return txn.Delete(metaKey(hash))
	})
	if err != nil {
		return errors.Wrapf(err, "deleting %s", hash)
	}
	if !found {
		return nil
	}
	return s.deleteGen(old.gen)
}

// List produces all hashes in the store, in lexical order.
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	var hashes []vs.Hash
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(metaPrefix); it.ValidForPrefix(metaPrefix); it.Next() {
			key := it.Item().Key()
			hashes = append(hashes, vs.Hash(bytes.TrimPrefix(key, metaPrefix)))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "listing hashes")
	}

	for _, h := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(h); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("badger", func(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
		dir, ok := conf["dir"].(string)
		if !ok {
			return nil, errors.Wrap(vs.ErrConfig, `missing "dir" parameter`)
		}
		return New(dir)
	})
}
