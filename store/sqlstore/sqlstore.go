// Package sqlstore implements a content store on top of database/sql.
// Bodies are kept as rows of at most vs.ChunkSize bytes each,
// so neither writing nor reading a body holds the whole of it in memory.
//
// The sqlite3 and pg packages supply the schema and driver;
// the queries here use $N placeholders and ON CONFLICT,
// which both understand.
package sqlstore

import (
	"context"
	"database/sql"
	stderrs "errors"
	"io"

	"github.com/bobg/sqlutil"
	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

var _ vs.Store = &Store{}

// Store is a SQL-based content store.
type Store struct {
	db        *sql.DB
	listQuery string
}

// Dialect holds the parts of a Store that differ by database.
type Dialect struct {
	// Schema creates the blobs and chunks tables if they do not exist.
	Schema string

	// ListQuery selects every hash in the blobs table,
	// ordered bytewise.
	ListQuery string
}

// New produces a new Store using db for storage.
// It executes d.Schema first.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	_, err := db.ExecContext(ctx, d.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "creating schema")
	}
	return &Store{db: db, listQuery: d.ListQuery}, nil
}

// Get gets the body stored under hash.
// The returned reader fetches one chunk row per call to Read.
func (s *Store) Get(ctx context.Context, hash vs.Hash) (io.ReadCloser, int64, error) {
	const q = `SELECT size FROM blobs WHERE hash = $1`

	var size int64
	err := s.db.QueryRowContext(ctx, q, string(hash)).Scan(&size)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, 0, errors.Wrapf(vs.ErrNotFound, "hash %s", hash)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "getting size of %s", hash)
	}
	return &chunkReader{ctx: ctx, db: s.db, hash: hash, remaining: size}, size, nil
}

// Put stores size bytes from r under hash,
// replacing any body already there.
// Nothing changes unless all size bytes arrive.
func (s *Store) Put(ctx context.Context, hash vs.Hash, size int64, r io.Reader) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE hash = $1`, string(hash))
	if err != nil {
		return errors.Wrapf(err, "removing old chunks of %s", hash)
	}

	const q = `INSERT INTO blobs (hash, size) VALUES ($1, $2) ON CONFLICT (hash) DO UPDATE SET size = excluded.size`
	_, err = tx.ExecContext(ctx, q, string(hash), size)
	if err != nil {
		return errors.Wrapf(err, "inserting %s", hash)
	}

	const q2 = `INSERT INTO chunks (hash, seq, data) VALUES ($1, $2, $3)`

	buf := make([]byte, vs.ChunkSize)
	for seq, remaining := 0, size; remaining > 0; seq++ {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		_, err = io.ReadFull(r, buf[:n])
		if err != nil {
			return errors.Wrapf(err, "reading body for %s (%d bytes short)", hash, remaining)
		}
		_, err = tx.ExecContext(ctx, q2, string(hash), seq, buf[:n])
		if err != nil {
			return errors.Wrapf(err, "inserting chunk %d of %s", seq, hash)
		}
		remaining -= n
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Delete removes the body stored under hash.
func (s *Store) Delete(ctx context.Context, hash vs.Hash) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE hash = $1`, string(hash))
	if err != nil {
		return errors.Wrapf(err, "removing chunks of %s", hash)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM blobs WHERE hash = $1`, string(hash))
	if err != nil {
		return errors.Wrapf(err, "removing %s", hash)
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// List produces all hashes in the store, in lexical order.
func (s *Store) List(ctx context.Context, f func(vs.Hash) error) error {
	return sqlutil.ForQueryRows(ctx, s.db, s.listQuery, func(h string) error {
		return f(vs.Hash(h))
	})
}

type chunkReader struct {
	ctx       context.Context
	db        *sql.DB
	hash      vs.Hash
	seq       int
	buf       []byte
	remaining int64
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}

		const q = `SELECT data FROM chunks WHERE hash = $1 AND seq = $2`

		var data []byte
		err := r.db.QueryRowContext(r.ctx, q, string(r.hash), r.seq).Scan(&data)
		if stderrs.Is(err, sql.ErrNoRows) {
			return 0, errors.Wrapf(io.ErrUnexpectedEOF, "chunk %d of %s missing", r.seq, r.hash)
		}
		if err != nil {
			return 0, errors.Wrapf(err, "getting chunk %d of %s", r.seq, r.hash)
		}
		if len(data) == 0 {
			return 0, errors.Wrapf(io.ErrUnexpectedEOF, "chunk %d of %s empty", r.seq, r.hash)
		}
		r.seq++
		r.buf = data
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.remaining -= int64(n)
	return n, nil
}

func (r *chunkReader) Close() error {
	return nil
}
