// Package sqlite3 implements a content store in a Sqlite database.
package sqlite3

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
	"github.com/bobg/vs/store/sqlstore"
)

// Schema is the SQL that New executes.
// It creates the `blobs` and `chunks` tables if they do not exist.
// (If they do exist, they must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
  hash TEXT PRIMARY KEY NOT NULL,
  size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
  hash TEXT NOT NULL,
  seq INTEGER NOT NULL,
  data BLOB NOT NULL,
  PRIMARY KEY (hash, seq)
);
`

// Sqlite compares TEXT bytewise by default.
const listQuery = `SELECT hash FROM blobs ORDER BY hash`

// New produces a new content store using `db` for storage.
// It expects to create tables `blobs` and `chunks`,
// or for those tables already to exist with the correct schema.
// (See constant Schema.)
func New(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	return sqlstore.New(ctx, db, sqlstore.Dialect{Schema: Schema, ListQuery: listQuery})
}

func init() {
	store.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
