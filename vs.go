package vs

import (
	"io"
	"sort"

	"github.com/pkg/errors"
)

// Hash is the caller-supplied key of a content object.
// It is opaque to the server.
type Hash string

// ChunkSize is the largest number of body bytes
// moved in a single read or write.
const ChunkSize = 1024

// CopyChunks copies from r to w until EOF
// through a single buffer of ChunkSize bytes.
// Unlike io.Copy it never hands the copy off to a ReaderFrom or WriterTo,
// so no read or write is larger than ChunkSize.
func CopyChunks(w io.Writer, r io.Reader) (int64, error) {
	var (
		buf     = make([]byte, ChunkSize)
		written int64
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			if m != n {
				return written, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// SortHashes sorts hashes lexically in place and returns them.
func SortHashes(hashes []Hash) []Hash {
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes
}

var (
	// ErrExists is the error for a hash or tag name that is already present.
	// It is reported to the remote caller as an Error status and never ends a connection.
	ErrExists = errors.New("already exists")

	// ErrNotFound is the error for a missing tag, name or body.
	ErrNotFound = errors.New("not found")

	// ErrProtocol is the error for a malformed request or response:
	// a bad status byte, an unknown opcode, an oversized length.
	// It aborts the connection.
	ErrProtocol = errors.New("protocol violation")

	// ErrChannel is the error for a transport failure,
	// including a peer that disconnects in the middle of a transfer.
	// It aborts the connection.
	ErrChannel = errors.New("channel failure")

	// ErrConfig is the error for bad startup configuration,
	// including an unreadable recovery log.
	ErrConfig = errors.New("configuration failure")
)
