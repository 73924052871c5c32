// Package recovery reads and writes the recovery log:
// a plain-text snapshot of the content index and the tag index.
//
// Each line is one record,
// a sequence of space-separated tokens ending with a lone ";" token.
//
//	f <name> <hash> <hash> ... ;
//	t <tag> <hash> <hash> ... ;
//
// An "f" record lists every hash pushed under one name.
// A "t" record lists the hashes of one tag.
// Neither the order of records nor the order of hashes within a record matters.
//
// A token that is empty,
// is ";",
// or contains whitespace or "%"
// is written percent-escaped (an empty token as a lone "%").
// Tokens containing "%" are unescaped on reading.
package recovery

import (
	"bufio"
	"io"
	"net/url"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/index"
	"github.com/bobg/vs/wire"
)

const (
	fileRecord = "f"
	tagRecord  = "t"
	terminator = ";"
	emptyToken = "%"
)

// MaxToken is the longest token Load accepts.
// Escaping can triple the length of a string,
// so any name, hash, or tag that fits on the wire fits here.
const MaxToken = 3*wire.MaxStringLen + 1024

// Load parses a recovery log from r into files and tags.
// Any malformed input is reported as vs.ErrConfig.
// So is a tag that names a hash absent from every "f" record.
func Load(r io.Reader, files *index.Files, tags *index.Tags) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxToken)
	sc.Split(bufio.ScanWords)

	type record struct {
		kind   string
		name   string
		hashes []vs.Hash
	}

	const (
		wantKind = iota
		wantName
		wantHash
	)

	var (
		state   = wantKind
		rec     record
		n       = 1 // record number, for messages
		pending []record
	)

	for sc.Scan() {
		tok := sc.Text()

		switch state {
		case wantKind:
			if tok != fileRecord && tok != tagRecord {
				return errors.Wrapf(vs.ErrConfig, "record %d: unknown record type %q", n, tok)
			}
			rec = record{kind: tok}
			state = wantName

		case wantName:
			name, err := decodeToken(tok)
			if err != nil {
				return errors.Wrapf(vs.ErrConfig, "record %d: decoding name %q: %s", n, tok, err)
			}
			rec.name = name
			state = wantHash

		case wantHash:
			if tok != terminator {
				h, err := decodeToken(tok)
				if err != nil {
					return errors.Wrapf(vs.ErrConfig, "record %d: decoding hash %q: %s", n, tok, err)
				}
				rec.hashes = append(rec.hashes, vs.Hash(h))
				continue
			}

			if rec.kind == fileRecord {
				for _, h := range rec.hashes {
					if err := files.Insert(rec.name, h); err != nil {
						return errors.Wrapf(vs.ErrConfig, "record %d: %s", n, err)
					}
				}
			} else {
				// Tags are checked once every file record is in.
				pending = append(pending, rec)
			}
			n++
			state = wantKind
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(vs.ErrConfig, "reading recovery log: %s", err)
	}
	if state != wantKind {
		return errors.Wrapf(vs.ErrConfig, "record %d: unterminated", n)
	}

	for _, rec := range pending {
		for _, h := range rec.hashes {
			if !files.Exists(h) {
				return errors.Wrapf(vs.ErrConfig, "tag %s: unknown hash %s", rec.name, h)
			}
		}
		if err := tags.Add(rec.name, rec.hashes); err != nil {
			return errors.Wrapf(vs.ErrConfig, "%s", err)
		}
	}

	return nil
}

// Save writes files and tags to w as a recovery log.
// File records come first, then tag records, each sorted by name.
func Save(w io.Writer, files *index.Files, tags *index.Tags) error {
	bw := bufio.NewWriter(w)

	write := func(kind string) func(string, []vs.Hash) error {
		return func(name string, hashes []vs.Hash) error {
			toks := make([]string, 0, len(hashes)+3)
			toks = append(toks, kind, encodeToken(name))
			for _, h := range hashes {
				toks = append(toks, encodeToken(string(h)))
			}
			for _, tok := range toks {
				if len(tok) > MaxToken {
					return errors.Errorf("%s record %.32q...: token of %d bytes exceeds %d", kind, name, len(tok), MaxToken)
				}
			}
			toks = append(toks, terminator)
			_, err := bw.WriteString(strings.Join(toks, " ") + "\n")
			return err
		}
	}

	err := files.Each(write(fileRecord))
	if err != nil {
		return errors.Wrap(err, "writing file records")
	}
	err = tags.Each(write(tagRecord))
	if err != nil {
		return errors.Wrap(err, "writing tag records")
	}
	return errors.Wrap(bw.Flush(), "flushing recovery log")
}

func encodeToken(s string) string {
	if s == "" {
		return emptyToken
	}
	if s == terminator || strings.ContainsRune(s, '%') || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return url.PathEscape(s)
	}
	return s
}

func decodeToken(s string) (string, error) {
	if s == emptyToken {
		return "", nil
	}
	if strings.ContainsRune(s, '%') {
		return url.PathUnescape(s)
	}
	return s, nil
}
