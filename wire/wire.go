// Package wire implements the binary protocol spoken between client and server.
//
// A connection carries exactly one command.
// All multi-byte integers are big-endian.
//
//	uint8     1 byte
//	uint32    4 bytes
//	string    uint32 length N, then N raw bytes (no terminator)
//	body      uint32 length N, then N raw bytes, moved in chunks of at most 1024 bytes
//	status    uint8: 1 is OK, 0 is Error, anything else is a protocol violation
//
// Requests:
//
//	push  1 · name · hash          then, only after an OK status, the client sends body
//	tag   2 · count · tag · count×hash
//	pull  3 · tag                  response after OK: count · count×(name · body)
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

// Op is a request opcode.
type Op uint8

// Opcodes.
const (
	OpPush Op = 1
	OpTag  Op = 2
	OpPull Op = 3
)

func (op Op) String() string {
	switch op {
	case OpPush:
		return "push"
	case OpTag:
		return "tag"
	case OpPull:
		return "pull"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Status is a response status.
type Status uint8

// Status values.
const (
	Error Status = 0
	OK    Status = 1
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Error:
		return "Error"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MaxStringLen is the longest string ReadString accepts.
// A longer declared length is a protocol violation.
const MaxStringLen = 1 << 20

// Conn encodes and decodes protocol values on a Channel.
type Conn struct {
	ch Channel
}

// NewConn produces a Conn over ch.
func NewConn(ch Channel) *Conn {
	return &Conn{ch: ch}
}

// Close closes the underlying Channel.
func (c *Conn) Close() error {
	return c.ch.Close()
}

// ReadUint8 reads a single byte.
func (c *Conn) ReadUint8() (uint8, error) {
	var buf [1]byte
	err := c.ch.ReadFull(buf[:])
	return buf[0], err
}

// WriteUint8 writes a single byte.
func (c *Conn) WriteUint8(b uint8) error {
	return c.ch.WriteAll([]byte{b})
}

// ReadUint32 reads a big-endian 32-bit unsigned integer.
func (c *Conn) ReadUint32() (uint32, error) {
	var buf [4]byte
	err := c.ch.ReadFull(buf[:])
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// WriteUint32 writes a big-endian 32-bit unsigned integer.
func (c *Conn) WriteUint32(n uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	return c.ch.WriteAll(buf[:])
}

// WriteCount writes n as a uint32,
// failing with vs.ErrProtocol if it does not fit.
func (c *Conn) WriteCount(n int) error {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return errors.Wrapf(vs.ErrProtocol, "count %d out of range", n)
	}
	return c.WriteUint32(uint32(n))
}

// ReadString reads a length-prefixed string.
func (c *Conn) ReadString() (string, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return "", errors.Wrap(err, "reading string length")
	}
	if n > MaxStringLen {
		return "", errors.Wrapf(vs.ErrProtocol, "string length %d exceeds %d", n, MaxStringLen)
	}
	buf := make([]byte, n)
	err = c.ch.ReadFull(buf)
	if err != nil {
		return "", errors.Wrap(err, "reading string")
	}
	return string(buf), nil
}

// WriteString writes a length-prefixed string.
func (c *Conn) WriteString(s string) error {
	if len(s) > MaxStringLen {
		return errors.Wrapf(vs.ErrProtocol, "string length %d exceeds %d", len(s), MaxStringLen)
	}
	err := c.WriteUint32(uint32(len(s)))
	if err != nil {
		return errors.Wrap(err, "writing string length")
	}
	return c.ch.WriteAll([]byte(s))
}

// ReadStatus reads a status byte.
// A value other than OK or Error is a protocol violation.
func (c *Conn) ReadStatus() (Status, error) {
	b, err := c.ReadUint8()
	if err != nil {
		return Error, errors.Wrap(err, "reading status")
	}
	switch s := Status(b); s {
	case OK, Error:
		return s, nil
	default:
		return Error, errors.Wrapf(vs.ErrProtocol, "unexpected status byte %d", b)
	}
}

// WriteStatus writes a status byte.
func (c *Conn) WriteStatus(s Status) error {
	switch s {
	case OK, Error:
		return c.WriteUint8(uint8(s))
	default:
		return errors.Wrapf(vs.ErrProtocol, "unexpected status %d", uint8(s))
	}
}

// ReadBody reads the length prefix of a body
// and returns it together with a reader for the body bytes.
// The reader pulls at most vs.ChunkSize bytes from the channel per call
// and reports a short channel as a ChannelError, never as a clean EOF.
// The body must be consumed fully before anything else is read from c.
func (c *Conn) ReadBody() (int64, io.Reader, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return 0, nil, errors.Wrap(err, "reading body length")
	}
	return int64(n), &bodyReader{ch: c.ch, remaining: int64(n)}, nil
}

// ReadBodyTo reads a body and copies it to w.
// It returns the number of bytes copied.
func (c *Conn) ReadBodyTo(w io.Writer) (int64, error) {
	size, r, err := c.ReadBody()
	if err != nil {
		return 0, err
	}
	n, err := vs.CopyChunks(w, r)
	if err != nil {
		return n, errors.Wrap(err, "copying body")
	}
	if n != size {
		return n, errors.Wrapf(vs.ErrChannel, "got %d body bytes, want %d", n, size)
	}
	return n, nil
}

// WriteBody writes size as the body length
// and then exactly size bytes from r,
// in chunks of at most vs.ChunkSize bytes.
func (c *Conn) WriteBody(size int64, r io.Reader) error {
	if size < 0 || size > math.MaxUint32 {
		return errors.Wrapf(vs.ErrProtocol, "body size %d out of range", size)
	}
	err := c.WriteUint32(uint32(size))
	if err != nil {
		return errors.Wrap(err, "writing body length")
	}

	buf := make([]byte, vs.ChunkSize)
	for size > 0 {
		n := int64(len(buf))
		if n > size {
			n = size
		}
		_, err = io.ReadFull(r, buf[:n])
		if err != nil {
			return errors.Wrap(err, "reading body source")
		}
		err = c.ch.WriteAll(buf[:n])
		if err != nil {
			return errors.Wrap(err, "writing body chunk")
		}
		size -= n
	}
	return nil
}

type bodyReader struct {
	ch        Channel
	remaining int64
}

func (r *bodyReader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > vs.ChunkSize {
		n = vs.ChunkSize
	}
	if n > r.remaining {
		n = r.remaining
	}
	err := r.ch.ReadFull(p[:n])
	if err != nil {
		return 0, err
	}
	r.remaining -= n
	return int(n), nil
}
