package wire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"

	"github.com/bobg/vs"
)

// Channel is a reliable, ordered, bidirectional byte stream.
// One Channel carries one connection.
type Channel interface {
	// ReadFull reads exactly len(p) bytes into p.
	// Anything less is an error.
	ReadFull(p []byte) error

	// WriteAll writes all of p.
	WriteAll(p []byte) error

	Close() error
}

// ChannelError is a transport failure on a Channel.
// It matches vs.ErrChannel under errors.Is.
type ChannelError struct {
	Op  string // "read" or "write"
	N   int    // bytes requested
	Err error
}

func (e *ChannelError) Error() string {
	if e.N > 0 {
		return fmt.Sprintf("%s of %d bytes: %s", e.Op, e.N, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Is makes every ChannelError match vs.ErrChannel.
func (e *ChannelError) Is(target error) bool {
	return target == vs.ErrChannel
}

var _ Channel = &NetChannel{}

// NetChannel is a Channel over a network connection.
type NetChannel struct {
	conn net.Conn
}

// NewNetChannel produces a Channel reading and writing conn.
func NewNetChannel(conn net.Conn) *NetChannel {
	return &NetChannel{conn: conn}
}

// Dial connects to service (a port number or service name) at address.
func Dial(ctx context.Context, address, service string) (*NetChannel, error) {
	var (
		d    net.Dialer
		addr = net.JoinHostPort(address, service)
	)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ChannelError{Op: "dial " + addr, Err: err}
	}
	return NewNetChannel(conn), nil
}

// ReadFull implements Channel.ReadFull.
func (c *NetChannel) ReadFull(p []byte) error {
	return readFull(c.conn, p)
}

// WriteAll implements Channel.WriteAll.
func (c *NetChannel) WriteAll(p []byte) error {
	return writeAll(c.conn, p)
}

// Close closes the underlying connection.
func (c *NetChannel) Close() error {
	return c.conn.Close()
}

// RemoteAddr is the address of the peer.
func (c *NetChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

var _ Channel = &Buffer{}

// Buffer is an in-memory Channel.
// Reads consume what earlier writes produced.
// The zero Buffer is empty and ready to use.
type Buffer struct {
	bytes.Buffer
}

// NewBuffer produces a Buffer whose first reads return b.
func NewBuffer(b []byte) *Buffer {
	buf := &Buffer{}
	buf.Write(b)
	return buf
}

// ReadFull implements Channel.ReadFull.
func (b *Buffer) ReadFull(p []byte) error {
	return readFull(&b.Buffer, p)
}

// WriteAll implements Channel.WriteAll.
func (b *Buffer) WriteAll(p []byte) error {
	return writeAll(&b.Buffer, p)
}

// Close implements Channel.Close.
func (b *Buffer) Close() error { return nil }

func readFull(r io.Reader, p []byte) error {
	_, err := io.ReadFull(r, p)
	if err == io.EOF && len(p) > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return &ChannelError{Op: "read", N: len(p), Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	if err != nil {
		return &ChannelError{Op: "write", N: len(p), Err: err}
	}
	return nil
}
