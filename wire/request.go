package wire

import (
	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

// Request is a decoded command.
// It is one of *PushRequest, *TagRequest or *PullRequest.
type Request interface {
	Op() Op
}

// PushRequest asks the server to accept a new body.
type PushRequest struct {
	Name string
	Hash vs.Hash
}

// Op implements Request.
func (*PushRequest) Op() Op { return OpPush }

// TagRequest asks the server to define a tag.
type TagRequest struct {
	Tag    string
	Hashes []vs.Hash
}

// Op implements Request.
func (*TagRequest) Op() Op { return OpTag }

// PullRequest asks the server for every body in a tag.
type PullRequest struct {
	Tag string
}

// Op implements Request.
func (*PullRequest) Op() Op { return OpPull }

// UnknownOpError is the error ReadRequest returns for an opcode the protocol does not define.
// It matches vs.ErrProtocol under errors.Is.
type UnknownOpError struct {
	Op Op
}

func (e *UnknownOpError) Error() string {
	return "unknown opcode " + e.Op.String()
}

// Is makes every UnknownOpError match vs.ErrProtocol.
func (e *UnknownOpError) Is(target error) bool {
	return target == vs.ErrProtocol
}

// WriteRequest encodes req, opcode first.
func (c *Conn) WriteRequest(req Request) error {
	err := c.WriteUint8(uint8(req.Op()))
	if err != nil {
		return errors.Wrap(err, "writing opcode")
	}

	switch req := req.(type) {
	case *PushRequest:
		err = c.WriteString(req.Name)
		if err != nil {
			return errors.Wrap(err, "writing name")
		}
		return errors.Wrap(c.WriteString(string(req.Hash)), "writing hash")

	case *TagRequest:
		err = c.WriteCount(len(req.Hashes))
		if err != nil {
			return errors.Wrap(err, "writing hash count")
		}
		err = c.WriteString(req.Tag)
		if err != nil {
			return errors.Wrap(err, "writing tag")
		}
		for _, h := range req.Hashes {
			err = c.WriteString(string(h))
			if err != nil {
				return errors.Wrapf(err, "writing hash %s", h)
			}
		}
		return nil

	case *PullRequest:
		return errors.Wrap(c.WriteString(req.Tag), "writing tag")
	}

	return errors.Wrapf(vs.ErrProtocol, "cannot encode request of type %T", req)
}

// ReadRequest decodes a request, opcode first.
// An undefined opcode yields an *UnknownOpError
// and nothing past the opcode is read.
func (c *Conn) ReadRequest() (Request, error) {
	b, err := c.ReadUint8()
	if err != nil {
		return nil, errors.Wrap(err, "reading opcode")
	}

	switch op := Op(b); op {
	case OpPush:
		name, err := c.ReadString()
		if err != nil {
			return nil, errors.Wrap(err, "reading name")
		}
		hash, err := c.ReadString()
		if err != nil {
			return nil, errors.Wrap(err, "reading hash")
		}
		return &PushRequest{Name: name, Hash: vs.Hash(hash)}, nil

	case OpTag:
		count, err := c.ReadUint32()
		if err != nil {
			return nil, errors.Wrap(err, "reading hash count")
		}
		tag, err := c.ReadString()
		if err != nil {
			return nil, errors.Wrap(err, "reading tag")
		}
		req := &TagRequest{Tag: tag}
		for i := uint32(0); i < count; i++ {
			h, err := c.ReadString()
			if err != nil {
				return nil, errors.Wrapf(err, "reading hash %d of %d", i+1, count)
			}
			req.Hashes = append(req.Hashes, vs.Hash(h))
		}
		return req, nil

	case OpPull:
		tag, err := c.ReadString()
		if err != nil {
			return nil, errors.Wrap(err, "reading tag")
		}
		return &PullRequest{Tag: tag}, nil

	default:
		return nil, &UnknownOpError{Op: op}
	}
}
