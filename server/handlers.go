package server

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bobg/vs"
	"github.com/bobg/vs/wire"
)

// A hash already present is a normal outcome:
// the client is told Error and sends no body.
// Once OK is sent, any failure removes the new index entry again.
func (s *Server) push(ctx context.Context, c *wire.Conn, req *wire.PushRequest, logger log.FieldLogger) error {
	logger = logger.WithFields(log.Fields{"op": wire.OpPush, "name": req.Name, "hash": req.Hash})

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.files.Exists(req.Hash) {
		logger.WithField("status", wire.Error).Info("hash already present")
		return c.WriteStatus(wire.Error)
	}
	err := s.files.Insert(req.Name, req.Hash)
	if err != nil {
		return errors.Wrapf(err, "inserting %s", req.Hash)
	}

	err = func() error {
		if err := c.WriteStatus(wire.OK); err != nil {
			return err
		}
		size, body, err := c.ReadBody()
		if err != nil {
			return err
		}
		return s.store.Put(ctx, req.Hash, size, body)
	}()
	if err != nil {
		s.files.Remove(req.Name, req.Hash)
		logger.Debug("rolled back")
		return errors.Wrapf(err, "receiving %s", req.Hash)
	}

	logger.WithField("status", wire.OK).Info("pushed")
	return nil
}

// The tag is created only if every hash is already present.
func (s *Server) tag(c *wire.Conn, req *wire.TagRequest, logger log.FieldLogger) error {
	logger = logger.WithFields(log.Fields{"op": wire.OpTag, "tag": req.Tag, "count": len(req.Hashes)})

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, h := range req.Hashes {
		if !s.files.Exists(h) {
			logger.WithFields(log.Fields{"hash": h, "status": wire.Error}).Info("unknown hash")
			return c.WriteStatus(wire.Error)
		}
	}

	err := s.tags.Add(req.Tag, req.Hashes)
	if errors.Is(err, vs.ErrExists) {
		logger.WithField("status", wire.Error).Info("tag already present")
		return c.WriteStatus(wire.Error)
	}
	if err != nil {
		return errors.Wrapf(err, "adding tag %s", req.Tag)
	}

	logger.WithField("status", wire.OK).Info("tagged")
	return c.WriteStatus(wire.OK)
}

// A failure after OK has been sent can only abort the connection;
// files the client already received stay with it.
func (s *Server) pull(ctx context.Context, c *wire.Conn, req *wire.PullRequest, logger log.FieldLogger) error {
	logger = logger.WithFields(log.Fields{"op": wire.OpPull, "tag": req.Tag})

	s.lock.RLock()
	defer s.lock.RUnlock()

	hashes, err := s.tags.HashesOf(req.Tag)
	if errors.Is(err, vs.ErrNotFound) {
		logger.WithField("status", wire.Error).Info("unknown tag")
		return c.WriteStatus(wire.Error)
	}
	if err != nil {
		return errors.Wrapf(err, "looking up tag %s", req.Tag)
	}

	if err = c.WriteStatus(wire.OK); err != nil {
		return err
	}
	if err = c.WriteCount(len(hashes)); err != nil {
		return err
	}
	for _, h := range hashes {
		if err = s.sendFile(ctx, c, h); err != nil {
			return errors.Wrapf(err, "sending %s", h)
		}
	}

	logger.WithFields(log.Fields{"status": wire.OK, "count": len(hashes)}).Info("pulled")
	return nil
}

func (s *Server) sendFile(ctx context.Context, c *wire.Conn, hash vs.Hash) error {
	name, err := s.files.NameOf(hash)
	if err != nil {
		return err
	}
	r, size, err := s.store.Get(ctx, hash)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = c.WriteString(name); err != nil {
		return err
	}
	return c.WriteBody(size, r)
}
