// Package server implements the versioning server:
// the request dispatcher and the loop that accepts connections for it.
//
// Each accepted connection carries exactly one request.
// Push and tag take the index lock exclusively,
// pull takes it shared,
// and each holds it until the request's bodies have been transferred.
package server

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bobg/vs"
	"github.com/bobg/vs/index"
	"github.com/bobg/vs/recovery"
	"github.com/bobg/vs/rwlock"
	"github.com/bobg/vs/wire"
)

// Server holds the content index, the tag index,
// and the store holding content bodies.
type Server struct {
	lock  *rwlock.RWLock
	files *index.Files
	tags  *index.Tags
	store vs.Store
	log   log.FieldLogger
	sem   *semaphore.Weighted // nil means unbounded
}

// Option is the type of an option to New.
type Option func(*Server)

// WithLogger sets the logger for the server.
// The default is the logrus standard logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithMaxConns limits the number of connections handled at once.
// Further connections wait in the listener's backlog.
// A value of 0 means no limit.
func WithMaxConns(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		} else {
			s.sem = nil
		}
	}
}

// New produces a new Server storing bodies in st.
// The indexes may be prepopulated (see recovery.LoadFile);
// a nil index is replaced with an empty one.
func New(st vs.Store, files *index.Files, tags *index.Tags, opts ...Option) *Server {
	if files == nil {
		files = index.NewFiles()
	}
	if tags == nil {
		tags = index.NewTags()
	}
	s := &Server{
		lock:  rwlock.New(),
		files: files,
		tags:  tags,
		store: st,
		log:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections on lis and handles each one in its own goroutine
// until ctx is canceled.
// Cancellation closes lis and every connection still open,
// aborting its request (a push in progress is rolled back),
// and Serve returns once every handler has finished.
// Errors on individual connections are logged and do not stop the server.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	s.log.WithField("addr", lis.Addr().String()).Info("listening")

	var (
		g       errgroup.Group
		loopErr error
	)
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				break
			}
		}
		conn, err := lis.Accept()
		if err != nil {
			s.release()
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				loopErr = errors.Wrap(err, "accepting connection")
			}
			break
		}

		g.Go(func() error {
			defer s.release()

			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()

			logger := s.log.WithField("remote", conn.RemoteAddr().String())
			logger.Debug("accepted connection")

			err := s.handle(ctx, wire.NewNetChannel(conn), logger)
			if err != nil {
				logger.WithError(err).Error("handling connection")
			}
			return nil
		})
	}

	g.Wait()
	s.log.Info("stopped listening")
	return loopErr
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

// ServeConn handles the single request arriving on ch
// and closes ch.
func (s *Server) ServeConn(ctx context.Context, ch wire.Channel) error {
	return s.handle(ctx, ch, s.log)
}

func (s *Server) handle(ctx context.Context, ch wire.Channel, logger log.FieldLogger) error {
	c := wire.NewConn(ch)
	defer c.Close()

	req, err := c.ReadRequest()
	var unknown *wire.UnknownOpError
	if errors.As(err, &unknown) {
		logger.WithField("op", unknown.Op).Warn("ignoring unknown opcode")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading request")
	}

	switch req := req.(type) {
	case *wire.PushRequest:
		return s.push(ctx, c, req, logger)
	case *wire.TagRequest:
		return s.tag(c, req, logger)
	case *wire.PullRequest:
		return s.pull(ctx, c, req, logger)
	}
	return errors.Wrapf(vs.ErrProtocol, "unhandled request type %T", req)
}

// Save writes the indexes to the recovery log at path.
// Requests that only read may proceed while it runs.
func (s *Server) Save(path string) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	err := recovery.SaveFile(path, s.files, s.tags)
	if err != nil {
		return err
	}
	s.log.WithFields(log.Fields{
		"path":  path,
		"names": s.files.Len(),
		"tags":  s.tags.Len(),
	}).Debug("saved recovery log")
	return nil
}

// Checkpoint saves the indexes to path every interval until ctx is canceled.
// A failed save is logged and retried at the next interval.
func (s *Server) Checkpoint(ctx context.Context, path string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Save(path); err != nil {
				s.log.WithError(err).Error("checkpointing recovery log")
			}
		}
	}
}
