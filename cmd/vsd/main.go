// Command vsd is the versioning server.
//
// Usage:
//
//	vsd [flags] PORT [INDEXFILE]
//
// With INDEXFILE, the indexes are loaded from that recovery log at startup
// and saved back to it at shutdown
// (and every -checkpoint interval, if set).
// The server shuts down on SIGINT, on SIGTERM,
// or when a line reading "q" arrives on standard input.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bobg/vs"
	"github.com/bobg/vs/gc"
	"github.com/bobg/vs/index"
	"github.com/bobg/vs/recovery"
	"github.com/bobg/vs/server"
	"github.com/bobg/vs/store"
	_ "github.com/bobg/vs/store/badgerstore"
	_ "github.com/bobg/vs/store/compress"
	"github.com/bobg/vs/store/file"
	_ "github.com/bobg/vs/store/gcs"
	_ "github.com/bobg/vs/store/logging"
	_ "github.com/bobg/vs/store/lru"
	_ "github.com/bobg/vs/store/mem"
	_ "github.com/bobg/vs/store/pg"
	_ "github.com/bobg/vs/store/sqlite3"
)

func main() {
	var (
		config     = flag.String("config", "", "path to store config file (default: file store under -root)")
		root       = flag.String("root", "blobs", "root directory of the file store")
		maxConns   = flag.Int("max-conns", 0, "maximum connections handled at once (0 means no limit)")
		checkpoint = flag.Duration("checkpoint", 0, "interval between saves of the recovery log (0 means only at shutdown)")
		collect    = flag.Bool("gc", false, "at startup, delete stored bodies the recovery log does not name (requires INDEXFILE)")
		verbose    = flag.Bool("v", false, "log debug detail")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] PORT [INDEXFILE]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		flag.Usage()
		os.Exit(2)
	}
	port := args[0]
	var indexFile string
	if len(args) > 1 {
		indexFile = args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *collect && indexFile == "" {
		log.Fatal("-gc requires INDEXFILE")
	}

	err := run(ctx, port, indexFile, *config, *root, *maxConns, *checkpoint, *collect)
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, port, indexFile, config, root string, maxConns int, checkpoint time.Duration, collect bool) error {
	var (
		st  vs.Store
		err error
	)
	if config != "" {
		st, err = store.CreateFromFile(ctx, config)
		if err != nil {
			return errors.Wrapf(vs.ErrConfig, "creating store: %s", err)
		}
	} else {
		st = file.New(root)
	}
	if c, ok := st.(io.Closer); ok {
		defer c.Close()
	}

	var (
		files = index.NewFiles()
		tags  = index.NewTags()
	)
	if indexFile != "" {
		lock, err := recovery.Acquire(indexFile)
		if err != nil {
			return err
		}
		defer lock.Release()

		err = recovery.LoadFile(indexFile, files, tags)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"path":  indexFile,
			"names": files.Len(),
			"tags":  tags.Len(),
		}).Info("loaded recovery log")

		if collect {
			deleted, err := gc.Run(ctx, st, files)
			if err != nil {
				return errors.Wrap(err, "collecting orphaned bodies")
			}
			log.WithField("count", len(deleted)).Info("deleted orphaned bodies")
		}
	}

	lis, err := net.Listen("tcp", net.JoinHostPort("", port))
	if err != nil {
		return errors.Wrapf(vs.ErrConfig, "listening on port %s: %s", port, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go watchStdin(cancel)

	srv := server.New(st, files, tags, server.WithMaxConns(maxConns))
	if indexFile != "" && checkpoint > 0 {
		go srv.Checkpoint(ctx, indexFile, checkpoint)
	}

	err = srv.Serve(ctx, lis)
	if err != nil {
		log.WithError(err).Error("serving")
	}

	if indexFile != "" {
		if err := srv.Save(indexFile); err != nil {
			return errors.Wrap(err, "saving recovery log")
		}
		log.WithField("path", indexFile).Info("saved recovery log")
	}
	return err
}

// watchStdin calls cancel when a line reading "q" arrives on standard input.
// At end of input it just returns.
func watchStdin(cancel context.CancelFunc) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "q" {
			log.Info("quit requested")
			cancel()
			return
		}
	}
}
