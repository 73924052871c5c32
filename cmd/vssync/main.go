// Command vssync copies content bodies among two or more stores
// until each has every body any of them has.
//
// Usage:
//
//	vssync CONFIG CONFIG...
//
// Each CONFIG is a JSON store config file with a "type" field,
// as for vsd -config.
// It is for moving a server to a different backend;
// run it while the server is stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store"
	_ "github.com/bobg/vs/store/badgerstore"
	_ "github.com/bobg/vs/store/compress"
	_ "github.com/bobg/vs/store/file"
	_ "github.com/bobg/vs/store/gcs"
	_ "github.com/bobg/vs/store/logging"
	_ "github.com/bobg/vs/store/lru"
	_ "github.com/bobg/vs/store/mem"
	_ "github.com/bobg/vs/store/pg"
	_ "github.com/bobg/vs/store/sqlite3"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s CONFIG CONFIG...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var stores []vs.Store
	for _, arg := range args {
		s, err := store.CreateFromFile(ctx, arg)
		if err != nil {
			log.Fatalf("Reading %s: %s", arg, err)
		}
		stores = append(stores, s)
	}

	err := store.Sync(ctx, stores)
	for _, s := range stores {
		if c, ok := s.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				log.WithError(cerr).Error("closing store")
			}
		}
	}
	if err != nil {
		log.Fatal(err)
	}
}
