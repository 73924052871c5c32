// Command vs is the client for the versioning server.
//
// Usage:
//
//	vs ADDR SERVICE push FILE HASH
//	vs ADDR SERVICE pull [-dir DIR] TAG
//	vs ADDR SERVICE tag TAG HASH...
//
// A push of a hash the server already has is reported and is not an error.
// A refused tag or pull exits with status 1, as does any local or connection error.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/bobg/subcmd"
	log "github.com/sirupsen/logrus"

	"github.com/bobg/vs/client"
)

type maincmd struct {
	c *client.Client
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s ADDR SERVICE push FILE HASH | pull [-dir DIR] TAG | tag TAG HASH...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 3 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := subcmd.Run(ctx, maincmd{c: client.New(args[0], args[1])}, args[2:])
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"pull": c.pull,
		"push": c.push,
		"tag":  c.tag,
	}
}
