package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

func (c maincmd) push(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) != 2 {
		return errors.New("usage: push FILE HASH")
	}
	file, hash := args[0], vs.Hash(args[1])

	added, err := c.c.PushFile(ctx, file, hash)
	if err != nil {
		return err
	}
	if added {
		fmt.Printf("pushed %s as %s\n", file, hash)
	} else {
		fmt.Printf("%s already present\n", hash)
	}
	return nil
}
