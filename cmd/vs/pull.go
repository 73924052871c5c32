package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"
)

func (c maincmd) pull(ctx context.Context, fs *flag.FlagSet, args []string) error {
	dir := fs.String("dir", ".", "directory for pulled files")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) != 1 {
		return errors.New("usage: pull [-dir DIR] TAG")
	}

	paths, err := c.c.PullToDir(ctx, args[0], *dir)
	for _, path := range paths {
		fmt.Println(path)
	}
	return err
}
