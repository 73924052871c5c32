package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

func (c maincmd) tag(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	args = fs.Args()
	if len(args) < 2 {
		return errors.New("usage: tag TAG HASH...")
	}

	hashes := make([]vs.Hash, 0, len(args)-1)
	for _, arg := range args[1:] {
		hashes = append(hashes, vs.Hash(arg))
	}
	return c.c.Tag(ctx, args[0], hashes)
}
