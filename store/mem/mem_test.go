package mem

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/testutil"
)

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New(), testutil.Data(100000))
}

func TestAllHashes(t *testing.T) {
	testutil.AllHashes(context.Background(), t, func() vs.Store { return New() })
}

func TestPutOversizedClaim(t *testing.T) {
	var (
		ctx = context.Background()
		s   = New()
	)

	// A declared size far beyond what arrives fails without reserving it up front.
	err := s.Put(ctx, "h", 1<<40, strings.NewReader("x"))
	if err == nil {
		t.Fatal("got no error for a short body")
	}
	if _, _, err = s.Get(ctx, "h"); !errors.Is(err, vs.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
