package logging

import (
	"context"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/bobg/vs"
	"github.com/bobg/vs/store/mem"
	"github.com/bobg/vs/testutil"
)

func TestStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	testutil.ReadWrite(context.Background(), t, New(mem.New(), logger), testutil.Data(10000))
}

func TestLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	var (
		ctx = context.Background()
		s   = New(mem.New(), logger)
	)

	err := s.Put(ctx, "abc123", 5, strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	entry := hook.LastEntry()
	if entry.Message != "Put" || entry.Level != log.DebugLevel || entry.Data["hash"] != vs.Hash("abc123") {
		t.Errorf("got %s entry %q with data %v", entry.Level, entry.Message, entry.Data)
	}

	_, _, err = s.Get(ctx, "nosuch")
	if err == nil {
		t.Fatal("got no error getting a missing hash")
	}
	entry = hook.LastEntry()
	if entry.Message != "Get" || entry.Level != log.ErrorLevel {
		t.Errorf("got %s entry %q", entry.Level, entry.Message)
	}
}
