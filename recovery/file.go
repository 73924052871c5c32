package recovery

import (
	"os"
	"path/filepath"

	"github.com/bobg/flock"
	"github.com/google/renameio"
	"github.com/pkg/errors"

	"github.com/bobg/vs"
	"github.com/bobg/vs/index"
)

// LoadFile loads the recovery log at path into files and tags.
// A missing file is an empty log.
func LoadFile(path string, files *index.Files, tags *index.Tags) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(vs.ErrConfig, "opening recovery log %s: %s", path, err)
	}
	defer f.Close()

	return errors.Wrapf(Load(f, files, tags), "loading %s", path)
}

// SaveFile writes files and tags to the recovery log at path.
// The file is replaced atomically:
// a failed save leaves the previous log intact.
func SaveFile(path string, files *index.Files, tags *index.Tags) error {
	pf, err := renameio.TempFile("", path)
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	defer pf.Cleanup()

	err = Save(pf, files, tags)
	if err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(pf.CloseAtomicallyReplace(), "replacing %s", path)
}

// Lock is an exclusive claim on a recovery log,
// held by a server for its lifetime
// so that two servers cannot share one log.
type Lock struct {
	path    string
	flocker flock.Locker
}

// Acquire takes the lock for the recovery log at path.
// The lock lives in a sibling file named path + ".lock";
// the log itself is replaced on every save and cannot carry it.
func Acquire(path string) (*Lock, error) {
	l := &Lock{path: lockPath(path)}
	err := os.MkdirAll(filepath.Dir(l.path), 0755)
	if err != nil {
		return nil, errors.Wrapf(vs.ErrConfig, "ensuring dir for %s: %s", l.path, err)
	}
	err = l.flocker.Lock(l.path)
	if err != nil {
		return nil, errors.Wrapf(vs.ErrConfig, "locking %s: %s", l.path, err)
	}
	return l, nil
}

// Release gives up the lock.
func (l *Lock) Release() error {
	return errors.Wrapf(l.flocker.Unlock(l.path), "unlocking %s", l.path)
}

func lockPath(path string) string {
	return path + ".lock"
}
