package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
)

const backupTimeFormat = "20060102150405"

// Ledger records every mutation of a repair session so that it can be
// rolled back in reverse order. It is owned by a single session.
type Ledger struct {
	lock    sync.Mutex
	entries []Entry

	unmounter Unmounter
	backoff   wait.Backoff
	now       func() time.Time
	logger    *log.Entry
}

// New creates an empty ledger. A busy mount is retried retries times,
// interval apart, before its failure is recorded.
func New(unmounter Unmounter, retries int, interval time.Duration, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("Module", "ledger")
	return &Ledger{
		unmounter: unmounter,
		backoff:   wait.Backoff{Duration: interval, Factor: 1, Steps: retries + 1},
		now:       time.Now,
		logger:    logger,
	}
}

// AcquireMount runs mountFn and records target when it succeeds
func (l *Ledger) AcquireMount(target string, bind bool, mountFn func() error) error {
	if err := mountFn(); err != nil {
		return err
	}

	l.append(Entry{Kind: KindMount, Target: target, Bind: bind})
	l.logger.WithFields(log.Fields{"target": target, "bind": bind}).Debug("Acquired mount")
	return nil
}

// AcquireBackup moves path aside and returns where it went. A missing path is
// not an error and records nothing.
func (l *Ledger) AcquireBackup(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	created := l.now()
	backup := fmt.Sprintf("%s.bootrepair-%s.bak", path, created.Format(backupTimeFormat))
	for i := 1; pathExists(backup); i++ {
		backup = fmt.Sprintf("%s.bootrepair-%s-%d.bak", path, created.Format(backupTimeFormat), i)
	}

	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}

	l.append(Entry{Kind: KindBackup, Original: path, BackupPath: backup, Created: created})
	l.logger.WithFields(log.Fields{"original": path, "backup": backup}).Debug("Acquired backup")
	return backup, nil
}

// AcquireFile creates path with content. The path must not exist, move an
// existing file aside with AcquireBackup first.
func (l *Ledger) AcquireFile(path string, content []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}

	l.append(Entry{Kind: KindCreatedFile, Target: path})
	l.logger.WithField("path", path).Debug("Acquired file")
	return nil
}

// AcquireDir creates path and its missing parents, recording only the
// directories it actually created
func (l *Ledger) AcquireDir(path string) error {
	path = filepath.Clean(path)

	var missing []string
	for dir := path; !pathExists(dir); dir = filepath.Dir(dir) {
		missing = append(missing, dir)
		if dir == filepath.Dir(dir) {
			break
		}
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0755); err != nil && !os.IsExist(err) {
			return err
		}
		l.append(Entry{Kind: KindCreatedDirectory, Target: missing[i]})
	}

	if info, err := os.Stat(path); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Mark returns a position UnwindTo can roll back to
func (l *Ledger) Mark() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.entries)
}

// Len is the number of held entries
func (l *Ledger) Len() int {
	return l.Mark()
}

// Entries returns a copy of the held entries in acquisition order
func (l *Ledger) Entries() []Entry {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]Entry(nil), l.entries...)
}

// UnwindAll releases every entry
func (l *Ledger) UnwindAll() error {
	return l.UnwindTo(0)
}

// UnwindTo releases the entries acquired after mark, newest first. A failing
// entry is logged and reported but never stops the others, and released
// entries are forgotten so a second call is a no-op.
func (l *Ledger) UnwindTo(mark int) error {
	l.lock.Lock()
	if mark < 0 {
		mark = 0
	}
	if mark >= len(l.entries) {
		l.lock.Unlock()
		return nil
	}
	pending := append([]Entry(nil), l.entries[mark:]...)
	l.entries = l.entries[:mark]
	l.lock.Unlock()

	var errs []error
	for i := len(pending) - 1; i >= 0; i-- {
		entry := pending[i]
		if err := l.release(entry); err != nil {
			l.logger.WithError(err).WithField("entry", entry.String()).Error("Failed to release ledger entry")
			errs = append(errs, fmt.Errorf("%s: %w", entry, err))
			continue
		}
		l.logger.WithField("entry", entry.String()).Debug("Released ledger entry")
	}

	if agg := utilerrors.NewAggregate(errs); agg != nil {
		return fmt.Errorf("%w: %s", v1alpha1.ErrUnwindFailed, agg.Error())
	}
	return nil
}

func (l *Ledger) append(entry Entry) {
	if entry.Created.IsZero() {
		entry.Created = l.now()
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *Ledger) release(entry Entry) error {
	switch entry.Kind {
	case KindMount:
		return l.unmount(entry.Target)

	case KindBackup:
		if pathExists(entry.Original) {
			l.logger.WithFields(log.Fields{"original": entry.Original, "backup": entry.BackupPath}).
				Info("Original path was rewritten, keeping the backup")
			return nil
		}
		return os.Rename(entry.BackupPath, entry.Original)

	case KindCreatedFile:
		if err := os.Remove(entry.Target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil

	case KindCreatedDirectory:
		if err := os.Remove(entry.Target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	return fmt.Errorf("unknown ledger entry kind %q", entry.Kind)
}

func (l *Ledger) unmount(target string) error {
	var lastErr error
	err := wait.ExponentialBackoff(l.backoff, func() (bool, error) {
		if lastErr = l.unmounter.Unmount(target); lastErr != nil {
			l.logger.WithError(lastErr).WithField("target", target).Debug("Unmount failed, retrying")
			return false, nil
		}
		return true, nil
	})
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
