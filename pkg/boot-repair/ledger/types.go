package ledger

import (
	"fmt"
	"time"
)

// EntryKind is the kind of resource held by a ledger entry
type EntryKind string

const (
	KindMount            EntryKind = "Mount"
	KindBackup           EntryKind = "Backup"
	KindCreatedFile      EntryKind = "CreatedFile"
	KindCreatedDirectory EntryKind = "CreatedDirectory"
)

// Entry is one acquired resource. Entries are released in reverse order
type Entry struct {
	Kind EntryKind

	// Target is the mount point, created file or created directory
	Target string
	// Bind is set for bind mounts
	Bind bool

	// Original is the path a backup was moved away from
	Original string
	// BackupPath is where the original content lives until it is restored
	BackupPath string

	Created time.Time
}

func (e Entry) String() string {
	switch e.Kind {
	case KindBackup:
		return fmt.Sprintf("%s %s -> %s", e.Kind, e.Original, e.BackupPath)
	case KindMount:
		if e.Bind {
			return fmt.Sprintf("%s(bind) %s", e.Kind, e.Target)
		}
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Target)
}

// Unmounter releases mount entries
type Unmounter interface {
	Unmount(mountPoint string) error
}
