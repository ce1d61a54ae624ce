package prober

import (
	"path/filepath"
	"strings"

	"github.com/deniswernert/go-fstab"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
)

// DetectWindowsCoexistence reports whether a Windows system likely shares the
// machine with the installation on partition. Either an NTFS (or boot flagged
// FAT) entry in its fstab or an NTFS sibling partition on the same disk is enough.
func DetectWindowsCoexistence(entries []*fstab.Mount, partition v1alpha1.Partition, disk v1alpha1.BlockDevice) bool {
	for _, entry := range entries {
		switch v1alpha1.ClassifyFilesystem(entry.VfsType) {
		case v1alpha1.FilesystemNTFS:
			return true
		case v1alpha1.FilesystemVFAT:
			if source := resolveSource(entry.Spec, disk); source != nil && source.Bootable {
				return true
			}
		}
	}

	for _, sibling := range disk.Partitions {
		if sibling.Path == partition.Path {
			continue
		}
		if sibling.FSType == v1alpha1.FilesystemNTFS {
			return true
		}
	}
	return false
}

// resolveSource maps an fstab source (UUID=, PARTUUID=, LABEL=, device path)
// onto a partition of disk
func resolveSource(spec string, disk v1alpha1.BlockDevice) *v1alpha1.Partition {
	key, value := "", spec
	if kv := strings.SplitN(spec, "=", 2); len(kv) == 2 {
		key, value = strings.ToUpper(kv[0]), strings.Trim(kv[1], `"`)
	}

	for i := range disk.Partitions {
		p := &disk.Partitions[i]
		switch key {
		case "UUID":
			if strings.EqualFold(p.UUID, value) {
				return p
			}
		case "PARTUUID":
			if strings.EqualFold(p.PartUUID, value) {
				return p
			}
		case "LABEL":
			if p.Label == value {
				return p
			}
		case "":
			if p.Path == value || filepath.Base(p.Path) == filepath.Base(value) && strings.HasPrefix(value, "/dev/") {
				return p
			}
		}
	}
	return nil
}
