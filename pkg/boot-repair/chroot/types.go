package chroot

import (
	"context"
	"path/filepath"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

// EFILocator finds the EFI System Partition of a disk
type EFILocator interface {
	Locate(ctx context.Context, disk string) (*v1alpha1.Partition, error)
}

// ShellRunner hands an interactive shell inside root over to the operator
type ShellRunner interface {
	RunShell(ctx context.Context, root string, shell string) error
}

// RepairContext is a live chroot environment inside the selected installation
type RepairContext struct {
	Session *session.RepairSession

	// Root is where the installation is mounted read-write
	Root     string
	Disk     string
	Firmware v1alpha1.FirmwareMode
	Family   v1alpha1.DistroFamily
	ESP      *v1alpha1.Partition
	DualBoot bool

	executor exechelper.Executor
	mark     int
	torn     bool
}

// administrative binaries identifying a distribution family
var familyMarkers = []struct {
	family v1alpha1.DistroFamily
	paths  []string
}{
	{family: v1alpha1.DistroFamilyRHEL, paths: []string{"usr/bin/dnf", "usr/bin/yum", "usr/sbin/grub2-install"}},
	{family: v1alpha1.DistroFamilyDebian, paths: []string{"usr/bin/apt-get", "usr/sbin/update-grub"}},
}

// DetectFamily picks the command set by the binaries present in root
func DetectFamily(root string) v1alpha1.DistroFamily {
	for _, marker := range familyMarkers {
		for _, path := range marker.paths {
			if utils.IsPathExist(filepath.Join(root, path)) {
				return marker.family
			}
		}
	}
	return v1alpha1.DistroFamilyGeneric
}
