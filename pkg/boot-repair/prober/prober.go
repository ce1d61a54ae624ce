package prober

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deniswernert/go-fstab"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

// Prober classifies partitions and looks for a Linux root filesystem on the
// candidates. Candidates are only ever mounted read-only.
type Prober struct {
	mounter     mounter.Mounter
	workDir     string
	filesystems map[v1alpha1.FilesystemKind]bool
	logger      *log.Entry
}

func New(m mounter.Mounter, workDir string, filesystems []string) *Prober {
	p := &Prober{
		mounter:     m,
		workDir:     workDir,
		filesystems: map[v1alpha1.FilesystemKind]bool{},
		logger:      log.WithField("Module", "prober"),
	}
	for _, fs := range filesystems {
		p.filesystems[v1alpha1.ClassifyFilesystem(fs)] = true
	}
	return p
}

// WithLogger sends the probe log to logger, e.g. the log of a repair session
func (p *Prober) WithLogger(logger *log.Entry) *Prober {
	p.logger = logger.WithField("Module", "prober")
	return p
}

// ReadOnlyMountOptions keeps journaling filesystems from replaying their log
func ReadOnlyMountOptions(kind v1alpha1.FilesystemKind) []string {
	switch kind {
	case v1alpha1.FilesystemExt3, v1alpha1.FilesystemExt4:
		return []string{"noload"}
	case v1alpha1.FilesystemXFS:
		return []string{"norecovery"}
	}
	return nil
}

// Probe returns the filesystem kind of partition and, for candidate
// filesystems, the installation evidence found on it. The probe mount and
// its directory are gone when Probe returns.
func (p *Prober) Probe(ctx context.Context, partition v1alpha1.Partition, disk v1alpha1.BlockDevice) (kind v1alpha1.FilesystemKind, evidence *v1alpha1.InstallationEvidence, err error) {
	kind = partition.FSType
	if !p.filesystems[kind] {
		return kind, nil, nil
	}
	if err := ctx.Err(); err != nil {
		return kind, nil, err
	}

	logger := p.logger.WithFields(log.Fields{"partition": partition.Path, "fstype": kind})
	probeLedger := ledger.New(p.mounter, 1, 0, logger)
	defer func() {
		if unwindErr := probeLedger.UnwindAll(); unwindErr != nil {
			logger.WithError(unwindErr).Error("Failed to release probe mount")
			evidence = nil
			err = fmt.Errorf("%w: %s: %v", v1alpha1.ErrProbeInconclusive, partition.Path, unwindErr)
		}
	}()

	if err := probeLedger.AcquireDir(p.workDir); err != nil {
		return kind, nil, fmt.Errorf("%w: %s: %v", v1alpha1.ErrProbeInconclusive, partition.Path, err)
	}
	mountPoint := filepath.Join(p.workDir, fmt.Sprintf("probe-%s-%s", partition.Name, uuid.NewString()[:8]))
	if err := probeLedger.AcquireDir(mountPoint); err != nil {
		return kind, nil, fmt.Errorf("%w: %s: %v", v1alpha1.ErrProbeInconclusive, partition.Path, err)
	}

	err = probeLedger.AcquireMount(mountPoint, false, func() error {
		return p.mounter.MountReadOnly(partition.Path, mountPoint, fsTypeOf(partition), ReadOnlyMountOptions(kind))
	})
	if err != nil {
		logger.WithError(err).Warning("Failed to mount read-only, skipping partition")
		return kind, nil, fmt.Errorf("%w: %s: %v", v1alpha1.ErrProbeInconclusive, partition.Path, err)
	}

	evidence, entries := Inspect(mountPoint)
	if evidence.Complete() {
		evidence.DualBoot = DetectWindowsCoexistence(entries, partition, disk)
	}
	logger.WithFields(log.Fields{
		"complete":     evidence.Complete(),
		"distribution": evidence.Distribution,
		"bootloader":   evidence.Bootloader,
		"dualBoot":     evidence.DualBoot,
	}).Debug("Probed partition")

	return kind, evidence, nil
}

// Inspect reads the installation markers below root
func Inspect(root string) (*v1alpha1.InstallationEvidence, []*fstab.Mount) {
	evidence := &v1alpha1.InstallationEvidence{
		HasBoot:    isDir(filepath.Join(root, "boot")),
		HasEtc:     isDir(filepath.Join(root, "etc")),
		HasUsr:     isDir(filepath.Join(root, "usr")),
		Bootloader: DetectBootloader(root),
	}

	var entries []*fstab.Mount
	fstabPath := filepath.Join(root, "etc", "fstab")
	if content, err := os.ReadFile(fstabPath); err == nil {
		evidence.HasFstab = true
		entries = ParseFstab(string(content))
		for _, entry := range entries {
			if entry.File == "/" {
				evidence.HasRootEntry = true
				break
			}
		}
	}

	evidence.Distribution = DetectDistribution(root)
	return evidence, entries
}

// ParseFstab returns the parsable entries, malformed lines are skipped
func ParseFstab(content string) []*fstab.Mount {
	var entries []*fstab.Mount
	for _, line := range utils.ConvertShellOutputs(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := fstab.ParseLine(line)
		if err != nil || entry == nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// DetectDistribution reads os-release first and lsb-release second
func DetectDistribution(root string) string {
	sources := []struct {
		path string
		keys []string
	}{
		{path: "etc/os-release", keys: []string{"PRETTY_NAME", "NAME"}},
		{path: "usr/lib/os-release", keys: []string{"PRETTY_NAME", "NAME"}},
		{path: "etc/lsb-release", keys: []string{"DISTRIB_DESCRIPTION", "DISTRIB_ID"}},
	}

	for _, source := range sources {
		content, err := os.ReadFile(filepath.Join(root, source.path))
		if err != nil {
			continue
		}
		props := utils.ParseKeyValueLines(string(content))
		for _, key := range source.keys {
			if value := strings.TrimSpace(props[key]); value != "" {
				return value
			}
		}
	}
	return v1alpha1.Unknown
}

// DetectBootloader looks for the configuration trees of the known bootloaders
func DetectBootloader(root string) v1alpha1.BootloaderKind {
	if matches, _ := filepath.Glob(filepath.Join(root, "boot", "grub*")); len(matches) > 0 {
		return v1alpha1.BootloaderGRUB
	}
	for _, dir := range []string{"boot/syslinux", "boot/extlinux"} {
		if isDir(filepath.Join(root, dir)) {
			return v1alpha1.BootloaderSyslinux
		}
	}
	for _, dir := range []string{"boot/loader/entries", "efi/loader", "boot/efi/loader"} {
		if isDir(filepath.Join(root, dir)) {
			return v1alpha1.BootloaderSystemdBoot
		}
	}
	return v1alpha1.BootloaderUnknown
}

func fsTypeOf(partition v1alpha1.Partition) string {
	if partition.FSType != v1alpha1.FilesystemUnknown && partition.FSType != "" {
		return partition.FSType
	}
	return partition.RawFSType
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
