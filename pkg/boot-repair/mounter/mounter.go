package mounter

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	mount "k8s.io/mount-utils"
)

// Mounter mounts block devices and host trees. Mount points must already
// exist, creating and removing them is left to the caller's ledger.
//
//go:generate mockgen -source=mounter.go -destination=./mounter_mock.go -package=mounter
type Mounter interface {
	MountReadOnly(devPath string, mountPoint string, fsType string, options []string) error
	MountReadWrite(devPath string, mountPoint string, fsType string, options []string) error
	BindMount(source string, mountPoint string) error
	Unmount(mountPoint string) error
	IsMountPoint(mountPoint string) (bool, error)
	GetDeviceMountPoints(devPath string) []string
}

type linuxMounter struct {
	mounter mount.Interface

	logger *log.Entry
}

// NewLinuxMounter creates a mounter on top of the host mount binary
func NewLinuxMounter() Mounter {
	return New(mount.New(""))
}

// New creates a mounter on top of the given mount interface
func New(mounter mount.Interface) Mounter {
	return &linuxMounter{
		mounter: mounter,
		logger:  log.WithField("Module", "mounter"),
	}
}

func (m *linuxMounter) MountReadOnly(devPath string, mountPoint string, fsType string, options []string) error {
	return m.doMount(devPath, mountPoint, fsType, append([]string{"ro"}, options...))
}

func (m *linuxMounter) MountReadWrite(devPath string, mountPoint string, fsType string, options []string) error {
	return m.doMount(devPath, mountPoint, fsType, append([]string{"rw"}, options...))
}

func (m *linuxMounter) BindMount(source string, mountPoint string) error {
	return m.doMount(source, mountPoint, "", []string{"bind"})
}

func (m *linuxMounter) doMount(devPath string, mountPoint string, fsType string, options []string) error {
	logger := m.logger.WithFields(log.Fields{"devpath": devPath, "mountpoint": mountPoint, "fstype": fsType, "options": options})

	mounted, err := m.IsMountPoint(mountPoint)
	if err != nil {
		logger.WithError(err).Error("Failed to check mountpoint")
		return err
	}
	if mounted {
		logger.Error("Already mounted by others")
		return fmt.Errorf("wrong status of mountpoint %s: already mounted", mountPoint)
	}

	if err := m.mounter.Mount(devPath, mountPoint, fsType, options); err != nil {
		logger.WithError(err).Error("Failed to mount")
		return err
	}
	logger.Debug("Mounted successfully")
	return nil
}

func (m *linuxMounter) Unmount(mountPoint string) error {
	mounted, err := m.IsMountPoint(mountPoint)
	if err != nil {
		m.logger.WithFields(log.Fields{"mountpoint": mountPoint}).WithError(err).Error("Failed to check mountpoint")
		return err
	}
	if !mounted {
		m.logger.WithFields(log.Fields{"mountpoint": mountPoint}).Debug("Already unmounted")
		return nil
	}

	if err = m.mounter.Unmount(mountPoint); err != nil {
		m.logger.WithFields(log.Fields{"mountpoint": mountPoint}).WithError(err).Error("Failed to unmount")
		return err
	}
	m.logger.WithFields(log.Fields{"mountpoint": mountPoint}).Debug("Succeed to unmount")
	return nil
}

// IsMountPoint checks the mount table, bind mounts of the same filesystem
// are not visible to a device id comparison
func (m *linuxMounter) IsMountPoint(mountPoint string) (bool, error) {
	mps, err := m.mounter.List()
	if err != nil {
		return false, err
	}

	target := canonical(mountPoint)
	for _, mp := range mps {
		if canonical(mp.Path) == target {
			return true, nil
		}
	}
	return false, nil
}

func (m *linuxMounter) GetDeviceMountPoints(devPath string) []string {
	mps := []string{}
	list, err := m.mounter.List()
	if err != nil {
		m.logger.WithError(err).Warning("Failed to list mountpoints")
		return mps
	}

	for _, mp := range list {
		if mp.Device == devPath {
			mps = append(mps, mp.Path)
		}
	}
	return mps
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
