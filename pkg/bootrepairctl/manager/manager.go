package manager

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/bootflag"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/catalog"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/chroot"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/discoverer"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/dispatcher"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/efi"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/lsblk"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/partitiontable"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/prober"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/sessionlog"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/udev"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/definitions"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/exechelper/basicexecutor"
)

// Components shares the host facing building blocks between the commands
type Components struct {
	Executor exechelper.Executor
	Mounter  mounter.Mounter
	Udev     *udev.Manager
	Catalog  *catalog.Catalog
	Locator  *efi.Locator
}

func NewComponents() (*Components, error) {
	cfg := definitions.Config
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	executor := basicexecutor.New()
	udevManager := udev.NewManager(executor)
	c, err := catalog.New(lsblk.New(executor), cfg.Discovery.ExcludeDevices, cfg.Discovery.IncludeRemovable,
		partitiontable.New(), udevManager)
	if err != nil {
		return nil, err
	}

	m := mounter.NewLinuxMounter()
	return &Components{
		Executor: executor,
		Mounter:  m,
		Udev:     udevManager,
		Catalog:  c,
		Locator:  efi.NewLocator(c, c, m, cfg.EFI.MountConventions, cfg.EFI.MaxSizeBytes),
	}, nil
}

// NewDiscoverer returns a discoverer which leaves no read-write mount behind
func (c *Components) NewDiscoverer() *discoverer.Discoverer {
	cfg := definitions.Config
	return discoverer.New(c.Catalog, prober.New(c.Mounter, cfg.Session.WorkDir, cfg.Discovery.ProbeFilesystems), c.Mounter, cfg.Session.WorkDir)
}

// newSessionDiscoverer is NewDiscoverer logging to the session log
func (c *Components) newSessionDiscoverer(s *session.RepairSession) *discoverer.Discoverer {
	cfg := definitions.Config
	p := prober.New(c.Mounter, cfg.Session.WorkDir, cfg.Discovery.ProbeFilesystems).WithLogger(s.Logger())
	return discoverer.New(c.Catalog, p, c.Mounter, cfg.Session.WorkDir).WithLogger(s.Logger())
}

// NewLedger returns a ledger releasing through the host mounter and logging
// to logger
func (c *Components) NewLedger(logger *log.Entry) *ledger.Ledger {
	cfg := definitions.Config
	return ledger.New(c.Mounter, cfg.Ledger.UnmountRetries, time.Duration(cfg.Ledger.UnmountRetryInterval)*time.Millisecond, logger)
}

// NewSession opens a repair session with its log artifact
func (c *Components) NewSession(intent v1alpha1.RepairIntent, console io.Writer) (*session.RepairSession, error) {
	cfg := definitions.Config
	id := session.NewID()
	sessionLog, err := sessionlog.New(cfg.Session.LogDir, id, console, definitions.Debug)
	if err != nil {
		return nil, err
	}
	return session.New(id, intent, c.NewLedger(sessionLog.Entry), sessionLog, cfg.Session.LockDir), nil
}

// NewDispatcher wires a dispatcher for session s. With prestaging enabled
// the discoverer mounts installations read-write into the session ledger.
func (c *Components) NewDispatcher(s *session.RepairSession) *dispatcher.Dispatcher {
	cfg := definitions.Config
	d := c.newSessionDiscoverer(s)
	if cfg.Discovery.PrestageReadWrite {
		d.PrestageLedger = s.Ledger
	}

	builder := chroot.NewBuilder(cfg, c.Mounter, c.Locator, c.Executor, chroot.NewChrootShell(c.Executor))
	flags := bootflag.New(c.Catalog, c.Executor, c.Udev, time.Duration(cfg.BootFlag.SettleTimeoutSeconds)*time.Second)
	return dispatcher.New(cfg, d, builder, flags, c.Executor)
}
