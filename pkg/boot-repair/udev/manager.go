package udev

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
	log "github.com/sirupsen/logrus"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
)

const sectorSize = 512

// Manager reads partition attributes from the udev database and waits for
// udev to settle after partition table changes
type Manager struct {
	executor exechelper.Executor
	// crawl lists the partitions currently known to the kernel
	crawl  func() ([]crawler.Device, error)
	logger *log.Entry
}

func NewManager(executor exechelper.Executor) *Manager {
	return &Manager{
		executor: executor,
		crawl:    existingPartitions,
		logger:   log.WithField("Module", "udev"),
	}
}

// QueryPartitionTable returns one record per partition of disk, filled from
// the ID_PART_ENTRY_* and ID_FS_* udev properties
func (m *Manager) QueryPartitionTable(ctx context.Context, disk string) ([]v1alpha1.PartitionRecord, error) {
	devices, err := m.crawl()
	if err != nil {
		return nil, err
	}

	diskName := filepath.Base(disk)
	var records []v1alpha1.PartitionRecord
	for _, cdev := range devices {
		if !belongsTo(cdev.KObj, diskName) {
			continue
		}

		devName := cdev.Env["DEVNAME"]
		if devName != "" && !strings.HasPrefix(devName, "/dev/") {
			devName = "/dev/" + devName
		}
		device := NewDeviceWithName(addSysPrefix(cdev.KObj), devName)
		if err := device.ParseDeviceInfo(ctx, m.executor); err != nil {
			m.logger.WithError(err).WithField("device", devName).Warning("Failed to query udev properties")
			continue
		}
		if device.DevName == "" {
			device.DevName = devName
		}
		records = append(records, device.Record(cdev.Env["PARTN"]))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Number < records[j].Number })
	return records, nil
}

// Record converts the udev properties into a partition record
func (d *Device) Record(partN string) v1alpha1.PartitionRecord {
	record := v1alpha1.PartitionRecord{
		Path:      d.DevName,
		FSType:    d.FSType,
		Label:     d.FSLabel,
		UUID:      d.FSUUID,
		PartUUID:  d.PartEntryUUID,
		PartType:  strings.ToLower(d.PartEntryType),
		PartFlags: d.PartEntryFlags,
		Bootable:  d.IsBootable(),
		ESP:       d.IsESP(),
	}

	number := d.PartEntryNumber
	if number == "" {
		number = partN
	}
	record.Number, _ = strconv.Atoi(number)

	if sectors, err := strconv.ParseUint(d.PartEntrySize, 10, 64); err == nil {
		record.Size = sectors * sectorSize
	}
	return record
}

// WatchChange subscribes to udev change events of devName. Call it before
// modifying the device, so an event emitted while the modification runs is
// not missed. wait blocks until the event arrives or ctx is done, and falls
// back to udevadm settle when the monitor fails or nothing arrives within
// timeout. stop releases the subscription and may be called more than once.
func (m *Manager) WatchChange(devName string) (wait func(ctx context.Context, timeout time.Duration) error, stop func()) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.WithError(err).Debug("Failed to connect to Netlink, falling back to udevadm settle")
		return m.Settle, func() {}
	}

	// buffered so the monitor goroutine never blocks on a late event or error
	errChan := make(chan error, 1)
	eventChan := make(chan netlink.UEvent, 1)
	quit := conn.Monitor(eventChan, errChan, GenRuleForChange(devName))

	var once sync.Once
	stop = func() {
		once.Do(func() {
			close(quit)
			conn.Close()
		})
	}
	wait = func(ctx context.Context, timeout time.Duration) error {
		defer stop()
		return m.awaitChange(ctx, devName, eventChan, errChan, timeout)
	}
	return wait, stop
}

func (m *Manager) awaitChange(ctx context.Context, devName string, events <-chan netlink.UEvent, errs <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event := <-events:
		m.logger.WithFields(log.Fields{"device": devName, "action": event.Action}).Debug("Received udev event")
		return nil
	case err := <-errs:
		m.logger.WithError(err).Warning("Monitor udev event error, falling back to udevadm settle")
		return m.Settle(ctx, timeout)
	case <-timer.C:
		m.logger.WithFields(log.Fields{"device": devName, "timeout": timeout}).Debug("No udev change event, falling back to udevadm settle")
		return m.Settle(ctx, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits for the udev event queue to drain
func (m *Manager) Settle(ctx context.Context, timeout time.Duration) error {
	params := exechelper.ExecParams{
		CmdName: "udevadm",
		CmdArgs: []string{"settle", fmt.Sprintf("--timeout=%d", int(timeout.Seconds()))},
	}
	result := m.executor.RunCommand(ctx, params)
	if result.Error != nil {
		return fmt.Errorf("%s: %w", params.CommandLine(), result.Error)
	}
	return nil
}

func existingPartitions() ([]crawler.Device, error) {
	deviceEvent := make(chan crawler.Device)
	errors := make(chan error)
	crawler.ExistingDevices(deviceEvent, errors, GenRuleForPartitions())

	var devices []crawler.Device
	for {
		select {
		case device, ok := <-deviceEvent:
			if !ok {
				return devices, nil
			}
			devices = append(devices, device)

		case err := <-errors:
			return devices, err
		}
	}
}

// belongsTo reports whether the kobject path is a partition of diskName,
// e.g. /devices/.../block/sda/sda1 for sda
func belongsTo(kobj, diskName string) bool {
	parts := strings.Split(strings.Trim(kobj, "/"), "/")
	if len(parts) < 2 {
		return false
	}
	return parts[len(parts)-2] == diskName
}

// addSysPrefix
func addSysPrefix(path string) string {
	if strings.HasPrefix(path, "/sys/") {
		return path
	}
	return "/sys" + path
}
