package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/sessionlog"
	"github.com/hwameistor/bootrepair/pkg/utils"
)

// RepairSession is the unit of work of one repair. It owns the ledger, and
// Close releases everything the session acquired.
type RepairSession struct {
	ID string

	Intent       v1alpha1.RepairIntent
	Firmware     v1alpha1.FirmwareMode
	Installation *v1alpha1.Installation
	// Disk holding the selected installation
	Disk         string
	EFIPartition *v1alpha1.Partition

	Ledger *ledger.Ledger
	Log    *sessionlog.Log

	lock          sync.Mutex
	steps         []v1alpha1.StepResult
	diskLocks     []*DiskLock
	lockDir       string
	contextActive bool
	closed        bool
}

// NewID returns a fresh session id
func NewID() string {
	return uuid.NewString()
}

func New(id string, intent v1alpha1.RepairIntent, l *ledger.Ledger, sessionLog *sessionlog.Log, lockDir string) *RepairSession {
	return &RepairSession{
		ID:      id,
		Intent:  intent,
		Ledger:  l,
		Log:     sessionLog,
		lockDir: lockDir,
	}
}

// DetectFirmwareMode reports UEFI when the rescue system exposes the EFI
// firmware interface at firmwarePath
func DetectFirmwareMode(firmwarePath string) v1alpha1.FirmwareMode {
	if utils.IsPathExist(firmwarePath) {
		return v1alpha1.FirmwareUEFI
	}
	return v1alpha1.FirmwareBIOS
}

// LockDisk grants the session exclusive mutation rights over disk
func (s *RepairSession) LockDisk(disk string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, l := range s.diskLocks {
		if l.Disk == disk {
			return nil
		}
	}
	l, err := LockDisk(s.lockDir, disk)
	if err != nil {
		return err
	}
	s.diskLocks = append(s.diskLocks, l)
	return nil
}

// BeginContext reserves the single live repair context of the session
func (s *RepairSession) BeginContext() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.ID)
	}
	if s.contextActive {
		return v1alpha1.ErrContextActive
	}
	s.contextActive = true
	return nil
}

// EndContext frees the repair context slot
func (s *RepairSession) EndContext() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.contextActive = false
}

// Logger returns the session log, or the process logger when the session has none
func (s *RepairSession) Logger() *log.Entry {
	if s.Log == nil {
		return log.WithField("session", s.ID)
	}
	return s.Log.Entry
}

// AddStep records a step result and logs it
func (s *RepairSession) AddStep(step v1alpha1.StepResult) {
	s.lock.Lock()
	s.steps = append(s.steps, step)
	s.lock.Unlock()

	entry := s.Logger().WithField("step", step.Name).WithField("duration", step.Finished.Sub(step.Started).Round(time.Millisecond))
	switch step.Outcome {
	case v1alpha1.OutcomeSuccess:
		sessionlog.Success(entry, "Step succeeded")
	case v1alpha1.OutcomeSkipped:
		entry.Info("Step skipped")
	case v1alpha1.OutcomeRecoverable:
		entry.WithError(step.Err).Warning("Step failed, continuing")
	default:
		entry.WithError(step.Err).Error("Step failed")
	}
}

// Steps returns the recorded step results in order
func (s *RepairSession) Steps() []v1alpha1.StepResult {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]v1alpha1.StepResult(nil), s.steps...)
}

// Close unwinds the ledger and drops the disk locks. It is safe to call more
// than once.
func (s *RepairSession) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	locks := s.diskLocks
	s.diskLocks = nil
	s.lock.Unlock()

	var errs []error
	if s.Ledger != nil {
		if err := s.Ledger.UnwindAll(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range locks {
		if err := l.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", l.Disk, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}
