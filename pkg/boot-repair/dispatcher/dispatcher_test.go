package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/golang/mock/gomock"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/bootflag"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/config"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/ledger"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/mounter"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/session"
	"github.com/hwameistor/bootrepair/pkg/boot-repair/sessionlog"
	"github.com/hwameistor/bootrepair/pkg/exechelper"
)

var _ = ginkgo.Describe("Dispatcher", func() {
	var (
		ctrl        *gomock.Controller
		workDir     string
		lockDir     string
		cfg         *config.Configuration
		discoverer  *fakeDiscoverer
		builder     *fakeBuilder
		flags       *fakeFlags
		executor    *exechelper.MockExecutor
		d           *Dispatcher
		s           *session.RepairSession
		transitions []State
		out         *bytes.Buffer
	)

	newSession := func() *session.RepairSession {
		l := ledger.New(mounter.New(mounter.NewFakeMounter(nil)), 0, 0, nil)
		return session.New(session.NewID(), v1alpha1.IntentAuto, l, sessionlog.NewWithWriter(out, false), lockDir)
	}

	stepNames := func() []string {
		var names []string
		for _, step := range s.Steps() {
			names = append(names, step.Name)
		}
		return names
	}

	outcomeOf := func(name string) v1alpha1.Outcome {
		for _, step := range s.Steps() {
			if step.Name == name {
				return step.Outcome
			}
		}
		return ""
	}

	ginkgo.BeforeEach(func() {
		ctrl = gomock.NewController(ginkgo.GinkgoT())
		var err error
		workDir, err = os.MkdirTemp("", "dispatcher")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		lockDir = filepath.Join(workDir, "locks")

		cfg, err = config.Default()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		cfg.EFI.FirmwarePath = filepath.Join(workDir, "no-efi")

		discoverer = &fakeDiscoverer{workDir: workDir, installations: []v1alpha1.Installation{installation("sda2", false)}}
		builder = &fakeBuilder{results: map[v1alpha1.RepairIntent]v1alpha1.StepResult{}}
		flags = &fakeFlags{result: bootflag.Result{Existing: &v1alpha1.Partition{Path: "/dev/sda1"}}}
		executor = exechelper.NewMockExecutor(ctrl)

		transitions = nil
		d = New(cfg, discoverer, builder, flags, executor)
		d.OnTransition = func(_, to State) {
			transitions = append(transitions, to)
		}
		out = &bytes.Buffer{}
		s = newSession()
	})

	ginkgo.AfterEach(func() {
		gomega.Expect(s.Close()).To(gomega.Succeed())
		ctrl.Finish()
		gomega.Expect(os.RemoveAll(workDir)).To(gomega.Succeed())
	})

	ginkgo.Context("bootloader repair of a single installation", func() {
		ginkgo.It("walks every state and releases the session resources", func() {
			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(transitions).To(gomega.Equal([]State{
				StateDiscoveringFirmware,
				StateDiscoveringInstallations,
				StateAwaitingSelection,
				StateExecutingAction,
				StateReportingResult,
				StateIdle,
			}))
			gomega.Expect(d.State()).To(gomega.Equal(StateIdle))
			gomega.Expect(s.Firmware).To(gomega.Equal(v1alpha1.FirmwareBIOS))
			gomega.Expect(s.Disk).To(gomega.Equal("/dev/sda"))
			gomega.Expect(builder.intents).To(gomega.Equal([]v1alpha1.RepairIntent{v1alpha1.IntentBootloader}))
			gomega.Expect(builder.torn).To(gomega.Equal(1))
			gomega.Expect(stepNames()).To(gomega.Equal([]string{
				v1alpha1.StepDiscovery,
				v1alpha1.StepActivate,
				v1alpha1.StepBuildEnvironment,
				v1alpha1.StepInstallBootloader,
				v1alpha1.StepTeardown,
			}))

			gomega.Expect(s.Ledger.Len()).To(gomega.Equal(0))
			gomega.Expect(filepath.Join(workDir, "root-sda2")).NotTo(gomega.BeADirectory())
		})

		ginkgo.It("tears the environment down when the command fails", func() {
			builder.results[v1alpha1.IntentBootloader] = failedStep(v1alpha1.IntentBootloader)

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(errors.Is(err, v1alpha1.ErrCommandFailed)).To(gomega.BeTrue())
			gomega.Expect(builder.torn).To(gomega.Equal(1))
			gomega.Expect(outcomeOf(v1alpha1.StepTeardown)).To(gomega.Equal(v1alpha1.OutcomeSuccess))
			gomega.Expect(s.Ledger.Len()).To(gomega.Equal(0))
			gomega.Expect(d.State()).To(gomega.Equal(StateIdle))
		})

		ginkgo.It("stops when the environment can't be built", func() {
			builder.buildErr = v1alpha1.ErrEFINotFound

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentMenu})
			gomega.Expect(errors.Is(err, v1alpha1.ErrEFINotFound)).To(gomega.BeTrue())
			gomega.Expect(builder.intents).To(gomega.BeEmpty())
			gomega.Expect(outcomeOf(v1alpha1.StepBuildEnvironment)).To(gomega.Equal(v1alpha1.OutcomeFatal))
		})

		ginkgo.It("fails when the installation can't be mounted read-write", func() {
			discoverer.activateErr = errors.New("read-only file system")

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(errors.Is(err, v1alpha1.ErrRemountFailed)).To(gomega.BeTrue())
			gomega.Expect(builder.built).To(gomega.Equal(0))
		})

		ginkgo.It("refuses a disk locked by another session", func() {
			other := newSession()
			gomega.Expect(other.LockDisk("/dev/sda")).To(gomega.Succeed())
			defer other.Close()

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(errors.Is(err, v1alpha1.ErrDiskBusy)).To(gomega.BeTrue())
			gomega.Expect(discoverer.activated).To(gomega.BeEmpty())
		})

		ginkgo.It("refuses a second run while one is in progress", func() {
			var nested error
			d.OnTransition = func(_, to State) {
				transitions = append(transitions, to)
				if to == StateDiscoveringFirmware && nested == nil {
					nested = d.Run(context.TODO(), newSession(), Request{Intent: v1alpha1.IntentMenu})
				}
			}

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(nested).To(gomega.MatchError(gomega.ContainSubstring("busy")))
			gomega.Expect(discoverer.discovered).To(gomega.Equal(1))
			gomega.Expect(d.State()).To(gomega.Equal(StateIdle))
		})
	})

	ginkgo.Context("installation selection", func() {
		ginkgo.BeforeEach(func() {
			discoverer.installations = []v1alpha1.Installation{installation("sda2", false), installation("sda3", true)}
		})

		ginkgo.It("requires an index without a selector", func() {
			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentMenu})
			gomega.Expect(errors.Is(err, v1alpha1.ErrNoSelection)).To(gomega.BeTrue())
			gomega.Expect(builder.built).To(gomega.Equal(0))
			gomega.Expect(transitions).To(gomega.ContainElement(StateAwaitingSelection))
			gomega.Expect(transitions[len(transitions)-1]).To(gomega.Equal(StateIdle))
		})

		ginkgo.It("uses the 1-based index", func() {
			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentMenu, Index: 2})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(s.Installation.Partition.Path).To(gomega.Equal("/dev/sda3"))
			gomega.Expect(s.Installation.DualBoot).To(gomega.BeTrue())
			gomega.Expect(out.String()).To(gomega.ContainSubstring("boot entries are preserved"))
		})

		ginkgo.It("rejects an index out of range", func() {
			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentMenu, Index: 3})
			gomega.Expect(errors.Is(err, v1alpha1.ErrNoSelection)).To(gomega.BeTrue())
			gomega.Expect(discoverer.activated).To(gomega.BeEmpty())
		})

		ginkgo.It("asks the selector", func() {
			selector := &fakeSelector{index: 1}
			d.WithSelector(selector)

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(selector.offered).To(gomega.HaveLen(2))
			gomega.Expect(discoverer.activated).To(gomega.Equal([]string{"/dev/sda2"}))
		})

		ginkgo.It("fails when the selector gives up", func() {
			d.WithSelector(&fakeSelector{err: errors.New("aborted by operator")})

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentBootloader})
			gomega.Expect(errors.Is(err, v1alpha1.ErrNoSelection)).To(gomega.BeTrue())
		})
	})

	ginkgo.Context("discovery", func() {
		ginkgo.It("fails the session when nothing is found", func() {
			discoverer.installations = nil

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentAuto})
			gomega.Expect(errors.Is(err, v1alpha1.ErrDiscoveryEmpty)).To(gomega.BeTrue())
			gomega.Expect(outcomeOf(v1alpha1.StepDiscovery)).To(gomega.Equal(v1alpha1.OutcomeFatal))
			gomega.Expect(transitions).To(gomega.ContainElement(StateReportingResult))
			gomega.Expect(flags.calls).To(gomega.Equal(0))
		})

		ginkgo.It("rejects unknown intents before doing anything", func() {
			err := d.Run(context.TODO(), s, Request{Intent: "reinstall"})
			gomega.Expect(errors.Is(err, v1alpha1.ErrInvalidIntent)).To(gomega.BeTrue())
			gomega.Expect(transitions).To(gomega.BeEmpty())
			gomega.Expect(discoverer.discovered).To(gomega.Equal(0))
		})
	})

	ginkgo.Context("automatic repair", func() {
		ginkgo.It("runs every step in sequence", func() {
			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentAuto})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(builder.intents).To(gomega.Equal([]v1alpha1.RepairIntent{v1alpha1.IntentBootloader, v1alpha1.IntentMenu}))
			gomega.Expect(builder.torn).To(gomega.Equal(1))
			gomega.Expect(flags.calls).To(gomega.Equal(1))
			gomega.Expect(outcomeOf(v1alpha1.StepBootFlag)).To(gomega.Equal(v1alpha1.OutcomeSuccess))
		})

		ginkgo.It("continues after a failed step", func() {
			builder.results[v1alpha1.IntentBootloader] = failedStep(v1alpha1.IntentBootloader)

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentAuto})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(outcomeOf(v1alpha1.StepInstallBootloader)).To(gomega.Equal(v1alpha1.OutcomeRecoverable))
			gomega.Expect(outcomeOf(v1alpha1.StepRegenerateMenu)).To(gomega.Equal(v1alpha1.OutcomeSuccess))
			gomega.Expect(flags.calls).To(gomega.Equal(1))
		})

		ginkgo.It("keeps going when the repair environment can't be released", func() {
			builder.teardownErr = errors.New("umount: target is busy")

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentAuto})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(outcomeOf(v1alpha1.StepTeardown)).To(gomega.Equal(v1alpha1.OutcomeRecoverable))
			gomega.Expect(flags.calls).To(gomega.Equal(1))
			gomega.Expect(out.String()).To(gomega.ContainSubstring("retrying at session end"))
		})

		ginkgo.It("fails when no step succeeded", func() {
			builder.buildErr = v1alpha1.ErrEFINotFound
			flags.err = errors.New("parted not found")

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentAuto})
			gomega.Expect(errors.Is(err, v1alpha1.ErrCommandFailed)).To(gomega.BeTrue())
			gomega.Expect(outcomeOf(v1alpha1.StepBuildEnvironment)).To(gomega.Equal(v1alpha1.OutcomeRecoverable))
			gomega.Expect(outcomeOf(v1alpha1.StepInstallBootloader)).To(gomega.Equal(v1alpha1.OutcomeSkipped))
			gomega.Expect(outcomeOf(v1alpha1.StepBootFlag)).To(gomega.Equal(v1alpha1.OutcomeRecoverable))
		})

		ginkgo.It("unwinds and reports when cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			builder.onRun = func(intent v1alpha1.RepairIntent) {
				if intent == v1alpha1.IntentBootloader {
					cancel()
				}
			}

			err := d.Run(ctx, s, Request{Intent: v1alpha1.IntentAuto})
			gomega.Expect(errors.Is(err, context.Canceled)).To(gomega.BeTrue())
			gomega.Expect(builder.intents).To(gomega.Equal([]v1alpha1.RepairIntent{v1alpha1.IntentBootloader}))
			gomega.Expect(outcomeOf(v1alpha1.StepRegenerateMenu)).To(gomega.Equal(v1alpha1.OutcomeSkipped))
			gomega.Expect(outcomeOf(v1alpha1.StepBootFlag)).To(gomega.Equal(v1alpha1.OutcomeSkipped))
			gomega.Expect(builder.torn).To(gomega.Equal(1))
			gomega.Expect(flags.calls).To(gomega.Equal(0))
			gomega.Expect(transitions[len(transitions)-2:]).To(gomega.Equal([]State{StateReportingResult, StateIdle}))
			gomega.Expect(s.Ledger.Len()).To(gomega.Equal(0))
		})
	})

	ginkgo.Context("boot flag check", func() {
		ginkgo.It("skips installation discovery", func() {
			flags.result = bootflag.Result{Flagged: &v1alpha1.Partition{Path: "/dev/sdb5"}}

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentFlags})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(discoverer.discovered).To(gomega.Equal(0))
			gomega.Expect(transitions).NotTo(gomega.ContainElement(StateDiscoveringInstallations))
			gomega.Expect(s.Steps()).To(gomega.HaveLen(1))
			gomega.Expect(s.Steps()[0].Output).To(gomega.ContainSubstring("/dev/sdb5"))
		})

		ginkgo.It("refuses a disk locked by another session", func() {
			other := newSession()
			gomega.Expect(other.LockDisk("/dev/sdb")).To(gomega.Succeed())
			defer other.Close()
			flags.disk = "/dev/sdb"

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentFlags})
			gomega.Expect(errors.Is(err, v1alpha1.ErrDiskBusy)).To(gomega.BeTrue())
			gomega.Expect(outcomeOf(v1alpha1.StepBootFlag)).To(gomega.Equal(v1alpha1.OutcomeFatal))
		})

		ginkgo.It("reports a skipped step when no partition qualifies", func() {
			flags.result = bootflag.Result{}

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentFlags})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(outcomeOf(v1alpha1.StepBootFlag)).To(gomega.Equal(v1alpha1.OutcomeSkipped))
		})
	})

	ginkgo.Context("master boot record", func() {
		ginkgo.It("installs from the host without a chroot", func() {
			executor.EXPECT().RunCommand(gomock.Any(), exechelper.ExecParams{
				CmdName: "grub-install",
				CmdArgs: []string{"--target=i386-pc", "--boot-directory=" + filepath.Join(workDir, "root-sda2", "boot"), "/dev/sda"},
			}).Return(exechelper.ExecResult{OutBuf: bytes.NewBufferString("Installation finished. No error reported."), ErrBuf: &bytes.Buffer{}}).Times(1)

			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentMBR})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(builder.built).To(gomega.Equal(0))
			gomega.Expect(outcomeOf(v1alpha1.StepInstallMBR)).To(gomega.Equal(v1alpha1.OutcomeSuccess))
			gomega.Expect(out.String()).To(gomega.ContainSubstring("Installation finished"))
		})
	})

	ginkgo.Context("custom shell", func() {
		ginkgo.It("goes through build and teardown", func() {
			err := d.Run(context.TODO(), s, Request{Intent: v1alpha1.IntentCustom})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(builder.intents).To(gomega.Equal([]v1alpha1.RepairIntent{v1alpha1.IntentCustom}))
			gomega.Expect(builder.torn).To(gomega.Equal(1))
		})
	})
})
