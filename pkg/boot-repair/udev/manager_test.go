package udev

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pilebones/go-udev/netlink"
	"github.com/stretchr/testify/assert"

	"github.com/hwameistor/bootrepair/pkg/exechelper"
)

var settleParams = exechelper.ExecParams{CmdName: "udevadm", CmdArgs: []string{"settle", "--timeout=0"}}

func TestManager_AwaitChangeEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := NewManager(exechelper.NewMockExecutor(ctrl))
	events := make(chan netlink.UEvent, 1)
	events <- netlink.UEvent{Action: netlink.CHANGE, KObj: "/devices/virtual/block/sda"}

	assert.NoError(t, m.awaitChange(context.TODO(), "sda", events, make(chan error), time.Minute))
}

func TestManager_AwaitChangeFallsBackToSettle(t *testing.T) {
	testCases := []struct {
		Description string
		MonitorErr  error
	}{
		{Description: "no event within the timeout"},
		{Description: "monitor error", MonitorErr: assert.AnError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Description, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			executor := exechelper.NewMockExecutor(ctrl)
			executor.EXPECT().RunCommand(gomock.Any(), settleParams).Return(exechelper.ExecResult{})

			errs := make(chan error, 1)
			if testCase.MonitorErr != nil {
				errs <- testCase.MonitorErr
			}
			m := NewManager(executor)
			assert.NoError(t, m.awaitChange(context.TODO(), "sda", make(chan netlink.UEvent), errs, 10*time.Millisecond))
		})
	}
}

func TestManager_AwaitChangeSettleFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	executor := exechelper.NewMockExecutor(ctrl)
	executor.EXPECT().RunCommand(gomock.Any(), settleParams).Return(exechelper.ExecResult{ExitCode: 1, Error: assert.AnError})

	m := NewManager(executor)
	assert.Error(t, m.awaitChange(context.TODO(), "sda", make(chan netlink.UEvent), make(chan error), 10*time.Millisecond))
}

func TestManager_AwaitChangeCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.TODO())
	cancel()

	m := NewManager(exechelper.NewMockExecutor(ctrl))
	assert.ErrorIs(t, m.awaitChange(ctx, "sda", make(chan netlink.UEvent), make(chan error), time.Minute), context.Canceled)
}
