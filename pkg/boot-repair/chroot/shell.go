package chroot

import (
	"context"
	"os"

	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/exechelper/chrootexecutor"
)

type chrootShell struct {
	executor exechelper.Executor
}

// NewChrootShell attaches the terminal to a shell inside the chroot
func NewChrootShell(executor exechelper.Executor) ShellRunner {
	return &chrootShell{executor: executor}
}

func (s *chrootShell) RunShell(ctx context.Context, root string, shell string) error {
	result := chrootexecutor.NewWithExecutor(root, s.executor).RunCommand(ctx, exechelper.ExecParams{
		CmdName:     shell,
		CmdArgs:     []string{"-l"},
		Env:         []string{"PS1=(bootrepair chroot) \\w # "},
		Interactive: true,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	})
	return result.Error
}
