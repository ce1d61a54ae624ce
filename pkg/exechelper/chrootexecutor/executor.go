package chrootexecutor

import (
	"context"

	"github.com/hwameistor/bootrepair/pkg/exechelper"
	"github.com/hwameistor/bootrepair/pkg/exechelper/basicexecutor"
)

type chrootExecutor struct {
	root      string
	pExecutor exechelper.Executor
}

const chrootCommand = "chroot"

// commands inside the target see a predictable locale and PATH regardless of the rescue host
var chrootEnv = []string{
	"LC_ALL=C",
	"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
}

// New creates a new chrootExecutor instance rooted at root, which implements
// exechelper.Executor interface by wrapping over top of a basic executor
func New(root string) exechelper.Executor {
	return NewWithExecutor(root, basicexecutor.New())
}

// NewWithExecutor wraps the given parent executor
func NewWithExecutor(root string, parent exechelper.Executor) exechelper.Executor {
	return &chrootExecutor{
		root:      root,
		pExecutor: parent,
	}
}

// RunCommand runs a command inside the chroot to completion
func (e *chrootExecutor) RunCommand(ctx context.Context, params exechelper.ExecParams) exechelper.ExecResult {
	combinedArgs := append([]string{e.root, params.CmdName}, params.CmdArgs...)
	params.CmdName = chrootCommand
	params.CmdArgs = combinedArgs
	params.Env = append(append([]string{}, chrootEnv...), params.Env...)
	return e.pExecutor.RunCommand(ctx, params)
}
