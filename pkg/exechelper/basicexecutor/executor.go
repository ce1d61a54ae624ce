package basicexecutor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	utilexec "k8s.io/utils/exec"

	"github.com/hwameistor/bootrepair/pkg/exechelper"
)

type basicExecutor struct {
	exec        utilexec.Interface
	formatRegex *regexp.Regexp
}

const (
	exitCodeTimeout    = 124
	exitCodeCanceled   = 130
	exitCodeErrDefault = 1
	exitCodeSuccess    = 0
)

// New creates a new basicExecutor instance, which implements
// exechelper.Executor interface
func New() exechelper.Executor {
	return NewWithExec(utilexec.New())
}

// NewWithExec creates a basicExecutor on top of the given exec interface
func NewWithExec(exec utilexec.Interface) exechelper.Executor {
	return &basicExecutor{exec: exec}
}

func (e *basicExecutor) squashString(str string) string {
	if e.formatRegex == nil {
		e.formatRegex = regexp.MustCompile("[\t\n\r]+")
	}
	return e.formatRegex.ReplaceAllString(str, " ")
}

// RunCommand run a command, and get result
func (e *basicExecutor) RunCommand(ctx context.Context, params exechelper.ExecParams) exechelper.ExecResult {
	log.WithFields(log.Fields{"params": params.CommandLine()}).Debug("Running command")

	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(params.Timeout))
		defer cancel()
	}

	outbuf, errbuf := bytes.NewBufferString(""), bytes.NewBufferString("")
	cmd := e.exec.CommandContext(ctx, params.CmdName, params.CmdArgs...)
	if len(params.Env) > 0 {
		cmd.SetEnv(append(os.Environ(), params.Env...))
	}
	if params.Interactive {
		cmd.SetStdin(orReader(params.Stdin, os.Stdin))
		cmd.SetStdout(orWriter(params.Stdout, os.Stdout))
		cmd.SetStderr(orWriter(params.Stderr, os.Stderr))
	} else {
		if params.Stdin != nil {
			cmd.SetStdin(params.Stdin)
		}
		cmd.SetStdout(outbuf)
		cmd.SetStderr(errbuf)
	}
	err := cmd.Run()

	result := exechelper.ExecResult{
		OutBuf:   bytes.NewBufferString(strings.TrimSuffix(outbuf.String(), "\n")),
		ErrBuf:   bytes.NewBufferString(strings.TrimSuffix(errbuf.String(), "\n")),
		ExitCode: exitCodeSuccess,
		Error:    err,
	}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		result.ExitCode = exitCodeTimeout
		result.Error = fmt.Errorf("command %s timed out", params.CommandLine())
		err = result.Error
	case context.Canceled:
		result.ExitCode = exitCodeCanceled
		result.Error = fmt.Errorf("command %s canceled", params.CommandLine())
		err = result.Error
	}

	if err != nil {
		var exitError utilexec.ExitError
		if result.ExitCode == exitCodeSuccess {
			if errors.As(err, &exitError) {
				result.ExitCode = exitError.ExitStatus()
			} else {
				// failed to get exit code, use default code
				result.ExitCode = exitCodeErrDefault
			}
		}
		result.Error = errors.New(e.squashString(err.Error()))
	}

	log.WithFields(log.Fields{
		"command":  params.CmdName,
		"args":     params.CmdArgs,
		"exitcode": result.ExitCode,
		"stdout":   result.OutBuf.String(),
		"stderr":   result.ErrBuf.String(),
		"error":    result.Error,
	}).Debug("Finished running command")

	return result
}
