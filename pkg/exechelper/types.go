package exechelper

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Executor is the interface for executing commands.
//
//go:generate mockgen -source=types.go -destination=./executor_mock.go -package=exechelper
type Executor interface {
	RunCommand(ctx context.Context, params ExecParams) ExecResult
}

// ExecParams parameters to execute a command
type ExecParams struct {
	CmdName string
	CmdArgs []string
	// Env is appended to the environment of the executor's process
	Env []string
	// Timeout in seconds, 0 means the command runs until it exits or ctx is done
	Timeout int

	// Interactive commands are attached to Stdin/Stdout/Stderr instead of buffers
	Interactive bool
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// ExecResult result of executing a command
type ExecResult struct {
	OutBuf   *bytes.Buffer
	ErrBuf   *bytes.Buffer
	ExitCode int
	Error    error
}

// CombinedOutput joins stdout and stderr of the result, skipping empty streams
func (r ExecResult) CombinedOutput() string {
	var parts []string
	if r.OutBuf != nil && r.OutBuf.Len() > 0 {
		parts = append(parts, r.OutBuf.String())
	}
	if r.ErrBuf != nil && r.ErrBuf.Len() > 0 {
		parts = append(parts, r.ErrBuf.String())
	}
	return strings.Join(parts, "\n")
}

// Succeeded reports whether the command exited with code 0 and no error
func (r ExecResult) Succeeded() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// CommandLine renders the command for logging
func (p ExecParams) CommandLine() string {
	return strings.TrimSpace(p.CmdName + " " + strings.Join(p.CmdArgs, " "))
}
