package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser"
	"github.com/hwameistor/bootrepair/pkg/bootrepairctl/cmdparser/definitions"
)

func main() {
	// SIGINT and SIGTERM cancel the running session, which rolls back before exiting
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmdparser.Bootrepair.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *definitions.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintln(os.Stderr, exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
