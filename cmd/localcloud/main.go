package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"localcloud/pkg/bootstrap"
	"localcloud/pkg/bundle"
)

const (
	exitOK = iota
	exitFailure
	exitAwaitingInvite
	exitInvalidInvite
	exitElevationRequired
	exitUnsupportedPlatform
)

const usage = `This host has not joined a LocalCloud VPN yet.

Join with the invitation URL printed when the server or local machine was added:

    sudo localcloud --join <invitation URL>

More information can be found at localcloud.dev/docs
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	os.Exit(report(err, os.Stderr))
}

// report prints err for the operator and returns the process exit code.
func report(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	code := exitCode(err)
	switch code {
	case exitAwaitingInvite:
		fmt.Fprint(stderr, usage)
	case exitInvalidInvite:
		fmt.Fprintf(stderr, "Error: %v\n\nUsage: sudo localcloud --join <invitation URL>\n", err)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, bootstrap.ErrAwaitingInvite):
		return exitAwaitingInvite
	case errors.Is(err, bundle.ErrInvalidInviteURL):
		return exitInvalidInvite
	case errors.Is(err, bootstrap.ErrElevationRequired):
		return exitElevationRequired
	case errors.Is(err, bundle.ErrUnsupportedPlatform):
		return exitUnsupportedPlatform
	default:
		return exitFailure
	}
}
