// Command adrelay calls the AdRelay decision API from the shell.
//
//	adrelay --base-url http://localhost:8080 decide --body '{"placement":"sidebar"}'
//	adrelay event --body @click.json --idempotency-key evt-42
//	adrelay --max-retries 0 request GET /health
//
// The JSON result is printed to stdout. Failures are printed to stderr and
// select the exit code: 1 for terminal errors, 2 when a retryable failure
// outlasted the retry budget.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrelay/adrelay-go/sdk"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitRetryable = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := newApp(stdin, stdout, stderr)
	if err := app.RunContext(ctx, args); err != nil {
		return report(stderr, err)
	}
	return exitOK
}

// report describes err on w and picks the exit code
func report(w io.Writer, err error) int {
	var sdkErr *sdk.Error
	if !errors.As(err, &sdkErr) {
		fmt.Fprintf(w, "error: %v\n", err)
		return exitFailure
	}

	switch sdkErr.Kind {
	case sdk.KindAPI:
		fmt.Fprintf(w, "error: api status=%d code=%s message=%q request_id=%s attempt=%d\n",
			sdkErr.StatusCode, sdkErr.Body.Error, sdkErr.Body.Message, sdkErr.Body.RequestID, sdkErr.Attempt)
	default:
		fmt.Fprintf(w, "error: %s attempt=%d: %v\n", sdkErr.Kind, sdkErr.Attempt, err)
	}

	if sdkErr.IsRetryable() {
		return exitRetryable
	}
	return exitFailure
}
