// Command fetch retrieves one URL through the retrieval core and writes its
// content to stdout.
package main

import (
	"browser-core/application/http/actor/client"
	"browser-core/application/util/domain"
	"browser-core/config"
	"browser-core/core"
	"browser-core/session/tls"
	"browser-core/transport"
	"browser-core/transport/socks"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitInvalidArgs   = 2
	ExitResolveFailed = 3
	ExitConnectFailed = 4
	ExitTLSRejected   = 5
	ExitProtocolError = 6
	ExitHTTPError     = 7
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file")
	reload := fs.Bool("reload", false, "Bypass cached content and addresses")
	decode := fs.Bool("decode", false, "Undo the Content-Encoding of the response")
	verbose := fs.Bool("v", false, "Log progress to stderr")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: fetch [options] URL

Retrieve URL, following redirects, and write the content to stdout.
Settings come from the configuration file and BROWSER_CORE_* variables.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	c, err := core.New(cfg, logger, clock.New())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := c.Fetch(ctx, fs.Arg(0), core.FetchOptions{Reload: *reload, Decode: *decode})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	if _, err := stdout.Write(res.Body); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	if res.Outcome.Kind == client.AuthRequired || res.Outcome.Code >= 400 {
		fmt.Fprintf(stderr, "%s: HTTP %d\n", res.URL, res.Outcome.Code)
		return ExitHTTPError
	}
	return ExitSuccess
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrDomainNotFound), errors.Is(err, domain.ErrLookupFailed):
		return ExitResolveFailed
	case errors.Is(err, client.ErrPolicyRejected):
		return ExitTLSRejected
	case errors.Is(err, tls.ErrHandshake), errors.Is(err, tls.ErrDowngradeExhausted):
		return ExitConnectFailed
	case transport.IsRetryable(err), isSocks(err):
		return ExitConnectFailed
	case errors.Is(err, client.ErrUnsupportedScheme):
		return ExitInvalidArgs
	case errors.Is(err, core.ErrTooManyRedirects), errors.Is(err, core.ErrRetriesExhausted),
		errors.Is(err, client.ErrEmptyResponse), errors.Is(err, io.ErrUnexpectedEOF):
		return ExitProtocolError
	}
	return ExitGeneralError
}

func isSocks(err error) bool {
	for _, target := range []error{
		socks.ErrBadVersion, socks.ErrRejected, socks.ErrNoIdentd, socks.ErrBadUserID, socks.ErrUnknownReply,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
