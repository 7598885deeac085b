// Command goauthclient manages a persisted client session against an auth
// API: it logs in, keeps the access token fresh, and logs out.
//
// Usage:
//
//	goauthclient [-config path] [-env path] <command> [flags]
//
// Commands: login, logout, status, token, register, get.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/config"
	"github.com/MrEthical07/goAuthClient/internal/logging"
	"github.com/MrEthical07/goAuthClient/transport"
	log "github.com/sirupsen/logrus"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	// exitUnauthenticated is returned by status and token when there is no
	// usable session.
	exitUnauthenticated = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	cfg     config.Config
	manager *goAuthClient.Manager
	stdout  io.Writer
	stderr  io.Writer
	logger  *log.Logger
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) int
}

var commands = []command{
	{"login", "log in and persist the credential pair", cmdLogin},
	{"logout", "end the session and delete stored credentials", cmdLogout},
	{"status", "print the restored session state", cmdStatus},
	{"token", "print a fresh access token, refreshing if needed", cmdToken},
	{"register", "create an account", cmdRegister},
	{"get", "GET a URL with a fresh bearer token", cmdGet},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("goauthclient", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "goauthclient.yaml", "configuration file (optional)")
	envPath := global.String("env", ".env", "dotenv file (optional)")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: goauthclient [-config path] [-env path] <command> [flags]")
		fmt.Fprintln(stderr, "commands:")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-9s %s\n", c.name, c.summary)
		}
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == global.Arg(0) {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", global.Arg(0))
		global.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	logger := log.New()
	logger.SetOutput(stderr)
	if err := logging.Configure(logger, cfg.Logging); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if cfg.Logging.File == "" {
		logger.SetOutput(stderr)
	}
	defer logging.Close(nil)

	a, cleanup, err := newApp(ctx, cfg, logger, stdout, stderr)
	if err != nil {
		logger.WithError(err).Error("startup failed")
		return exitError
	}
	defer cleanup()

	return cmd.run(ctx, a, global.Args()[1:])
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger, stdout, stderr io.Writer) (*app, func(), error) {
	credStore, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	sink, closeSink, err := openAuditSink(cfg.Logging.AuditFile)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	tr, err := transport.New(cfg.Transport())
	if err != nil {
		closeSink()
		closeStore()
		return nil, nil, err
	}

	builder := goAuthClient.New().
		WithConfig(cfg.Manager()).
		WithStore(credStore).
		WithTransport(tr).
		WithLogger(logger)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}
	manager, err := builder.Build()
	if err != nil {
		closeSink()
		closeStore()
		return nil, nil, err
	}

	cleanup := func() {
		manager.Close()
		closeSink()
		closeStore()
	}
	return &app{
		cfg:     cfg,
		manager: manager,
		stdout:  stdout,
		stderr:  stderr,
		logger:  logger,
	}, cleanup, nil
}

// fail prints err for the user and maps it to an exit code.
func (a *app) fail(err error) int {
	var ae *goAuthClient.AuthError
	if errors.As(err, &ae) {
		fmt.Fprintf(a.stderr, "error: %s\n", ae.UserMessage())
		a.logger.WithError(err).Debug("command failed")
		if errors.Is(err, goAuthClient.ErrNotAuthenticated) || errors.Is(err, goAuthClient.ErrInvalidCredentials) {
			return exitUnauthenticated
		}
		return exitError
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return exitError
}
