// Command irrigationctl is the terminal client of the irrigation backend.
//
//	irrigationctl [-config path] login [-email addr]
//	irrigationctl logout
//	irrigationctl status
//	irrigationctl pump on|off
//	irrigationctl watch
//	irrigationctl log [-from t] [-to t] [-action on|off|automation]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"smart_irrigation/internal/apiclient"
	"smart_irrigation/internal/config"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/session"

	"golang.org/x/term"
)

var errUsage = errors.New("usage: irrigationctl [-config path] login|logout|status|pump on|off|watch|log")

// app holds everything a subcommand needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	out      io.Writer
	mgr      *session.Manager
	api      *apiclient.Client
	password func() (string, error)
}

func main() {
	configPath := flag.String("config", "", "path to config file (default ./configs/config.yml)")
	flag.Usage = func() { fmt.Fprintln(flag.CommandLine.Output(), errUsage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Logs go to stderr at warn and above so command output stays readable.
	log := logger.New(logger.WarnLevel, os.Stderr)
	if cfg.LogLevel == logger.DebugLevel {
		log = logger.New(logger.DebugLevel, os.Stderr)
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := session.OpenStore(cfg.Session)
	if err != nil {
		fmt.Fprintln(os.Stderr, "session store:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(cfg, store, log, os.Stdout)
	a.password = promptPassword(os.Stdin, os.Stderr)
	a.mgr.Init(ctx)

	err = a.run(ctx, flag.Args())
	stop()
	a.mgr.Close()
	_ = closeStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, store session.Store, log *logger.Logger, out io.Writer) *app {
	mgr := session.NewManager(store, cfg.Dashboard.BackendURL,
		session.WithHTTPClient(&http.Client{Timeout: cfg.Dashboard.RequestTimeout}),
		session.WithLogger(log.Named("session")),
	)
	return &app{
		cfg: cfg,
		log: log,
		out: out,
		mgr: mgr,
		api: apiclient.New(cfg.Dashboard.BackendURL, mgr.Transport(http.DefaultTransport), cfg.Dashboard.RequestTimeout, log.Named("api")),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "status":
		return a.status(ctx)
	case "pump":
		return a.pump(ctx, rest)
	case "watch":
		return a.watch(ctx)
	case "log":
		return a.commandLog(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

// promptPassword reads without echo from a terminal, or one line otherwise.
func promptPassword(in *os.File, prompt io.Writer) func() (string, error) {
	return func() (string, error) {
		fd := int(in.Fd())
		if term.IsTerminal(fd) {
			fmt.Fprint(prompt, "Password: ")
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(prompt)
			return string(b), err
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
