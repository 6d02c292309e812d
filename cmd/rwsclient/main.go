package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/EgorLis/rwsclient/internal/config"
	"github.com/EgorLis/rwsclient/internal/console"
	"github.com/EgorLis/rwsclient/internal/events"
	"github.com/EgorLis/rwsclient/internal/monitor"
	"github.com/EgorLis/rwsclient/internal/rws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	stdinFd := int(os.Stdin.Fd())

	flags := pflag.NewFlagSet("rwsclient", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "config file (.yaml, .yml, .json, .jsonc)")
	baseURL := flags.String("url", "", "controller base URL, e.g. http://127.0.0.1")
	username := flags.StringP("user", "u", "", "RWS user")
	password := flags.String("password", "", `RWS password ("-" to prompt)`)
	insecure := flags.Bool("insecure", false, "skip TLS certificate verification")
	interactive := flags.BoolP("interactive", "i", term.IsTerminal(stdinFd), "run the command prompt")
	demoWrites := flags.Bool("demo-writes", false, "write DO1, the overview variable and start RAPID after the overview")
	noSubscribe := flags.Bool("no-subscribe", false, "do not start the event subscription")
	logLevel := flags.String("log-level", "", "debug|info|warn|error")
	logFormat := flags.String("log-format", "", "text|json")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flags.Changed("url") {
		cfg.Controller.URL = *baseURL
	}
	if flags.Changed("user") {
		cfg.Controller.Username = *username
	}
	if flags.Changed("password") {
		cfg.Controller.Password = *password
	}
	if flags.Changed("insecure") {
		cfg.Controller.InsecureSkipVerify = *insecure
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if *noSubscribe {
		cfg.Subscription.AutoStart = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Controller.Password == "-" {
		if cfg.Controller.Password, err = readPassword(stdinFd); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rl *readline.Instance
	var logOut io.Writer = os.Stderr
	if *interactive {
		rl, err = readline.NewEx(&readline.Config{
			Prompt:          "rws> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()
		logOut = rl.Stderr()
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	client, err := rws.New(cfg.Controller.ClientConfig(), rws.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	var con *console.Console
	mon := monitor.New(monitor.FromClient(client), monitor.Options{
		StartGrace:  cfg.Subscription.StartGrace.Std(),
		RetryDelay:  cfg.Subscription.RetryDelay.Std(),
		StopTimeout: cfg.Subscription.StopTimeout.Std(),
		Decode:      events.Summarize,
		OnEvent:     func(s string) { con.Event(s) },
		Logger:      logger,
	})
	con = console.New(client, mon, os.Stdout, console.Options{
		Resources:   cfg.Subscription.Resources,
		Overview:    cfg.Overview,
		StopTimeout: cfg.Subscription.StopTimeout.Std(),
	})
	if rl != nil {
		con.SetOutput(rl.Stdout())
	}

	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Controller.RequestTimeout.Std())
		defer cancel()
		mon.Shutdown(sctx)
	}()

	con.Overview(ctx)
	if *demoWrites {
		con.DemoWrites(ctx)
	}
	if cfg.Subscription.AutoStart {
		if err := mon.Start(ctx, cfg.Subscription.Resources); err != nil {
			con.Error(err)
		}
	}

	if rl != nil {
		con.Run(ctx, rl)
	} else {
		con.Await(ctx)
	}
	return nil
}

func newLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}

func readPassword(fd int) (string, error) {
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for password prompt (use --password)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
