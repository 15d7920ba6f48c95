// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command crmctl is the terminal client of the lead CRM.
//
// It persists the operator session between runs (file, Redis or memory,
// per LEADCRM_TOKEN_BACKEND) and talks to the REST API and realtime channel
// configured by LEADCRM_API_URL and LEADCRM_REALTIME_URL.
//
// # Commands
//
//	crmctl login --email lan@leadcrm.dev
//	crmctl whoami
//	crmctl leads [list|create|status|delete]
//	crmctl stats
//	crmctl watch
//	crmctl logout
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// command is one crmctl subcommand.
type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"login":  {summary: "authenticate and persist the session", run: runLogin},
	"logout": {summary: "forget the persisted session", run: runLogout},
	"whoami": {summary: "show the operator behind the persisted session", run: runWhoami},
	"leads":  {summary: "list, create, update or delete leads", run: runLeads},
	"stats":  {summary: "print the dashboard figures once", run: runStats},
	"watch":  {summary: "follow the live dashboard until interrupted", run: runWatch},
}

// commandOrder is the help listing order.
var commandOrder = []string{"login", "whoami", "leads", "stats", "watch", "logout"}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		debug   bool
		apiURL  string
		profile string
	)

	flagSet := pflag.NewFlagSet("crmctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.BoolVar(&debug, "debug", false, "log debug events to stderr")
	flagSet.StringVar(&apiURL, "api-url", "", "REST API root (overrides LEADCRM_API_URL)")
	flagSet.StringVar(&profile, "profile", "", "session profile (overrides LEADCRM_PROFILE)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr, flagSet)
			return nil
		}
		return usageError(err.Error())
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printUsage(stderr, flagSet)
		return nil
	}

	name := flagSet.Arg(0)
	selected, ok := commands[name]
	if !ok {
		return usageError(fmt.Sprintf("unknown command %q", name))
	}

	env, err := newEnvironment(ctx, overrides{debug: debug, apiURL: apiURL, profile: profile}, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer env.close()

	return selected.run(ctx, env, flagSet.Args()[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "crmctl: terminal client of the lead CRM")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: crmctl [global flags] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}

// # Exit Codes

// cliError carries the process exit code of a failure.
type cliError struct {
	code    int
	message string
}

func (e *cliError) Error() string { return e.message }

func usageError(message string) error { return &cliError{code: 2, message: message} }

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = &cliError{code: 3, message: "not logged in; run crmctl login"}

func exitCode(err error) int {
	var cli *cliError
	if errors.As(err, &cli) {
		return cli.code
	}
	return 1
}
