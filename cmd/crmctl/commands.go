// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/taibuivan/leadcrm/internal/apiclient"
	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/pkg/pagination"
	"github.com/taibuivan/leadcrm/pkg/pointer"
)

// passwordEnv lets scripts log in without a prompt.
const passwordEnv = "LEADCRM_PASSWORD"

func newFlagSet(env *environment, name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("crmctl "+name, pflag.ContinueOnError)
	flagSet.SetOutput(env.stdout)
	return flagSet
}

func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return usageError(err.Error())
	}
	return nil
}

// # Session Commands

func runLogin(ctx context.Context, env *environment, args []string) error {
	var email, password string

	flagSet := newFlagSet(env, "login")
	flagSet.StringVarP(&email, "email", "e", "", "operator email")
	flagSet.StringVarP(&password, "password", "p", "", "password (default: $"+passwordEnv+", else read from stdin)")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if email == "" {
		return usageError("login: --email is required")
	}

	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		fmt.Fprint(env.stdout, "Password: ")
		line, err := bufio.NewReader(env.stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("login: read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	user, err := env.machine.Login(ctx, email, password)
	if err != nil {
		return &cliError{code: 1, message: "login failed: " + env.machine.State().Error}
	}

	fmt.Fprintf(env.stdout, "Logged in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
	return nil
}

func runLogout(ctx context.Context, env *environment, _ []string) error {
	env.machine.Logout(ctx)
	fmt.Fprintln(env.stdout, "Logged out")
	return nil
}

func runWhoami(ctx context.Context, env *environment, _ []string) error {
	state, err := env.requireSession(ctx)
	if err != nil {
		return err
	}

	token, _ := env.machine.Token(ctx)
	fmt.Fprintf(env.stdout, "%s <%s>\n", state.User.Name, state.User.Email)
	fmt.Fprintf(env.stdout, "role:    %s\n", state.User.Role)
	fmt.Fprintf(env.stdout, "id:      %s\n", state.User.ID)
	if expiresAt, ok := env.validator.ExpiresAt(token); ok {
		fmt.Fprintf(env.stdout, "expires: %s\n", expiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// # Lead Commands

func runLeads(ctx context.Context, env *environment, args []string) error {
	subcommand := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcommand, args = args[0], args[1:]
	}

	if _, err := env.requireSession(ctx); err != nil {
		return err
	}

	switch subcommand {
	case "list":
		return runLeadsList(ctx, env, args)
	case "create":
		return runLeadsCreate(ctx, env, args)
	case "status":
		return runLeadsStatus(ctx, env, args)
	case "delete":
		return runLeadsDelete(ctx, env, args)
	}
	return usageError(fmt.Sprintf("leads: unknown subcommand %q", subcommand))
}

func runLeadsList(ctx context.Context, env *environment, args []string) error {
	var (
		query  apiclient.LeadQuery
		status string
	)

	flagSet := newFlagSet(env, "leads list")
	flagSet.StringVar(&status, "status", "", "filter by status")
	flagSet.StringVar(&query.AssignedTo, "assigned-to", "", "filter by operator id (super admin)")
	flagSet.IntVar(&query.Page, "page", pagination.DefaultPage, "page number")
	flagSet.IntVar(&query.Limit, "limit", pagination.DefaultLimit, "page size")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	query.Status = crm.LeadStatus(status)

	page, err := env.client.ListLeads(ctx, query)
	if err != nil {
		return err
	}

	printLeads(env, page.Leads)
	env.printer.Fprintf(env.stdout, "page %d/%d, %d leads\n", page.Meta.Page, max(page.Meta.TotalPages, 1), page.Meta.Total)
	return nil
}

func runLeadsCreate(ctx context.Context, env *environment, args []string) error {
	var input crm.LeadInput
	var cardType string

	flagSet := newFlagSet(env, "leads create")
	flagSet.StringVar(&input.FullName, "name", "", "full name")
	flagSet.StringVar(&input.Email, "email", "", "email address")
	flagSet.StringVar(&input.Phone, "phone", "", "phone number")
	flagSet.StringVar(&cardType, "card", string(crm.CardClassic), "card type")
	flagSet.StringVar(&input.AssignedTo, "assign", "", "operator id (super admin)")
	flagSet.StringVar(&input.Notes, "notes", "", "free text notes")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	input.CardType = crm.CardType(cardType)

	lead, err := env.client.CreateLead(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Created lead %s\n", lead.ID)
	return nil
}

func runLeadsStatus(ctx context.Context, env *environment, args []string) error {
	flagSet := newFlagSet(env, "leads status")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return usageError("usage: crmctl leads status <id> <status>")
	}

	status := crm.LeadStatus(flagSet.Arg(1))
	lead, err := env.client.UpdateLead(ctx, flagSet.Arg(0), crm.LeadPatch{Status: pointer.To(status)})
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Lead %s is now %s\n", lead.ID, lead.Status)
	return nil
}

func runLeadsDelete(ctx context.Context, env *environment, args []string) error {
	flagSet := newFlagSet(env, "leads delete")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return usageError("usage: crmctl leads delete <id>")
	}

	if err := env.client.DeleteLead(ctx, flagSet.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Deleted lead %s\n", flagSet.Arg(0))
	return nil
}

// # Dashboard

func runStats(ctx context.Context, env *environment, _ []string) error {
	if _, err := env.requireSession(ctx); err != nil {
		return err
	}

	stats, err := env.client.DashboardStats(ctx)
	if err != nil {
		return err
	}
	printStats(env, *stats)
	return nil
}
