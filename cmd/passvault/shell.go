package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atinyakov/passvault/internal/keyvault"
	"github.com/atinyakov/passvault/internal/prompt"
	"github.com/atinyakov/passvault/internal/service"
)

const shellHelp = "Available commands: help, list [query], reveal <id>, add, edit <id>, delete <id>, fav <id>, report, lock, exit"

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Work with the vault interactively; it locks itself when idle",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			go printEvents(a)
			return repl(cmd, a)
		}),
	}
}

// printEvents reports changes made by the shell as they are committed.
func printEvents(a *app) {
	for e := range a.vault.Events() {
		a.log.Debug("vault changed: " + e.Kind.String())
	}
}

// repl runs the interactive shell loop, accepting commands to manage secrets.
func repl(cmd *cobra.Command, a *app) error {
	for {
		line, err := a.prompt.Line("passvault> ")
		if errors.Is(err, prompt.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(a.out, "Bye")
			return nil
		}
		if !a.session.Unlocked() {
			fmt.Fprintln(a.out, "Vault locked.")
			if err := a.unlock(cmd); err != nil {
				if errors.Is(err, keyvault.ErrInvalidCredential) {
					fmt.Fprintln(a.out, describe(err))
					continue
				}
				return err
			}
		}

		if err := runShellCommand(cmd, a, args); err != nil {
			if errors.Is(err, prompt.ErrEOF) {
				return nil
			}
			fmt.Fprintln(a.out, "Error:", describe(err))
		}
	}
}

func runShellCommand(cmd *cobra.Command, a *app, args []string) error {
	usage := func(u string) error {
		fmt.Fprintln(a.out, "Usage:", u)
		return nil
	}
	switch args[0] {
	case "help":
		fmt.Fprintln(a.out, shellHelp)
	case "list":
		printCredentials(a, a.vault.ListCredentials(service.Filter{Query: strings.Join(args[1:], " ")}))
	case "reveal", "get":
		if len(args) < 2 {
			return usage("reveal <id>")
		}
		return reveal(cmd, a, args[1])
	case "add":
		in, err := a.prompt.PromptForCredential("")
		if err != nil {
			return err
		}
		c, err := a.vault.CreateCredential(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Created %s (strength: %s)\n", c.ID, strengthLabel(c.StrengthScore))
	case "edit":
		if len(args) < 2 {
			return usage("edit <id>")
		}
		return edit(cmd, a, args[1], "")
	case "delete":
		if len(args) < 2 {
			return usage("delete <id>")
		}
		c, err := a.findCredential(args[1])
		if err != nil {
			return err
		}
		if err := a.vault.DeleteCredential(cmd.Context(), c.ID); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Credential deleted")
	case "fav":
		if len(args) < 2 {
			return usage("fav <id>")
		}
		c, err := a.findCredential(args[1])
		if err != nil {
			return err
		}
		c, err = a.vault.ToggleFavorite(cmd.Context(), c.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s favorite: %t\n", c.Title, c.Favorite)
	case "report":
		report, err := a.vault.BuildSecurityReport(cmd.Context())
		if err != nil {
			return err
		}
		printReport(a, report)
	case "lock":
		a.session.Lock()
		fmt.Fprintln(a.out, "Vault locked.")
	default:
		fmt.Fprintln(a.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}
