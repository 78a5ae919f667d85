// Package main is the passvault command: an offline password vault kept in a
// local directory and unlocked with a master secret.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atinyakov/passvault/internal/config"
	"github.com/atinyakov/passvault/internal/keyvault"
	"github.com/atinyakov/passvault/internal/prompt"
	"github.com/atinyakov/passvault/internal/service"
	"github.com/atinyakov/passvault/internal/storage"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "passvault",
		Short: "An offline password vault protected by a master secret",
		Long: `passvault keeps credentials in an encrypted file in a local directory.
A master secret unlocks the vault; secrets are sealed with a random data key
that survives master secret changes.`,
		Version:       fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newListCmd(),
		newRevealCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newFavoriteCmd(),
		newPasswdCmd(),
		newReportCmd(),
		newCategoriesCmd(),
		newWipeCmd(),
		newShellCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		stop()
		os.Exit(1)
	}
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, storage.ErrCorruptedStore):
		return "vault unreadable — restore from backup or reset"
	case errors.Is(err, keyvault.ErrInvalidCredential):
		return "wrong master secret"
	case errors.Is(err, keyvault.ErrKeyNotFound):
		return "vault is not initialized; run 'passvault init'"
	case errors.Is(err, keyvault.ErrAlreadyInitialized):
		return "vault is already initialized"
	case errors.Is(err, keyvault.ErrSecureStoreUnavailable):
		return "key store unavailable"
	case errors.Is(err, service.ErrNotFound):
		return "no such credential or category"
	case errors.Is(err, service.ErrDecryptionFailed):
		return "secret could not be decrypted"
	case errors.Is(err, service.ErrBusy):
		return "vault is busy; try again"
	case errors.Is(err, service.ErrBuiltInCategory):
		return "built-in categories cannot be removed"
	case errors.Is(err, prompt.ErrEOF):
		return "input ended unexpectedly"
	default:
		return err.Error()
	}
}
