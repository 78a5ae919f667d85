package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/atinyakov/passvault/internal/config"
	"github.com/atinyakov/passvault/internal/db"
	"github.com/atinyakov/passvault/internal/keyvault"
	"github.com/atinyakov/passvault/internal/logger"
	"github.com/atinyakov/passvault/internal/models"
	"github.com/atinyakov/passvault/internal/prompt"
	"github.com/atinyakov/passvault/internal/repository"
	"github.com/atinyakov/passvault/internal/service"
	"github.com/atinyakov/passvault/internal/storage"
)

// KeyStoreFile is the bbolt database holding the key material.
const KeyStoreFile = "keys.db"

// app wires the vault for one command invocation.
type app struct {
	opts    *config.Options
	log     *zap.Logger
	keys    *bbolt.DB
	vault   *service.VaultService
	session *service.Session
	prompt  *prompt.Prompter
	out     io.Writer
}

func openApp(cmd *cobra.Command) (*app, error) {
	opts, err := config.Parse(cmd.Flags())
	if err != nil {
		return nil, err
	}

	log := logger.New()
	if err := log.Init(opts.LogLevel); err != nil {
		return nil, err
	}
	zapLogger := log.Log

	bdb, err := db.InitBolt(filepath.Join(opts.DataDir, KeyStoreFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", keyvault.ErrSecureStoreUnavailable, err)
	}

	kv := keyvault.New(repository.NewBoltKeyStore(bdb),
		keyvault.WithIterations(opts.KDFIterations),
		keyvault.WithLogger(zapLogger),
	)
	st := storage.New(kv, storage.Options{
		Dir:      opts.DataDir,
		Logger:   zapLogger,
		FailFast: opts.FailFast,
	})
	vault := service.NewVaultService(kv, st,
		service.WithLogger(zapLogger),
		service.WithMaxSecretAge(opts.MaxSecretAge()),
	)
	if err := vault.Open(cmd.Context()); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	session := service.NewSession(vault, nil)
	session.AutoLockAfter(opts.AutoLock())

	zapLogger.Debug("vault opened", zap.String("dir", opts.DataDir))
	return &app{
		opts:    opts,
		log:     zapLogger,
		keys:    bdb,
		vault:   vault,
		session: session,
		prompt:  prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr()),
		out:     cmd.OutOrStdout(),
	}, nil
}

func (a *app) Close() error {
	// Sync fails on stderr for some platforms; it carries no data loss.
	_ = a.log.Sync()
	return a.keys.Close()
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, a.Close()) }()
		return fn(cmd, args, a)
	}
}

// unlock asks for the master secret unless the session is still unlocked.
func (a *app) unlock(cmd *cobra.Command) error {
	if a.session.Unlocked() {
		return nil
	}
	has, err := a.vault.HasMasterSecret()
	if err != nil {
		return err
	}
	if !has {
		return keyvault.ErrKeyNotFound
	}
	secret, err := a.prompt.Secret("Master secret: ")
	if err != nil {
		return err
	}
	return a.session.Unlock(cmd.Context(), secret)
}

var errAmbiguous = errors.New("ambiguous id prefix")

// findCredential accepts a full id or a unique prefix of at least four
// characters.
func (a *app) findCredential(ref string) (models.Credential, error) {
	if c, err := a.vault.Get(ref); err == nil {
		return c, nil
	}
	if len(ref) < 4 {
		return models.Credential{}, service.ErrNotFound
	}
	var found []models.Credential
	for _, c := range a.vault.ListCredentials(service.Filter{}) {
		if strings.HasPrefix(c.ID, ref) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return models.Credential{}, service.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return models.Credential{}, fmt.Errorf("%w: %q matches %d credentials", errAmbiguous, ref, len(found))
	}
}

// findCategory accepts a category id or a case-insensitive name.
func (a *app) findCategory(ref string) (models.Category, error) {
	for _, c := range a.vault.ListCategories() {
		if c.ID == ref || strings.EqualFold(c.Name, ref) {
			return c, nil
		}
	}
	return models.Category{}, fmt.Errorf("category %q: %w", ref, service.ErrNotFound)
}
